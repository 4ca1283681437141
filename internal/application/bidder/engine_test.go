package bidder

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/poolbid/internal/domain"
)

const (
	testContract = "0xcol"
	testWallet   = "0xw1"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type engineFixture struct {
	market   *fakeMarket
	balances *fakeBalances
	store    *fakeStore
	notifier *fakeNotifier
	engine   *Engine
	wallet   *domain.Wallet
	coll     *domain.Collection
}

func newEngineFixture(cfg domain.CollectionConfig, balance float64) *engineFixture {
	f := &engineFixture{
		market:   newFakeMarket(),
		balances: &fakeBalances{balance: map[string]float64{}},
		store:    newFakeStore(),
		notifier: &fakeNotifier{},
	}
	f.wallet = domain.NewWallet(testWallet, fakeSigner{testWallet}, "tok", balance)
	f.engine = NewEngine(Deps{
		Market:   f.market,
		Balances: f.balances,
		Store:    f.store,
		Notifier: f.notifier,
		Now:      fixedClock(testNow),
	}, []*domain.Wallet{f.wallet})
	f.coll = domain.NewCollection(testContract, "cool", "Cool", cfg)
	return f
}

func (f *engineFixture) sync(ladder domain.Ladder) {
	f.coll.ApplyUpdate(domain.UpdatedBids{ContractAddress: testContract, Bids: ladder})
	f.engine.syncWallet(context.Background(), f.coll, f.wallet, "test")
	f.engine.WaitAlerts()
}

func lowLimits() domain.CollectionConfig {
	cfg := baseConfig()
	cfg.PoolSizeLimitBid = 300
	cfg.PoolSizeLimitCancel = 250
	return cfg
}

func TestSyncWallet_PlacesBid(t *testing.T) {
	f := newEngineFixture(lowLimits(), 1000)

	f.sync(scenarioLadder())

	require.Equal(t, []submitCall{{testContract, testWallet, 90, 1}}, f.market.Submits())
	exp := testNow.Add(30 * time.Minute).UnixMilli()
	assert.Equal(t, domain.MyBids{"90": exp}, f.coll.MyBids(testWallet))
	assert.Equal(t, domain.MyBids{"90": exp}, f.store.Saved(testContract, testWallet))
}

func TestSyncWallet_NoBidWhenThresholdNotReached(t *testing.T) {
	f := newEngineFixture(baseConfig(), 1000)

	f.sync(scenarioLadder())

	assert.Empty(t, f.market.Submits())
	assert.Empty(t, f.market.Cancels())
	assert.Equal(t, 1, f.store.Saves(), "the snapshot is written after every pass")
}

func TestSyncWallet_KeepsBidInsideHysteresisBand(t *testing.T) {
	f := newEngineFixture(lowLimits(), 1000)
	f.coll.SetBid(testWallet, 90, testNow.Add(time.Hour).UnixMilli())

	f.sync(domain.Ladder{
		{Price: 100, ExecutableSize: 130},
		{Price: 95, ExecutableSize: 130},
		{Price: 90, ExecutableSize: 200},
	})

	assert.Empty(t, f.market.Submits())
	assert.Empty(t, f.market.Cancels())
	assert.True(t, f.coll.HasBid(testWallet, 90))
}

func TestSyncWallet_CancelsAndMovesDown(t *testing.T) {
	cfg := lowLimits()
	cfg.MaxPoolToBid = 4
	f := newEngineFixture(cfg, 1000)
	f.coll.SetBid(testWallet, 95, testNow.Add(time.Hour).UnixMilli())

	f.sync(scenarioLadder())

	assert.Equal(t, [][]float64{{95}}, f.market.Cancels())
	assert.Equal(t, []submitCall{{testContract, testWallet, 90, 1}}, f.market.Submits())
	bids := f.coll.MyBids(testWallet)
	assert.NotContains(t, bids, "95")
	assert.Contains(t, bids, "90")
}

func TestSyncWallet_CancelFailureAlerts(t *testing.T) {
	f := newEngineFixture(baseConfig(), 1000)
	f.market.cancelErr = errBoom
	f.coll.SetBid(testWallet, 100, testNow.Add(time.Hour).UnixMilli())

	f.sync(scenarioLadder())

	assert.False(t, f.coll.HasBid(testWallet, 100), "entry is dropped at decision time")
	msgs := f.notifier.Messages()
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0], "Failed to cancel bid 100")
}

func TestSendBid_RetriesOnceAfterLimitExceeded(t *testing.T) {
	cfg := lowLimits()
	cfg.UseMaxQuantity = true
	f := newEngineFixture(cfg, 1000)
	f.balances.balance[testWallet] = 500
	f.market.submitErrs = []error{domain.ErrLimitExceeded, nil}

	f.sync(scenarioLadder())

	submits := f.market.Submits()
	require.Len(t, submits, 2)
	assert.Equal(t, 11, submits[0].Quantity)
	assert.Equal(t, 5, submits[1].Quantity, "re-planned against the refreshed balance")
	assert.Equal(t, [][]float64{{90}}, f.market.Cancels())
	assert.Equal(t, 500.0, f.wallet.Balance())
	assert.True(t, f.coll.HasBid(testWallet, 90))
}

func TestSendBid_RetriesEvenWhenCancelFails(t *testing.T) {
	f := newEngineFixture(lowLimits(), 1000)
	f.balances.balance[testWallet] = 1000
	f.market.submitErrs = []error{domain.ErrLimitExceeded, nil}
	f.market.cancelErr = errBoom

	f.sync(scenarioLadder())

	assert.Len(t, f.market.Submits(), 2)
	assert.Equal(t, [][]float64{{90}}, f.market.Cancels())
	msgs := f.notifier.Messages()
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0], "Failed to cancel bid 90")
	assert.True(t, f.coll.HasBid(testWallet, 90))
}

func TestSendBid_GivesUpAfterSecondFailure(t *testing.T) {
	f := newEngineFixture(lowLimits(), 1000)
	f.balances.balance[testWallet] = 1000
	f.market.submitErrs = []error{domain.ErrInsufficientFunds, domain.ErrLimitExceeded}

	f.sync(scenarioLadder())

	assert.Len(t, f.market.Submits(), 2)
	assert.False(t, f.coll.HasBid(testWallet, 90))
}

func TestSendBid_RefreshedBalanceTooLow(t *testing.T) {
	f := newEngineFixture(lowLimits(), 1000)
	f.balances.balance[testWallet] = 10
	f.market.submitErrs = []error{domain.ErrLimitExceeded}

	f.sync(scenarioLadder())

	assert.Len(t, f.market.Submits(), 1)
	assert.Equal(t, [][]float64{{90}}, f.market.Cancels())
	assert.False(t, f.coll.HasBid(testWallet, 90))
}

func TestSendBid_OtherErrorsAreNotRetried(t *testing.T) {
	f := newEngineFixture(lowLimits(), 1000)
	f.market.submitErrs = []error{errBoom}

	f.sync(scenarioLadder())

	assert.Len(t, f.market.Submits(), 1)
	assert.Empty(t, f.market.Cancels())
	assert.Zero(t, f.balances.calls)
	assert.False(t, f.coll.HasBid(testWallet, 90))
}

func TestSendBid_PartialTranchesRecordBid(t *testing.T) {
	cfg := lowLimits()
	cfg.UseMaxQuantity = true
	f := newEngineFixture(cfg, 90*150)
	f.market.submitErrs = []error{nil, errBoom}

	f.sync(scenarioLadder())

	assert.Len(t, f.market.Submits(), 2)
	assert.True(t, f.coll.HasBid(testWallet, 90))
}
