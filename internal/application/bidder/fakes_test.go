package bidder

import (
	"context"
	"errors"
	"maps"
	"sync"
	"time"

	"github.com/alejandrodnm/poolbid/internal/domain"
	"github.com/alejandrodnm/poolbid/internal/ports"
)

type submitCall struct {
	Contract string
	Wallet   string
	Price    float64
	Quantity int
}

type fakeMarket struct {
	mu sync.Mutex

	ladders     map[string]domain.Ladder
	floors      map[string]float64
	details     map[string]ports.CollectionDetails
	fetchErr    map[string]error
	userBids    map[string][]ports.UserBid
	userBidsErr error

	submitErrs []error // consumed in order; nil entries succeed
	cancelErr  error
	submitHook func() // runs before recording, outside the lock

	submits      []submitCall
	cancels      [][]float64
	topPoolCalls int
}

func newFakeMarket() *fakeMarket {
	return &fakeMarket{
		ladders:  map[string]domain.Ladder{},
		floors:   map[string]float64{},
		details:  map[string]ports.CollectionDetails{},
		fetchErr: map[string]error{},
		userBids: map[string][]ports.UserBid{},
	}
}

func (f *fakeMarket) FetchTopPools(_ context.Context, contract string, _ *domain.Wallet, limit int) (domain.Ladder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.topPoolCalls++
	if err := f.fetchErr[contract]; err != nil {
		return nil, err
	}
	l := f.ladders[contract]
	if len(l) > limit {
		l = l[:limit]
	}
	return append(domain.Ladder(nil), l...), nil
}

func (f *fakeMarket) FetchCollection(_ context.Context, contract string, _ *domain.Wallet) (ports.CollectionDetails, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fetchErr[contract]; err != nil {
		return ports.CollectionDetails{}, err
	}
	d, ok := f.details[contract]
	if !ok {
		d = ports.CollectionDetails{ContractAddress: contract, Slug: "slug-" + contract}
	}
	if fl, ok := f.floors[contract]; ok {
		d.Floor = &fl
	}
	return d, nil
}

func (f *fakeMarket) SubmitBid(_ context.Context, contract string, w *domain.Wallet, price float64, quantity int, _ time.Time) error {
	f.mu.Lock()
	hook := f.submitHook
	f.mu.Unlock()
	if hook != nil {
		hook()
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.submits = append(f.submits, submitCall{contract, w.Address, price, quantity})
	if len(f.submitErrs) == 0 {
		return nil
	}
	err := f.submitErrs[0]
	f.submitErrs = f.submitErrs[1:]
	return err
}

func (f *fakeMarket) CancelBids(_ context.Context, _ string, _ *domain.Wallet, prices []float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancels = append(f.cancels, append([]float64(nil), prices...))
	return f.cancelErr
}

func (f *fakeMarket) FetchUserBids(_ context.Context, w *domain.Wallet) ([]ports.UserBid, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.userBidsErr != nil {
		return nil, f.userBidsErr
	}
	return f.userBids[w.Address], nil
}

func (f *fakeMarket) Submits() []submitCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]submitCall(nil), f.submits...)
}

func (f *fakeMarket) Cancels() [][]float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]float64(nil), f.cancels...)
}

func (f *fakeMarket) TopPoolCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.topPoolCalls
}

type fakeBalances struct {
	mu      sync.Mutex
	balance map[string]float64
	err     error
	calls   int
}

func (f *fakeBalances) BalanceOf(_ context.Context, address string) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return 0, f.err
	}
	return f.balance[address], nil
}

type fakeStore struct {
	mu          sync.Mutex
	bids        map[string]map[string]domain.MyBids // contract → wallet → bids
	collections map[string]ports.CollectionDetails
	wallets     map[string]ports.SavedWallet
	saves       int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		bids:        map[string]map[string]domain.MyBids{},
		collections: map[string]ports.CollectionDetails{},
		wallets:     map[string]ports.SavedWallet{},
	}
}

func (s *fakeStore) SaveMyBids(_ context.Context, contract, wallet string, bids domain.MyBids) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves++
	if s.bids[contract] == nil {
		s.bids[contract] = map[string]domain.MyBids{}
	}
	s.bids[contract][wallet] = maps.Clone(bids)
	return nil
}

func (s *fakeStore) LoadMyBids(_ context.Context, contract string) (map[string]domain.MyBids, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := map[string]domain.MyBids{}
	for w, b := range s.bids[contract] {
		out[w] = maps.Clone(b)
	}
	return out, nil
}

func (s *fakeStore) SaveCollections(_ context.Context, cs []ports.CollectionDetails) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range cs {
		s.collections[c.ContractAddress] = c
	}
	return nil
}

func (s *fakeStore) LoadCollections(context.Context) (map[string]ports.CollectionDetails, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return maps.Clone(s.collections), nil
}

func (s *fakeStore) LoadWallets(context.Context) (map[string]ports.SavedWallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return maps.Clone(s.wallets), nil
}

func (s *fakeStore) SaveWallet(_ context.Context, w ports.SavedWallet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.wallets[w.Address] = w
	return nil
}

func (s *fakeStore) Saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

func (s *fakeStore) Saved(contract, wallet string) domain.MyBids {
	s.mu.Lock()
	defer s.mu.Unlock()
	return maps.Clone(s.bids[contract][wallet])
}

type fakeNotifier struct {
	mu   sync.Mutex
	msgs []string
}

func (n *fakeNotifier) Notify(_ context.Context, topic, message string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.msgs = append(n.msgs, topic+": "+message)
	return nil
}

func (n *fakeNotifier) Messages() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.msgs...)
}

type fakeSigner struct{ addr string }

func (s fakeSigner) Address() string                   { return s.addr }
func (fakeSigner) SignMessage([]byte) (string, error)   { return "0xsig", nil }
func (fakeSigner) SignTypedData([]byte) (string, error) { return "0xsig", nil }

type fakeAuth struct {
	mu     sync.Mutex
	logins int
	err    error
	valid  map[string]bool
}

func (a *fakeAuth) Login(_ context.Context, s domain.Signer) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.logins++
	if a.err != nil {
		return "", a.err
	}
	return "fresh-" + domain.NormalizeAddress(s.Address()), nil
}

func (a *fakeAuth) TokenValid(token string, _ time.Time) bool {
	return a.valid[token]
}

var errBoom = errors.New("boom")

// fixedClock returns a clock frozen at t.
func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func baseConfig() domain.CollectionConfig {
	return domain.CollectionConfig{
		MaxPoolToBid:            3,
		PoolSizeLimitBid:        500,
		PoolSizeLimitCancel:     450,
		SamePoolSizeLimitBid:    500,
		SamePoolSizeLimitCancel: 450,
		BidExpirationMinutes:    30,
	}
}

func scenarioLadder() domain.Ladder {
	return domain.Ladder{
		{Price: 100, ExecutableSize: 200},
		{Price: 95, ExecutableSize: 200},
		{Price: 90, ExecutableSize: 200},
		{Price: 85, ExecutableSize: 200},
	}
}
