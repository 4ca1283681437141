package bidder

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alejandrodnm/poolbid/internal/domain"
	"github.com/alejandrodnm/poolbid/internal/metrics"
	"github.com/alejandrodnm/poolbid/internal/ports"
)

// Deps are the engine's collaborators.
type Deps struct {
	Market   ports.Marketplace
	Balances ports.BalanceSource
	Store    ports.BidStore  // optional
	Notifier ports.Notifier  // optional
	Metrics  *metrics.Metrics // optional
	Now      func() time.Time // optional, defaults to time.Now
}

// Engine reconciles the bids of every wallet against a collection's ladder.
type Engine struct {
	market   ports.Marketplace
	balances ports.BalanceSource
	store    ports.BidStore
	notifier ports.Notifier
	metrics  *metrics.Metrics
	now      func() time.Time

	wallets []*domain.Wallet

	alerts sync.WaitGroup
}

// NewEngine creates an engine for wallets.
func NewEngine(deps Deps, wallets []*domain.Wallet) *Engine {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &Engine{
		market:   deps.Market,
		balances: deps.Balances,
		store:    deps.Store,
		notifier: deps.Notifier,
		metrics:  deps.Metrics,
		now:      now,
		wallets:  wallets,
	}
}

// syncWallet runs one reconciliation pass for wallet on c using the ladder
// and floor currently stored on c.
func (e *Engine) syncWallet(ctx context.Context, c *domain.Collection, w *domain.Wallet, passID string) {
	start := e.now()
	ladder, floor := c.Snapshot()
	log := slog.With("pass", passID, "collection", c.Label(), "wallet", w.Address)

	plan := Plan(PlanInput{
		Ladder:  ladder,
		Floor:   floor,
		Config:  c.Config,
		Balance: w.Balance(),
		MyBids:  c.MyBids(w.Address),
	})

	var wg sync.WaitGroup
	for _, d := range plan {
		switch d.Action {
		case ActionSkip:
			log.Debug("bidder: skipping pool", "pool", d.Rank, "price", d.Pool.Price, "reason", d.Reason)
		case ActionKeep:
			log.Debug("bidder: keeping bid", "pool", d.Rank, "price", d.Pool.Price, "above", d.AboveSum, "mine", d.MySum)
		case ActionCancel:
			log.Info("bidder: cancelling bid", "pool", d.Rank, "price", d.Pool.Price, "reason", d.Reason)
			c.DropBid(w.Address, d.Pool.Price)
			wg.Add(1)
			go func(price float64) {
				defer wg.Done()
				e.cancel(ctx, c, w, price)
			}(d.Pool.Price)
		case ActionBid:
			log.Info("bidder: sending bid",
				"pool", d.Rank,
				"price", d.Pool.Price,
				"quantities", d.Quantities,
				"reason", d.Reason,
			)
			wg.Add(1)
			go func(d Decision) {
				defer wg.Done()
				e.sendBid(ctx, c, w, d.Pool.Price, d.Quantities, false)
			}(d)
		}
	}
	wg.Wait()

	if e.store != nil {
		if err := e.store.SaveMyBids(ctx, c.ContractAddress, w.Address, c.MyBids(w.Address)); err != nil {
			log.Warn("bidder: save bids failed", "err", err)
		}
	}
	e.metrics.ObservePass(c.Label(), e.now().Sub(start))
	log.Debug("bidder: pass done", "bids", c.MyBids(w.Address))
}

// cancel cancels one price. Failures mean a bid we no longer track may still
// be live, so they raise an alert.
func (e *Engine) cancel(ctx context.Context, c *domain.Collection, w *domain.Wallet, price float64) bool {
	err := e.market.CancelBids(ctx, c.ContractAddress, w, []float64{price})
	e.metrics.BidCancelled(c.Label(), err == nil)
	if err != nil {
		slog.Error("bidder: cancel failed",
			"collection", c.Label(),
			"wallet", w.Address,
			"price", price,
			"err", err,
		)
		e.alert("cancel", fmt.Sprintf("Failed to cancel bid %s for contract %s (wallet %s).",
			domain.PriceKey(price), c.Label(), w.Address))
		return false
	}
	return true
}

// alert notifies the operator without blocking the pass.
func (e *Engine) alert(topic, msg string) {
	if e.notifier == nil {
		return
	}
	e.alerts.Add(1)
	go func() {
		defer e.alerts.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := e.notifier.Notify(ctx, topic, msg); err != nil {
			slog.Warn("bidder: alert not delivered", "topic", topic, "err", err)
		}
	}()
}

// WaitAlerts blocks until pending alerts were delivered or dropped.
func (e *Engine) WaitAlerts() {
	e.alerts.Wait()
}
