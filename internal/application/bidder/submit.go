package bidder

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/alejandrodnm/poolbid/internal/domain"
)

// sendBid submits every tranche at price. When at least one tranche is
// accepted the wallet records a bid at price expiring after the collection's
// bid expiration.
//
// A balance error on the first attempt means the wallet's balance is stale:
// it is refreshed from chain, whatever was placed at price is cancelled and
// the bid is re-planned and sent once more.
func (e *Engine) sendBid(ctx context.Context, c *domain.Collection, w *domain.Wallet, price float64, quantities []int, retry bool) {
	expiresAt := e.now().Add(time.Duration(c.Config.BidExpirationMinutes) * time.Minute)
	log := slog.With("collection", c.Label(), "wallet", w.Address, "price", price)

	var (
		mu         sync.Mutex
		accepted   int
		balanceErr error
		wg         sync.WaitGroup
	)
	for _, q := range quantities {
		wg.Add(1)
		go func(q int) {
			defer wg.Done()
			err := e.market.SubmitBid(ctx, c.ContractAddress, w, price, q, expiresAt)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				accepted++
				e.metrics.BidSubmitted(c.Label())
			case domain.IsBalanceError(err):
				balanceErr = err
				e.metrics.BidFailed(c.Label(), "balance")
				log.Warn("bidder: bid rejected", "quantity", q, "err", err)
			default:
				e.metrics.BidFailed(c.Label(), "error")
				log.Error("bidder: bid failed", "quantity", q, "err", err)
			}
		}(q)
	}
	wg.Wait()

	if accepted > 0 {
		c.SetBid(w.Address, price, expiresAt.UnixMilli())
	}

	if balanceErr == nil {
		return
	}
	if retry {
		log.Error("bidder: bid failed after balance refresh", "err", balanceErr)
		return
	}
	if ctx.Err() != nil {
		return
	}

	e.refreshBalance(ctx, w)
	e.cancel(ctx, c, w, price)
	c.DropBid(w.Address, price)

	requote := domain.PlanQuantities(w.Balance(), price, c.Config.UseMaxQuantity, c.Config.MaxQuantity)
	if len(requote) == 0 {
		log.Info("bidder: balance no longer covers bid", "balance", w.Balance())
		return
	}
	log.Info("bidder: retrying bid", "balance", w.Balance(), "quantities", requote)
	e.sendBid(ctx, c, w, price, requote, true)
}

// refreshBalance reloads the wallet's balance. On failure the old value is kept.
func (e *Engine) refreshBalance(ctx context.Context, w *domain.Wallet) {
	if e.balances == nil {
		return
	}
	bal, err := e.balances.BalanceOf(ctx, w.Address)
	if err != nil {
		slog.Warn("bidder: balance refresh failed", "wallet", w.Address, "err", err)
		return
	}
	w.SetBalance(bal)
}
