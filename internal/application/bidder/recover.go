package bidder

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/alejandrodnm/poolbid/internal/domain"
	"github.com/alejandrodnm/poolbid/internal/ports"
)

// Recover restores what each wallet believes it holds after a restart.
//
// The persisted snapshot is loaded first, then checked against the bids the
// exchange reports for the wallet: entries the exchange no longer has are
// dropped, live bids on tracked collections we did not know about are
// adopted with a fresh expiration. A wallet whose exchange view cannot be
// fetched keeps its snapshot. Expired entries are pruned and the result is
// written back.
func Recover(ctx context.Context, e *Engine, collections []*domain.Collection) {
	byAddress := make(map[string]*domain.Collection, len(collections))
	for _, c := range collections {
		byAddress[c.ContractAddress] = c
		if e.store == nil {
			continue
		}
		saved, err := e.store.LoadMyBids(ctx, c.ContractAddress)
		if err != nil {
			slog.Warn("bidder: load saved bids failed", "collection", c.Label(), "err", err)
			continue
		}
		for _, w := range e.wallets {
			if bids, ok := saved[w.Address]; ok {
				c.RestoreBids(w.Address, bids)
			}
		}
	}

	now := e.now()
	var wg sync.WaitGroup
	for _, w := range e.wallets {
		wg.Add(1)
		go func(w *domain.Wallet) {
			defer wg.Done()
			live, err := e.market.FetchUserBids(ctx, w)
			if err != nil {
				slog.Warn("bidder: live bids unavailable, keeping snapshot", "wallet", w.Address, "err", err)
				return
			}
			reconcileWithExchange(byAddress, w, live, now)
		}(w)
	}
	wg.Wait()

	for _, c := range collections {
		for _, w := range e.wallets {
			c.PruneExpired(w.Address, now.UnixMilli())
			bids := c.MyBids(w.Address)
			if len(bids) > 0 {
				slog.Info("bidder: recovered bids", "collection", c.Label(), "wallet", w.Address, "bids", bids)
			}
			if e.store != nil {
				if err := e.store.SaveMyBids(ctx, c.ContractAddress, w.Address, bids); err != nil {
					slog.Warn("bidder: save bids failed", "collection", c.Label(), "err", err)
				}
			}
		}
	}
}

func reconcileWithExchange(collections map[string]*domain.Collection, w *domain.Wallet, live []ports.UserBid, now time.Time) {
	liveKeys := make(map[string]map[string]bool)
	for _, b := range live {
		c, ok := collections[domain.NormalizeAddress(b.ContractAddress)]
		if !ok {
			continue
		}
		key := domain.PriceKey(b.Price)
		if liveKeys[c.ContractAddress] == nil {
			liveKeys[c.ContractAddress] = make(map[string]bool)
		}
		liveKeys[c.ContractAddress][key] = true

		if !c.HasBid(w.Address, b.Price) {
			exp := now.Add(time.Duration(c.Config.BidExpirationMinutes) * time.Minute)
			c.SetBid(w.Address, b.Price, exp.UnixMilli())
			slog.Info("bidder: adopted live bid", "collection", c.Label(), "wallet", w.Address, "price", b.Price)
		}
	}

	for _, c := range collections {
		for key := range c.MyBids(w.Address) {
			if !liveKeys[c.ContractAddress][key] {
				c.DropBid(w.Address, domain.ParsePrice(key))
				slog.Info("bidder: dropped stale bid", "collection", c.Label(), "wallet", w.Address, "price", key)
			}
		}
	}
}
