package bidder

// updater.go - per-collection update serializer.
//
// At most one drain runs per collection. Updates arriving while it runs go to
// a single-slot queue; a newer update overwrites an older queued one, so a
// burst of N pushes costs at most two passes. The drain loops until the slot
// is empty, then clears the in-flight flag under the same lock that guards
// the slot.

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/alejandrodnm/poolbid/internal/domain"
)

// Updater routes ladder snapshots to collections and runs their passes.
type Updater struct {
	engine      *Engine
	collections map[string]*domain.Collection

	wg sync.WaitGroup
}

// NewUpdater creates an updater over collections (keyed by lower-case address).
func NewUpdater(engine *Engine, collections []*domain.Collection) *Updater {
	m := make(map[string]*domain.Collection, len(collections))
	for _, c := range collections {
		m[c.ContractAddress] = c
	}
	return &Updater{engine: engine, collections: m}
}

// Collection returns the tracked collection for address.
func (u *Updater) Collection(address string) (*domain.Collection, bool) {
	c, ok := u.collections[domain.NormalizeAddress(address)]
	return c, ok
}

// Collections returns every tracked collection.
func (u *Updater) Collections() []*domain.Collection {
	out := make([]*domain.Collection, 0, len(u.collections))
	for _, c := range u.collections {
		out = append(out, c)
	}
	return out
}

// Admit hands update to its collection. When the collection is idle a drain
// starts and the returned channel is closed once it finishes. When a pass is
// already running the update is queued and Admit returns nil. Updates for
// unknown collections are dropped and also return nil.
func (u *Updater) Admit(ctx context.Context, update domain.UpdatedBids) <-chan struct{} {
	c, ok := u.Collection(update.ContractAddress)
	if !ok {
		slog.Debug("bidder: update for unknown collection", "contract", update.ContractAddress)
		return nil
	}

	if !c.BeginPass(update) {
		before := c.Coalesced()
		slog.Debug("bidder: queuing update", "collection", c.Label(), "coalesced", before)
		return nil
	}

	done := make(chan struct{})
	u.wg.Add(1)
	go func() {
		defer u.wg.Done()
		defer close(done)
		u.drain(ctx, c, update)
	}()
	return done
}

func (u *Updater) drain(ctx context.Context, c *domain.Collection, update domain.UpdatedBids) {
	coalesced := c.Coalesced()
	for {
		u.handle(ctx, c, update)

		if n := c.Coalesced(); n > coalesced {
			for range n - coalesced {
				u.engine.metrics.UpdateCoalesced(c.Label())
			}
			coalesced = n
		}

		next, ok := c.EndPass()
		if !ok {
			slog.Debug("bidder: updater finished", "collection", c.Label())
			return
		}
		slog.Debug("bidder: handling queued update", "collection", c.Label())
		update = next
	}
}

// handle applies the snapshot and runs one pass per wallet concurrently.
func (u *Updater) handle(ctx context.Context, c *domain.Collection, update domain.UpdatedBids) {
	c.ApplyUpdate(update)
	passID := uuid.NewString()
	nowMillis := u.engine.now().UnixMilli()

	var wg sync.WaitGroup
	for _, w := range u.engine.wallets {
		if n := c.PruneExpired(w.Address, nowMillis); n > 0 {
			slog.Debug("bidder: dropped expired bids", "collection", c.Label(), "wallet", w.Address, "count", n)
		}
		wg.Add(1)
		go func(w *domain.Wallet) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					slog.Error("bidder: pass panicked", "collection", c.Label(), "wallet", w.Address, "panic", r)
				}
			}()
			u.engine.syncWallet(ctx, c, w, passID)
		}(w)
	}
	wg.Wait()
}

// Wait blocks until every running drain has finished.
func (u *Updater) Wait() {
	u.wg.Wait()
}
