package bidder

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/alejandrodnm/poolbid/internal/domain"
	"github.com/alejandrodnm/poolbid/internal/ports"
)

// TopPools is how many pools of the ladder are fetched and scanned.
const TopPools = domain.MaxPoolRank

// Poller pulls ladders from the marketplace when the push feed cannot be
// trusted.
type Poller struct {
	market  ports.Marketplace
	updater *Updater
	wallet  *domain.Wallet // credentials for read calls
}

// NewPoller creates a poller reading with wallet's credentials.
func NewPoller(market ports.Marketplace, updater *Updater, wallet *domain.Wallet) *Poller {
	return &Poller{market: market, updater: updater, wallet: wallet}
}

// PollOnce refreshes every collection concurrently and waits for the passes
// it started. Failures are per collection: one bad collection never stops
// the others.
func (p *Poller) PollOnce(ctx context.Context) {
	var wg sync.WaitGroup
	for _, c := range p.updater.Collections() {
		wg.Add(1)
		go func(c *domain.Collection) {
			defer wg.Done()
			if err := p.pollCollection(ctx, c); err != nil {
				slog.Error("bidder: failed to fetch bids from API", "collection", c.Label(), "err", err)
			}
		}(c)
	}
	wg.Wait()
}

func (p *Poller) pollCollection(ctx context.Context, c *domain.Collection) error {
	update, err := p.Fetch(ctx, c)
	if err != nil {
		return err
	}
	if done := p.updater.Admit(ctx, update); done != nil {
		select {
		case <-done:
		case <-ctx.Done():
		}
	}
	return nil
}

// Fetch builds a fresh snapshot of c: the floor when the floor check is on
// and the top pools.
func (p *Poller) Fetch(ctx context.Context, c *domain.Collection) (domain.UpdatedBids, error) {
	update := domain.UpdatedBids{ContractAddress: c.ContractAddress}

	if c.Config.FloorCheck {
		details, err := p.market.FetchCollection(ctx, c.ContractAddress, p.wallet)
		if err != nil {
			return update, fmt.Errorf("bidder.Fetch %s: floor: %w", c.Label(), err)
		}
		update.Floor = details.Floor
	}

	ladder, err := p.market.FetchTopPools(ctx, c.ContractAddress, p.wallet, TopPools)
	if err != nil {
		return update, fmt.Errorf("bidder.Fetch %s: pools: %w", c.Label(), err)
	}
	update.Bids = ladder
	return update, nil
}
