package bidder

// setup.go - startup: wallet sign-in and collection loading.
//
// Both fan out with errgroup. A wallet or collection that fails to load is
// logged and left out; startup only fails when nothing usable remains.

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alejandrodnm/poolbid/internal/domain"
	"github.com/alejandrodnm/poolbid/internal/ports"
)

var (
	// ErrNoWallets is returned when no wallet could be signed in.
	ErrNoWallets = errors.New("bidder: not a single signed in wallet")
	// ErrNoCollections is returned when no collection could be loaded.
	ErrNoCollections = errors.New("bidder: no collection could be loaded")
)

const setupParallelism = 4

// LoginWallets signs every signer in. A cached token is reused while it is
// valid; otherwise the marketplace login flow runs and the new token is
// cached. Each wallet starts with its on-chain balance.
func LoginWallets(
	ctx context.Context,
	signers []domain.Signer,
	auth ports.Authenticator,
	balances ports.BalanceSource,
	store ports.WalletStore,
) ([]*domain.Wallet, error) {
	saved := map[string]ports.SavedWallet{}
	if store != nil {
		var err error
		if saved, err = store.LoadWallets(ctx); err != nil {
			slog.Warn("bidder: wallet cache unavailable", "err", err)
			saved = map[string]ports.SavedWallet{}
		}
	}

	wallets := make([]*domain.Wallet, len(signers))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(setupParallelism)
	for i, signer := range signers {
		g.Go(func() error {
			address := domain.NormalizeAddress(signer.Address())
			log := slog.With("wallet", address)

			balance, err := balances.BalanceOf(gctx, address)
			if err != nil {
				log.Error("bidder: balance lookup failed", "err", err)
				return nil
			}

			token := saved[address].AuthToken
			if auth.TokenValid(token, time.Now()) {
				log.Debug("bidder: loading auth token from cache")
			} else {
				if token, err = auth.Login(gctx, signer); err != nil {
					log.Error("bidder: login failed", "err", err)
					return nil
				}
			}

			if store != nil {
				if err := store.SaveWallet(gctx, ports.SavedWallet{
					Address:   address,
					AuthToken: token,
					Balance:   balance,
					UpdatedAt: time.Now(),
				}); err != nil {
					log.Warn("bidder: cache wallet failed", "err", err)
				}
			}

			log.Info("bidder: wallet signed in", "balance", balance)
			wallets[i] = domain.NewWallet(address, signer, token, balance)
			return nil
		})
	}
	_ = g.Wait()

	out := wallets[:0]
	for _, w := range wallets {
		if w != nil {
			out = append(out, w)
		}
	}
	if len(out) == 0 {
		return nil, ErrNoWallets
	}
	return out, nil
}

// LoadCollections builds the tracked collections. Metadata comes from the bid
// store when cached and from the marketplace otherwise; configFor supplies
// each collection's effective config.
func LoadCollections(
	ctx context.Context,
	addresses []string,
	configFor func(address string) domain.CollectionConfig,
	market ports.Marketplace,
	store ports.BidStore,
	wallet *domain.Wallet,
) ([]*domain.Collection, error) {
	cached := map[string]ports.CollectionDetails{}
	if store != nil {
		var err error
		if cached, err = store.LoadCollections(ctx); err != nil {
			slog.Warn("bidder: collection cache unavailable", "err", err)
			cached = map[string]ports.CollectionDetails{}
		}
	}

	var (
		mu          sync.Mutex
		collections []*domain.Collection
		details     []ports.CollectionDetails
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(setupParallelism)
	for _, raw := range addresses {
		address := domain.NormalizeAddress(raw)
		if address == "" {
			continue
		}
		g.Go(func() error {
			d, ok := cached[address]
			if !ok {
				var err error
				if d, err = market.FetchCollection(gctx, address, wallet); err != nil {
					slog.Error("bidder: failed loading collection", "contract", address, "err", err)
					return nil
				}
			}

			c := domain.NewCollection(address, d.Slug, d.Name, configFor(address))
			slog.Info("bidder: collection loaded", "collection", c.Label(), "contract", address)

			mu.Lock()
			collections = append(collections, c)
			details = append(details, ports.CollectionDetails{
				ContractAddress: address,
				Name:            d.Name,
				Slug:            d.Slug,
				Floor:           d.Floor,
			})
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	if store != nil {
		if err := store.SaveCollections(ctx, details); err != nil {
			slog.Warn("bidder: cache collections failed", "err", err)
		}
	}
	if len(collections) == 0 {
		return nil, ErrNoCollections
	}
	return collections, nil
}
