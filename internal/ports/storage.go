package ports

import (
	"context"
	"time"

	"github.com/alejandrodnm/poolbid/internal/domain"
)

// SavedWallet is the cached login state of a wallet.
type SavedWallet struct {
	Address   string
	AuthToken string
	Balance   float64
	UpdatedAt time.Time
}

// WalletStore caches auth tokens and balances across restarts.
type WalletStore interface {
	LoadWallets(ctx context.Context) (map[string]SavedWallet, error)
	SaveWallet(ctx context.Context, w SavedWallet) error
}

// BidStore snapshots per-wallet bids and collection metadata. Only read on
// warm start.
type BidStore interface {
	SaveMyBids(ctx context.Context, contract, wallet string, bids domain.MyBids) error
	LoadMyBids(ctx context.Context, contract string) (map[string]domain.MyBids, error)

	SaveCollections(ctx context.Context, collections []CollectionDetails) error
	LoadCollections(ctx context.Context) (map[string]CollectionDetails, error)
}
