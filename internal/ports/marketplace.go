package ports

import (
	"context"
	"time"

	"github.com/alejandrodnm/poolbid/internal/domain"
)

// CollectionDetails is the marketplace metadata of a collection.
type CollectionDetails struct {
	ContractAddress string
	Name            string
	Slug            string
	Floor           *float64
}

// UserBid is a live bid the exchange reports for a wallet.
type UserBid struct {
	ContractAddress string
	Price           float64
	ExecutableSize  float64
	OpenSize        float64
}

// Marketplace is the collection-bidding API. Every call goes through the
// process-wide rate gate.
type Marketplace interface {
	// FetchTopPools returns the first limit pools ordered by descending price.
	FetchTopPools(ctx context.Context, contract string, wallet *domain.Wallet, limit int) (domain.Ladder, error)

	// FetchCollection returns collection metadata, including the floor when known.
	FetchCollection(ctx context.Context, contract string, wallet *domain.Wallet) (CollectionDetails, error)

	// SubmitBid places a collection bid of quantity units at price.
	// Returns domain.ErrLimitExceeded or domain.ErrInsufficientFunds when the
	// wallet cannot fund it.
	SubmitBid(ctx context.Context, contract string, wallet *domain.Wallet, price float64, quantity int, expiresAt time.Time) error

	// CancelBids cancels the wallet's bids at the given prices. A "no bids
	// found" answer is reported as success.
	CancelBids(ctx context.Context, contract string, wallet *domain.Wallet, prices []float64) error

	// FetchUserBids lists the wallet's live bids across collections.
	FetchUserBids(ctx context.Context, wallet *domain.Wallet) ([]UserBid, error)
}

// Authenticator obtains marketplace access tokens for a signer.
type Authenticator interface {
	Login(ctx context.Context, signer domain.Signer) (string, error)

	// TokenValid reports whether a cached token can still be used at now.
	TokenValid(token string, now time.Time) bool
}
