package ports

import "context"

// BalanceSource reads a wallet's native bidding balance from chain.
type BalanceSource interface {
	BalanceOf(ctx context.Context, address string) (float64, error)
}
