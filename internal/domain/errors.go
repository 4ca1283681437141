package domain

import "errors"

// Marketplace business errors. Adapters map response messages onto these so
// the engine can branch with errors.Is.
var (
	ErrLimitExceeded     = errors.New("limit exceeded")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrNoBidsFound       = errors.New("no bids found")
)

// IsBalanceError reports whether err means the wallet cannot fund the bid.
// These trigger the cancel-and-retry flow on submission.
func IsBalanceError(err error) bool {
	return errors.Is(err, ErrLimitExceeded) || errors.Is(err, ErrInsufficientFunds)
}
