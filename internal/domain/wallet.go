package domain

import (
	"strings"
	"sync"
)

// Signer is the signing capability behind a wallet. Implementations hold the
// private key; the rest of the code only sees signatures.
type Signer interface {
	// Address returns the checksummed wallet address.
	Address() string
	// SignMessage produces an EIP-191 personal signature.
	SignMessage(msg []byte) (string, error)
	// SignTypedData signs an EIP-712 payload given as the JSON object
	// {"domain": ..., "types": ..., "value": ...}.
	SignTypedData(payload []byte) (string, error)
}

// Wallet is a controlled account. It is shared by every collection's
// reconciliation passes, so balance and token are guarded.
type Wallet struct {
	Address string
	Signer  Signer

	mu        sync.RWMutex
	authToken string
	balance   float64
}

// NewWallet creates a wallet keyed by the lower-case address.
func NewWallet(address string, signer Signer, authToken string, balance float64) *Wallet {
	return &Wallet{
		Address:   NormalizeAddress(address),
		Signer:    signer,
		authToken: authToken,
		balance:   balance,
	}
}

// Balance returns the last known native balance.
func (w *Wallet) Balance() float64 {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.balance
}

// SetBalance stores a refreshed balance.
func (w *Wallet) SetBalance(b float64) {
	w.mu.Lock()
	w.balance = b
	w.mu.Unlock()
}

// AuthToken returns the marketplace access token.
func (w *Wallet) AuthToken() string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.authToken
}

// SetAuthToken replaces the marketplace access token.
func (w *Wallet) SetAuthToken(token string) {
	w.mu.Lock()
	w.authToken = token
	w.mu.Unlock()
}

// NormalizeAddress lower-cases a hex address so map lookups are stable.
func NormalizeAddress(addr string) string {
	return strings.ToLower(strings.TrimSpace(addr))
}
