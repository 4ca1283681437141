package domain

import "strconv"

// Pool is one price level of a collection's bid ladder.
// ExecutableSize is the aggregate liquidity the marketplace reports for it.
type Pool struct {
	Price          float64
	ExecutableSize float64
	NumberBidders  int
}

// Ladder is a pool snapshot ordered by descending price (pool #1 first).
type Ladder []Pool

// UpdatedBids is a snapshot delivered by the push feed or the poller.
type UpdatedBids struct {
	ContractAddress string
	Floor           *float64
	Bids            Ladder
}

// PriceKey is the canonical map key for a price level: the shortest decimal
// representation, so 0.5 and 0.50 land on the same entry.
func PriceKey(price float64) string {
	return strconv.FormatFloat(price, 'f', -1, 64)
}

// ParsePrice converts a decimal string to float64. Invalid input yields 0.
func ParsePrice(s string) float64 {
	v, _ := strconv.ParseFloat(s, 64)
	return v
}
