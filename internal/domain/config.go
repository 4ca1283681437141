package domain

import (
	"errors"
	"fmt"
)

const (
	// MinBidExpirationMinutes is the shortest bid lifetime the marketplace accepts.
	MinBidExpirationMinutes = 15
	// MaxPoolRank is the deepest pool the ladder exposes.
	MaxPoolRank = 5
)

// CollectionConfig is the bidding policy for one collection. Loaded once at
// startup and never mutated afterwards.
type CollectionConfig struct {
	MaxPoolToBid            int
	PoolSizeLimitBid        float64
	PoolSizeLimitCancel     float64
	BidToPool1              bool
	BidToSamePool           bool
	SamePoolSizeLimitBid    float64
	SamePoolSizeLimitCancel float64
	UseMaxQuantity          bool
	MaxQuantity             int
	BidExpirationMinutes    int
	FloorCheck              bool
	// FloorLimit is a multiplier over the floor price (1 + pct/100).
	FloorLimit float64
}

// FloorLimitFromPct converts a percentage over floor into the stored multiplier.
func FloorLimitFromPct(pct float64) float64 {
	return 1 + pct/100
}

// FloorRejects reports whether price is too aggressive relative to floor.
// A nil floor never rejects.
func (c CollectionConfig) FloorRejects(price float64, floor *float64) bool {
	if !c.FloorCheck || floor == nil || *floor <= 0 {
		return false
	}
	return price > *floor*c.FloorLimit
}

// Validate returns every invalid combination found in the policy.
func (c CollectionConfig) Validate() error {
	var errs []error

	if c.BidToPool1 {
		if c.MaxPoolToBid < 1 || c.MaxPoolToBid > MaxPoolRank {
			errs = append(errs, fmt.Errorf("max pool to bid must be in the range 1-%d when bidding to pool #1 (got %d)", MaxPoolRank, c.MaxPoolToBid))
		}
	} else if c.MaxPoolToBid < 2 || c.MaxPoolToBid > MaxPoolRank {
		errs = append(errs, fmt.Errorf("max pool to bid must be in the range 2-%d when pool #1 is disabled (got %d)", MaxPoolRank, c.MaxPoolToBid))
	}
	if c.PoolSizeLimitCancel > c.PoolSizeLimitBid {
		errs = append(errs, fmt.Errorf("pool size limit cancel (%g) has to be lower or equal to pool size limit bid (%g)", c.PoolSizeLimitCancel, c.PoolSizeLimitBid))
	}
	if c.SamePoolSizeLimitCancel > c.SamePoolSizeLimitBid {
		errs = append(errs, fmt.Errorf("same pool size limit cancel (%g) has to be lower or equal to same pool size limit bid (%g)", c.SamePoolSizeLimitCancel, c.SamePoolSizeLimitBid))
	}
	if c.BidExpirationMinutes < MinBidExpirationMinutes {
		errs = append(errs, fmt.Errorf("bid expiration has to be greater or equal to %d minutes (got %d)", MinBidExpirationMinutes, c.BidExpirationMinutes))
	}
	if c.FloorCheck && c.FloorLimit <= 0 {
		errs = append(errs, fmt.Errorf("floor limit multiplier must be positive when floor check is enabled (got %g)", c.FloorLimit))
	}
	if c.UseMaxQuantity && c.MaxQuantity < 0 {
		errs = append(errs, fmt.Errorf("max quantity cannot be negative (got %d)", c.MaxQuantity))
	}

	return errors.Join(errs...)
}
