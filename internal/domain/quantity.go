package domain

import "math"

// MaxTrancheSize is the largest quantity accepted in a single bid submission.
const MaxTrancheSize = 100

// PlanQuantities splits the quantity to bid at price into tranches.
//
// With useMax the wallet bids everything it can afford, capped at maxQuantity
// when maxQuantity > 0. Without it a single unit is bid. Returns nil when the
// balance cannot cover one unit.
func PlanQuantities(balance, price float64, useMax bool, maxQuantity int) []int {
	if price <= 0 || balance < price {
		return nil
	}

	affordable := int(math.Floor(balance / price))
	total := 1
	if useMax {
		total = affordable
		if maxQuantity > 0 && total > maxQuantity {
			total = maxQuantity
		}
	}
	if total <= 0 {
		return nil
	}

	tranches := make([]int, 0, total/MaxTrancheSize+1)
	for total > 0 {
		q := min(total, MaxTrancheSize)
		tranches = append(tranches, q)
		total -= q
	}
	return tranches
}
