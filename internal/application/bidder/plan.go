package bidder

// plan.go - the pool scan of one wallet on one collection.
//
// Walks the ladder from rank 1 keeping two running sums:
//
//	aboveSum: executable size of the pools ranked above the wallet's position
//	          (pools we skipped or left).
//	mySum:    executable size of every pool up to and including the current
//	          one, i.e. the depth the wallet would sit behind if it joined it.
//
// Bid thresholds are higher than cancel thresholds, so a bid that was placed
// is not cancelled on the next small move of the ladder.

import (
	"fmt"

	"github.com/alejandrodnm/poolbid/internal/domain"
)

// Action is what a pass does at one pool.
type Action int

const (
	ActionSkip Action = iota
	ActionKeep
	ActionCancel
	ActionBid
)

func (a Action) String() string {
	switch a {
	case ActionKeep:
		return "keep"
	case ActionCancel:
		return "cancel"
	case ActionBid:
		return "bid"
	default:
		return "skip"
	}
}

// Decision is the outcome at one pool of the ladder.
type Decision struct {
	Rank       int
	Pool       domain.Pool
	Action     Action
	Reason     string
	AboveSum   float64 // before this pool was added
	MySum      float64
	Quantities []int // ActionBid only
}

// PlanInput is everything a scan reads. It is a snapshot: the scan itself
// does no I/O.
type PlanInput struct {
	Ladder  domain.Ladder
	Floor   *float64
	Config  domain.CollectionConfig
	Balance float64
	MyBids  domain.MyBids
}

// PassPlan is the ordered list of decisions of one scan.
type PassPlan []Decision

// Cancels returns the prices to cancel.
func (p PassPlan) Cancels() []float64 {
	var out []float64
	for _, d := range p {
		if d.Action == ActionCancel {
			out = append(out, d.Pool.Price)
		}
	}
	return out
}

// Bid returns the bid decision, if the scan ended with one.
func (p PassPlan) Bid() (Decision, bool) {
	for _, d := range p {
		if d.Action == ActionBid {
			return d, true
		}
	}
	return Decision{}, false
}

// Kept returns the decision that kept an existing bid, if any.
func (p PassPlan) Kept() (Decision, bool) {
	for _, d := range p {
		if d.Action == ActionKeep {
			return d, true
		}
	}
	return Decision{}, false
}

// Plan scans the ladder and decides, pool by pool, whether to keep, cancel or
// place the wallet's bid. The scan stops at the first kept or placed bid.
func Plan(in PlanInput) PassPlan {
	cfg := in.Config
	var (
		plan     PassPlan
		aboveSum float64
		mySum    float64
	)

	for i, pool := range in.Ladder {
		rank := i + 1
		mySum += pool.ExecutableSize
		_, hasBid := in.MyBids[domain.PriceKey(pool.Price)]

		d := Decision{Rank: rank, Pool: pool, AboveSum: aboveSum, MySum: mySum}

		if rank == 1 && !cfg.BidToPool1 {
			d.Action = ActionSkip
			d.Reason = "pool #1 disabled"
			if hasBid {
				d.Action = ActionCancel
			}
			plan = append(plan, d)
			aboveSum += pool.ExecutableSize
			continue
		}

		floorRejects := cfg.FloorRejects(pool.Price, in.Floor)

		if hasBid {
			sameOK := cfg.BidToSamePool && mySum >= cfg.SamePoolSizeLimitCancel
			if !floorRejects && (aboveSum >= cfg.PoolSizeLimitCancel || sameOK) {
				d.Action = ActionKeep
				plan = append(plan, d)
				return plan
			}

			d.Action = ActionCancel
			switch {
			case floorRejects:
				d.Reason = fmt.Sprintf("price above floor %v*%v", *in.Floor, cfg.FloorLimit)
			case aboveSum < cfg.PoolSizeLimitCancel:
				d.Reason = fmt.Sprintf("above size %v < %v", aboveSum, cfg.PoolSizeLimitCancel)
			default:
				d.Reason = fmt.Sprintf("my size %v < %v", mySum, cfg.SamePoolSizeLimitCancel)
			}
			plan = append(plan, d)
			aboveSum += pool.ExecutableSize
			continue
		}

		if rank > cfg.MaxPoolToBid {
			d.Reason = fmt.Sprintf("rank > %d", cfg.MaxPoolToBid)
			plan = append(plan, d)
			continue
		}

		if in.Balance < pool.Price {
			d.Reason = fmt.Sprintf("balance %v < price", in.Balance)
			plan = append(plan, d)
			aboveSum += pool.ExecutableSize
			continue
		}

		if floorRejects {
			d.Reason = fmt.Sprintf("price above floor %v*%v", *in.Floor, cfg.FloorLimit)
			plan = append(plan, d)
			aboveSum += pool.ExecutableSize
			continue
		}

		if aboveSum >= cfg.PoolSizeLimitBid || (cfg.BidToSamePool && mySum >= cfg.SamePoolSizeLimitBid) {
			d.Quantities = domain.PlanQuantities(in.Balance, pool.Price, cfg.UseMaxQuantity, cfg.MaxQuantity)
			if len(d.Quantities) > 0 {
				d.Action = ActionBid
				if aboveSum >= cfg.PoolSizeLimitBid {
					d.Reason = fmt.Sprintf("above size %v >= %v", aboveSum, cfg.PoolSizeLimitBid)
				} else {
					d.Reason = fmt.Sprintf("my size %v >= %v", mySum, cfg.SamePoolSizeLimitBid)
				}
				plan = append(plan, d)
				return plan
			}
		}

		d.Reason = fmt.Sprintf("above size %v < %v", aboveSum, cfg.PoolSizeLimitBid)
		plan = append(plan, d)
		aboveSum += pool.ExecutableSize
	}
	return plan
}
