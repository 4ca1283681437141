package bidder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/poolbid/internal/domain"
)

func actions(p PassPlan) []Action {
	out := make([]Action, len(p))
	for i, d := range p {
		out[i] = d.Action
	}
	return out
}

func TestPlan_ThresholdNotReachedWithinMaxPool(t *testing.T) {
	plan := Plan(PlanInput{
		Ladder:  scenarioLadder(),
		Config:  baseConfig(),
		Balance: 1000,
	})

	require.Len(t, plan, 4)
	assert.Equal(t, []Action{ActionSkip, ActionSkip, ActionSkip, ActionSkip}, actions(plan))
	assert.Equal(t, "pool #1 disabled", plan[0].Reason)
	assert.Equal(t, 200.0, plan[1].AboveSum)
	assert.Equal(t, 400.0, plan[2].AboveSum)
	assert.Equal(t, "rank > 3", plan[3].Reason)
	_, ok := plan.Bid()
	assert.False(t, ok)
}

func TestPlan_BidLandsAtPool3(t *testing.T) {
	cfg := baseConfig()
	cfg.PoolSizeLimitBid = 300
	cfg.PoolSizeLimitCancel = 250

	plan := Plan(PlanInput{Ladder: scenarioLadder(), Config: cfg, Balance: 1000})

	bid, ok := plan.Bid()
	require.True(t, ok)
	assert.Equal(t, 3, bid.Rank)
	assert.Equal(t, 90.0, bid.Pool.Price)
	assert.Equal(t, 400.0, bid.AboveSum)
	assert.Equal(t, []int{1}, bid.Quantities)
	assert.Len(t, plan, 3, "the scan stops at the placed bid")
}

func TestPlan_Hysteresis(t *testing.T) {
	cfg := baseConfig()
	cfg.PoolSizeLimitBid = 300
	cfg.PoolSizeLimitCancel = 250
	ladder := domain.Ladder{
		{Price: 100, ExecutableSize: 130},
		{Price: 95, ExecutableSize: 130},
		{Price: 90, ExecutableSize: 200},
	}

	// aboveSum at pool #3 is 260: enough to keep a bid, not to place one.
	withBid := Plan(PlanInput{Ladder: ladder, Config: cfg, Balance: 1000, MyBids: domain.MyBids{"90": 1}})
	kept, ok := withBid.Kept()
	require.True(t, ok)
	assert.Equal(t, 90.0, kept.Pool.Price)
	assert.Empty(t, withBid.Cancels())

	without := Plan(PlanInput{Ladder: ladder, Config: cfg, Balance: 1000})
	_, ok = without.Bid()
	assert.False(t, ok)
}

func TestPlan_CancelsBelowCancelLimitAndMovesDown(t *testing.T) {
	cfg := baseConfig()
	cfg.PoolSizeLimitBid = 300
	cfg.PoolSizeLimitCancel = 250
	cfg.MaxPoolToBid = 4

	// Existing bid at 95 only has 200 above it: cancel, then bid lower.
	plan := Plan(PlanInput{
		Ladder:  scenarioLadder(),
		Config:  cfg,
		Balance: 1000,
		MyBids:  domain.MyBids{"95": 1},
	})

	assert.Equal(t, []float64{95}, plan.Cancels())
	bid, ok := plan.Bid()
	require.True(t, ok)
	assert.Equal(t, 90.0, bid.Pool.Price)
	assert.Equal(t, 400.0, bid.AboveSum, "the cancelled pool counts as above")
}

func TestPlan_Pool1Cancelled(t *testing.T) {
	plan := Plan(PlanInput{
		Ladder:  scenarioLadder(),
		Config:  baseConfig(),
		Balance: 1000,
		MyBids:  domain.MyBids{"100": 1},
	})

	assert.Equal(t, ActionCancel, plan[0].Action)
	assert.Equal(t, []float64{100}, plan.Cancels())
}

func TestPlan_BidToPool1(t *testing.T) {
	cfg := baseConfig()
	cfg.BidToPool1 = true
	cfg.PoolSizeLimitBid = 0
	cfg.PoolSizeLimitCancel = 0

	plan := Plan(PlanInput{Ladder: scenarioLadder(), Config: cfg, Balance: 1000})

	bid, ok := plan.Bid()
	require.True(t, ok)
	assert.Equal(t, 1, bid.Rank)
}

func TestPlan_SamePool(t *testing.T) {
	cfg := baseConfig()
	cfg.BidToSamePool = true
	cfg.SamePoolSizeLimitBid = 350
	cfg.SamePoolSizeLimitCancel = 300

	// pool #2: aboveSum=200 < 500 but mySum=400 >= 350.
	plan := Plan(PlanInput{Ladder: scenarioLadder(), Config: cfg, Balance: 1000})
	bid, ok := plan.Bid()
	require.True(t, ok)
	assert.Equal(t, 2, bid.Rank)
	assert.Equal(t, 400.0, bid.MySum)

	// Keeping uses the lower same-pool cancel threshold.
	kept := Plan(PlanInput{Ladder: scenarioLadder(), Config: cfg, Balance: 1000, MyBids: domain.MyBids{"95": 1}})
	_, ok = kept.Kept()
	assert.True(t, ok)
}

func TestPlan_BalanceAndFloorSkipsCountAsAbove(t *testing.T) {
	cfg := baseConfig()
	cfg.PoolSizeLimitBid = 300
	cfg.PoolSizeLimitCancel = 250
	cfg.FloorCheck = true
	cfg.FloorLimit = domain.FloorLimitFromPct(0) // price must be <= floor
	cfg.MaxPoolToBid = 4
	floor := 92.0

	plan := Plan(PlanInput{Ladder: scenarioLadder(), Config: cfg, Balance: 1000, Floor: &floor})

	assert.Contains(t, plan[1].Reason, "floor")
	bid, ok := plan.Bid()
	require.True(t, ok)
	assert.Equal(t, 90.0, bid.Pool.Price)

	poor := Plan(PlanInput{Ladder: scenarioLadder(), Config: cfg, Balance: 92, Floor: &floor})
	bid, ok = poor.Bid()
	require.True(t, ok)
	assert.Equal(t, 90.0, bid.Pool.Price)
	assert.Equal(t, []int{1}, bid.Quantities)
}

func TestPlan_FloorCancelsExistingBid(t *testing.T) {
	cfg := baseConfig()
	cfg.PoolSizeLimitBid = 300
	cfg.PoolSizeLimitCancel = 250
	cfg.FloorCheck = true
	cfg.FloorLimit = domain.FloorLimitFromPct(0)
	floor := 80.0

	plan := Plan(PlanInput{Ladder: scenarioLadder(), Config: cfg, Balance: 1000, Floor: &floor, MyBids: domain.MyBids{"90": 1}})

	assert.Equal(t, []float64{90}, plan.Cancels())
	_, ok := plan.Kept()
	assert.False(t, ok)
}

func TestPlan_RankExcludedDoesNotAccumulate(t *testing.T) {
	cfg := baseConfig()
	cfg.MaxPoolToBid = 2
	cfg.PoolSizeLimitBid = 300
	cfg.PoolSizeLimitCancel = 250

	plan := Plan(PlanInput{Ladder: scenarioLadder(), Config: cfg, Balance: 1000, MyBids: domain.MyBids{"85": 1}})

	// pools #1 and #2 add 400; #3 is rank-excluded and adds nothing.
	kept, ok := plan.Kept()
	require.True(t, ok)
	assert.Equal(t, 85.0, kept.Pool.Price)
	assert.Equal(t, 400.0, kept.AboveSum)
}

func TestPlan_UseMaxQuantity(t *testing.T) {
	cfg := baseConfig()
	cfg.PoolSizeLimitBid = 300
	cfg.PoolSizeLimitCancel = 250
	cfg.UseMaxQuantity = true

	plan := Plan(PlanInput{Ladder: scenarioLadder(), Config: cfg, Balance: 20000})

	bid, ok := plan.Bid()
	require.True(t, ok)
	assert.Equal(t, []int{100, 100, 22}, bid.Quantities)
}

func TestPlan_EmptyLadder(t *testing.T) {
	assert.Empty(t, Plan(PlanInput{Config: baseConfig(), Balance: 10}))
}
