package domain_test

import (
	"testing"

	"github.com/alejandrodnm/poolbid/internal/domain"
	"github.com/stretchr/testify/assert"
)

func validConfig() domain.CollectionConfig {
	return domain.CollectionConfig{
		MaxPoolToBid:            3,
		PoolSizeLimitBid:        500,
		PoolSizeLimitCancel:     450,
		SamePoolSizeLimitBid:    500,
		SamePoolSizeLimitCancel: 450,
		BidExpirationMinutes:    30,
		FloorLimit:              1,
	}
}

func TestCollectionConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*domain.CollectionConfig)
		wantErr string
	}{
		{"valid", func(*domain.CollectionConfig) {}, ""},
		{"pool 1 disabled requires rank >= 2", func(c *domain.CollectionConfig) { c.MaxPoolToBid = 1 }, "range 2-5"},
		{"pool 1 enabled allows rank 1", func(c *domain.CollectionConfig) { c.BidToPool1 = true; c.MaxPoolToBid = 1 }, ""},
		{"rank above 5", func(c *domain.CollectionConfig) { c.MaxPoolToBid = 6 }, "range 2-5"},
		{"cancel above bid", func(c *domain.CollectionConfig) { c.PoolSizeLimitCancel = 600 }, "pool size limit cancel"},
		{"same pool cancel above bid", func(c *domain.CollectionConfig) { c.SamePoolSizeLimitCancel = 501 }, "same pool size limit cancel"},
		{"short expiration", func(c *domain.CollectionConfig) { c.BidExpirationMinutes = 10 }, "bid expiration"},
		{"floor check without limit", func(c *domain.CollectionConfig) { c.FloorCheck = true; c.FloorLimit = 0 }, "floor limit"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestCollectionConfig_FloorRejects(t *testing.T) {
	cfg := validConfig()
	cfg.FloorCheck = true
	cfg.FloorLimit = domain.FloorLimitFromPct(10)
	floor := 1.0

	assert.False(t, cfg.FloorRejects(1.1, &floor))
	assert.True(t, cfg.FloorRejects(1.11, &floor))
	assert.False(t, cfg.FloorRejects(5, nil), "unknown floor never rejects")

	cfg.FloorCheck = false
	assert.False(t, cfg.FloorRejects(5, &floor))
}

func TestPlanQuantities(t *testing.T) {
	assert.Nil(t, domain.PlanQuantities(0.5, 1, true, 0))
	assert.Equal(t, []int{1}, domain.PlanQuantities(10, 1, false, 0))
	assert.Equal(t, []int{10}, domain.PlanQuantities(10.9, 1, true, 0))
	assert.Equal(t, []int{4}, domain.PlanQuantities(10, 1, true, 4))
	assert.Equal(t, []int{100, 100, 50}, domain.PlanQuantities(250, 1, true, 0))
}
