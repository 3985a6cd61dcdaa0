package window

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"riskwatch/internal/clock"
	"riskwatch/internal/evalapi"
)

func TestPlanFixedLookback(t *testing.T) {
	realNow := int64(1_700_000_000)
	clk := clock.Context{RealNow: realNow}

	plan := PlanRange(clk, Params{Interval: evalapi.Interval1h, LookbackHours: 48})

	assert.Equal(t, realNow, plan.Until)
	assert.Equal(t, realNow-172800, plan.Since)
	assert.Equal(t, evalapi.Interval1h, plan.Interval)
	assert.False(t, plan.Clamped)
}

func TestPlanForwardAnchorStableAsRealTimeAdvances(t *testing.T) {
	anchor := int64(1_700_000_000)

	first := PlanRange(clock.Context{RealNow: anchor + 60}, Params{
		Interval:      evalapi.Interval30m,
		ForwardAnchor: anchor,
		ForwardMode:   true,
	})
	second := PlanRange(clock.Context{RealNow: anchor + 3600}, Params{
		Interval:      evalapi.Interval30m,
		ForwardAnchor: anchor,
		ForwardMode:   true,
	})

	assert.Equal(t, anchor, first.Since)
	assert.Equal(t, first.Since, second.Since)
	assert.Greater(t, second.Until, first.Until)
}

func TestPlanFutureSimulatedClampedOutsideForwardMode(t *testing.T) {
	realNow := int64(1_700_000_000)
	clk := clock.Context{
		RealNow:      realNow,
		SimulatedNow: realNow + 200,
		UseSimulated: true,
	}

	plan := PlanRange(clk, Params{Interval: evalapi.Interval1h, LookbackHours: 24})

	assert.Equal(t, realNow, plan.Until)
	assert.True(t, plan.Clamped)
}

func TestPlanFutureSimulatedAllowedSlackInForwardMode(t *testing.T) {
	realNow := int64(1_700_000_000)
	clk := clock.Context{
		RealNow:      realNow,
		SimulatedNow: realNow + 200,
		UseSimulated: true,
	}

	plan := PlanRange(clk, Params{
		Interval:      evalapi.Interval1h,
		ForwardAnchor: realNow - 3600,
		ForwardMode:   true,
		UntilSlack:    5 * time.Second,
	})

	// never query meaningfully into the future
	assert.Equal(t, realNow+5, plan.Until)
	assert.False(t, plan.Clamped)
}

func TestPlanPastSimulatedTimeUsedVerbatim(t *testing.T) {
	realNow := int64(1_700_000_000)
	sim := realNow - 7200
	clk := clock.Context{RealNow: realNow, SimulatedNow: sim, UseSimulated: true}

	plan := PlanRange(clk, Params{Interval: evalapi.Interval1d, LookbackHours: 24})

	assert.Equal(t, sim, plan.Until)
	assert.Equal(t, sim-86400, plan.Since)
	assert.False(t, plan.Clamped)
}
