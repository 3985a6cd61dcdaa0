package window

import (
	"time"

	"riskwatch/internal/clock"
	"riskwatch/internal/evalapi"
)

// DefaultUntilSlack is how far past real now the query end may extend.
const DefaultUntilSlack = 5 * time.Second

// Plan is a fully-resolved query range. It is purely descriptive; the
// fetcher consumes it verbatim.
type Plan struct {
	Since    int64
	Until    int64
	Interval evalapi.Interval
	// Clamped marks that a future simulated time was substituted with real
	// now outside forward mode, so a display layer can surface the swap
	// instead of hiding it.
	Clamped bool
}

// Params carry the planner inputs for one cycle.
type Params struct {
	Interval      evalapi.Interval
	LookbackHours int
	ForwardAnchor int64
	ForwardMode   bool
	UntilSlack    time.Duration
}

// PlanRange converts a clock context plus lookback or forward-anchor
// settings into a concrete [since, until] range.
func PlanRange(clk clock.Context, p Params) Plan {
	slack := p.UntilSlack
	if slack <= 0 {
		slack = DefaultUntilSlack
	}

	until := clk.EffectiveNow()
	clamped := false

	// A stale "future" simulated time outside forward mode would starve
	// the display of every existing row; fall back to real now instead.
	if clk.UseSimulated && clk.SimulatedNow > clk.RealNow && !p.ForwardMode {
		until = clk.RealNow
		clamped = true
	}

	if max := clk.RealNow + int64(slack/time.Second); until > max {
		until = max
	}

	var since int64
	if p.ForwardMode {
		// The anchor is established by the caller once per forward episode;
		// the window never backfills earlier than it.
		since = p.ForwardAnchor
	} else {
		since = until - int64(p.LookbackHours)*3600
	}

	return Plan{Since: since, Until: until, Interval: p.Interval, Clamped: clamped}
}
