package clock

import (
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// DefaultMaxFutureDrift bounds how far ahead of wall clock a simulated time
// may sit before it is rejected for the planning cycle.
const DefaultMaxFutureDrift = 5 * time.Minute

// Context captures the effective "now" for one planning cycle.
type Context struct {
	SimulatedNow int64
	RealNow      int64
	UseSimulated bool
}

// EffectiveNow returns the timestamp planning should treat as current.
func (c Context) EffectiveNow() int64 {
	if c.UseSimulated {
		return c.SimulatedNow
	}
	return c.RealNow
}

// Resolve parses an optional simulated-time override against the real clock.
// Invalid input degrades silently to the real clock; a simulated time more
// than maxFutureDrift ahead of real now is rejected so the client never asks
// the backend for windows it cannot materialise yet.
func Resolve(simOverride string, realNow time.Time, maxFutureDrift time.Duration, logger zerolog.Logger) Context {
	if maxFutureDrift <= 0 {
		maxFutureDrift = DefaultMaxFutureDrift
	}

	ctx := Context{RealNow: realNow.Unix()}

	simOverride = strings.TrimSpace(simOverride)
	if simOverride == "" {
		return ctx
	}

	sim, ok := parseTimestamp(simOverride)
	if !ok {
		logger.Debug().Str("value", simOverride).Msg("unparseable simulated time, using real clock")
		return ctx
	}

	if sim.Unix()-ctx.RealNow > int64(maxFutureDrift/time.Second) {
		logger.Warn().
			Time("simulated", sim).
			Time("real", realNow).
			Msg("simulated time too far in the future, rejected for this cycle")
		return ctx
	}

	ctx.SimulatedNow = sim.Unix()
	ctx.UseSimulated = true
	return ctx
}

func parseTimestamp(value string) (time.Time, bool) {
	if ts, err := time.Parse(time.RFC3339, value); err == nil {
		return ts, true
	}
	if epoch, err := strconv.ParseInt(value, 10, 64); err == nil && epoch > 0 {
		return time.Unix(epoch, 0), true
	}
	return time.Time{}, false
}
