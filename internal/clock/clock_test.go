package clock

import (
	"strconv"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestResolveEmptyOverride(t *testing.T) {
	realNow := time.Unix(1_700_000_000, 0)

	ctx := Resolve("", realNow, DefaultMaxFutureDrift, zerolog.Nop())

	assert.False(t, ctx.UseSimulated)
	assert.Equal(t, realNow.Unix(), ctx.RealNow)
	assert.Equal(t, realNow.Unix(), ctx.EffectiveNow())
}

func TestResolveInvalidOverrideDegradesToRealClock(t *testing.T) {
	realNow := time.Unix(1_700_000_000, 0)

	for _, input := range []string{"not-a-time", "2024-13-45T99:99:99Z", "-5"} {
		ctx := Resolve(input, realNow, DefaultMaxFutureDrift, zerolog.Nop())
		assert.False(t, ctx.UseSimulated, "input %q", input)
	}
}

func TestResolveFutureDriftBoundary(t *testing.T) {
	realNow := time.Unix(1_700_000_000, 0)

	within := strconv.FormatInt(realNow.Unix()+299, 10)
	ctx := Resolve(within, realNow, DefaultMaxFutureDrift, zerolog.Nop())
	assert.True(t, ctx.UseSimulated)
	assert.Equal(t, realNow.Unix()+299, ctx.SimulatedNow)

	beyond := strconv.FormatInt(realNow.Unix()+301, 10)
	ctx = Resolve(beyond, realNow, DefaultMaxFutureDrift, zerolog.Nop())
	assert.False(t, ctx.UseSimulated)

	exact := strconv.FormatInt(realNow.Unix()+300, 10)
	ctx = Resolve(exact, realNow, DefaultMaxFutureDrift, zerolog.Nop())
	assert.True(t, ctx.UseSimulated)
}

func TestResolveRFC3339Override(t *testing.T) {
	realNow := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	sim := realNow.Add(-2 * time.Hour)

	ctx := Resolve(sim.Format(time.RFC3339), realNow, DefaultMaxFutureDrift, zerolog.Nop())

	assert.True(t, ctx.UseSimulated)
	assert.Equal(t, sim.Unix(), ctx.SimulatedNow)
	assert.Equal(t, sim.Unix(), ctx.EffectiveNow())
}

func TestResolvePastSimulatedTimeAlwaysUsable(t *testing.T) {
	realNow := time.Unix(1_700_000_000, 0)
	sim := strconv.FormatInt(realNow.Unix()-86400*30, 10)

	ctx := Resolve(sim, realNow, DefaultMaxFutureDrift, zerolog.Nop())

	assert.True(t, ctx.UseSimulated)
}
