package app

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"riskwatch/internal/config"
)

func TestWatchIncludeRawFallsBackToConfig(t *testing.T) {
	cfg := &config.Config{}
	cfg.Watch.IncludeRaw = true
	a := NewApp(cfg, zerolog.Nop())

	assert.True(t, a.watchIncludeRaw(false), "config default applies when the flag is off")
	assert.True(t, a.watchIncludeRaw(true))

	cfg.Watch.IncludeRaw = false
	assert.False(t, a.watchIncludeRaw(false))
	assert.True(t, a.watchIncludeRaw(true), "flag can still opt in")
}
