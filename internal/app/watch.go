package app

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"riskwatch/internal/evalapi"
	"riskwatch/internal/refresh"
)

// WatchOptions configure the long-running watch command.
type WatchOptions struct {
	QueryOptions
	RefreshEvery time.Duration
}

// Watch runs the refresh controller for one merchant until interrupted,
// logging a summary after each applied cycle.
func (a *App) Watch(ctx context.Context, opts WatchOptions) error {
	if opts.Merchant == "" {
		return errors.New("merchant key is required")
	}

	interval, lookback, simNow, err := a.resolveQuery(opts.QueryOptions)
	if err != nil {
		return err
	}

	refreshEvery := opts.RefreshEvery
	if refreshEvery <= 0 {
		refreshEvery = a.Config.Watch.RefreshEvery
	}

	includeRaw := a.watchIncludeRaw(opts.IncludeRaw)

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	client := a.newClient()
	fetcher := a.newFetcher(client)

	onUpdate := func(snap refresh.Snapshot) {
		a.logSnapshot(snap)
	}

	ctrl := refresh.New(a.controllerConfig(interval, lookback, includeRaw), fetcher, client, onUpdate, a.Logger)
	defer ctrl.Close()

	if simNow != "" {
		ctrl.ClockChanged(simNow)
	}
	if opts.Forward {
		ctrl.SetForwardMode(true)
	}
	ctrl.SetMerchant(opts.Merchant)

	ticker := time.NewTicker(refreshEvery)
	defer ticker.Stop()

	a.Logger.Info().
		Str("merchant", opts.Merchant).
		Str("interval", interval.Token).
		Dur("refresh_every", refreshEvery).
		Msg("watching merchant risk windows")

	for {
		select {
		case <-ctx.Done():
			a.Logger.Info().Msg("watch stopped")
			return nil
		case <-ticker.C:
			ctrl.Refresh()
		}
	}
}

// watchIncludeRaw resolves the raw-overlay setting: the flag turns it on for
// one run, watch.include_raw in config enables it by default.
func (a *App) watchIncludeRaw(flag bool) bool {
	return flag || a.Config.Watch.IncludeRaw
}

func (a *App) logSnapshot(snap refresh.Snapshot) {
	if snap.Err != nil {
		a.Logger.Error().Err(snap.Err).Str("merchant", snap.Merchant).Msg("refresh failed, retaining last-known-good rows")
		return
	}
	if snap.NoData {
		a.Logger.Warn().Str("merchant", snap.Merchant).Msg("no windows materialised yet")
		return
	}

	event := a.Logger.Info().
		Str("merchant", snap.Merchant).
		Int("rows", len(snap.Summary.Rows))

	if snap.Plan.Clamped {
		event = event.Bool("range_clamped", true)
	}
	if latest := snap.Summary.Latest; latest != nil {
		event = event.Time("latest_window", latest.WindowEnd())
		if total := latest.Score(evalapi.ScoreTotal); total != nil {
			event = event.Float64("total", *total).Str("band", bandToken(total))
		}
	}
	if avg := snap.Summary.Averages[evalapi.ScoreTotal]; avg != nil {
		event = event.Float64("avg_total", *avg)
	}
	event.Msg("series refreshed")
}
