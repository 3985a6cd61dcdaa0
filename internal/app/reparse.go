package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"riskwatch/internal/clock"
	"riskwatch/internal/evalapi"
	"riskwatch/internal/window"
)

// ReparseOptions configure the explicit re-materialization command.
type ReparseOptions struct {
	QueryOptions
	WaitBefore time.Duration
}

// Reparse issues a user-initiated trigger scoped to the current plan range,
// waits briefly for the backend, then fetches and prints a one-line summary.
// It is exempt from the auto-trigger throttle.
func (a *App) Reparse(ctx context.Context, opts ReparseOptions) error {
	if opts.Merchant == "" {
		return errors.New("merchant key is required")
	}

	interval, lookback, simNow, err := a.resolveQuery(opts.QueryOptions)
	if err != nil {
		return err
	}

	clk := clock.Resolve(simNow, time.Now().UTC(), a.Config.Clock.MaxFutureDrift, a.Logger)
	plan := window.PlanRange(clk, window.Params{
		Interval:      interval,
		LookbackHours: lookback,
		UntilSlack:    a.Config.Clock.UntilSlack,
	})

	client := a.newClient()

	since, until := plan.Since, plan.Until
	if err := client.Trigger(ctx, evalapi.TriggerParams{
		Merchant: opts.Merchant,
		Interval: interval,
		Autoseed: true,
		Priority: a.Config.Fetch.TriggerPriority,
		Since:    &since,
		Until:    &until,
		Now:      simNow,
	}); err != nil {
		return fmt.Errorf("trigger materialization: %w", err)
	}

	wait := opts.WaitBefore
	if wait <= 0 {
		wait = 1500 * time.Millisecond
	}
	timer := time.NewTimer(wait)
	select {
	case <-ctx.Done():
		timer.Stop()
		return ctx.Err()
	case <-timer.C:
	}

	summary, _, err := a.fetchOnce(ctx, opts.QueryOptions)
	if errors.Is(err, evalapi.ErrNoData) {
		fmt.Fprintln(os.Stdout, "reparse triggered; no data yet")
		return nil
	}
	if err != nil {
		return err
	}

	latestNote := "-"
	if summary.Latest != nil {
		latestNote = fmt.Sprintf("%s total=%s",
			summary.Latest.WindowEnd().Format(time.RFC3339),
			formatScore(summary.Latest.Score(evalapi.ScoreTotal), 1),
		)
	}
	fmt.Fprintf(os.Stdout, "reparse complete: rows=%d latest=%s\n", len(summary.Rows), latestNote)
	return nil
}
