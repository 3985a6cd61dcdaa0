package evalapi

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"riskwatch/internal/logging"
)

// API is the slice of the client the fetcher depends on.
type API interface {
	QueryWindows(ctx context.Context, p QueryParams) ([]EvaluationWindow, error)
	Trigger(ctx context.Context, p TriggerParams) error
}

// Session identifies one logical query attempt. A newer session supersedes
// all earlier ones; a superseded session's response must be discarded.
type Session struct {
	MerchantKey string
	RequestID   uint64
}

// FetcherOptions tune empty-result recovery.
type FetcherOptions struct {
	Limit              int
	WidenLookbackHours int
	// RetryDelays bound the delayed re-fetches after a trigger; at most two
	// entries are honoured.
	RetryDelays       []time.Duration
	TriggerPriority   int
	TriggerRatePerMin int
}

// DefaultRetryDelays is the observed retry policy after an empty result.
var DefaultRetryDelays = []time.Duration{1200 * time.Millisecond, 3200 * time.Millisecond}

// Fetcher issues ensure+query calls and recovers from transient
// materialization lag with a bounded trigger-and-retry cycle.
type Fetcher struct {
	api    API
	opts   FetcherOptions
	logger zerolog.Logger

	triggerLimit *rate.Limiter

	mu        sync.Mutex
	triggered map[string]bool
}

// NewFetcher constructs a Fetcher over an API client.
func NewFetcher(api API, opts FetcherOptions, logger zerolog.Logger) *Fetcher {
	if len(opts.RetryDelays) == 0 {
		opts.RetryDelays = DefaultRetryDelays
	}
	if len(opts.RetryDelays) > 2 {
		opts.RetryDelays = opts.RetryDelays[:2]
	}
	if opts.WidenLookbackHours <= 0 {
		opts.WidenLookbackHours = 24
	}

	perMin := opts.TriggerRatePerMin
	if perMin <= 0 {
		perMin = 6
	}

	return &Fetcher{
		api:          api,
		opts:         opts,
		logger:       logging.WithComponent(logger, "eval_fetcher"),
		triggerLimit: rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMin)), 1),
		triggered:    make(map[string]bool),
	}
}

// FetchParams are the per-cycle inputs to Fetch: a resolved query range plus
// the forward-mode filtering context.
type FetchParams struct {
	Since       int64
	Until       int64
	Interval    Interval
	ForwardMode bool
	Anchor      int64
	// SimNow is the raw simulated-time override forwarded to the backend.
	SimNow string
}

// Fetch runs the primary ensure+query, the fallback widening, and the
// throttled trigger-and-retry cycle for one session. An empty terminal
// result is reported as ErrNoData; transport failures propagate typed.
func (f *Fetcher) Fetch(ctx context.Context, session Session, p FetchParams) ([]EvaluationWindow, error) {
	rows, err := f.query(ctx, session, p, p.Since, p.Until)
	if err != nil {
		return nil, err
	}
	if len(rows) > 0 {
		return rows, nil
	}

	// A widened lookback recovers from materialization lag without asking
	// the backend for more work. Never widen past a forward anchor.
	if !p.ForwardMode {
		widenedSince := p.Until - int64(f.opts.WidenLookbackHours)*3600
		if widenedSince < p.Since {
			rows, err = f.query(ctx, session, p, widenedSince, p.Until)
			if err != nil {
				return nil, err
			}
			if len(rows) > 0 {
				return rows, nil
			}
		}
	}

	if !f.markTriggered(session.MerchantKey) {
		return nil, ErrNoData
	}

	f.fireTrigger(session, p)

	for _, delay := range f.opts.RetryDelays {
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}

		rows, err = f.query(ctx, session, p, p.Since, p.Until)
		if err != nil {
			return nil, err
		}
		if len(rows) > 0 {
			return rows, nil
		}
	}

	return nil, ErrNoData
}

// ResetTrigger clears the per-merchant auto-trigger latch. Used by the
// explicit user-initiated reparse path, which is exempt from the throttle.
func (f *Fetcher) ResetTrigger(merchant string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.triggered, merchant)
}

// markTriggered latches the merchant; it reports false when an auto trigger
// already fired for this merchant during the session.
func (f *Fetcher) markTriggered(merchant string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.triggered[merchant] {
		return false
	}
	f.triggered[merchant] = true
	return true
}

// fireTrigger issues the fire-and-forget materialization request. Forward
// backfill is disabled (max_backfill_hours=0) to avoid runaway
// recomputation on the backend.
func (f *Fetcher) fireTrigger(session Session, p FetchParams) {
	if !f.triggerLimit.Allow() {
		f.logger.Warn().Str("merchant", session.MerchantKey).Msg("trigger suppressed by rate limit")
		return
	}

	zero := 0
	params := TriggerParams{
		Merchant:         session.MerchantKey,
		Interval:         p.Interval,
		Autoseed:         true,
		MaxBackfillHours: &zero,
		Priority:         f.opts.TriggerPriority,
		Now:              p.SimNow,
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := f.api.Trigger(ctx, params); err != nil {
			f.logger.Warn().Err(err).Str("merchant", session.MerchantKey).Msg("trigger call failed")
		}
	}()
}

func (f *Fetcher) query(ctx context.Context, session Session, p FetchParams, since, until int64) ([]EvaluationWindow, error) {
	rows, err := f.api.QueryWindows(ctx, QueryParams{
		Merchant: session.MerchantKey,
		Interval: p.Interval,
		Since:    since,
		Until:    until,
		Limit:    f.opts.Limit,
		Ensure:   true,
		Now:      p.SimNow,
	})
	if err != nil {
		return nil, err
	}
	return filterRows(rows, p.Interval, p.ForwardMode, p.Anchor), nil
}

// filterRows drops cross-granularity bleed and, in forward mode, anything
// older than the anchor.
func filterRows(rows []EvaluationWindow, interval Interval, forwardMode bool, anchor int64) []EvaluationWindow {
	kept := rows[:0]
	for _, row := range rows {
		if row.IntervalMinutes != interval.Minutes {
			continue
		}
		if forwardMode && row.WindowEndTS < anchor {
			continue
		}
		kept = append(kept, row)
	}
	return kept
}
