package refresh

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"riskwatch/internal/clock"
	"riskwatch/internal/evalapi"
	"riskwatch/internal/logging"
	"riskwatch/internal/series"
	"riskwatch/internal/window"
)

// Fetcher is the slice of evalapi.Fetcher the controller drives.
type Fetcher interface {
	Fetch(ctx context.Context, session evalapi.Session, p evalapi.FetchParams) ([]evalapi.EvaluationWindow, error)
	ResetTrigger(merchant string)
}

// Triggerer issues explicit, user-initiated materialization requests.
type Triggerer interface {
	Trigger(ctx context.Context, p evalapi.TriggerParams) error
}

// Snapshot is what the display layer receives after each applied cycle.
type Snapshot struct {
	Merchant string
	Plan     window.Plan
	Summary  series.Summary
	// Err retains the latest transport failure; previously displayed rows
	// stay in Summary until a successful refresh replaces them.
	Err error
	// NoData marks an empty result that survived the bounded retries. It is
	// distinct from a fetch failure.
	NoData bool
}

// Config carries injected controller settings.
type Config struct {
	Interval        evalapi.Interval
	LookbackHours   int
	UntilSlack      time.Duration
	MaxFutureDrift  time.Duration
	IncludeRaw      bool
	TriggerPriority int
	// ReparseDelay is how long after an explicit trigger the follow-up
	// refresh runs.
	ReparseDelay time.Duration
}

// Controller owns the planning-cycle lifecycle: it reacts to merchant
// switches, clock changes, and mode toggles, cancels superseded sessions,
// and applies responses strictly in session order.
type Controller struct {
	cfg      Config
	fetcher  Fetcher
	trigger  Triggerer
	logger   zerolog.Logger
	nowFn    func() time.Time
	onUpdate func(Snapshot)

	events chan event
	quit   chan struct{}
	done   chan struct{}
	once   sync.Once

	// state below is owned by the loop goroutine
	merchant      string
	simNow        string
	forwardMode   bool
	forwardAnchor int64
	requestSeq    uint64
	cancel        context.CancelFunc
	rows          []evalapi.EvaluationWindow
	lastPlan      window.Plan
	reparseTimer  *time.Timer
}

type event interface{}

type merchantChanged struct{ key string }
type modeToggled struct{ forward bool }
type manualRefresh struct{}
type manualReparse struct{}
type clockChanged struct{ simNow string }

type fetchResult struct {
	requestID uint64
	rows      []evalapi.EvaluationWindow
	err       error
}

// New starts a controller. onUpdate is invoked from the controller's own
// goroutine after every applied cycle; it must not block for long.
func New(cfg Config, fetcher Fetcher, trigger Triggerer, onUpdate func(Snapshot), logger zerolog.Logger) *Controller {
	if cfg.ReparseDelay <= 0 {
		cfg.ReparseDelay = 1500 * time.Millisecond
	}
	c := &Controller{
		cfg:      cfg,
		fetcher:  fetcher,
		trigger:  trigger,
		logger:   logging.WithComponent(logger, "refresh_controller"),
		nowFn:    time.Now,
		onUpdate: onUpdate,
		events:   make(chan event, 16),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go c.loop()
	return c
}

// SetMerchant switches the monitored merchant. In-flight work is cancelled,
// held rows are cleared, and the forward anchor resets.
func (c *Controller) SetMerchant(key string) { c.post(merchantChanged{key: key}) }

// SetForwardMode toggles forward-anchor mode. Turning it on leaves the
// anchor unset so the next cycle establishes it fresh.
func (c *Controller) SetForwardMode(on bool) { c.post(modeToggled{forward: on}) }

// Refresh starts a new planning cycle without resetting the anchor.
func (c *Controller) Refresh() { c.post(manualRefresh{}) }

// Reparse issues an explicit backend trigger scoped to the current range,
// then refreshes after a short delay. It bypasses the auto-trigger throttle.
func (c *Controller) Reparse() { c.post(manualReparse{}) }

// ClockChanged forces a new cycle for an out-of-band simulated-time change.
func (c *Controller) ClockChanged(simNow string) { c.post(clockChanged{simNow: simNow}) }

// Close cancels in-flight work and releases timers. Idempotent.
func (c *Controller) Close() {
	c.once.Do(func() { close(c.quit) })
	<-c.done
}

func (c *Controller) post(ev event) {
	select {
	case c.events <- ev:
	case <-c.quit:
	}
}

func (c *Controller) loop() {
	defer close(c.done)
	for {
		select {
		case <-c.quit:
			c.teardown()
			return
		case ev := <-c.events:
			c.handle(ev)
		}
	}
}

func (c *Controller) teardown() {
	if c.reparseTimer != nil {
		c.reparseTimer.Stop()
		c.reparseTimer = nil
	}
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}

func (c *Controller) handle(ev event) {
	switch e := ev.(type) {
	case merchantChanged:
		c.merchant = e.key
		c.rows = nil
		c.forwardAnchor = 0
		c.startCycle("merchant_changed")

	case modeToggled:
		c.forwardMode = e.forward
		// Cleared both ways: turning off discards the anchor, turning on
		// leaves it unset so the next cycle establishes it fresh.
		c.forwardAnchor = 0
		c.startCycle("mode_toggled")

	case manualRefresh:
		c.startCycle("manual_refresh")

	case manualReparse:
		c.reparse()

	case clockChanged:
		c.simNow = e.simNow
		c.startCycle("clock_changed")

	case fetchResult:
		c.applyResult(e)
	}
}

// startCycle supersedes any in-flight session and launches a new fetch.
func (c *Controller) startCycle(reason string) {
	if c.merchant == "" {
		return
	}

	c.requestSeq++
	if c.cancel != nil {
		c.cancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel

	clk := clock.Resolve(c.simNow, c.nowFn(), c.cfg.MaxFutureDrift, c.logger)
	if c.forwardMode && c.forwardAnchor == 0 {
		c.forwardAnchor = clk.EffectiveNow()
	}

	plan := window.PlanRange(clk, window.Params{
		Interval:      c.cfg.Interval,
		LookbackHours: c.cfg.LookbackHours,
		ForwardAnchor: c.forwardAnchor,
		ForwardMode:   c.forwardMode,
		UntilSlack:    c.cfg.UntilSlack,
	})
	c.lastPlan = plan

	session := evalapi.Session{MerchantKey: c.merchant, RequestID: c.requestSeq}
	params := evalapi.FetchParams{
		Since:       plan.Since,
		Until:       plan.Until,
		Interval:    plan.Interval,
		ForwardMode: c.forwardMode,
		Anchor:      c.forwardAnchor,
		SimNow:      c.simNow,
	}

	c.logger.Debug().
		Str("reason", reason).
		Str("merchant", c.merchant).
		Uint64("request_id", session.RequestID).
		Int64("since", plan.Since).
		Int64("until", plan.Until).
		Msg("starting planning cycle")

	go func() {
		rows, err := c.fetcher.Fetch(ctx, session, params)
		c.post(fetchResult{requestID: session.RequestID, rows: rows, err: err})
	}()
}

// applyResult enforces session ordering: anything not matching the newest
// requestId is dropped unconditionally, regardless of arrival order.
func (c *Controller) applyResult(res fetchResult) {
	if res.requestID != c.requestSeq {
		c.logger.Debug().
			Uint64("request_id", res.requestID).
			Uint64("current", c.requestSeq).
			Msg("dropping superseded response")
		return
	}

	snap := Snapshot{Merchant: c.merchant, Plan: c.lastPlan}

	switch {
	case errors.Is(res.err, evalapi.ErrNoData):
		snap.NoData = true
	case errors.Is(res.err, context.Canceled):
		return
	case res.err != nil:
		snap.Err = res.err
	default:
		c.rows = res.rows
	}

	snap.Summary = series.Aggregate(c.rows, series.Options{IncludeRaw: c.cfg.IncludeRaw})
	if c.onUpdate != nil {
		c.onUpdate(snap)
	}
}

// reparse is the explicit user-initiated trigger path.
func (c *Controller) reparse() {
	if c.merchant == "" || c.trigger == nil {
		return
	}

	c.fetcher.ResetTrigger(c.merchant)

	clk := clock.Resolve(c.simNow, c.nowFn(), c.cfg.MaxFutureDrift, c.logger)
	plan := window.PlanRange(clk, window.Params{
		Interval:      c.cfg.Interval,
		LookbackHours: c.cfg.LookbackHours,
		ForwardAnchor: c.forwardAnchor,
		ForwardMode:   c.forwardMode,
		UntilSlack:    c.cfg.UntilSlack,
	})

	since, until := plan.Since, plan.Until
	params := evalapi.TriggerParams{
		Merchant: c.merchant,
		Interval: c.cfg.Interval,
		Autoseed: true,
		Priority: c.cfg.TriggerPriority,
		Since:    &since,
		Until:    &until,
		Now:      c.simNow,
	}

	merchant := c.merchant
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := c.trigger.Trigger(ctx, params); err != nil {
			c.logger.Warn().Err(err).Str("merchant", merchant).Msg("reparse trigger failed")
		}
	}()

	if c.reparseTimer != nil {
		c.reparseTimer.Stop()
	}
	c.reparseTimer = time.AfterFunc(c.cfg.ReparseDelay, func() {
		c.post(manualRefresh{})
	})
}
