package app

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"riskwatch/internal/clock"
	"riskwatch/internal/config"
	"riskwatch/internal/evalapi"
	"riskwatch/internal/logging"
	"riskwatch/internal/refresh"
	"riskwatch/internal/series"
	"riskwatch/internal/storage"
	"riskwatch/internal/window"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logging.WithComponent(logger, "app")}
}

func (a *App) newClient() *evalapi.Client {
	return evalapi.NewClient(evalapi.ClientOptions{
		BaseURL:        a.Config.API.BaseURL,
		Timeout:        a.Config.API.RequestTimeout,
		UserAgent:      a.Config.API.UserAgent,
		BreakerEnabled: a.Config.API.BreakerEnabled,
	}, a.Logger)
}

func (a *App) newFetcher(client *evalapi.Client) *evalapi.Fetcher {
	return evalapi.NewFetcher(client, evalapi.FetcherOptions{
		Limit:              a.Config.API.Limit,
		WidenLookbackHours: a.Config.Fetch.WidenLookbackHours,
		RetryDelays:        a.Config.Fetch.RetryDelays,
		TriggerPriority:    a.Config.Fetch.TriggerPriority,
		TriggerRatePerMin:  a.Config.API.TriggerRatePerMin,
	}, a.Logger)
}

func (a *App) controllerConfig(interval evalapi.Interval, lookbackHours int, includeRaw bool) refresh.Config {
	return refresh.Config{
		Interval:        interval,
		LookbackHours:   lookbackHours,
		UntilSlack:      a.Config.Clock.UntilSlack,
		MaxFutureDrift:  a.Config.Clock.MaxFutureDrift,
		IncludeRaw:      includeRaw,
		TriggerPriority: a.Config.Fetch.TriggerPriority,
	}
}

func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	if a.Config.Database.DSN == "" {
		return nil, nil, nil
	}

	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}

	store := storage.NewStore(pool)
	closer := func() {
		store.Close()
	}
	return store, closer, nil
}

// QueryOptions are shared by the one-shot commands.
type QueryOptions struct {
	Merchant      string
	Interval      string
	LookbackHours int
	Forward       bool
	SimNow        string
	IncludeRaw    bool
}

func (a *App) resolveQuery(opts QueryOptions) (evalapi.Interval, int, string, error) {
	intervalToken := opts.Interval
	if intervalToken == "" {
		intervalToken = a.Config.Fetch.Interval
	}
	interval, err := evalapi.ParseInterval(intervalToken)
	if err != nil {
		return evalapi.Interval{}, 0, "", err
	}

	lookback := opts.LookbackHours
	if lookback <= 0 {
		lookback = a.Config.Fetch.LookbackHours
	}

	simNow := opts.SimNow
	if simNow == "" {
		simNow = a.Config.Clock.SimulatedNow
	}

	return interval, lookback, simNow, nil
}

// fetchOnce runs a single planning cycle outside a controller: resolve the
// clock, plan the range, fetch, aggregate.
func (a *App) fetchOnce(ctx context.Context, opts QueryOptions) (series.Summary, window.Plan, error) {
	if opts.Merchant == "" {
		return series.Summary{}, window.Plan{}, fmt.Errorf("merchant key is required")
	}

	interval, lookback, simNow, err := a.resolveQuery(opts)
	if err != nil {
		return series.Summary{}, window.Plan{}, err
	}

	clk := clock.Resolve(simNow, time.Now().UTC(), a.Config.Clock.MaxFutureDrift, a.Logger)

	var anchor int64
	if opts.Forward {
		anchor = clk.EffectiveNow()
	}

	plan := window.PlanRange(clk, window.Params{
		Interval:      interval,
		LookbackHours: lookback,
		ForwardAnchor: anchor,
		ForwardMode:   opts.Forward,
		UntilSlack:    a.Config.Clock.UntilSlack,
	})

	client := a.newClient()
	fetcher := a.newFetcher(client)

	session := evalapi.Session{MerchantKey: opts.Merchant, RequestID: 1}
	rows, err := fetcher.Fetch(ctx, session, evalapi.FetchParams{
		Since:       plan.Since,
		Until:       plan.Until,
		Interval:    plan.Interval,
		ForwardMode: opts.Forward,
		Anchor:      anchor,
		SimNow:      simNow,
	})
	if err != nil {
		return series.Summary{}, plan, err
	}

	return series.Aggregate(rows, series.Options{IncludeRaw: opts.IncludeRaw}), plan, nil
}
