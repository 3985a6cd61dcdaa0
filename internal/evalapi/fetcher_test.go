package evalapi

import (
	"context"
	"sync"
	"testing"
	"time"
)

type fakeAPI struct {
	mu      sync.Mutex
	queries []QueryParams
	// rowsFor returns the canned response for the nth query (0-based).
	rowsFor  func(n int, p QueryParams) []EvaluationWindow
	queryErr error

	triggers chan TriggerParams
}

func newFakeAPI(rowsFor func(n int, p QueryParams) []EvaluationWindow) *fakeAPI {
	return &fakeAPI{rowsFor: rowsFor, triggers: make(chan TriggerParams, 8)}
}

func (f *fakeAPI) QueryWindows(ctx context.Context, p QueryParams) ([]EvaluationWindow, error) {
	f.mu.Lock()
	n := len(f.queries)
	f.queries = append(f.queries, p)
	f.mu.Unlock()
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	if f.rowsFor == nil {
		return nil, nil
	}
	return f.rowsFor(n, p), nil
}

func (f *fakeAPI) Trigger(ctx context.Context, p TriggerParams) error {
	f.triggers <- p
	return nil
}

func (f *fakeAPI) queryCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queries)
}

func (f *fakeAPI) queryAt(i int) QueryParams {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.queries[i]
}

func row(ts int64, intervalMinutes int) EvaluationWindow {
	return EvaluationWindow{WindowEndTS: ts, IntervalMinutes: intervalMinutes}
}

// testParams uses a 2h lookback so the 24h fallback genuinely widens it.
func testParams() FetchParams {
	return FetchParams{Since: 1_700_000_000 - 2*3600, Until: 1_700_000_000, Interval: Interval1h}
}

func fastOptions() FetcherOptions {
	return FetcherOptions{
		Limit:              1000,
		WidenLookbackHours: 24,
		RetryDelays:        []time.Duration{time.Millisecond, time.Millisecond},
		TriggerRatePerMin:  600,
	}
}

func TestFetchReturnsFilteredRows(t *testing.T) {
	api := newFakeAPI(func(n int, p QueryParams) []EvaluationWindow {
		return []EvaluationWindow{
			row(1_699_999_000, 60),
			row(1_699_999_500, 30), // wrong granularity, dropped
			row(1_700_000_000, 60),
		}
	})
	f := NewFetcher(api, fastOptions(), noopLogger())

	rows, err := f.Fetch(context.Background(), Session{MerchantKey: "acme", RequestID: 1}, testParams())
	if err != nil {
		t.Fatalf("fetch should succeed: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("cross-granularity rows should be dropped, got %d rows", len(rows))
	}
	if api.queryCount() != 1 {
		t.Fatalf("non-empty result needs exactly one query, got %d", api.queryCount())
	}
}

func TestFetchForwardModeDropsPreAnchorRows(t *testing.T) {
	anchor := int64(1_699_999_200)
	api := newFakeAPI(func(n int, p QueryParams) []EvaluationWindow {
		return []EvaluationWindow{
			row(anchor-600, 60), // before anchor, dropped
			row(anchor, 60),
			row(anchor+3600, 60),
		}
	})
	f := NewFetcher(api, fastOptions(), noopLogger())

	rows, err := f.Fetch(context.Background(), Session{MerchantKey: "acme", RequestID: 1}, FetchParams{
		Since:       anchor,
		Until:       anchor + 7200,
		Interval:    Interval1h,
		ForwardMode: true,
		Anchor:      anchor,
	})
	if err != nil {
		t.Fatalf("fetch should succeed: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("pre-anchor rows should be dropped, got %d", len(rows))
	}
	for _, r := range rows {
		if r.WindowEndTS < anchor {
			t.Fatalf("row %d precedes anchor %d", r.WindowEndTS, anchor)
		}
	}
}

func TestFetchWidensLookbackOnEmptyResult(t *testing.T) {
	params := testParams()
	api := newFakeAPI(func(n int, p QueryParams) []EvaluationWindow {
		if n == 0 {
			return nil
		}
		return []EvaluationWindow{row(1_699_990_000, 60)}
	})
	f := NewFetcher(api, fastOptions(), noopLogger())

	rows, err := f.Fetch(context.Background(), Session{MerchantKey: "acme", RequestID: 1}, params)
	if err != nil {
		t.Fatalf("fallback query should recover: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected widened result, got %d rows", len(rows))
	}

	if api.queryCount() != 2 {
		t.Fatalf("expected primary + widened queries, got %d", api.queryCount())
	}
	widened := api.queryAt(1)
	if widened.Since != params.Until-24*3600 {
		t.Fatalf("widened since should be until-24h, got %d", widened.Since)
	}
	select {
	case <-api.triggers:
		t.Fatal("widened recovery must not trigger materialization")
	case <-time.After(20 * time.Millisecond):
	}
}

func TestFetchEmptyTriggersOnceAndRetriesTwice(t *testing.T) {
	api := newFakeAPI(nil) // always empty
	f := NewFetcher(api, fastOptions(), noopLogger())

	_, err := f.Fetch(context.Background(), Session{MerchantKey: "acme", RequestID: 1}, testParams())
	if err != ErrNoData {
		t.Fatalf("expected ErrNoData, got %v", err)
	}

	// primary + widened + 2 delayed re-fetches
	if api.queryCount() != 4 {
		t.Fatalf("expected 4 queries, got %d", api.queryCount())
	}

	select {
	case trig := <-api.triggers:
		if trig.MaxBackfillHours == nil || *trig.MaxBackfillHours != 0 {
			t.Fatalf("auto trigger must be forward-only: %#v", trig.MaxBackfillHours)
		}
		if !trig.Autoseed {
			t.Fatal("auto trigger should autoseed")
		}
	case <-time.After(time.Second):
		t.Fatal("expected exactly one trigger call")
	}
	select {
	case <-api.triggers:
		t.Fatal("only one trigger per empty episode allowed")
	case <-time.After(20 * time.Millisecond):
	}
}

func TestFetchSecondEmptyEpisodeDoesNotRetrigger(t *testing.T) {
	api := newFakeAPI(nil)
	f := NewFetcher(api, fastOptions(), noopLogger())
	session := Session{MerchantKey: "acme", RequestID: 1}

	_, _ = f.Fetch(context.Background(), session, testParams())
	<-api.triggers

	before := api.queryCount()
	_, err := f.Fetch(context.Background(), Session{MerchantKey: "acme", RequestID: 2}, testParams())
	if err != ErrNoData {
		t.Fatalf("expected ErrNoData, got %v", err)
	}

	// merchant already latched: primary + widened only, no retries
	if api.queryCount()-before != 2 {
		t.Fatalf("expected 2 queries on latched merchant, got %d", api.queryCount()-before)
	}
	select {
	case <-api.triggers:
		t.Fatal("latched merchant must not re-trigger")
	case <-time.After(20 * time.Millisecond):
	}
}

func TestResetTriggerAllowsNewEpisode(t *testing.T) {
	api := newFakeAPI(nil)
	f := NewFetcher(api, fastOptions(), noopLogger())

	_, _ = f.Fetch(context.Background(), Session{MerchantKey: "acme", RequestID: 1}, testParams())
	<-api.triggers

	f.ResetTrigger("acme")

	_, _ = f.Fetch(context.Background(), Session{MerchantKey: "acme", RequestID: 2}, testParams())
	select {
	case <-api.triggers:
	case <-time.After(time.Second):
		t.Fatal("reset latch should allow a new trigger")
	}
}

func TestFetchForwardModeSkipsWidening(t *testing.T) {
	api := newFakeAPI(nil)
	f := NewFetcher(api, fastOptions(), noopLogger())

	_, err := f.Fetch(context.Background(), Session{MerchantKey: "acme", RequestID: 1}, FetchParams{
		Since:       1_700_000_000,
		Until:       1_700_003_600,
		Interval:    Interval1h,
		ForwardMode: true,
		Anchor:      1_700_000_000,
	})
	if err != ErrNoData {
		t.Fatalf("expected ErrNoData, got %v", err)
	}

	// primary + 2 retries, never a widened query
	if api.queryCount() != 3 {
		t.Fatalf("expected 3 queries in forward mode, got %d", api.queryCount())
	}
	for i := 0; i < api.queryCount(); i++ {
		if api.queryAt(i).Since != 1_700_000_000 {
			t.Fatalf("forward fetch must never backfill before anchor: query %d since=%d", i, api.queryAt(i).Since)
		}
	}
}

func TestFetchCancelledDuringRetryWait(t *testing.T) {
	api := newFakeAPI(nil)
	opts := fastOptions()
	opts.RetryDelays = []time.Duration{200 * time.Millisecond, 200 * time.Millisecond}
	f := NewFetcher(api, opts, noopLogger())

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := f.Fetch(ctx, Session{MerchantKey: "acme", RequestID: 1}, testParams())
	if err != context.Canceled {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
