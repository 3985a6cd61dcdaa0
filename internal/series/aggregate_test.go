package series

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"riskwatch/internal/evalapi"
)

func windowAt(ts int64, total *float64) evalapi.EvaluationWindow {
	return evalapi.EvaluationWindow{
		WindowEndTS:     ts,
		WindowEndISO:    time.Unix(ts, 0).UTC().Format(time.RFC3339),
		IntervalMinutes: 60,
		Scores:          map[string]*float64{evalapi.ScoreTotal: total},
	}
}

func f(v float64) *float64 { return &v }

func TestAggregateSortsAndDeduplicates(t *testing.T) {
	rows := []evalapi.EvaluationWindow{
		windowAt(300, f(30)),
		windowAt(100, f(10)),
		windowAt(200, f(20)),
		windowAt(100, f(99)), // later-arriving duplicate wins
	}

	summary := Aggregate(rows, Options{})

	require.Len(t, summary.Rows, 3)
	prev := int64(0)
	for _, row := range summary.Rows {
		assert.Greater(t, row.WindowEndTS, prev, "strictly ascending")
		prev = row.WindowEndTS
	}
	assert.Equal(t, 99.0, *summary.Rows[0].Score(evalapi.ScoreTotal))
}

func TestAggregateLatest(t *testing.T) {
	summary := Aggregate(nil, Options{})
	assert.Nil(t, summary.Latest)

	rows := []evalapi.EvaluationWindow{
		windowAt(200, f(20)),
		windowAt(500, f(50)),
		windowAt(300, f(30)),
	}
	summary = Aggregate(rows, Options{})
	require.NotNil(t, summary.Latest)
	assert.Equal(t, int64(500), summary.Latest.WindowEndTS)
}

func TestAverageSkipsNullsAndNonFinite(t *testing.T) {
	rows := []evalapi.EvaluationWindow{
		windowAt(100, f(10)),
		windowAt(200, nil),
		windowAt(300, f(30)),
		windowAt(400, f(math.NaN())),
		windowAt(500, f(math.Inf(1))),
	}

	summary := Aggregate(rows, Options{})

	require.NotNil(t, summary.Averages[evalapi.ScoreTotal])
	assert.InDelta(t, 20.0, *summary.Averages[evalapi.ScoreTotal], 1e-9)
}

func TestAverageAllNullComponentIsNil(t *testing.T) {
	rows := []evalapi.EvaluationWindow{
		windowAt(100, nil),
		windowAt(200, nil),
	}

	summary := Aggregate(rows, Options{})

	assert.Nil(t, summary.Averages[evalapi.ScoreTotal])
}

func TestFeedLabelsMarkDayBoundaries(t *testing.T) {
	day1 := time.Date(2026, 3, 9, 22, 0, 0, 0, time.UTC)
	rows := []evalapi.EvaluationWindow{
		windowAt(day1.Unix(), f(10)),                    // first: date+time
		windowAt(day1.Add(time.Hour).Unix(), f(11)),     // same day: time only
		windowAt(day1.Add(3*time.Hour).Unix(), f(12)),   // crosses midnight: date+time
		windowAt(day1.Add(4*time.Hour).Unix(), f(13)),   // same day: time only
		windowAt(day1.Add(5*time.Hour).Unix(), f(14)),   // last: date+time
	}

	summary := Aggregate(rows, Options{})

	require.Len(t, summary.Feed.Labels, 5)
	assert.Equal(t, "Mar 09 22:00", summary.Feed.Labels[0])
	assert.Equal(t, "23:00", summary.Feed.Labels[1])
	assert.Equal(t, "Mar 10 01:00", summary.Feed.Labels[2])
	assert.Equal(t, "02:00", summary.Feed.Labels[3])
	assert.Equal(t, "Mar 10 03:00", summary.Feed.Labels[4])
}

func TestFeedRawOverlayOptIn(t *testing.T) {
	row := windowAt(100, f(42))
	row.Scores[evalapi.ScoreTotalRaw] = f(47)

	withoutRaw := Aggregate([]evalapi.EvaluationWindow{row}, Options{})
	assert.Nil(t, withoutRaw.Feed.RawTotals)

	withRaw := Aggregate([]evalapi.EvaluationWindow{row}, Options{IncludeRaw: true})
	require.Len(t, withRaw.Feed.RawTotals, 1)
	assert.Equal(t, 47.0, *withRaw.Feed.RawTotals[0])
}

func TestFeedGapsStayNil(t *testing.T) {
	rows := []evalapi.EvaluationWindow{
		windowAt(100, f(10)),
		windowAt(200, nil),
		windowAt(300, f(30)),
	}

	summary := Aggregate(rows, Options{})

	require.Len(t, summary.Feed.Totals, 3)
	assert.NotNil(t, summary.Feed.Totals[0])
	assert.Nil(t, summary.Feed.Totals[1])
	assert.NotNil(t, summary.Feed.Totals[2])
}

func TestTenRowEndToEndFeed(t *testing.T) {
	base := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	rows := make([]evalapi.EvaluationWindow, 0, 10)
	for i := 0; i < 10; i++ {
		rows = append(rows, windowAt(base.Add(time.Duration(i)*time.Hour).Unix(), f(float64(40+i))))
	}

	summary := Aggregate(rows, Options{})

	require.Len(t, summary.Feed.Labels, 10)
	require.NotNil(t, summary.Latest)
	assert.Equal(t, rows[9].WindowEndTS, summary.Latest.WindowEndTS)
}
