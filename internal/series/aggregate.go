package series

import (
	"math"
	"sort"

	"riskwatch/internal/evalapi"
)

const (
	timeOnlyLabel = "15:04"
	dateTimeLabel = "Jan 02 15:04"
)

// Feed is the chart-ready view of an aggregated series. Gaps stay nil and
// are never interpolated across.
type Feed struct {
	Labels []string
	Totals []*float64
	// RawTotals is populated only when the caller opts into the unsmoothed
	// overlay; it is aligned to Labels.
	RawTotals []*float64
}

// Summary is the derived, non-persisted view over one fetch result.
type Summary struct {
	Rows     []evalapi.EvaluationWindow
	Latest   *evalapi.EvaluationWindow
	Averages map[string]*float64
	Feed     Feed
}

// Options adjust aggregation output.
type Options struct {
	IncludeRaw bool
}

// Aggregate sorts rows ascending by window end, resolves timestamp
// collisions to the later-arriving row, and derives summary statistics and
// the visualization feed.
func Aggregate(rows []evalapi.EvaluationWindow, opts Options) Summary {
	deduped := dedupe(rows)

	summary := Summary{
		Rows:     deduped,
		Averages: averages(deduped),
	}
	if len(deduped) > 0 {
		latest := deduped[len(deduped)-1]
		summary.Latest = &latest
	}
	summary.Feed = buildFeed(deduped, opts.IncludeRaw)
	return summary
}

// dedupe keeps the later-arriving row per timestamp, then sorts ascending.
func dedupe(rows []evalapi.EvaluationWindow) []evalapi.EvaluationWindow {
	byEnd := make(map[int64]evalapi.EvaluationWindow, len(rows))
	for _, row := range rows {
		byEnd[row.WindowEndTS] = row
	}

	out := make([]evalapi.EvaluationWindow, 0, len(byEnd))
	for _, row := range byEnd {
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].WindowEndTS < out[j].WindowEndTS })
	return out
}

// averages computes the per-component arithmetic mean over finite values.
// A component with zero eligible rows yields nil, never zero or NaN.
func averages(rows []evalapi.EvaluationWindow) map[string]*float64 {
	sums := make(map[string]float64)
	counts := make(map[string]int)

	for _, row := range rows {
		for component, value := range row.Scores {
			if value == nil || math.IsNaN(*value) || math.IsInf(*value, 0) {
				continue
			}
			sums[component] += *value
			counts[component]++
		}
	}

	out := make(map[string]*float64, len(sums))
	for component, n := range counts {
		mean := sums[component] / float64(n)
		out[component] = &mean
	}
	return out
}

// buildFeed assembles labels and aligned series. Contiguous same-day buckets
// get time-only labels; a bucket opening a new calendar day, plus the first
// and last buckets, carry the date so a multi-day axis stays readable.
func buildFeed(rows []evalapi.EvaluationWindow, includeRaw bool) Feed {
	feed := Feed{
		Labels: make([]string, len(rows)),
		Totals: make([]*float64, len(rows)),
	}
	if includeRaw {
		feed.RawTotals = make([]*float64, len(rows))
	}

	var prevDay string
	for i, row := range rows {
		end := row.WindowEnd()
		day := end.Format("2006-01-02")

		label := timeOnlyLabel
		if i == 0 || i == len(rows)-1 || day != prevDay {
			label = dateTimeLabel
		}
		feed.Labels[i] = end.Format(label)
		prevDay = day

		feed.Totals[i] = copyValue(row.Score(evalapi.ScoreTotal))
		if includeRaw {
			feed.RawTotals[i] = copyValue(row.Score(evalapi.ScoreTotalRaw))
		}
	}
	return feed
}

func copyValue(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
