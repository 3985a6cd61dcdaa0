package evalapi

import (
	"fmt"
	"time"
)

// Score component keys as emitted by the evaluation service.
const (
	ScoreTotal        = "total"
	ScoreWL           = "wl"
	ScoreMarket       = "market"
	ScoreSentiment    = "sentiment"
	ScoreVolume       = "volume"
	ScoreIncidentBump = "incident_bump"
	// ScoreTotalRaw is the unsmoothed total, present only when the backend
	// computes a smoothing pass.
	ScoreTotalRaw = "total_raw"
)

// Signal-count source keys.
const (
	CountTweets      = "tweets"
	CountReddit      = "reddit"
	CountNews        = "news"
	CountReviews     = "reviews"
	CountWL          = "wl"
	CountStockPrices = "stock_prices"
)

// Interval is a supported bucket granularity.
type Interval struct {
	Minutes int
	Token   string
}

var (
	Interval30m = Interval{Minutes: 30, Token: "30m"}
	Interval1h  = Interval{Minutes: 60, Token: "1h"}
	Interval1d  = Interval{Minutes: 1440, Token: "1d"}
)

// ParseInterval maps a token to a known granularity.
func ParseInterval(token string) (Interval, error) {
	switch token {
	case "30m":
		return Interval30m, nil
	case "1h":
		return Interval1h, nil
	case "1d":
		return Interval1d, nil
	default:
		return Interval{}, fmt.Errorf("unknown interval %q", token)
	}
}

// Duration returns the bucket width.
func (i Interval) Duration() time.Duration {
	return time.Duration(i.Minutes) * time.Minute
}

// EvaluationWindow is one materialised bucket of risk evaluation.
type EvaluationWindow struct {
	WindowEndTS     int64               `json:"window_end_ts"`
	WindowEndISO    string              `json:"window_end_iso"`
	IntervalMinutes int                 `json:"interval_minutes"`
	Scores          map[string]*float64 `json:"scores"`
	Confidence      *float64            `json:"confidence"`
	Counts          map[string]int      `json:"counts"`
}

// Score returns the named component value, nil when absent or null.
func (w EvaluationWindow) Score(component string) *float64 {
	if w.Scores == nil {
		return nil
	}
	return w.Scores[component]
}

// WindowEnd returns the bucket end as a time.
func (w EvaluationWindow) WindowEnd() time.Time {
	return time.Unix(w.WindowEndTS, 0).UTC()
}
