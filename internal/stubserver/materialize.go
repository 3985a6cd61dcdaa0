package stubserver

import (
	"context"
	"hash/fnv"
	"math"
	"time"

	"riskwatch/internal/evalapi"
)

// triggerRange resolves the materialization span for a trigger request.
// With max_backfill_hours=0 only the current bucket is (re)computed.
func (s *Server) triggerRange(req triggerRequest, interval evalapi.Interval) (int64, int64) {
	now := time.Now().UTC().Unix()
	if ts, err := time.Parse(time.RFC3339, req.Now); err == nil && req.Now != "" {
		now = ts.Unix()
	}

	if req.Since != nil && req.Until != nil {
		return *req.Since, *req.Until
	}

	backfillHours := 6
	if req.MaxBackfillHours != nil {
		backfillHours = *req.MaxBackfillHours
	}
	return now - int64(backfillHours)*3600, now
}

// materialize upserts every bucket in (since, until] that is not yet stored.
func (s *Server) materialize(ctx context.Context, merchant string, interval evalapi.Interval, since, until int64) error {
	step := int64(interval.Minutes) * 60

	existing, err := s.store.ListWindows(ctx, merchant, interval.Minutes, since, until, 10000)
	if err != nil {
		return err
	}
	have := make(map[int64]bool, len(existing))
	for _, row := range existing {
		have[row.WindowEndTS] = true
	}

	first := (since/step)*step + step
	for end := first; end <= until; end += step {
		if have[end] {
			continue
		}
		if err := s.store.UpsertWindow(ctx, merchant, s.synthesize(merchant, interval, end)); err != nil {
			return err
		}
	}
	return nil
}

// synthesize produces a deterministic pseudo-random window so repeated
// materialization of the same bucket is idempotent.
func (s *Server) synthesize(merchant string, interval evalapi.Interval, end int64) evalapi.EvaluationWindow {
	base := noise(merchant, end, "base")*40 + 30 // 30..70 band

	w := evalapi.EvaluationWindow{
		WindowEndTS:     end,
		WindowEndISO:    time.Unix(end, 0).UTC().Format(time.RFC3339),
		IntervalMinutes: interval.Minutes,
		Scores:          map[string]*float64{},
		Counts: map[string]int{
			evalapi.CountTweets:      int(noise(merchant, end, evalapi.CountTweets) * 200),
			evalapi.CountReddit:      int(noise(merchant, end, evalapi.CountReddit) * 80),
			evalapi.CountNews:        int(noise(merchant, end, evalapi.CountNews) * 25),
			evalapi.CountReviews:     int(noise(merchant, end, evalapi.CountReviews) * 60),
			evalapi.CountWL:          int(noise(merchant, end, evalapi.CountWL) * 10),
			evalapi.CountStockPrices: int(noise(merchant, end, evalapi.CountStockPrices) * 40),
		},
	}

	confidence := 0.5 + noise(merchant, end, "confidence")*0.5
	w.Confidence = &confidence

	total := clampScore(base + noise(merchant, end, "jitter")*10)
	w.Scores[evalapi.ScoreTotal] = &total
	raw := clampScore(total + (noise(merchant, end, "raw")-0.5)*12)
	w.Scores[evalapi.ScoreTotalRaw] = &raw

	if s.seedComponents {
		for _, component := range []string{
			evalapi.ScoreWL,
			evalapi.ScoreMarket,
			evalapi.ScoreSentiment,
			evalapi.ScoreVolume,
			evalapi.ScoreIncidentBump,
		} {
			v := clampScore(noise(merchant, end, component) * 100)
			w.Scores[component] = &v
		}
	}

	return w
}

// noise yields a stable value in [0, 1) from the inputs.
func noise(merchant string, end int64, salt string) float64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(merchant))
	_, _ = h.Write([]byte(salt))
	var buf [8]byte
	for i := 0; i < 8; i++ {
		buf[i] = byte(end >> (8 * i))
	}
	_, _ = h.Write(buf[:])
	return float64(h.Sum64()%1_000_000) / 1_000_000
}

func clampScore(v float64) float64 {
	return math.Max(0, math.Min(100, v))
}
