package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"

	"riskwatch/internal/evalapi"
	"riskwatch/internal/series"
)

// ShowOptions configure the show command.
type ShowOptions struct {
	QueryOptions
	Limit int
}

// Show fetches one window range and prints it as a table, newest rows last,
// followed by the per-component averages.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	summary, plan, err := a.fetchOnce(ctx, opts.QueryOptions)
	if errors.Is(err, evalapi.ErrNoData) {
		fmt.Fprintln(os.Stdout, "no data yet for requested range")
		return nil
	}
	if err != nil {
		return err
	}

	rows := summary.Rows
	if opts.Limit > 0 && len(rows) > opts.Limit {
		rows = rows[len(rows)-opts.Limit:]
	}

	if plan.Clamped {
		fmt.Fprintln(os.Stdout, "note: requested range clamped to real time")
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Window End (UTC)\tTotal\tWL\tMarket\tSentiment\tVolume\tIncident\tConfidence\tSignals\tBand")

	for _, row := range rows {
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
			row.WindowEnd().Format(time.RFC3339),
			formatScore(row.Score(evalapi.ScoreTotal), 1),
			formatScore(row.Score(evalapi.ScoreWL), 1),
			formatScore(row.Score(evalapi.ScoreMarket), 1),
			formatScore(row.Score(evalapi.ScoreSentiment), 1),
			formatScore(row.Score(evalapi.ScoreVolume), 1),
			formatScore(row.Score(evalapi.ScoreIncidentBump), 1),
			formatScore(row.Confidence, 2),
			signalCount(row),
			bandToken(row.Score(evalapi.ScoreTotal)),
		)
	}
	writer.Flush()

	fmt.Fprintln(os.Stdout)
	fmt.Fprintf(os.Stdout, "rows: %d  averages: total=%s wl=%s market=%s sentiment=%s volume=%s\n",
		len(summary.Rows),
		formatScore(summary.Averages[evalapi.ScoreTotal], 1),
		formatScore(summary.Averages[evalapi.ScoreWL], 1),
		formatScore(summary.Averages[evalapi.ScoreMarket], 1),
		formatScore(summary.Averages[evalapi.ScoreSentiment], 1),
		formatScore(summary.Averages[evalapi.ScoreVolume], 1),
	)
	return nil
}

func formatScore(v *float64, places int32) string {
	if v == nil {
		return "-"
	}
	return decimal.NewFromFloat(*v).StringFixed(places)
}

func bandToken(total *float64) string {
	return series.BandFor(total).Token
}

// signalCount sums the source counts feeding one bucket.
func signalCount(row evalapi.EvaluationWindow) int {
	total := 0
	for _, n := range row.Counts {
		total += n
	}
	return total
}
