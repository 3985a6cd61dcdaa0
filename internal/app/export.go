package app

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"riskwatch/internal/evalapi"
	"riskwatch/internal/series"
)

// ExportOptions hold parameters for exporting a fetched series.
type ExportOptions struct {
	QueryOptions
	PNGPath string
	CSVPath string
}

// Export fetches one window range and renders it as CSV and/or PNG.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}

	summary, _, err := a.fetchOnce(ctx, opts.QueryOptions)
	if errors.Is(err, evalapi.ErrNoData) {
		a.Logger.Info().Msg("no windows materialised for export range")
		return nil
	}
	if err != nil {
		return err
	}

	a.Logger.Info().Int("rows", len(summary.Rows)).Msg("exporting series")

	if opts.CSVPath != "" {
		if err := writeSeriesCSV(opts.CSVPath, summary); err != nil {
			return err
		}
	}

	if opts.PNGPath != "" {
		if err := writeSeriesPNG(opts.PNGPath, summary, opts.IncludeRaw); err != nil {
			return err
		}
	}

	return nil
}

func writeSeriesCSV(path string, summary series.Summary) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"window_end_ts", "window_end_iso", "total", "total_raw", "wl", "market", "sentiment", "volume", "incident_bump", "confidence", "band"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, row := range summary.Rows {
		record := []string{
			fmt.Sprintf("%d", row.WindowEndTS),
			row.WindowEnd().Format(time.RFC3339),
			formatScore(row.Score(evalapi.ScoreTotal), 2),
			formatScore(row.Score(evalapi.ScoreTotalRaw), 2),
			formatScore(row.Score(evalapi.ScoreWL), 2),
			formatScore(row.Score(evalapi.ScoreMarket), 2),
			formatScore(row.Score(evalapi.ScoreSentiment), 2),
			formatScore(row.Score(evalapi.ScoreVolume), 2),
			formatScore(row.Score(evalapi.ScoreIncidentBump), 2),
			formatScore(row.Confidence, 2),
			series.BandFor(row.Score(evalapi.ScoreTotal)).Token,
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	return writer.Error()
}

func writeSeriesPNG(path string, summary series.Summary, includeRaw bool) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	totalX, totalY := seriesPoints(summary.Rows, evalapi.ScoreTotal)
	if len(totalX) == 0 {
		return errors.New("no plottable total values in range")
	}

	graph := chart.Chart{
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatter,
		},
		YAxis: chart.YAxis{
			Name: "Risk score",
			ValueFormatter: func(v interface{}) string {
				return chart.FloatValueFormatterWithFormat(v, "%.0f")
			},
			GridLines: bandGridLines(),
			GridMajorStyle: chart.Style{
				StrokeColor: drawing.ColorFromHex("d1d5db"),
				StrokeWidth: 1.0,
			},
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    "Total",
				XValues: totalX,
				YValues: totalY,
				Style: chart.Style{
					StrokeColor: bandColor(series.BandSevere),
					StrokeWidth: 2.0,
				},
			},
		},
	}

	if includeRaw {
		rawX, rawY := seriesPoints(summary.Rows, evalapi.ScoreTotalRaw)
		if len(rawX) > 0 {
			graph.Series = append(graph.Series, chart.TimeSeries{
				Name:    "Total (raw)",
				XValues: rawX,
				YValues: rawY,
				Style: chart.Style{
					StrokeColor:     bandColor(series.BandGuarded),
					StrokeWidth:     1.0,
					StrokeDashArray: []float64{4.0, 4.0},
				},
			})
		}
	}

	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return graph.Render(chart.PNG, file)
}

// seriesPoints extracts plottable points; nil values become gaps by
// omission rather than interpolation.
func seriesPoints(rows []evalapi.EvaluationWindow, component string) ([]time.Time, []float64) {
	var x []time.Time
	var y []float64
	for _, row := range rows {
		v := row.Score(component)
		if v == nil {
			continue
		}
		x = append(x, row.WindowEnd())
		y = append(y, *v)
	}
	return x, y
}

// bandGridLines draws a horizontal rule at each risk-band threshold.
func bandGridLines() []chart.GridLine {
	return []chart.GridLine{
		{Value: 90},
		{Value: 80},
		{Value: 70},
		{Value: 55},
		{Value: 40},
	}
}

func bandColor(b series.Band) drawing.Color {
	return drawing.ColorFromHex(strings.TrimPrefix(b.Hex, "#"))
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
