// quality-report renders an offline quality report from a processed
// database: score trends and quarantine-reason breakdowns as an HTML page,
// plus an optional overall-score histogram as PNG.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/skyward-data/quality.report/internal/db"
	"github.com/skyward-data/quality.report/internal/quality"
)

var (
	dbPath  = flag.String("db", "quality_data.db", "Path to the sqlite database")
	outPath = flag.String("out", "quality-report.html", "Output HTML file")
	pngPath = flag.String("png", "", "Optional PNG histogram of overall scores")
	limit   = flag.Int("limit", 100, "Number of recent batches to include")
)

func main() {
	flag.Parse()

	database, err := db.NewDB(*dbPath)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer database.Close()

	ctx := context.Background()
	history, err := db.NewMetricsStore(database).History(ctx, *limit)
	if err != nil {
		log.Fatalf("failed to load batch metrics: %v", err)
	}
	if len(history) == 0 {
		log.Fatal("no batch metrics in database; process at least one batch first")
	}

	// History comes back newest first; charts read left to right.
	reverse(history)

	page := components.NewPage()
	page.SetPageTitle("Telemetry Quality Report")
	page.AddCharts(
		scoreTrendChart(history),
		volumeChart(history),
		quarantineReasonChart(history),
	)

	f, err := os.Create(*outPath)
	if err != nil {
		log.Fatalf("failed to create output file: %v", err)
	}
	defer f.Close()
	if err := page.Render(f); err != nil {
		log.Fatalf("failed to render report: %v", err)
	}
	log.Printf("wrote %s (%d batches)", *outPath, len(history))

	if *pngPath != "" {
		if err := renderScoreHistogram(history, *pngPath); err != nil {
			log.Fatalf("failed to render histogram: %v", err)
		}
		log.Printf("wrote %s", *pngPath)
	}
}

func reverse(history []quality.BatchQualityMetrics) {
	for i, j := 0, len(history)-1; i < j; i, j = i+1, j-1 {
		history[i], history[j] = history[j], history[i]
	}
}

func batchLabels(history []quality.BatchQualityMetrics) []string {
	labels := make([]string, len(history))
	for i, m := range history {
		labels[i] = m.ProcessedAt.Format("01-02 15:04")
	}
	return labels
}

func lineData(history []quality.BatchQualityMetrics, get func(quality.BatchQualityMetrics) float64) []opts.LineData {
	data := make([]opts.LineData, len(history))
	for i, m := range history {
		data[i] = opts.LineData{Value: get(m)}
	}
	return data
}

func scoreTrendChart(history []quality.BatchQualityMetrics) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "Dimensional score trend", Subtitle: "per-batch averages"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithYAxisOpts(opts.YAxis{Min: 0, Max: 1}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
	)
	line.SetXAxis(batchLabels(history)).
		AddSeries("completeness", lineData(history, func(m quality.BatchQualityMetrics) float64 { return m.AvgCompleteness })).
		AddSeries("validity", lineData(history, func(m quality.BatchQualityMetrics) float64 { return m.AvgValidity })).
		AddSeries("consistency", lineData(history, func(m quality.BatchQualityMetrics) float64 { return m.AvgConsistency })).
		AddSeries("timeliness", lineData(history, func(m quality.BatchQualityMetrics) float64 { return m.AvgTimeliness })).
		AddSeries("overall", lineData(history, func(m quality.BatchQualityMetrics) float64 { return m.AvgOverall }))
	return line
}

func volumeChart(history []quality.BatchQualityMetrics) *charts.Bar {
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "Record volume", Subtitle: "accepted vs quarantined vs duplicates"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
	)
	accepted := make([]opts.BarData, len(history))
	quarantined := make([]opts.BarData, len(history))
	duplicates := make([]opts.BarData, len(history))
	for i, m := range history {
		accepted[i] = opts.BarData{Value: m.AcceptedRecords}
		quarantined[i] = opts.BarData{Value: m.QuarantinedRecords}
		duplicates[i] = opts.BarData{Value: m.DuplicateRecords}
	}
	bar.SetXAxis(batchLabels(history)).
		AddSeries("accepted", accepted).
		AddSeries("quarantined", quarantined).
		AddSeries("duplicates", duplicates)
	return bar
}

func quarantineReasonChart(history []quality.BatchQualityMetrics) *charts.Bar {
	totals := map[string]int{}
	for _, m := range history {
		for reason, n := range m.QuarantineReasons {
			totals[reason] += n
		}
	}
	reasons := []string{
		quality.ReasonMissingICAO24,
		quality.ReasonMalformedICAO24,
		quality.ReasonMissingPosition,
		quality.ReasonLowQualityScore,
	}
	var data []opts.BarData
	for _, reason := range reasons {
		data = append(data, opts.BarData{Value: totals[reason]})
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "Quarantine reasons", Subtitle: fmt.Sprintf("across %d batches", len(history))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	bar.SetXAxis(reasons).AddSeries("count", data)
	return bar
}

// renderScoreHistogram plots the distribution of per-batch average overall
// scores as a PNG.
func renderScoreHistogram(history []quality.BatchQualityMetrics, path string) error {
	values := make(plotter.Values, len(history))
	for i, m := range history {
		values[i] = m.AvgOverall
	}

	p := plot.New()
	p.Title.Text = "Overall quality score distribution"
	p.X.Label.Text = "Average overall score"
	p.Y.Label.Text = "Batches"

	hist, err := plotter.NewHist(values, 20)
	if err != nil {
		return fmt.Errorf("building histogram: %w", err)
	}
	p.Add(hist)

	return p.Save(8*vg.Inch, 4*vg.Inch, path)
}
