package report

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/wcharczuk/go-chart/v2"

	"github.com/civicpulse/civicpulse/pkg/artifact"
)

const (
	chartWidth  = 900
	chartHeight = 400

	maxBarCategories = 10
	maxCharts        = 3
)

// ChartImage is a rendered PNG plus its caption.
type ChartImage struct {
	Title string
	PNG   []byte
}

// chartSource names an artifact and the renderer matching its shape.
type chartSource struct {
	productID string
	title     string
	render    func(*artifact.Artifact, string) (*ChartImage, error)
}

// chartSources lists the dashboard products worth charting, in
// preference order. Rankings get bars, time series get lines, the
// priority quadrant gets a scatter plot.
var chartSources = []chartSource{
	{"backlog_ranked_list", "Open Backlog by Category", renderBarChart},
	{"frequency_over_time", "Request Volume Over Time", renderLineChart},
	{"priority_quadrant", "Priority Quadrant", renderScatterChart},
}

// buildCharts renders up to maxCharts images from artifact data.
// Products that fail to load or render are skipped, not fatal: the
// report is still useful without its charts.
func buildCharts(ctx context.Context, store *artifact.Store, logger *slog.Logger) []ChartImage {
	var images []ChartImage
	for _, src := range chartSources {
		if len(images) >= maxCharts {
			break
		}
		art, err := store.LoadArtifact(ctx, src.productID)
		if err != nil {
			logger.Warn("skipping report chart", "product", src.productID, "error", err)
			continue
		}
		img, err := src.render(art, src.title)
		if err != nil {
			logger.Warn("chart render failed", "product", src.productID, "error", err)
			continue
		}
		images = append(images, *img)
	}
	return images
}

// renderMetricsChart draws a bar chart from parsed key metrics, one
// bar per category, using the largest unit group.
func renderMetricsChart(metrics []Metric) (*ChartImage, error) {
	units, groups := GroupByUnit(metrics)
	var best []Metric
	for _, u := range units {
		if len(groups[u]) > len(best) {
			best = groups[u]
		}
	}
	if len(best) < 2 {
		return nil, fmt.Errorf("not enough metric categories to chart")
	}
	bars := make([]chart.Value, 0, len(best))
	for _, m := range best {
		bars = append(bars, chart.Value{Value: m.Value, Label: truncateLabel(m.Category)})
	}
	return renderBars("Key Metrics by Category", bars)
}

func renderBarChart(a *artifact.Artifact, title string) (*ChartImage, error) {
	labelCol, valueCol, err := pickColumns(a)
	if err != nil {
		return nil, err
	}
	var bars []chart.Value
	for _, row := range a.Rows {
		if len(bars) >= maxBarCategories {
			break
		}
		if len(row) <= valueCol || len(row) <= labelCol {
			continue
		}
		v, err := strconv.ParseFloat(row[valueCol], 64)
		if err != nil {
			continue
		}
		bars = append(bars, chart.Value{Value: v, Label: truncateLabel(row[labelCol])})
	}
	if len(bars) < 2 {
		return nil, fmt.Errorf("no numeric rows in %s", a.ProductID)
	}
	return renderBars(title, bars)
}

func renderBars(title string, bars []chart.Value) (*ChartImage, error) {
	graph := chart.BarChart{
		Title:    title,
		Width:    chartWidth,
		Height:   chartHeight,
		BarWidth: 40,
		Bars:     bars,
		XAxis:    chart.Style{TextRotationDegrees: 45},
	}
	return renderPNG(title, graph.Render)
}

func renderLineChart(a *artifact.Artifact, title string) (*ChartImage, error) {
	_, valueCol, err := pickColumns(a)
	if err != nil {
		return nil, err
	}
	var xs, ys []float64
	for i, row := range a.Rows {
		if len(row) <= valueCol {
			continue
		}
		v, err := strconv.ParseFloat(row[valueCol], 64)
		if err != nil {
			continue
		}
		xs = append(xs, float64(i))
		ys = append(ys, v)
	}
	if len(ys) < 2 {
		return nil, fmt.Errorf("no numeric rows in %s", a.ProductID)
	}
	graph := chart.Chart{
		Title:  title,
		Width:  chartWidth,
		Height: chartHeight,
		Series: []chart.Series{
			chart.ContinuousSeries{XValues: xs, YValues: ys},
		},
	}
	return renderPNG(title, graph.Render)
}

func renderScatterChart(a *artifact.Artifact, title string) (*ChartImage, error) {
	xCol, yCol, err := pickNumericPair(a)
	if err != nil {
		return nil, err
	}
	var xs, ys []float64
	for _, row := range a.Rows {
		if len(row) <= yCol {
			continue
		}
		x, errX := strconv.ParseFloat(row[xCol], 64)
		y, errY := strconv.ParseFloat(row[yCol], 64)
		if errX != nil || errY != nil {
			continue
		}
		xs = append(xs, x)
		ys = append(ys, y)
	}
	if len(ys) < 2 {
		return nil, fmt.Errorf("no numeric point pairs in %s", a.ProductID)
	}
	graph := chart.Chart{
		Title:  title,
		Width:  chartWidth,
		Height: chartHeight,
		Series: []chart.Series{
			chart.ContinuousSeries{
				XValues: xs,
				YValues: ys,
				Style: chart.Style{
					StrokeWidth: chart.Disabled,
					DotWidth:    5,
				},
			},
		},
	}
	return renderPNG(title, graph.Render)
}

func renderPNG(title string, render func(chart.RendererProvider, io.Writer) error) (*ChartImage, error) {
	var buf bytes.Buffer
	if err := render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("rendering %s: %w", title, err)
	}
	return &ChartImage{Title: title, PNG: buf.Bytes()}, nil
}

// pickColumns chooses the first non-numeric column as label and the
// first numeric column as value, judged by the first data row.
func pickColumns(a *artifact.Artifact) (labelCol, valueCol int, err error) {
	if len(a.Rows) == 0 {
		return 0, 0, fmt.Errorf("artifact %s is empty", a.ProductID)
	}
	labelCol, valueCol = -1, -1
	for i, cell := range a.Rows[0] {
		if _, numErr := strconv.ParseFloat(cell, 64); numErr == nil {
			if valueCol < 0 {
				valueCol = i
			}
		} else if labelCol < 0 {
			labelCol = i
		}
	}
	if valueCol < 0 {
		return 0, 0, fmt.Errorf("artifact %s has no numeric column", a.ProductID)
	}
	if labelCol < 0 {
		labelCol = 0
	}
	return labelCol, valueCol, nil
}

// pickNumericPair returns the first two numeric columns.
func pickNumericPair(a *artifact.Artifact) (xCol, yCol int, err error) {
	if len(a.Rows) == 0 {
		return 0, 0, fmt.Errorf("artifact %s is empty", a.ProductID)
	}
	xCol, yCol = -1, -1
	for i, cell := range a.Rows[0] {
		if _, numErr := strconv.ParseFloat(cell, 64); numErr != nil {
			continue
		}
		if xCol < 0 {
			xCol = i
		} else if yCol < 0 {
			yCol = i
			break
		}
	}
	if yCol < 0 {
		return 0, 0, fmt.Errorf("artifact %s needs two numeric columns", a.ProductID)
	}
	return xCol, yCol, nil
}

func truncateLabel(s string) string {
	const max = 18
	s = strings.TrimSpace(s)
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-1]) + "…"
}
