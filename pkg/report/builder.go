package report

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"

	"github.com/civicpulse/civicpulse/pkg/artifact"
	"github.com/civicpulse/civicpulse/pkg/llm"
)

// Data is the structured report content extracted from a discussion.
type Data struct {
	Answer     string   `json:"answer"`
	Rationale  []string `json:"rationale"`
	KeyMetrics []string `json:"key_metrics"`
}

// ClusterLabels resolves cluster ids to display labels.
type ClusterLabels interface {
	Labels(parentID, childID int) (parentLabel, childLabel string)
}

// Builder turns a cluster discussion into a PDF briefing.
type Builder struct {
	llm    llm.Client
	labels ClusterLabels
	store  *artifact.Store
	logger *slog.Logger
	now    func() time.Time
}

func NewBuilder(lc llm.Client, labels ClusterLabels, store *artifact.Store, logger *slog.Logger) *Builder {
	return &Builder{
		llm:    lc,
		labels: labels,
		store:  store,
		logger: logger.With("component", "report"),
		now:    time.Now,
	}
}

// Generate produces the PDF bytes for a cluster discussion.
func (b *Builder) Generate(ctx context.Context, parentID, childID int, discussion string) ([]byte, error) {
	parentLabel, childLabel := b.labels.Labels(parentID, childID)

	data := b.extractData(ctx, parentLabel, childLabel, discussion)

	charts := make([]ChartImage, 0, maxCharts)
	if img, err := renderMetricsChart(ParseMetrics(data.KeyMetrics)); err == nil {
		charts = append(charts, *img)
	}
	for _, img := range buildCharts(ctx, b.store, b.logger) {
		if len(charts) >= maxCharts {
			break
		}
		charts = append(charts, img)
	}

	return renderPDF(data, parentLabel, childLabel, b.now(), charts)
}

const reportDataPrompt = `You are preparing structured data for a CRM analytics PDF report that includes metrics analysis and graphs.

Cluster context: "%s" (sub-cluster: "%s").
Discussion text (what we showed the user about the analytics view): %s

Output a JSON object with exactly these keys:

- "answer": One or two sentences summarizing the main finding (use the discussion as the basis).
- "rationale": Array of 2-5 short bullet-point strings with specific insights and numbers (e.g. "Recreation leads with 663 requests (18.5%%)", "Roads second with 562 requests (15.68%%)").
- "key_metrics": Array of metric strings that MUST include the category name so charts can be generated. Use these exact patterns:
  * For volume: "X requests in CategoryName" or "X recent requests in CategoryName" (e.g. "663 recent requests in Recreation and leisure")
  * For growth: "X%% growth in CategoryName" (e.g. "73.1%% growth in Recreation and leisure")
  * For increase: "X requests increase in CategoryName" (e.g. "280 requests increase in Recreation and leisure")
  * For percentage of total: "X%% in CategoryName" (e.g. "18.5%% in Recreation and leisure")
  Include 5-12 key_metrics covering the main categories and numbers from the discussion. Each metric string must contain both a number and a category name (e.g. "Recreation and leisure", "Roads, traffic and sidewalks", "Trees").

Example key_metrics format:
["663 recent requests in Recreation and leisure", "18.5%% in Recreation and leisure", "73.1%% growth in Recreation and leisure", "562 recent requests in Roads, traffic and sidewalks", "15.68%% in Roads, traffic and sidewalks", "280 requests increase in Recreation and leisure"]

Return ONLY valid JSON, no markdown or code fences.`

// extractData asks the language model for structured report content.
// On failure the report degrades to the raw discussion text rather
// than failing the whole request.
func (b *Builder) extractData(ctx context.Context, parentLabel, childLabel, discussion string) Data {
	prompt := fmt.Sprintf(reportDataPrompt, parentLabel, childLabel, discussion)

	var data Data
	if err := b.llm.GenerateJSON(ctx, prompt, &data); err != nil {
		b.logger.Warn("report data extraction failed, using discussion text", "error", err)
		return fallbackData(discussion)
	}
	if strings.TrimSpace(data.Answer) == "" {
		data.Answer = truncateText(discussion, 500)
	}
	return data
}

func fallbackData(discussion string) Data {
	data := Data{Answer: truncateText(discussion, 500)}
	if data.Answer == "" {
		data.Answer = "Analysis complete."
	}
	for _, s := range strings.Split(discussion, ".") {
		if s = strings.TrimSpace(s); s != "" {
			data.Rationale = append(data.Rationale, s)
		}
		if len(data.Rationale) == 4 {
			break
		}
	}
	return data
}

const (
	pageMargin   = 10.0
	contentWidth = 190.0
	chartImageH  = 80.0
)

// renderPDF lays out the report: header with cluster context and
// timestamp, answer, rationale bullets, key-metrics table, charts.
func renderPDF(data Data, parentLabel, childLabel string, ts time.Time, charts []ChartImage) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("CivicPulse Analytics Report", true)
	pdf.SetMargins(pageMargin, pageMargin, pageMargin)
	pdf.SetAutoPageBreak(true, 15)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFont("Helvetica", "B", 18)
	pdf.CellFormat(contentWidth, 10, "CivicPulse Analytics Report", "", 1, "L", false, 0, "")

	pdf.SetFont("Helvetica", "", 11)
	pdf.SetTextColor(90, 90, 90)
	cluster := parentLabel
	if childLabel != "" {
		cluster += " / " + childLabel
	}
	pdf.CellFormat(contentWidth, 6, tr(cluster), "", 1, "L", false, 0, "")
	pdf.CellFormat(contentWidth, 6, ts.Format("January 2, 2006 15:04 MST"), "", 1, "L", false, 0, "")
	pdf.SetTextColor(0, 0, 0)
	pdf.Ln(4)

	sectionHeader(pdf, "Summary")
	pdf.SetFont("Helvetica", "", 11)
	pdf.MultiCell(contentWidth, 5.5, tr(data.Answer), "", "L", false)
	pdf.Ln(3)

	if len(data.Rationale) > 0 {
		sectionHeader(pdf, "Rationale")
		pdf.SetFont("Helvetica", "", 11)
		for _, item := range data.Rationale {
			pdf.MultiCell(contentWidth, 5.5, tr("- "+item), "", "L", false)
		}
		pdf.Ln(3)
	}

	if metrics := ParseMetrics(data.KeyMetrics); len(metrics) > 0 {
		sectionHeader(pdf, "Key Metrics")
		writeMetricsTable(pdf, tr, metrics)
		pdf.Ln(3)
	}

	for _, img := range charts {
		writeChart(pdf, tr, img)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("rendering pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func sectionHeader(pdf *fpdf.Fpdf, title string) {
	pdf.SetFont("Helvetica", "B", 13)
	pdf.CellFormat(contentWidth, 8, title, "", 1, "L", false, 0, "")
}

func writeMetricsTable(pdf *fpdf.Fpdf, tr func(string) string, metrics []Metric) {
	const (
		catW  = 90.0
		valW  = 35.0
		unitW = 65.0
	)
	pdf.SetFont("Helvetica", "B", 10)
	pdf.SetFillColor(235, 235, 235)
	pdf.CellFormat(catW, 7, "Category", "1", 0, "L", true, 0, "")
	pdf.CellFormat(valW, 7, "Value", "1", 0, "R", true, 0, "")
	pdf.CellFormat(unitW, 7, "Unit", "1", 1, "L", true, 0, "")

	pdf.SetFont("Helvetica", "", 10)
	for _, m := range metrics {
		pdf.CellFormat(catW, 6.5, tr(m.Category), "1", 0, "L", false, 0, "")
		pdf.CellFormat(valW, 6.5, strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.2f", m.Value), "0"), "."), "1", 0, "R", false, 0, "")
		pdf.CellFormat(unitW, 6.5, tr(m.Unit), "1", 1, "L", false, 0, "")
	}
}

func writeChart(pdf *fpdf.Fpdf, tr func(string) string, img ChartImage) {
	_, pageH := pdf.GetPageSize()
	if pdf.GetY()+chartImageH+16 > pageH-pageMargin {
		pdf.AddPage()
	}
	sectionHeader(pdf, tr(img.Title))
	opts := fpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader(img.Title, opts, bytes.NewReader(img.PNG))
	pdf.ImageOptions(img.Title, pageMargin, pdf.GetY(), contentWidth, chartImageH, true, opts, 0, "")
	pdf.Ln(4)
}

func truncateText(s string, max int) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}
