// Package artifact provides read-only access to pre-computed tabular
// artifacts and their textual summaries. Artifacts are produced offline
// by batch analytic jobs; this package never mutates them.
package artifact

import (
	"fmt"
	"strings"
	"time"
)

// Artifact holds the concrete rows backing a product.
type Artifact struct {
	ProductID string
	Columns   []string
	Rows      [][]string
}

// Summary is a text rendering of an artifact prepared for LLM
// consumption. Summaries are truncated previews, never full data.
type Summary struct {
	ProductID   string
	GeneratedAt time.Time
	Text        string

	// FromFile is true when the summary came from a precomputed file
	// rather than being rendered from artifact rows.
	FromFile bool
}

// DefaultPreviewRows bounds how many rows a rendered summary includes.
// This single constant is the dominant LLM token-cost bound.
const DefaultPreviewRows = 50

// Render produces the summary text for an artifact: shape, column list,
// and a row preview. When the artifact exceeds maxRows the preview is
// truncated with an explicit "(of N total)" marker. fromEnd shows the
// last rows instead of the first, which reads better for time series.
func Render(a *Artifact, maxRows int, fromEnd bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Shape: %d rows × %d columns\n", len(a.Rows), len(a.Columns))
	fmt.Fprintf(&b, "Columns: %s\n\n", strings.Join(a.Columns, ", "))

	rows := a.Rows
	if len(rows) > maxRows {
		if fromEnd {
			fmt.Fprintf(&b, "Last %d rows (of %d total, showing most recent):\n", maxRows, len(rows))
			rows = rows[len(rows)-maxRows:]
		} else {
			fmt.Fprintf(&b, "First %d rows (of %d total):\n", maxRows, len(rows))
			rows = rows[:maxRows]
		}
	}
	writeTable(&b, a.Columns, rows)
	return b.String()
}

// writeTable renders rows as a fixed-width aligned table.
func writeTable(b *strings.Builder, columns []string, rows [][]string) {
	widths := make([]int, len(columns))
	for i, c := range columns {
		widths[i] = len(c)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) && len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	// Rows may carry more cells than the header; extra cells get no
	// padding but are still rendered.
	writeRow := func(cells []string) {
		for i, cell := range cells {
			if i > 0 {
				b.WriteString("  ")
			}
			b.WriteString(cell)
			if i >= len(widths) {
				continue
			}
			if pad := widths[i] - len(cell); pad > 0 && i < len(cells)-1 {
				b.WriteString(strings.Repeat(" ", pad))
			}
		}
		b.WriteString("\n")
	}

	writeRow(columns)
	for _, row := range rows {
		writeRow(row)
	}
}
