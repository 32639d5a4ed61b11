// Package report renders a PDF briefing for a cluster discussion:
// structured findings extracted by the language model plus chart images
// drawn from the dashboard's artifact data.
package report

import (
	"regexp"
	"strconv"
	"strings"
)

// Metric is one parsed key-metric line. The language model emits
// metrics as free-text strings like "663 recent requests in Recreation
// and leisure"; the parser recovers the number, its unit, and the
// category so charts can be grouped per category.
type Metric struct {
	Value    float64
	Unit     string
	Category string
	Raw      string
}

// metricPattern matches "<number>[%] [unit words] in <category>".
var metricPattern = regexp.MustCompile(`^([\d,]+(?:\.\d+)?)\s*(%)?\s*(.*?)\s+in\s+(.+)$`)

// ParseMetric extracts (value, unit, category) from a key-metric
// string. Returns false when the string does not carry both a number
// and a category.
func ParseMetric(s string) (Metric, bool) {
	m := metricPattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return Metric{}, false
	}
	value, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64)
	if err != nil {
		return Metric{}, false
	}
	unit := strings.TrimSpace(m[3])
	if m[2] == "%" {
		if unit == "" {
			unit = "%"
		} else {
			unit = "% " + unit
		}
	}
	if unit == "" {
		unit = "count"
	}
	category := strings.TrimSpace(m[4])
	if category == "" {
		return Metric{}, false
	}
	return Metric{Value: value, Unit: unit, Category: category, Raw: s}, true
}

// ParseMetrics parses every metric string it can, preserving order and
// dropping unparseable entries.
func ParseMetrics(raw []string) []Metric {
	out := make([]Metric, 0, len(raw))
	for _, s := range raw {
		if m, ok := ParseMetric(s); ok {
			out = append(out, m)
		}
	}
	return out
}

// GroupByUnit buckets metrics by unit, preserving first-seen unit
// order. Each bucket holds at most one value per category, the first
// one mentioned.
func GroupByUnit(metrics []Metric) ([]string, map[string][]Metric) {
	var units []string
	groups := make(map[string][]Metric)
	for _, m := range metrics {
		bucket, seen := groups[m.Unit]
		if !seen {
			units = append(units, m.Unit)
		}
		dup := false
		for _, existing := range bucket {
			if existing.Category == m.Category {
				dup = true
				break
			}
		}
		if !dup {
			groups[m.Unit] = append(bucket, m)
		}
	}
	return units, groups
}
