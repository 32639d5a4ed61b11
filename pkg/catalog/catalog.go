// Package catalog holds the registry of pre-computed data products the
// reasoning pipeline may consult. Products are registered once at startup
// and immutable thereafter.
package catalog

import (
	"fmt"
	"strings"

	"github.com/civicpulse/civicpulse/pkg/apperr"
)

// Product describes one pre-computed analytic artifact.
type Product struct {
	ID          string   `yaml:"id"`
	DisplayName string   `yaml:"display_name"`
	Description string   `yaml:"description"`
	UseCases    []string `yaml:"use_cases"`
	KeyMetrics  []string `yaml:"key_metrics"`

	// SourceFile is the CSV filename under the artifact directory.
	SourceFile string `yaml:"source_file"`

	// Filter optionally selects a slice of the source file, as
	// "column == 'value'". Several products share top10.csv and differ
	// only by ranking_type.
	Filter string `yaml:"filter"`

	// RouteHint is the dashboard page the UI should show when this
	// product drives an answer. Empty means no navigation.
	RouteHint string `yaml:"route_hint"`
}

// Registry maps product ids to products, preserving registration order
// so the planner prompt is byte-stable across invocations.
type Registry struct {
	order    []string
	products map[string]Product
}

// NewRegistry builds a registry from an ordered product list.
// Duplicate or empty ids are a ConfigError.
func NewRegistry(products []Product) (*Registry, error) {
	r := &Registry{products: make(map[string]Product, len(products))}
	for _, p := range products {
		if p.ID == "" {
			return nil, apperr.New(apperr.KindConfig, "catalog product with empty id")
		}
		if _, dup := r.products[p.ID]; dup {
			return nil, apperr.New(apperr.KindConfig, "duplicate catalog product id %q", p.ID)
		}
		if p.SourceFile == "" {
			return nil, apperr.New(apperr.KindConfig, "catalog product %q has no source_file", p.ID)
		}
		r.products[p.ID] = p
		r.order = append(r.order, p.ID)
	}
	if len(r.order) == 0 {
		return nil, apperr.New(apperr.KindConfig, "catalog is empty")
	}
	return r, nil
}

// Get returns the product for id. Ids are case-sensitive.
func (r *Registry) Get(id string) (Product, error) {
	p, ok := r.products[id]
	if !ok {
		return Product{}, apperr.New(apperr.KindUnknownProduct, "product %q not in catalog", id)
	}
	return p, nil
}

// Has reports whether id is registered.
func (r *Registry) Has(id string) bool {
	_, ok := r.products[id]
	return ok
}

// IDs returns product ids in registration order.
func (r *Registry) IDs() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// DisplayName returns the product's display name, falling back to its id.
func (r *Registry) DisplayName(id string) string {
	if p, ok := r.products[id]; ok && p.DisplayName != "" {
		return p.DisplayName
	}
	return id
}

// DescribeForPlanner renders the catalog for the planning prompt. The
// output is deterministic: registration order, fixed formatting.
func (r *Registry) DescribeForPlanner() string {
	var b strings.Builder
	b.WriteString("## Available Data Products\n\n")
	for _, id := range r.order {
		p := r.products[id]
		fmt.Fprintf(&b, "**%s**\n", p.ID)
		fmt.Fprintf(&b, "- Description: %s\n", p.Description)
		fmt.Fprintf(&b, "- Use Cases: %s\n", strings.Join(p.UseCases, ", "))
		fmt.Fprintf(&b, "- Key Metrics: %s\n\n", strings.Join(p.KeyMetrics, ", "))
	}
	return b.String()
}
