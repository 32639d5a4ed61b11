package agent

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/civicpulse/civicpulse/pkg/apperr"
	"github.com/civicpulse/civicpulse/pkg/artifact"
	"github.com/civicpulse/civicpulse/pkg/catalog"
	"github.com/civicpulse/civicpulse/pkg/llm"
)

// PlanEntry is one planned data product with the model's reason.
type PlanEntry struct {
	Product string `json:"product"`
	Why     string `json:"why"`
}

const (
	// maxPlanEntries caps the plan; model output beyond it is truncated
	// in submission order.
	maxPlanEntries = 3

	// plannerPreviewRows limits the sample-context preview fed to the
	// planning prompt.
	plannerPreviewRows = 10

	// previewProductID is the canonical artifact whose preview grounds
	// the planning prompt.
	previewProductID = "frequency_over_time"
)

// Planner is the stage-1 reasoner: it chooses 1-3 data products from
// the catalog for a question.
type Planner struct {
	llm     llm.Client
	catalog *catalog.Registry
	store   *artifact.Store
	logger  *slog.Logger
}

func NewPlanner(lc llm.Client, reg *catalog.Registry, store *artifact.Store, logger *slog.Logger) *Planner {
	return &Planner{
		llm:     lc,
		catalog: reg,
		store:   store,
		logger:  logger.With("component", "planner"),
	}
}

const planPrompt = `You are a data analyst planning how to answer a user's question about CRM service requests.

USER QUESTION:
%s

AVAILABLE DATA PRODUCTS:
%s

SAMPLE DATA (frequency_over_time preview):
%s

Your task is to determine which data products would be most helpful to answer the user's question.

IMPORTANT: Return ONLY a valid JSON array with no additional text, markdown formatting, or code blocks. The response must be parseable JSON.

Output format (JSON array only):
[
  {
    "product": "product_id_from_catalog",
    "why": "Brief reason why this data is needed"
  },
  {
    "product": "another_product_id",
    "why": "Another brief reason"
  }
]

Select 1-3 most relevant data products. Be strategic - choose products that directly answer the question.
Keep each "why" to one short phrase (under 10 words).
Return only the JSON array, nothing else.`

// Plan runs the planning prompt and post-validates the result: entries
// naming unknown products are dropped, the list is truncated to
// maxPlanEntries, and an empty result is a PlanningFailed. There is no
// fallback to a default product; if the model cannot plan, the caller
// is told.
func (p *Planner) Plan(ctx context.Context, question string) ([]PlanEntry, error) {
	prompt := fmt.Sprintf(planPrompt, question, p.catalog.DescribeForPlanner(), p.samplePreview(ctx))

	var raw []PlanEntry
	if err := p.llm.GenerateJSON(ctx, prompt, &raw); err != nil {
		return nil, fmt.Errorf("planning stage: %w", err)
	}
	return p.validate(raw)
}

func (p *Planner) validate(raw []PlanEntry) ([]PlanEntry, error) {
	plan := make([]PlanEntry, 0, maxPlanEntries)
	for _, entry := range raw {
		if !p.catalog.Has(entry.Product) {
			p.logger.Warn("dropping planned product not in catalog", "product", entry.Product)
			continue
		}
		plan = append(plan, entry)
		if len(plan) == maxPlanEntries {
			break
		}
	}
	if len(plan) == 0 {
		return nil, apperr.New(apperr.KindPlanningFailed, "planner selected no valid data products")
	}
	return plan, nil
}

// samplePreview renders a short preview of the canonical frequency
// artifact to ground the model. Missing data is not fatal to planning.
func (p *Planner) samplePreview(ctx context.Context) string {
	a, err := p.store.LoadArtifact(ctx, previewProductID)
	if err != nil {
		p.logger.Warn("frequency preview unavailable", "error", err)
		return "Frequency data not available"
	}
	return artifact.Render(a, plannerPreviewRows, false)
}

const clusterPlanPrompt = `You are a data analyst. The user is viewing a cluster: "%s" (sub-cluster: "%s").

Choose the SINGLE most relevant data product to show on an analytics dashboard for this cluster.

AVAILABLE DATA PRODUCTS (only these have dashboard pages):
%s

SAMPLE DATA (frequency_over_time preview):
%s

IMPORTANT: Return ONLY a valid JSON array with exactly ONE object. No other text.
Output format: [{ "product": "product_id_from_catalog", "why": "Brief reason" }]

Pick ONE product that best fits this cluster. Valid product IDs include: frequency_over_time, backlog_ranked_list, backlog_distribution, priority_quadrant, geographic_hot_spots, time_to_close.
Return only the JSON array.`

// PlanForCluster picks the single dashboard product best matching a
// cluster the user is viewing. Unlike Plan, a failure degrades to the
// frequency trend view so the visit flow always lands somewhere.
func (p *Planner) PlanForCluster(ctx context.Context, parentLabel, childLabel string) PlanEntry {
	prompt := fmt.Sprintf(clusterPlanPrompt, parentLabel, childLabel, p.catalog.DescribeForPlanner(), p.samplePreview(ctx))

	var raw []PlanEntry
	if err := p.llm.GenerateJSON(ctx, prompt, &raw); err != nil {
		p.logger.Warn("cluster product planning failed, using trend view", "error", err)
		return PlanEntry{Product: previewProductID, Why: "Default trend view"}
	}
	for _, entry := range raw {
		if p.catalog.Has(entry.Product) {
			return entry
		}
	}
	return PlanEntry{Product: previewProductID, Why: "Default trend view"}
}
