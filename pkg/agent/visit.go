package agent

import (
	"context"
	"fmt"

	"github.com/civicpulse/civicpulse/pkg/apperr"
)

// defaultVisitRoute is where an analytics visit lands when the planned
// product carries no route hint.
const defaultVisitRoute = "/dashboard/analytics/frequency"

// Visit is the response of the analytics-visit flow: the dashboard
// route to open and a short discussion for subtitle rendering.
type Visit struct {
	URL        string `json:"url"`
	Discussion string `json:"discussion"`
}

const discussPrompt = `You are an assistant to the Mayor. The user just opened the "%s" analytics view after viewing the cluster "%s" (sub-cluster "%s").

Data summary for this view (brief):
%s

Write 1-3 short sentences that either:
- Explain how this analytics view relates to that cluster (if there is a clear link), or
- Discuss general trends from the data (if the link is weak).

Be concise and natural. No bullet points. Output only the paragraph.`

// summaryLimit bounds how much artifact text is inlined into the
// discussion prompt.
const summaryLimit = 2000

// AnalyticsVisit maps a cluster pair to a dashboard route plus an
// LC-generated discussion of what the view shows for that cluster.
func (o *Orchestrator) AnalyticsVisit(ctx context.Context, parentID, childID int) (*Visit, error) {
	if o.predictor == nil {
		return nil, apperr.New(apperr.KindConfig, "cluster storage is not configured")
	}
	parentLabel, childLabel := o.predictor.Labels(parentID, childID)

	entry := o.planner.PlanForCluster(ctx, parentLabel, childLabel)
	product, err := o.catalog.Get(entry.Product)
	if err != nil {
		return nil, err
	}

	summaryText := "No summary available."
	if summary, err := o.store.LoadSummary(ctx, entry.Product); err == nil {
		summaryText = summary.Text
		if len(summaryText) > summaryLimit {
			summaryText = summaryText[:summaryLimit]
		}
	} else {
		o.logger.Warn("visit summary unavailable", "product", entry.Product, "error", err)
	}

	discussion, err := o.llm.GenerateText(ctx, fmt.Sprintf(discussPrompt, product.DisplayName, parentLabel, childLabel, summaryText))
	if err != nil {
		o.logger.Warn("visit discussion generation failed", "error", err)
		discussion = fmt.Sprintf("This %s view shows trends that can complement the %q cluster you were viewing.", product.DisplayName, parentLabel)
	}

	url := product.RouteHint
	if url == "" {
		url = defaultVisitRoute
	}
	return &Visit{URL: url, Discussion: discussion}, nil
}

// Merged flattens a full event stream into one response object for the
// non-streaming chat endpoint.
type Merged struct {
	Answer     string         `json:"answer"`
	Chat       string         `json:"chat,omitempty"`
	Plan       []PlanEntry    `json:"plan"`
	Rationale  []string       `json:"rationale"`
	KeyMetrics []string       `json:"key_metrics"`
	Error      map[string]any `json:"error,omitempty"`
}

// Collect drains a session stream into a Merged response.
func Collect(events <-chan Event) *Merged {
	m := &Merged{Plan: []PlanEntry{}, Rationale: []string{}, KeyMetrics: []string{}}
	for ev := range events {
		switch ev.Type {
		case EventPlan:
			if plan, ok := ev.Data["plan"].([]PlanEntry); ok {
				m.Plan = plan
			}
		case EventAnswer:
			m.Answer = ev.Content
			if r, ok := ev.Data["rationale"].([]string); ok {
				m.Rationale = r
			}
			if k, ok := ev.Data["key_metrics"].([]string); ok {
				m.KeyMetrics = k
			}
		case EventChat:
			m.Chat = ev.Content
		case EventError:
			m.Error = map[string]any{"kind": ev.Data["kind"], "message": ev.Content}
		}
	}
	return m
}
