package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/civicpulse/civicpulse/pkg/apperr"
	"github.com/civicpulse/civicpulse/pkg/artifact"
	"github.com/civicpulse/civicpulse/pkg/llm"
)

// AnalysisResult is the analyzer's structured answer.
type AnalysisResult struct {
	Answer     string   `json:"answer"`
	Rationale  []string `json:"rationale"`
	KeyMetrics []string `json:"key_metrics"`
}

// Analyzer is the stage-2 reasoner: it synthesizes an answer from the
// loaded product summaries.
type Analyzer struct {
	llm    llm.Client
	logger *slog.Logger
}

func NewAnalyzer(lc llm.Client, logger *slog.Logger) *Analyzer {
	return &Analyzer{llm: lc, logger: logger.With("component", "analyzer")}
}

const analysisPrompt = `You are a data analyst providing insights on CRM service request data.

USER QUESTION:
%s

DATA PRODUCTS ACCESSED:
%s

RETRIEVED DATA:
%s

Based on the data provided above, answer the user's question as briefly as possible.

Format your response as a JSON object with these keys:
- "answer": One or two short sentences max. Be as short as possible.
- "rationale": 1-3 brief bullet points with key numbers only.
- "key_metrics": Short list of numbers referenced (e.g., ["663", "18.5%%"]).

IMPORTANT: Keep every part minimal. Return ONLY valid JSON with no additional text, markdown, or code blocks.

Example format:
{
  "answer": "Recreation leads with 663 requests (18.5%%). Roads/traffic second at 562 (15.7%%).",
  "rationale": ["Recreation 663 (18.5%%)", "Roads 562 (15.7%%)"],
  "key_metrics": ["663", "18.5%%", "562", "15.7%%"]
}

Now analyze the data and respond (keep it short):`

// Analyze runs the analysis prompt over the fetched summaries.
// Post-validation requires a non-empty answer and at least one
// rationale bullet; anything less is treated as a parse failure.
func (a *Analyzer) Analyze(ctx context.Context, question string, accessLog []PlanEntry, summaries []*artifact.Summary) (*AnalysisResult, error) {
	logJSON, err := json.MarshalIndent(accessLog, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding access log: %w", err)
	}

	var data strings.Builder
	for _, s := range summaries {
		fmt.Fprintf(&data, "\n### Data Product: %s\n%s\n%s\n", s.ProductID, s.Text, strings.Repeat("-", 80))
	}

	prompt := fmt.Sprintf(analysisPrompt, question, logJSON, data.String())

	var result AnalysisResult
	if err := a.llm.GenerateJSON(ctx, prompt, &result); err != nil {
		return nil, fmt.Errorf("analysis stage: %w", err)
	}
	if strings.TrimSpace(result.Answer) == "" || len(result.Rationale) == 0 {
		return nil, apperr.New(apperr.KindLLMParse, "analysis response missing answer or rationale")
	}
	return &result, nil
}
