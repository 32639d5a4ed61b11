package cluster

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/civicpulse/civicpulse/pkg/apperr"
)

// Embedder produces a fixed-dimensional embedding for a text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// KeywordExtractor distills a user message into a compact search phrase
// aligned with cluster labels.
type KeywordExtractor interface {
	GenerateSearchKeywords(ctx context.Context, question string) (string, error)
}

// rawQuestionLimit bounds the fallback embedding input when keyword
// extraction fails.
const rawQuestionLimit = 200

// Predictor fuses the LLM keyword extractor with the centroid index:
// question → keywords → embedding → nearest parent/child clusters.
// Embedding whole questions directly gives poor centroid locality; the
// extraction step narrows the query to label-like terms.
type Predictor struct {
	extractor KeywordExtractor
	embedder  Embedder
	index     *Index
}

// NewPredictor wires a predictor. The embedder must produce vectors of
// the index's dimension; callers should verify that at startup with
// VerifyDimension.
func NewPredictor(extractor KeywordExtractor, embedder Embedder, index *Index) *Predictor {
	return &Predictor{extractor: extractor, embedder: embedder, index: index}
}

// VerifyDimension probes the embedder once and checks its output
// dimension against the index. A mismatch is a ConfigError: the index
// was built with a different embedding model.
func (p *Predictor) VerifyDimension(ctx context.Context) error {
	vec, err := p.embedder.Embed(ctx, "dimension probe")
	if err != nil {
		return apperr.Wrap(apperr.KindConfig, err, "probing embedding model")
	}
	if len(vec) != p.index.Dim() {
		return apperr.New(apperr.KindConfig,
			"embedding model produces dimension %d, centroid index expects %d",
			len(vec), p.index.Dim())
	}
	return nil
}

// Predict returns the nearest parent and child cluster ids for a user
// question. When keyword extraction fails the raw question is embedded
// instead, truncated so a long message cannot blow the embedding input.
func (p *Predictor) Predict(ctx context.Context, question string) (Prediction, error) {
	text, err := p.extractor.GenerateSearchKeywords(ctx, question)
	if err != nil || text == "" {
		if err != nil {
			slog.Warn("Keyword extraction failed, embedding raw question", "error", err)
		}
		text = question
		if r := []rune(text); len(r) > rawQuestionLimit {
			text = string(r[:rawQuestionLimit])
		}
	}

	embedding, err := p.embedder.Embed(ctx, text)
	if err != nil {
		return Prediction{}, err
	}
	return p.index.Predict(embedding)
}

// Labels resolves display labels for a predicted cluster pair, with
// positional fallbacks for unlabeled clusters.
func (p *Predictor) Labels(parentID, childID int) (parentLabel, childLabel string) {
	parentLabel = p.index.Label(1, parentID)
	if parentLabel == "" {
		parentLabel = "Cluster " + strconv.Itoa(parentID)
	}
	childLabel = p.index.Label(2, childID)
	if childLabel == "" {
		childLabel = "Sub-cluster " + strconv.Itoa(childID)
	}
	return parentLabel, childLabel
}
