package cluster

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/civicpulse/civicpulse/pkg/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubExtractor struct {
	keywords string
	err      error
	gotInput string
}

func (s *stubExtractor) GenerateSearchKeywords(_ context.Context, question string) (string, error) {
	s.gotInput = question
	return s.keywords, s.err
}

type stubEmbedder struct {
	vectors  map[string][]float32
	err      error
	gotInput string
}

func (s *stubEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	s.gotInput = text
	if s.err != nil {
		return nil, s.err
	}
	if v, ok := s.vectors[text]; ok {
		return v, nil
	}
	return []float32{1, 0, 0}, nil
}

func TestPredictor_Predict(t *testing.T) {
	idx := testIndex(t)

	t.Run("embeds extracted keywords", func(t *testing.T) {
		extractor := &stubExtractor{keywords: "roads potholes street repair"}
		embedder := &stubEmbedder{vectors: map[string][]float32{
			"roads potholes street repair": {1, 0, 0},
		}}
		p := NewPredictor(extractor, embedder, idx)

		pred, err := p.Predict(context.Background(), "the road near my house is broken")
		require.NoError(t, err)
		assert.Equal(t, 1, pred.ParentID)
		assert.Equal(t, "roads potholes street repair", embedder.gotInput)
	})

	t.Run("falls back to raw question on extractor failure", func(t *testing.T) {
		extractor := &stubExtractor{err: errors.New("llm down")}
		embedder := &stubEmbedder{}
		p := NewPredictor(extractor, embedder, idx)

		_, err := p.Predict(context.Background(), "park playground broken swing")
		require.NoError(t, err)
		assert.Equal(t, "park playground broken swing", embedder.gotInput)
	})

	t.Run("raw fallback truncated to 200 chars", func(t *testing.T) {
		extractor := &stubExtractor{err: errors.New("llm down")}
		embedder := &stubEmbedder{}
		p := NewPredictor(extractor, embedder, idx)

		long := strings.Repeat("x", 500)
		_, err := p.Predict(context.Background(), long)
		require.NoError(t, err)
		assert.Len(t, embedder.gotInput, rawQuestionLimit)
	})

	t.Run("raw fallback truncates on rune boundaries", func(t *testing.T) {
		extractor := &stubExtractor{err: errors.New("llm down")}
		embedder := &stubEmbedder{}
		p := NewPredictor(extractor, embedder, idx)

		long := strings.Repeat("é", 500)
		_, err := p.Predict(context.Background(), long)
		require.NoError(t, err)
		assert.True(t, utf8.ValidString(embedder.gotInput))
		assert.Equal(t, rawQuestionLimit, utf8.RuneCountInString(embedder.gotInput))
	})

	t.Run("embedder failure propagates", func(t *testing.T) {
		p := NewPredictor(&stubExtractor{keywords: "k"}, &stubEmbedder{err: errors.New("boom")}, idx)
		_, err := p.Predict(context.Background(), "q")
		require.Error(t, err)
	})
}

func TestPredictor_VerifyDimension(t *testing.T) {
	idx := testIndex(t)

	t.Run("matching dimension", func(t *testing.T) {
		p := NewPredictor(&stubExtractor{}, &stubEmbedder{}, idx)
		require.NoError(t, p.VerifyDimension(context.Background()))
	})

	t.Run("mismatch is a config error", func(t *testing.T) {
		embedder := &stubEmbedder{vectors: map[string][]float32{
			"dimension probe": {1, 0},
		}}
		p := NewPredictor(&stubExtractor{}, embedder, idx)

		err := p.VerifyDimension(context.Background())
		require.Error(t, err)
		assert.Equal(t, apperr.KindConfig, apperr.KindOf(err))
	})
}

func TestPredictor_Labels(t *testing.T) {
	p := NewPredictor(&stubExtractor{}, &stubEmbedder{}, testIndex(t))

	parent, child := p.Labels(1, 10)
	assert.Equal(t, "Roads", parent)
	assert.Equal(t, "Potholes", child)

	parent, child = p.Labels(99, 0)
	assert.Equal(t, "Cluster 99", parent)
	assert.Equal(t, "Sub-cluster 0", child)
}

func TestParseVector(t *testing.T) {
	vec, err := ParseVector("[0.5, -1.25, 3]")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5, -1.25, 3}, vec)

	_, err = ParseVector("[]")
	require.Error(t, err)

	_, err = ParseVector("[1, two, 3]")
	require.Error(t, err)
}
