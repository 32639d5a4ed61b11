package cluster

import (
	"testing"

	"github.com/civicpulse/civicpulse/pkg/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testIndex(t *testing.T) *Index {
	t.Helper()
	level1 := []Centroid{
		{ID: 1, Label: "Roads", Vector: []float32{1, 0, 0}},
		{ID: 2, Label: "Parks", Vector: []float32{0, 1, 0}},
	}
	level2 := []Centroid{
		{ID: 10, Parent: 1, Label: "Potholes", Vector: []float32{0.9, 0.1, 0}},
		{ID: 11, Parent: 1, Label: "Streetlights", Vector: []float32{0.7, 0, 0.3}},
		{ID: 20, Parent: 2, Label: "Playgrounds", Vector: []float32{0, 0.9, 0.1}},
	}
	idx, err := NewIndex(level1, level2)
	require.NoError(t, err)
	return idx
}

func TestNewIndex(t *testing.T) {
	t.Run("empty level-1 rejected", func(t *testing.T) {
		_, err := NewIndex(nil, nil)
		require.Error(t, err)
		assert.Equal(t, apperr.KindConfig, apperr.KindOf(err))
	})

	t.Run("orphan level-2 filtered", func(t *testing.T) {
		idx, err := NewIndex(
			[]Centroid{{ID: 1, Vector: []float32{1, 0}}},
			[]Centroid{
				{ID: 10, Parent: 1, Vector: []float32{1, 0}},
				{ID: 99, Parent: 42, Vector: []float32{0, 1}}, // orphan
			},
		)
		require.NoError(t, err)
		assert.Len(t, idx.level2, 1)
	})

	t.Run("mismatched dimension filtered", func(t *testing.T) {
		idx, err := NewIndex(
			[]Centroid{
				{ID: 1, Vector: []float32{1, 0}},
				{ID: 2, Vector: []float32{1, 0, 0}}, // wrong dim
			},
			nil,
		)
		require.NoError(t, err)
		assert.Len(t, idx.level1, 1)
		assert.Equal(t, 2, idx.Dim())
	})
}

func TestIndex_Predict(t *testing.T) {
	idx := testIndex(t)

	t.Run("nearest parent and child", func(t *testing.T) {
		pred, err := idx.Predict([]float32{1, 0.05, 0})
		require.NoError(t, err)
		assert.Equal(t, 1, pred.ParentID)
		assert.Equal(t, 10, pred.ChildID)
		assert.Greater(t, pred.Confidence, 0.0)
		assert.LessOrEqual(t, pred.Confidence, 1.0)
	})

	t.Run("child restricted to parent", func(t *testing.T) {
		pred, err := idx.Predict([]float32{0, 1, 0.02})
		require.NoError(t, err)
		assert.Equal(t, 2, pred.ParentID)
		assert.Equal(t, 20, pred.ChildID)
	})

	t.Run("dimension mismatch", func(t *testing.T) {
		_, err := idx.Predict([]float32{1, 0})
		require.Error(t, err)
		assert.Equal(t, apperr.KindDimension, apperr.KindOf(err))
	})

	t.Run("tie resolves to smaller id", func(t *testing.T) {
		tied, err := NewIndex(
			[]Centroid{
				{ID: 5, Vector: []float32{1, 0}},
				{ID: 3, Vector: []float32{1, 0}}, // identical centroid, smaller id
			},
			nil,
		)
		require.NoError(t, err)

		pred, err := tied.Predict([]float32{1, 0})
		require.NoError(t, err)
		assert.Equal(t, 3, pred.ParentID)
	})

	t.Run("parent without children yields child zero", func(t *testing.T) {
		idx, err := NewIndex(
			[]Centroid{{ID: 7, Vector: []float32{1, 0}}},
			nil,
		)
		require.NoError(t, err)

		pred, err := idx.Predict([]float32{1, 0})
		require.NoError(t, err)
		assert.Equal(t, 7, pred.ParentID)
		assert.Equal(t, 0, pred.ChildID)
	})
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, cosineSimilarity([]float32{1, 0}, []float32{2, 0}), 1e-9)
	assert.InDelta(t, 0.0, cosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.InDelta(t, -1.0, cosineSimilarity([]float32{1, 0}, []float32{-1, 0}), 1e-9)
	assert.Equal(t, 0.0, cosineSimilarity([]float32{0, 0}, []float32{1, 0}))
}

func TestConfidence(t *testing.T) {
	assert.Equal(t, 1.0, confidence(1))
	assert.InDelta(t, 0.5, confidence(0), 1e-9)
	assert.Greater(t, confidence(-1), 0.0)
}
