// Package cluster provides nearest-centroid lookup over the precomputed
// request-cluster hierarchy and the keyword→embedding→lookup prediction
// pipeline built on top of it.
package cluster

import (
	"log/slog"
	"math"
	"sort"

	"github.com/civicpulse/civicpulse/pkg/apperr"
)

// Centroid is one cluster's mean vector. Level-2 centroids carry the id
// of their level-1 parent.
type Centroid struct {
	ID     int
	Parent int
	Label  string
	Vector []float32
}

// Prediction is the result of a nearest-centroid lookup.
type Prediction struct {
	ParentID   int     `json:"parent_cluster_id"`
	ChildID    int     `json:"child_cluster_id"`
	Confidence float64 `json:"confidence"`
}

// Index answers nearest-centroid queries over a fixed-dimensional space.
// Immutable after construction; safe for concurrent use.
type Index struct {
	dim    int
	level1 []Centroid
	level2 []Centroid
	labels map[[2]int]string
}

// NewIndex builds an index from level-1 and level-2 centroids. Level-2
// centroids whose parent is not a known level-1 id are dropped, as are
// centroids whose vector length disagrees with the rest; the dimension
// is taken from the first level-1 centroid.
func NewIndex(level1, level2 []Centroid) (*Index, error) {
	if len(level1) == 0 {
		return nil, apperr.New(apperr.KindConfig, "no level-1 centroids loaded")
	}
	dim := len(level1[0].Vector)
	if dim == 0 {
		return nil, apperr.New(apperr.KindConfig, "level-1 centroid %d has empty vector", level1[0].ID)
	}

	idx := &Index{dim: dim, labels: make(map[[2]int]string)}

	parents := make(map[int]bool, len(level1))
	for _, c := range level1 {
		if len(c.Vector) != dim {
			slog.Warn("Dropping level-1 centroid with mismatched dimension",
				"cluster_id", c.ID, "dim", len(c.Vector), "expected", dim)
			continue
		}
		idx.level1 = append(idx.level1, c)
		parents[c.ID] = true
		idx.labels[[2]int{1, c.ID}] = c.Label
	}
	if len(idx.level1) == 0 {
		return nil, apperr.New(apperr.KindConfig, "no usable level-1 centroids")
	}

	for _, c := range level2 {
		if !parents[c.Parent] {
			slog.Warn("Dropping orphan level-2 centroid", "cluster_id", c.ID, "parent", c.Parent)
			continue
		}
		if len(c.Vector) != dim {
			slog.Warn("Dropping level-2 centroid with mismatched dimension",
				"cluster_id", c.ID, "dim", len(c.Vector), "expected", dim)
			continue
		}
		idx.level2 = append(idx.level2, c)
		idx.labels[[2]int{2, c.ID}] = c.Label
	}

	// Ascending id order makes ties resolve to the smaller id.
	sort.Slice(idx.level1, func(i, j int) bool { return idx.level1[i].ID < idx.level1[j].ID })
	sort.Slice(idx.level2, func(i, j int) bool { return idx.level2[i].ID < idx.level2[j].ID })

	return idx, nil
}

// Dim returns the fixed centroid dimension.
func (idx *Index) Dim() int { return idx.dim }

// Label returns the stored label for a cluster, or "" when unlabeled.
func (idx *Index) Label(level, id int) string {
	return idx.labels[[2]int{level, id}]
}

// Predict finds the nearest level-1 centroid, then the nearest level-2
// centroid within that parent. A parent without children yields child id
// 0. Confidence maps the parent cosine similarity into (0, 1].
func (idx *Index) Predict(embedding []float32) (Prediction, error) {
	if len(embedding) != idx.dim {
		return Prediction{}, apperr.New(apperr.KindDimension,
			"query embedding has dimension %d, index expects %d", len(embedding), idx.dim)
	}

	parent, parentSim := nearest(embedding, idx.level1, func(Centroid) bool { return true })

	childID := 0
	if child, _ := nearest(embedding, idx.level2, func(c Centroid) bool {
		return c.Parent == parent.ID
	}); child != nil {
		childID = child.ID
	}

	return Prediction{
		ParentID:   parent.ID,
		ChildID:    childID,
		Confidence: confidence(parentSim),
	}, nil
}

// nearest scans candidates in ascending id order with a strict-greater
// comparison, so equal similarities keep the smaller id.
func nearest(query []float32, candidates []Centroid, keep func(Centroid) bool) (*Centroid, float64) {
	var best *Centroid
	bestSim := math.Inf(-1)
	for i := range candidates {
		if !keep(candidates[i]) {
			continue
		}
		sim := cosineSimilarity(query, candidates[i].Vector)
		if sim > bestSim {
			bestSim = sim
			best = &candidates[i]
		}
	}
	return best, bestSim
}

func cosineSimilarity(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// confidence maps cosine similarity from [-1, 1] into (0, 1].
func confidence(sim float64) float64 {
	c := (sim + 1) / 2
	if c <= 0 {
		return math.SmallestNonzeroFloat64
	}
	if c > 1 {
		return 1
	}
	return c
}
