package artifact

import (
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/civicpulse/civicpulse/pkg/apperr"
	"github.com/civicpulse/civicpulse/pkg/catalog"
	"golang.org/x/sync/singleflight"
)

// Store loads artifacts and summaries from the artifact directory,
// caching both for the process lifetime. Cached values are immutable;
// concurrent first-readers are collapsed per key via singleflight.
type Store struct {
	catalog     *catalog.Registry
	dataDir     string
	summaryDir  string
	previewRows int

	group singleflight.Group

	mu        sync.RWMutex
	artifacts map[string]*Artifact
	summaries map[string]*Summary
}

// NewStore creates a Store rooted at dataDir. Precomputed summaries are
// expected under dataDir/summaries as <product_id>.txt.
func NewStore(reg *catalog.Registry, dataDir string) *Store {
	return &Store{
		catalog:     reg,
		dataDir:     dataDir,
		summaryDir:  filepath.Join(dataDir, "summaries"),
		previewRows: DefaultPreviewRows,
		artifacts:   make(map[string]*Artifact),
		summaries:   make(map[string]*Summary),
	}
}

// SetPreviewRows overrides the summary preview row limit.
func (s *Store) SetPreviewRows(n int) {
	if n > 0 {
		s.previewRows = n
	}
}

// LoadSummary returns the summary for a product, preferring the
// precomputed summary file and falling back to loading the artifact and
// rendering one. The result is cached; repeated calls return the
// identical summary.
func (s *Store) LoadSummary(ctx context.Context, productID string) (*Summary, error) {
	s.mu.RLock()
	cached, ok := s.summaries[productID]
	s.mu.RUnlock()
	if ok {
		return cached, nil
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// The load itself is local file I/O detached from ctx: under
	// singleflight the winner's context must not decide the outcome for
	// concurrent waiters.
	v, err, _ := s.group.Do("summary:"+productID, func() (any, error) {
		return s.loadSummaryShared(productID)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Summary), nil
}

func (s *Store) loadSummaryShared(productID string) (*Summary, error) {
	// Re-check under singleflight: a concurrent caller may have won.
	s.mu.RLock()
	cached, ok := s.summaries[productID]
	s.mu.RUnlock()
	if ok {
		return cached, nil
	}

	if _, err := s.catalog.Get(productID); err != nil {
		return nil, err
	}

	summary, err := s.readSummaryFile(productID)
	if err != nil {
		return nil, err
	}
	if summary == nil {
		art, err := s.loadArtifactShared(productID)
		if err != nil {
			return nil, err
		}
		summary = &Summary{
			ProductID:   productID,
			GeneratedAt: time.Now().UTC(),
			Text:        Render(art, s.previewRows, false),
		}
		slog.Debug("Rendered summary from artifact", "product", productID)
	}

	s.mu.Lock()
	s.summaries[productID] = summary
	s.mu.Unlock()
	return summary, nil
}

// readSummaryFile returns the precomputed summary, or nil when the file
// does not exist. Read failures other than absence are surfaced.
func (s *Store) readSummaryFile(productID string) (*Summary, error) {
	path := filepath.Join(s.summaryDir, productID+".txt")
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.KindArtifactUnavailable, err, "reading summary for %s", productID)
	}
	info, _ := os.Stat(path)
	generated := time.Now().UTC()
	if info != nil {
		generated = info.ModTime().UTC()
	}
	return &Summary{
		ProductID:   productID,
		GeneratedAt: generated,
		Text:        string(raw),
		FromFile:    true,
	}, nil
}

// LoadArtifact returns the full rows for a product, applying the
// product's row filter. Used by the report builder and by summary
// generation; the orchestrator only ever sees summaries.
func (s *Store) LoadArtifact(ctx context.Context, productID string) (*Artifact, error) {
	s.mu.RLock()
	cached, ok := s.artifacts[productID]
	s.mu.RUnlock()
	if ok {
		return cached, nil
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.loadArtifactShared(productID)
}

func (s *Store) loadArtifactShared(productID string) (*Artifact, error) {
	v, err, _ := s.group.Do("artifact:"+productID, func() (any, error) {
		s.mu.RLock()
		cached, ok := s.artifacts[productID]
		s.mu.RUnlock()
		if ok {
			return cached, nil
		}

		art, err := s.loadCSV(productID)
		if err != nil {
			return nil, err
		}

		s.mu.Lock()
		s.artifacts[productID] = art
		s.mu.Unlock()
		return art, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Artifact), nil
}

func (s *Store) loadCSV(productID string) (*Artifact, error) {
	product, err := s.catalog.Get(productID)
	if err != nil {
		return nil, err
	}

	path := filepath.Join(s.dataDir, product.SourceFile)
	f, err := os.Open(path)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindArtifactUnavailable, err, "artifact file for %s", productID)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, apperr.Wrap(apperr.KindArtifactUnavailable, err, "parsing artifact file for %s", productID)
	}
	if len(records) == 0 {
		return nil, apperr.New(apperr.KindArtifactUnavailable, "artifact file for %s is empty", productID)
	}

	art := &Artifact{
		ProductID: productID,
		Columns:   records[0],
		Rows:      records[1:],
	}

	if product.Filter != "" {
		art, err = applyFilter(art, product.Filter)
		if err != nil {
			return nil, err
		}
	}
	return art, nil
}

// applyFilter selects rows matching an equality filter of the form
// "column == 'value'". This covers the ranking_type slices on the
// shared top10.csv; anything richer belongs in the offline jobs.
func applyFilter(a *Artifact, filter string) (*Artifact, error) {
	column, value, err := parseFilter(filter)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindArtifactUnavailable, err, "filter for %s", a.ProductID)
	}

	colIdx := -1
	for i, c := range a.Columns {
		if c == column {
			colIdx = i
			break
		}
	}
	if colIdx == -1 {
		return nil, apperr.New(apperr.KindArtifactUnavailable,
			"filter column %q not present in artifact for %s", column, a.ProductID)
	}

	filtered := &Artifact{ProductID: a.ProductID, Columns: a.Columns}
	for _, row := range a.Rows {
		if colIdx < len(row) && row[colIdx] == value {
			filtered.Rows = append(filtered.Rows, row)
		}
	}
	return filtered, nil
}

func parseFilter(filter string) (column, value string, err error) {
	parts := strings.SplitN(filter, "==", 2)
	if len(parts) != 2 {
		return "", "", fmt.Errorf("malformed filter %q", filter)
	}
	column = strings.TrimSpace(parts[0])
	value = strings.TrimSpace(parts[1])
	value = strings.Trim(value, `'"`)
	if column == "" || value == "" {
		return "", "", fmt.Errorf("malformed filter %q", filter)
	}
	return column, value, nil
}
