package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/cognicore/kwmine/pkg/kwmine"
	"github.com/cognicore/kwmine/pkg/kwmine/classify"
	"github.com/cognicore/kwmine/pkg/kwmine/internalerr"
	"github.com/cognicore/kwmine/pkg/kwmine/metrics"
	"github.com/cognicore/kwmine/pkg/kwmine/store"
)

// Store is an in-memory implementation of store.Store for tests.
type Store struct {
	mu     sync.RWMutex
	runs   map[string]store.Run
	recs   map[string]map[classify.Category][]store.Recommendation
	tables map[string]map[int][]metrics.Stat
}

// New creates a new in-memory store.
func New() *Store {
	return &Store{
		runs:   make(map[string]store.Run),
		recs:   make(map[string]map[classify.Category][]store.Recommendation),
		tables: make(map[string]map[int][]metrics.Stat),
	}
}

// Close implements store.Store.
func (s *Store) Close() error { return nil }

// SaveRun implements store.Store. Saving the same run ID again replaces it.
func (s *Store) SaveRun(ctx context.Context, r kwmine.Result) error {
	if r.RunID == "" {
		return fmt.Errorf("%w: empty run id", internalerr.ErrInvalidInput)
	}

	recs := map[classify.Category][]store.Recommendation{
		classify.KeywordOpportunity: ranked(r.RunID, r.Opportunities),
		classify.NegativeCandidate:  ranked(r.RunID, r.Negatives),
	}
	tables := make(map[int][]metrics.Stat, len(r.Tables))
	for size, table := range r.Tables {
		stats := make([]metrics.Stat, 0, len(table))
		for _, st := range table {
			stats = append(stats, st)
		}
		sortStats(stats)
		tables[size] = stats
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[r.RunID] = store.RunFromResult(r)
	s.recs[r.RunID] = recs
	s.tables[r.RunID] = tables
	return nil
}

// GetRun implements store.Store.
func (s *Store) GetRun(ctx context.Context, id string) (store.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[id]
	if !ok {
		return store.Run{}, internalerr.ErrNotFound
	}
	return run, nil
}

// ListRuns implements store.Store.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]store.Run, error) {
	s.mu.RLock()
	out := make([]store.Run, 0, len(s.runs))
	for _, r := range s.runs {
		out = append(out, r)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Recommendations implements store.Store.
func (s *Store) Recommendations(ctx context.Context, runID string, cat classify.Category) ([]store.Recommendation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	byCat, ok := s.recs[runID]
	if !ok {
		return nil, internalerr.ErrNotFound
	}
	src := byCat[cat]
	out := make([]store.Recommendation, len(src))
	copy(out, src)
	return out, nil
}

// Aggregates implements store.Store.
func (s *Store) Aggregates(ctx context.Context, runID string, size int, limit int) ([]metrics.Stat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	bySize, ok := s.tables[runID]
	if !ok {
		return nil, internalerr.ErrNotFound
	}
	src := bySize[size]
	if limit > 0 && len(src) > limit {
		src = src[:limit]
	}
	out := make([]metrics.Stat, len(src))
	copy(out, src)
	return out, nil
}

func ranked(runID string, recs []classify.Recommendation) []store.Recommendation {
	out := make([]store.Recommendation, len(recs))
	for i, r := range recs {
		out[i] = store.Recommendation{RunID: runID, Rank: i + 1, Recommendation: r}
	}
	return out
}

func sortStats(stats []metrics.Stat) {
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Impressions != stats[j].Impressions {
			return stats[i].Impressions > stats[j].Impressions
		}
		return stats[i].Text < stats[j].Text
	})
}
