package store

import (
	"context"
	"time"

	"github.com/cognicore/kwmine/pkg/kwmine"
	"github.com/cognicore/kwmine/pkg/kwmine/classify"
	"github.com/cognicore/kwmine/pkg/kwmine/config"
	"github.com/cognicore/kwmine/pkg/kwmine/metrics"
)

// Store persists mining runs so reports can be produced later
type Store interface {
	Close() error

	// SaveRun persists the result, its recommendations and every aggregate.
	SaveRun(ctx context.Context, r kwmine.Result) error
	GetRun(ctx context.Context, id string) (Run, error)
	// ListRuns returns runs newest first; limit <= 0 returns all.
	ListRuns(ctx context.Context, limit int) ([]Run, error)

	// Recommendations returns one list of a run in rank order.
	Recommendations(ctx context.Context, runID string, cat classify.Category) ([]Recommendation, error)
	// Aggregates returns the stats of one size ordered by impressions desc,
	// then text; limit <= 0 returns all.
	Aggregates(ctx context.Context, runID string, size int, limit int) ([]metrics.Stat, error)
}

// Run summarizes a stored mining run
type Run struct {
	ID            string
	CreatedAt     time.Time
	Records       int
	Sizes         []int
	Opportunities int
	Negatives     int
	Config        config.Config
}

// Recommendation is a stored recommendation with its 1-based rank.
type Recommendation struct {
	RunID string
	Rank  int
	classify.Recommendation
}

// RunFromResult builds the summary row of r.
func RunFromResult(r kwmine.Result) Run {
	sizes := make([]int, len(r.Sizes))
	copy(sizes, r.Sizes)
	return Run{
		ID:            r.RunID,
		CreatedAt:     r.CreatedAt,
		Records:       r.Records,
		Sizes:         sizes,
		Opportunities: len(r.Opportunities),
		Negatives:     len(r.Negatives),
		Config:        r.Config,
	}
}

// AsSink adapts a Store to kwmine.Sink.
func AsSink(s Store) kwmine.Sink {
	return kwmine.SinkFunc(s.SaveRun)
}
