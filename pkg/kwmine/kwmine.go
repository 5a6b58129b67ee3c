package kwmine

import (
	"context"
	"crypto/rand"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/cognicore/kwmine/pkg/kwmine/aggregate"
	"github.com/cognicore/kwmine/pkg/kwmine/classify"
	"github.com/cognicore/kwmine/pkg/kwmine/config"
	"github.com/cognicore/kwmine/pkg/kwmine/ingest"
	"github.com/cognicore/kwmine/pkg/kwmine/metrics"
)

// Feed supplies the query records of one run.
type Feed interface {
	Records(ctx context.Context) ([]ingest.QueryRecord, error)
}

// Sink consumes a finished run.
type Sink interface {
	Write(ctx context.Context, r Result) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, r Result) error

// Write calls f.
func (f SinkFunc) Write(ctx context.Context, r Result) error { return f(ctx, r) }

// Result is the output bundle of one run.
type Result struct {
	RunID     string
	CreatedAt time.Time
	Config    config.Config
	Records   int
	// Sizes lists the distinct n-gram sizes in ascending order.
	Sizes         []int
	Tables        map[int]metrics.Table
	Opportunities []classify.Recommendation
	Negatives     []classify.Recommendation
}

// Options configures a Miner
type Options struct {
	Config config.Config
	Logger *zap.Logger      // nil means no logging
	Now    func() time.Time // nil means time.Now
}

// Miner runs the n-gram keyword mining pipeline
type Miner struct {
	cfg config.Config
	log *zap.Logger
	now func() time.Time

	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

// New creates a Miner. The config is validated on every run.
func New(opts Options) *Miner {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Miner{
		cfg:     opts.Config,
		log:     log,
		now:     now,
		entropy: ulid.Monotonic(rand.Reader, 0),
	}
}

// Analyze runs a single mining pass with cfg and no logging.
func Analyze(ctx context.Context, records []ingest.QueryRecord, cfg config.Config) (Result, error) {
	return New(Options{Config: cfg}).Run(ctx, records)
}

// Run aggregates records for every configured size, derives metrics and
// classifies the union of all sizes once. A configuration error aborts
// before any aggregation.
func (m *Miner) Run(ctx context.Context, records []ingest.QueryRecord) (Result, error) {
	cfg := m.cfg
	if err := cfg.Validate(); err != nil {
		return Result{}, err
	}

	tokenizer := ingest.NewTokenizer(cfg.Stoplist().All())
	sizes := cfg.Sizes()
	tables := make(map[int]metrics.Table, len(sizes))

	for _, n := range sizes {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		set, err := aggregate.Build(ctx, tokenizer, records, aggregate.Options{
			Size:           n,
			DedupePerQuery: cfg.DedupePerQuery,
			Workers:        cfg.Workers,
		})
		if err != nil {
			return Result{}, fmt.Errorf("aggregate %d-grams: %w", n, err)
		}
		tables[n] = metrics.Compute(set)
		m.log.Debug("aggregated n-grams", zap.Int("size", n), zap.Int("distinct", len(set)))
	}

	rep := classify.Classify(tables, cfg.Thresholds())

	created := m.now().UTC()
	res := Result{
		RunID:         m.newID(created),
		CreatedAt:     created,
		Config:        cfg,
		Records:       len(records),
		Sizes:         sizes,
		Tables:        tables,
		Opportunities: rep.Opportunities,
		Negatives:     rep.Negatives,
	}

	m.log.Info("mining run complete",
		zap.String("run_id", res.RunID),
		zap.Int("records", res.Records),
		zap.Ints("sizes", sizes),
		zap.Int("opportunities", len(res.Opportunities)),
		zap.Int("negatives", len(res.Negatives)),
	)
	return res, nil
}

// Process pulls records from feed, runs the pipeline and hands the result
// to each sink in order. The first sink error aborts.
func (m *Miner) Process(ctx context.Context, feed Feed, sinks ...Sink) (Result, error) {
	if err := m.cfg.Validate(); err != nil {
		return Result{}, err
	}

	records, err := feed.Records(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("read feed: %w", err)
	}

	res, err := m.Run(ctx, records)
	if err != nil {
		return Result{}, err
	}

	for i, s := range sinks {
		if err := s.Write(ctx, res); err != nil {
			return res, fmt.Errorf("write sink %d: %w", i, err)
		}
	}
	return res, nil
}

func (m *Miner) newID(t time.Time) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(t), m.entropy).String()
}
