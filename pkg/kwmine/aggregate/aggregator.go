package aggregate

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/cognicore/kwmine/pkg/kwmine/ingest"
)

// ctxCheckEvery is how many records a worker folds between context checks.
const ctxCheckEvery = 1024

// Aggregate holds the summed exposure metrics of one n-gram text at one size.
type Aggregate struct {
	Text            string
	Size            int
	QueryCount      int64
	Impressions     int64
	Clicks          int64
	Cost            decimal.Decimal
	Conversions     decimal.Decimal
	ConversionValue decimal.Decimal
}

func (a *Aggregate) addRecord(r *ingest.QueryRecord) {
	a.QueryCount++
	a.Impressions += r.Impressions
	a.Clicks += r.Clicks
	a.Cost = a.Cost.Add(r.Cost)
	a.Conversions = a.Conversions.Add(r.Conversions)
	a.ConversionValue = a.ConversionValue.Add(r.ConversionValue)
}

func (a *Aggregate) merge(o *Aggregate) {
	a.QueryCount += o.QueryCount
	a.Impressions += o.Impressions
	a.Clicks += o.Clicks
	a.Cost = a.Cost.Add(o.Cost)
	a.Conversions = a.Conversions.Add(o.Conversions)
	a.ConversionValue = a.ConversionValue.Add(o.ConversionValue)
}

// Equal reports whether two aggregates carry the same key and sums.
// Decimal fields are compared by value, so 1.50 equals 1.5.
func (a Aggregate) Equal(o Aggregate) bool {
	return a.Text == o.Text &&
		a.Size == o.Size &&
		a.QueryCount == o.QueryCount &&
		a.Impressions == o.Impressions &&
		a.Clicks == o.Clicks &&
		a.Cost.Equal(o.Cost) &&
		a.Conversions.Equal(o.Conversions) &&
		a.ConversionValue.Equal(o.ConversionValue)
}

// Set maps n-gram text to its aggregate for a single size.
type Set map[string]Aggregate

// Sorted returns the aggregates ordered by text.
func (s Set) Sorted() []Aggregate {
	out := make([]Aggregate, 0, len(s))
	for _, a := range s {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Text < out[j].Text })
	return out
}

// Aggregator folds query records into per-n-gram totals for one size.
// It is not safe for concurrent use; use Build for parallel folding.
type Aggregator struct {
	tokenizer *ingest.Tokenizer
	size      int
	dedupe    bool
	records   int64
	aggs      map[string]*Aggregate
}

// NewAggregator creates an empty aggregator for n-grams of the given size.
// With dedupePerQuery set, an n-gram repeated inside one query is credited
// once for that query instead of once per occurrence.
func NewAggregator(tokenizer *ingest.Tokenizer, size int, dedupePerQuery bool) *Aggregator {
	return &Aggregator{
		tokenizer: tokenizer,
		size:      size,
		dedupe:    dedupePerQuery,
		aggs:      make(map[string]*Aggregate),
	}
}

// Add consumes one query record.
func (a *Aggregator) Add(r ingest.QueryRecord) {
	a.records++

	grams := ingest.NGrams(a.tokenizer.Tokenize(r.Text), a.size)
	if len(grams) == 0 {
		return
	}

	var seen map[string]struct{}
	if a.dedupe {
		seen = make(map[string]struct{}, len(grams))
	}
	for _, g := range grams {
		if seen != nil {
			if _, ok := seen[g]; ok {
				continue
			}
			seen[g] = struct{}{}
		}
		agg, ok := a.aggs[g]
		if !ok {
			agg = &Aggregate{Text: g, Size: a.size}
			a.aggs[g] = agg
		}
		agg.addRecord(&r)
	}
}

// Merge folds other's totals into a. Both must count the same size.
func (a *Aggregator) Merge(other *Aggregator) {
	a.records += other.records
	for text, o := range other.aggs {
		agg, ok := a.aggs[text]
		if !ok {
			cp := *o
			a.aggs[text] = &cp
			continue
		}
		agg.merge(o)
	}
}

// Len returns the number of distinct n-grams seen so far.
func (a *Aggregator) Len() int { return len(a.aggs) }

// Records returns the number of records consumed, including those that
// produced no n-grams.
func (a *Aggregator) Records() int64 { return a.records }

// Snapshot returns a copy of the accumulated aggregates.
func (a *Aggregator) Snapshot() Set {
	out := make(Set, len(a.aggs))
	for text, agg := range a.aggs {
		out[text] = *agg
	}
	return out
}

// Options controls Build.
type Options struct {
	Size           int
	DedupePerQuery bool
	// Workers > 1 splits records into that many partitions folded in
	// parallel and merged afterwards. Results match sequential folding.
	Workers int
}

// Build aggregates all records for one n-gram size.
func Build(ctx context.Context, tokenizer *ingest.Tokenizer, records []ingest.QueryRecord, opts Options) (Set, error) {
	workers := opts.Workers
	if workers > len(records) {
		workers = len(records)
	}
	if workers <= 1 {
		agg := NewAggregator(tokenizer, opts.Size, opts.DedupePerQuery)
		for i, r := range records {
			if i%ctxCheckEvery == 0 {
				if err := ctx.Err(); err != nil {
					return nil, err
				}
			}
			agg.Add(r)
		}
		return agg.Snapshot(), nil
	}

	parts := make([]*Aggregator, workers)
	chunk := (len(records) + workers - 1) / workers

	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		lo := w * chunk
		hi := lo + chunk
		if hi > len(records) {
			hi = len(records)
		}
		part := NewAggregator(tokenizer, opts.Size, opts.DedupePerQuery)
		parts[w] = part
		if lo >= hi {
			continue
		}
		batch := records[lo:hi]
		g.Go(func() error {
			for i, r := range batch {
				if i%ctxCheckEvery == 0 {
					if err := gctx.Err(); err != nil {
						return err
					}
				}
				part.Add(r)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := parts[0]
	for _, p := range parts[1:] {
		merged.Merge(p)
	}
	return merged.Snapshot(), nil
}
