package memstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cognicore/kwmine/pkg/kwmine"
	"github.com/cognicore/kwmine/pkg/kwmine/classify"
	"github.com/cognicore/kwmine/pkg/kwmine/config"
	"github.com/cognicore/kwmine/pkg/kwmine/ingest"
	"github.com/cognicore/kwmine/pkg/kwmine/internalerr"
	"github.com/cognicore/kwmine/pkg/kwmine/store"
)

var _ store.Store = (*Store)(nil)

func runAt(t *testing.T, at time.Time) kwmine.Result {
	t.Helper()
	cfg := config.Default()
	cfg.NGramSizes = []int{1, 2}
	cfg.MinImpressions = 10
	cfg.MinClicks = 1

	records := []ingest.QueryRecord{
		{Text: "cheap shoes", Impressions: 500, Clicks: 1, Cost: decimal.NewFromInt(9)},
		{Text: "red shoes", Impressions: 100, Clicks: 20, Cost: decimal.NewFromInt(10), Conversions: decimal.NewFromInt(4)},
	}
	res, err := kwmine.New(kwmine.Options{Config: cfg, Now: func() time.Time { return at }}).Run(context.Background(), records)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	return res
}

func TestSaveAndQuery(t *testing.T) {
	s := New()
	ctx := context.Background()
	res := runAt(t, time.Now())

	if err := store.AsSink(s).Write(ctx, res); err != nil {
		t.Fatalf("Write: %v", err)
	}

	run, err := s.GetRun(ctx, res.RunID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if run.Records != 2 || run.Opportunities != len(res.Opportunities) || run.Negatives != len(res.Negatives) {
		t.Errorf("run = %+v", run)
	}

	negs, err := s.Recommendations(ctx, res.RunID, classify.NegativeCandidate)
	if err != nil {
		t.Fatalf("Recommendations: %v", err)
	}
	if len(negs) == 0 || negs[0].Rank != 1 || negs[0].Category != classify.NegativeCandidate {
		t.Errorf("negatives = %+v", negs)
	}

	stats, err := s.Aggregates(ctx, res.RunID, 1, 2)
	if err != nil {
		t.Fatalf("Aggregates: %v", err)
	}
	if len(stats) != 2 || stats[0].Text != "shoes" || stats[1].Text != "cheap" {
		t.Errorf("aggregates = %+v", stats)
	}
}

func TestListRunsOrder(t *testing.T) {
	s := New()
	ctx := context.Background()
	base := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	older := runAt(t, base)
	newer := runAt(t, base.Add(time.Hour))
	for _, r := range []kwmine.Result{older, newer} {
		if err := s.SaveRun(ctx, r); err != nil {
			t.Fatalf("SaveRun: %v", err)
		}
	}

	runs, err := s.ListRuns(ctx, 0)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 2 || runs[0].ID != newer.RunID {
		t.Errorf("runs = %+v", runs)
	}
	if runs, _ := s.ListRuns(ctx, 1); len(runs) != 1 {
		t.Errorf("limit ignored: %d", len(runs))
	}
}

func TestNotFoundAndInvalid(t *testing.T) {
	s := New()
	ctx := context.Background()

	if _, err := s.GetRun(ctx, "nope"); !errors.Is(err, internalerr.ErrNotFound) {
		t.Errorf("GetRun: %v", err)
	}
	if _, err := s.Recommendations(ctx, "nope", classify.KeywordOpportunity); !errors.Is(err, internalerr.ErrNotFound) {
		t.Errorf("Recommendations: %v", err)
	}
	if _, err := s.Aggregates(ctx, "nope", 1, 0); !errors.Is(err, internalerr.ErrNotFound) {
		t.Errorf("Aggregates: %v", err)
	}
	if err := s.SaveRun(ctx, kwmine.Result{}); !errors.Is(err, internalerr.ErrInvalidInput) {
		t.Errorf("SaveRun empty id: %v", err)
	}
}

func TestReturnedSlicesAreCopies(t *testing.T) {
	s := New()
	ctx := context.Background()
	res := runAt(t, time.Now())
	if err := s.SaveRun(ctx, res); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}

	negs, _ := s.Recommendations(ctx, res.RunID, classify.NegativeCandidate)
	if len(negs) == 0 {
		t.Fatal("expected negatives")
	}
	negs[0].Reason = "tampered"

	again, _ := s.Recommendations(ctx, res.RunID, classify.NegativeCandidate)
	if again[0].Reason == "tampered" {
		t.Error("store exposed internal slice")
	}
}
