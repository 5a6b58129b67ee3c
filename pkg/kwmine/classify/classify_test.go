package classify

import (
	"fmt"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/cognicore/kwmine/pkg/kwmine/aggregate"
	"github.com/cognicore/kwmine/pkg/kwmine/metrics"
)

func stat(text string, size int, impr, clicks int64, cost, conv float64) metrics.Stat {
	a := aggregate.Aggregate{
		Text:        text,
		Size:        size,
		QueryCount:  1,
		Impressions: impr,
		Clicks:      clicks,
		Cost:        decimal.NewFromFloat(cost),
		Conversions: decimal.NewFromFloat(conv),
	}
	return metrics.Stat{Aggregate: a, Derived: metrics.Derive(a)}
}

func tables(stats ...metrics.Stat) map[int]metrics.Table {
	out := map[int]metrics.Table{}
	for _, s := range stats {
		if out[s.Size] == nil {
			out[s.Size] = metrics.Table{}
		}
		out[s.Size][s.Text] = s
	}
	return out
}

func baseThresholds() Thresholds {
	return Thresholds{
		MinImpressions:         50,
		MinClicks:              5,
		HighCTR:                0.05,
		LowCTR:                 0.01,
		HighConvRate:           0.1,
		TargetCPA:              0,
		ExpensiveCPAMultiplier: 2,
		MaxResults:             100,
	}
}

func find(recs []Recommendation, text string) (Recommendation, bool) {
	for _, r := range recs {
		if r.Text == text {
			return r, true
		}
	}
	return Recommendation{}, false
}

func TestLowCTRBoundaryNotNegative(t *testing.T) {
	th := baseThresholds()
	// ctr = 1/60 ≈ 0.0167 > 0.01
	rep := Classify(tables(stat("cheap shoes", 2, 60, 1, 2, 0)), th)

	if _, ok := find(rep.Negatives, "cheap shoes"); ok {
		t.Error("ctr above LowCTR must not be flagged negative")
	}
}

func TestLowCTRAtThresholdIsNegative(t *testing.T) {
	th := baseThresholds()
	rep := Classify(tables(stat("free shoes", 2, 100, 1, 2, 0)), th)

	r, ok := find(rep.Negatives, "free shoes")
	if !ok {
		t.Fatal("ctr == LowCTR should be flagged")
	}
	if r.Reason != ReasonLowCTR || r.Category != NegativeCandidate {
		t.Errorf("got %s / %s", r.Category, r.Reason)
	}
}

func TestHighCPANegative(t *testing.T) {
	th := baseThresholds()
	th.TargetCPA = 10
	th.ExpensiveCPAMultiplier = 2

	// ctr = 0.1 (not low), cpa = 25 > 20
	rep := Classify(tables(stat("luxury shoes", 2, 100, 10, 25, 1)), th)
	r, ok := find(rep.Negatives, "luxury shoes")
	if !ok {
		t.Fatal("expected High CPA negative")
	}
	if r.Reason != ReasonHighCPA {
		t.Errorf("reason = %q, want %q", r.Reason, ReasonHighCPA)
	}
}

func TestLowCTRTakesPrecedenceOverHighCPA(t *testing.T) {
	th := baseThresholds()
	th.TargetCPA = 10

	// ctr = 0.005, cpa = 25
	rep := Classify(tables(stat("shoe glue", 1, 1000, 5, 25, 1)), th)
	r, ok := find(rep.Negatives, "shoe glue")
	if !ok {
		t.Fatal("expected negative")
	}
	if r.Reason != ReasonLowCTR {
		t.Errorf("reason = %q, want %q", r.Reason, ReasonLowCTR)
	}
}

func TestTargetCPAZeroDisablesCPACheck(t *testing.T) {
	th := baseThresholds()
	th.TargetCPA = 0

	rep := Classify(tables(stat("luxury shoes", 2, 100, 10, 500, 1)), th)
	if _, ok := find(rep.Negatives, "luxury shoes"); ok {
		t.Error("TargetCPA=0 must disable CPA negatives")
	}
}

func TestOpportunityReasons(t *testing.T) {
	th := baseThresholds()

	rep := Classify(tables(
		stat("both", 1, 100, 10, 10, 2),      // ctr 0.1, conv 0.2
		stat("ctronly", 1, 100, 10, 10, 0),   // ctr 0.1, conv 0
		stat("convonly", 1, 1000, 20, 10, 5), // ctr 0.02, conv 0.25
	), th)

	want := map[string]string{
		"both":     ReasonHighConvRate,
		"ctronly":  ReasonHighCTR,
		"convonly": ReasonHighConvRate,
	}
	for text, reason := range want {
		r, ok := find(rep.Opportunities, text)
		if !ok {
			t.Errorf("%s: missing opportunity", text)
			continue
		}
		if r.Reason != reason || r.Category != KeywordOpportunity {
			t.Errorf("%s: got %s / %q, want %q", text, r.Category, r.Reason, reason)
		}
	}
}

func TestOpportunityRequiresMinClicks(t *testing.T) {
	th := baseThresholds()
	rep := Classify(tables(stat("rare", 1, 60, 4, 1, 2)), th) // ctr and conv high, clicks < 5

	if _, ok := find(rep.Opportunities, "rare"); ok {
		t.Error("clicks below MinClicks must not be an opportunity")
	}
}

func TestVolumeFloorExcludesEverything(t *testing.T) {
	th := baseThresholds()
	th.TargetCPA = 1
	// would be negative (ctr 0) and expensive, but impressions < 50
	rep := Classify(tables(stat("tiny", 1, 49, 0, 100, 0), stat("tiny2", 1, 10, 10, 100, 10)), th)

	if len(rep.Opportunities) != 0 || len(rep.Negatives) != 0 {
		t.Errorf("expected empty report, got %+v", rep)
	}
}

func TestSameNGramInBothLists(t *testing.T) {
	th := baseThresholds()
	th.TargetCPA = 5
	th.ExpensiveCPAMultiplier = 2

	// ctr 0.2 → opportunity; cpa 60/3 = 20 > 10 → negative
	rep := Classify(tables(stat("designer shoes", 2, 100, 20, 60, 3)), th)

	if _, ok := find(rep.Opportunities, "designer shoes"); !ok {
		t.Error("expected opportunity")
	}
	if _, ok := find(rep.Negatives, "designer shoes"); !ok {
		t.Error("expected negative")
	}
}

func TestSortingAndCap(t *testing.T) {
	th := baseThresholds()
	th.MaxResults = 5

	var stats []metrics.Stat
	for i := 0; i < 12; i++ {
		// opportunities: ctr 0.1, conversions vary
		stats = append(stats, stat(fmt.Sprintf("opp%02d", i), 1, 100, 10, float64(i), float64(i%7)))
		// negatives: ctr 0, cost varies
		stats = append(stats, stat(fmt.Sprintf("neg%02d", i), 2, 100, 0, float64((i*7)%12), 0))
	}
	rep := Classify(tables(stats...), th)

	if len(rep.Opportunities) != 5 || len(rep.Negatives) != 5 {
		t.Fatalf("lists not capped: %d / %d", len(rep.Opportunities), len(rep.Negatives))
	}
	for i := 1; i < len(rep.Opportunities); i++ {
		if rep.Opportunities[i-1].Conversions.LessThan(rep.Opportunities[i].Conversions) {
			t.Errorf("opportunities not sorted by conversions desc at %d", i)
		}
	}
	for i := 1; i < len(rep.Negatives); i++ {
		if rep.Negatives[i-1].Cost.LessThan(rep.Negatives[i].Cost) {
			t.Errorf("negatives not sorted by cost desc at %d", i)
		}
	}
	if rep.Negatives[0].Cost.IntPart() != 11 {
		t.Errorf("top negative cost = %s, want 11", rep.Negatives[0].Cost)
	}
}

func TestTieBreakDeterministic(t *testing.T) {
	th := baseThresholds()
	rep := Classify(tables(
		stat("b", 1, 100, 10, 1, 1),
		stat("a", 1, 100, 10, 1, 1),
		stat("a b", 2, 100, 10, 1, 1),
	), th)

	var got []string
	for _, r := range rep.Opportunities {
		got = append(got, r.Text)
	}
	want := []string{"a", "a b", "b"}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("order = %v, want %v", got, want)
	}
}

func TestDefaultMaxResults(t *testing.T) {
	th := baseThresholds()
	th.MaxResults = 0

	var stats []metrics.Stat
	for i := 0; i < DefaultMaxResults+20; i++ {
		stats = append(stats, stat(fmt.Sprintf("n%03d", i), 1, 100, 0, 1, 0))
	}
	rep := Classify(tables(stats...), th)
	if len(rep.Negatives) != DefaultMaxResults {
		t.Errorf("negatives = %d, want %d", len(rep.Negatives), DefaultMaxResults)
	}
}

func TestClassifyEmpty(t *testing.T) {
	rep := Classify(nil, baseThresholds())
	if len(rep.Opportunities) != 0 || len(rep.Negatives) != 0 {
		t.Errorf("expected empty report, got %+v", rep)
	}
}

func TestClassifyDoesNotMutateInput(t *testing.T) {
	in := tables(stat("shoes", 1, 100, 0, 5, 0))
	before := in[1]["shoes"]
	Classify(in, baseThresholds())
	if !in[1]["shoes"].Aggregate.Equal(before.Aggregate) || in[1]["shoes"].Derived != before.Derived {
		t.Error("Classify mutated its input")
	}
}
