package classify

import (
	"sort"

	"github.com/cognicore/kwmine/pkg/kwmine/metrics"
)

// DefaultMaxResults caps each recommendation list when Thresholds.MaxResults is 0.
const DefaultMaxResults = 100

// Category labels which list a recommendation belongs to.
type Category string

const (
	KeywordOpportunity Category = "KEYWORD_OPPORTUNITY"
	NegativeCandidate  Category = "NEGATIVE_CANDIDATE"
)

// Reasons attached to recommendations.
const (
	ReasonHighConvRate = "High conversion rate"
	ReasonHighCTR      = "High CTR"
	ReasonLowCTR       = "Low CTR"
	ReasonHighCPA      = "High CPA"
)

// Thresholds defines the classification criteria
type Thresholds struct {
	MinImpressions int64   // volume floor for both lists
	MinClicks      int64   // additional floor for opportunities
	HighCTR        float64 // ctr >= HighCTR qualifies an opportunity
	LowCTR         float64 // ctr <= LowCTR qualifies a negative
	HighConvRate   float64 // convRate >= HighConvRate qualifies an opportunity
	// TargetCPA of 0 disables CPA-based negatives.
	TargetCPA              float64
	ExpensiveCPAMultiplier float64
	MaxResults             int
}

// Recommendation is a classified, ranked aggregate.
type Recommendation struct {
	Category Category
	Reason   string
	metrics.Stat
}

// Report holds both recommendation lists of one classification pass.
type Report struct {
	Opportunities []Recommendation
	Negatives     []Recommendation
}

// Classify evaluates every stat of every size against t and returns the
// sorted, capped lists. Opportunity and negative conditions are evaluated
// independently, so one n-gram may appear in both lists. tables is not
// modified.
func Classify(tables map[int]metrics.Table, t Thresholds) Report {
	var rep Report

	for _, table := range tables {
		for _, s := range table {
			if s.Impressions < t.MinImpressions {
				continue
			}
			if reason, ok := opportunity(s, t); ok {
				rep.Opportunities = append(rep.Opportunities, Recommendation{
					Category: KeywordOpportunity,
					Reason:   reason,
					Stat:     s,
				})
			}
			if reason, ok := negative(s, t); ok {
				rep.Negatives = append(rep.Negatives, Recommendation{
					Category: NegativeCandidate,
					Reason:   reason,
					Stat:     s,
				})
			}
		}
	}

	sort.Slice(rep.Opportunities, func(i, j int) bool {
		a, b := rep.Opportunities[i], rep.Opportunities[j]
		if c := a.Conversions.Cmp(b.Conversions); c != 0 {
			return c > 0
		}
		return tieBreak(a, b)
	})
	sort.Slice(rep.Negatives, func(i, j int) bool {
		a, b := rep.Negatives[i], rep.Negatives[j]
		if c := a.Cost.Cmp(b.Cost); c != 0 {
			return c > 0
		}
		return tieBreak(a, b)
	})

	limit := t.MaxResults
	if limit <= 0 {
		limit = DefaultMaxResults
	}
	if len(rep.Opportunities) > limit {
		rep.Opportunities = rep.Opportunities[:limit]
	}
	if len(rep.Negatives) > limit {
		rep.Negatives = rep.Negatives[:limit]
	}
	return rep
}

func opportunity(s metrics.Stat, t Thresholds) (string, bool) {
	if s.Clicks < t.MinClicks {
		return "", false
	}
	// conversion rate wins when both qualify
	if s.ConvRate >= t.HighConvRate {
		return ReasonHighConvRate, true
	}
	if s.CTR >= t.HighCTR {
		return ReasonHighCTR, true
	}
	return "", false
}

func negative(s metrics.Stat, t Thresholds) (string, bool) {
	if s.CTR <= t.LowCTR {
		return ReasonLowCTR, true
	}
	if t.TargetCPA > 0 && s.CPA > t.TargetCPA*t.ExpensiveCPAMultiplier {
		return ReasonHighCPA, true
	}
	return "", false
}

func tieBreak(a, b Recommendation) bool {
	if a.Text != b.Text {
		return a.Text < b.Text
	}
	return a.Size < b.Size
}
