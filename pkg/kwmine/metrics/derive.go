// Package metrics derives rate metrics from n-gram aggregates.
package metrics

import (
	"github.com/shopspring/decimal"

	"github.com/cognicore/kwmine/pkg/kwmine/aggregate"
)

// Derived holds the rate metrics of one aggregate. A rate whose
// denominator is zero is 0.
type Derived struct {
	CTR      float64 // clicks / impressions
	CPC      float64 // cost / clicks
	ConvRate float64 // conversions / clicks
	CPA      float64 // cost / conversions
	ROAS     float64 // conversion value / cost
}

// Derive computes the rate metrics of a. It never returns NaN or Inf.
func Derive(a aggregate.Aggregate) Derived {
	var d Derived
	if a.Impressions > 0 {
		d.CTR = float64(a.Clicks) / float64(a.Impressions)
	}
	if a.Clicks > 0 {
		clicks := decimal.NewFromInt(a.Clicks)
		d.CPC = a.Cost.Div(clicks).InexactFloat64()
		d.ConvRate = a.Conversions.Div(clicks).InexactFloat64()
	}
	if a.Conversions.IsPositive() {
		d.CPA = a.Cost.Div(a.Conversions).InexactFloat64()
	}
	if a.Cost.IsPositive() {
		d.ROAS = a.ConversionValue.Div(a.Cost).InexactFloat64()
	}
	return d
}

// Stat pairs an aggregate with its derived metrics.
type Stat struct {
	aggregate.Aggregate
	Derived
}

// Table maps n-gram text to its stat for one size.
type Table map[string]Stat

// Compute derives metrics for every aggregate in set.
func Compute(set aggregate.Set) Table {
	out := make(Table, len(set))
	for text, a := range set {
		out[text] = Stat{Aggregate: a, Derived: Derive(a)}
	}
	return out
}
