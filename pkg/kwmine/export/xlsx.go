// Package export writes mining results to spreadsheet workbooks.
package export

import (
	"context"
	"fmt"
	"sort"

	"github.com/tealeg/xlsx/v2"

	"github.com/cognicore/kwmine/pkg/kwmine"
	"github.com/cognicore/kwmine/pkg/kwmine/classify"
	"github.com/cognicore/kwmine/pkg/kwmine/metrics"
)

// Sheet names used in exported workbooks.
const (
	OpportunitiesSheet = "Opportunities"
	NegativesSheet     = "Negatives"
)

var recommendationHeader = []string{
	"rank", "ngram", "size", "category", "reason", "query_count",
	"impressions", "clicks", "cost", "conversions", "conversion_value",
	"ctr", "cpc", "conv_rate", "cpa", "roas",
}

var aggregateHeader = []string{
	"ngram", "query_count", "impressions", "clicks", "cost", "conversions",
	"conversion_value", "ctr", "cpc", "conv_rate", "cpa", "roas",
}

// SizeSheet names the per-size aggregate sheet, e.g. "2-grams".
func SizeSheet(n int) string {
	return fmt.Sprintf("%d-grams", n)
}

// XLSXSink saves every result to Path, overwriting it.
type XLSXSink struct {
	Path string
	// MaxAggregateRows caps each per-size sheet; 0 writes every aggregate.
	MaxAggregateRows int
}

// Write implements kwmine.Sink.
func (s XLSXSink) Write(ctx context.Context, r kwmine.Result) error {
	f, err := Workbook(r, s.MaxAggregateRows)
	if err != nil {
		return err
	}
	if err := f.Save(s.Path); err != nil {
		return fmt.Errorf("save workbook %s: %w", s.Path, err)
	}
	return nil
}

// Workbook builds the workbook for r: both recommendation lists followed by
// one sheet per n-gram size, aggregates ordered by impressions desc.
func Workbook(r kwmine.Result, maxAggregateRows int) (*xlsx.File, error) {
	f := xlsx.NewFile()

	if err := addRecommendations(f, OpportunitiesSheet, r.Opportunities); err != nil {
		return nil, err
	}
	if err := addRecommendations(f, NegativesSheet, r.Negatives); err != nil {
		return nil, err
	}
	for _, n := range r.Sizes {
		if err := addAggregates(f, SizeSheet(n), r.Tables[n], maxAggregateRows); err != nil {
			return nil, err
		}
	}
	return f, nil
}

func addRecommendations(f *xlsx.File, name string, recs []classify.Recommendation) error {
	sheet, err := f.AddSheet(name)
	if err != nil {
		return fmt.Errorf("add sheet %s: %w", name, err)
	}
	addHeader(sheet, recommendationHeader)

	for i, rec := range recs {
		row := sheet.AddRow()
		row.AddCell().SetInt(i + 1)
		row.AddCell().SetString(rec.Text)
		row.AddCell().SetInt(rec.Size)
		row.AddCell().SetString(string(rec.Category))
		row.AddCell().SetString(rec.Reason)
		addStatCells(row, rec.Stat)
	}
	return nil
}

func addAggregates(f *xlsx.File, name string, table metrics.Table, limit int) error {
	sheet, err := f.AddSheet(name)
	if err != nil {
		return fmt.Errorf("add sheet %s: %w", name, err)
	}
	addHeader(sheet, aggregateHeader)

	stats := make([]metrics.Stat, 0, len(table))
	for _, st := range table {
		stats = append(stats, st)
	}
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Impressions != stats[j].Impressions {
			return stats[i].Impressions > stats[j].Impressions
		}
		return stats[i].Text < stats[j].Text
	})
	if limit > 0 && len(stats) > limit {
		stats = stats[:limit]
	}

	for _, st := range stats {
		row := sheet.AddRow()
		row.AddCell().SetString(st.Text)
		addStatCells(row, st)
	}
	return nil
}

func addHeader(sheet *xlsx.Sheet, cols []string) {
	row := sheet.AddRow()
	for _, c := range cols {
		row.AddCell().SetString(c)
	}
}

func addStatCells(row *xlsx.Row, st metrics.Stat) {
	row.AddCell().SetInt64(st.QueryCount)
	row.AddCell().SetInt64(st.Impressions)
	row.AddCell().SetInt64(st.Clicks)
	row.AddCell().SetFloat(st.Cost.InexactFloat64())
	row.AddCell().SetFloat(st.Conversions.InexactFloat64())
	row.AddCell().SetFloat(st.ConversionValue.InexactFloat64())
	row.AddCell().SetFloat(st.CTR)
	row.AddCell().SetFloat(st.CPC)
	row.AddCell().SetFloat(st.ConvRate)
	row.AddCell().SetFloat(st.CPA)
	row.AddCell().SetFloat(st.ROAS)
}
