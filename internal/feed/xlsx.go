package feed

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/tealeg/xlsx/v2"

	"github.com/cognicore/kwmine/pkg/kwmine/ingest"
)

// readXLSX reads the first sheet; row one is the header, using the same
// column names as the CSV format.
func readXLSX(ctx context.Context, path string) ([]ingest.QueryRecord, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open feed %s: %w", path, err)
	}
	if len(f.Sheets) == 0 || len(f.Sheets[0].Rows) == 0 {
		return nil, nil
	}
	rows := f.Sheets[0].Rows

	cols := make(map[string]int)
	for i, c := range rows[0].Cells {
		cols[strings.ToLower(strings.TrimSpace(c.String()))] = i
	}
	if _, ok := cols["query"]; !ok {
		return nil, fmt.Errorf("read feed %s: missing query column", path)
	}

	var records []ingest.QueryRecord
	for n, row := range rows[1:] {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		cell := func(name string) string {
			i, ok := cols[name]
			if !ok || i >= len(row.Cells) {
				return ""
			}
			return strings.TrimSpace(row.Cells[i].String())
		}

		r := ingest.QueryRecord{
			Text:     cell("query"),
			Campaign: cell("campaign"),
		}
		if r.Text == "" {
			continue
		}
		if r.Impressions, err = parseInt(cell("impressions")); err != nil {
			return nil, fmt.Errorf("read feed %s row %d: impressions: %w", path, n+2, err)
		}
		if r.Clicks, err = parseInt(cell("clicks")); err != nil {
			return nil, fmt.Errorf("read feed %s row %d: clicks: %w", path, n+2, err)
		}
		if r.Cost, err = parseDecimal(cell("cost")); err != nil {
			return nil, fmt.Errorf("read feed %s row %d: cost: %w", path, n+2, err)
		}
		if r.Conversions, err = parseDecimal(cell("conversions")); err != nil {
			return nil, fmt.Errorf("read feed %s row %d: conversions: %w", path, n+2, err)
		}
		if r.ConversionValue, err = parseDecimal(cell("conversion_value")); err != nil {
			return nil, fmt.Errorf("read feed %s row %d: conversion_value: %w", path, n+2, err)
		}
		records = append(records, r)
	}
	return records, nil
}

func parseInt(s string) (int64, error) {
	if s == "" {
		return 0, nil
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, nil
	}
	// spreadsheets often store counts as floats ("120.0")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, err
	}
	return d.IntPart(), nil
}

func parseDecimal(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}
