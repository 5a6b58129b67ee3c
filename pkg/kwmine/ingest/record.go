package ingest

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/cognicore/kwmine/pkg/kwmine/internalerr"
)

// QueryRecord is one observed search query within a reporting window.
// Clicks may exceed impressions; the core does not reject that.
type QueryRecord struct {
	Text            string          `json:"query" csv:"query"`
	Campaign        string          `json:"campaign" csv:"campaign"`
	Impressions     int64           `json:"impressions" csv:"impressions"`
	Clicks          int64           `json:"clicks" csv:"clicks"`
	Cost            decimal.Decimal `json:"cost" csv:"cost"`
	Conversions     decimal.Decimal `json:"conversions" csv:"conversions"`
	ConversionValue decimal.Decimal `json:"conversion_value" csv:"conversion_value"`
}

// Validate checks that every metric is non-negative.
func (r *QueryRecord) Validate() error {
	if r.Impressions < 0 {
		return fmt.Errorf("%w: negative impressions for %q", internalerr.ErrInvalidInput, r.Text)
	}
	if r.Clicks < 0 {
		return fmt.Errorf("%w: negative clicks for %q", internalerr.ErrInvalidInput, r.Text)
	}
	if r.Cost.IsNegative() {
		return fmt.Errorf("%w: negative cost for %q", internalerr.ErrInvalidInput, r.Text)
	}
	if r.Conversions.IsNegative() {
		return fmt.Errorf("%w: negative conversions for %q", internalerr.ErrInvalidInput, r.Text)
	}
	if r.ConversionValue.IsNegative() {
		return fmt.Errorf("%w: negative conversion value for %q", internalerr.ErrInvalidInput, r.Text)
	}
	return nil
}
