package feed

import (
	"context"
	"encoding/csv"
	"errors"
	"io"
	"os"
	"strings"

	"github.com/jszwec/csvutil"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/cognicore/kwmine/pkg/kwmine/ingest"
)

// readCSV decodes a headered CSV file; columns are matched by the csv tags
// of ingest.QueryRecord and unknown columns are ignored.
func readCSV(ctx context.Context, f *os.File, log *zap.Logger) ([]ingest.QueryRecord, error) {
	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	dec, err := csvutil.NewDecoder(r)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, err
	}
	dec.WithUnmarshalers(blankAsZero)

	var records []ingest.QueryRecord
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var rec ingest.QueryRecord
		err := dec.Decode(&rec)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var decErr *csvutil.DecodeError
			if errors.As(err, &decErr) {
				log.Warn("skipping malformed CSV row", zap.Int("line", decErr.Line), zap.Error(err))
				continue
			}
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

// blankAsZero parses number cells like the XLSX reader, so empty cells
// decode as 0.
var blankAsZero = csvutil.NewUnmarshalers(
	csvutil.UnmarshalFunc(func(data []byte, v *int64) error {
		n, err := parseInt(strings.TrimSpace(string(data)))
		if err != nil {
			return err
		}
		*v = n
		return nil
	}),
	csvutil.UnmarshalFunc(func(data []byte, v *decimal.Decimal) error {
		d, err := parseDecimal(strings.TrimSpace(string(data)))
		if err != nil {
			return err
		}
		*v = d
		return nil
	}),
)
