package feed

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/cognicore/kwmine/pkg/kwmine/ingest"
)

const maxLineBytes = 1 << 20

// readJSONL decodes one record per line. Malformed lines are skipped.
func readJSONL(ctx context.Context, f *os.File, log *zap.Logger) ([]ingest.QueryRecord, error) {
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), maxLineBytes)

	var records []ingest.QueryRecord
	line := 0
	for sc.Scan() {
		line++
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}

		var r ingest.QueryRecord
		if err := json.Unmarshal([]byte(text), &r); err != nil {
			log.Warn("skipping malformed JSON line", zap.Int("line", line), zap.Error(err))
			continue
		}
		records = append(records, r)
	}
	return records, sc.Err()
}
