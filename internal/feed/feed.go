// Package feed loads query performance records from exported report files.
package feed

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/cognicore/kwmine/pkg/kwmine/ingest"
)

// Format identifies a report file encoding.
type Format string

const (
	FormatJSONL Format = "jsonl"
	FormatCSV   Format = "csv"
	FormatXLSX  Format = "xlsx"
)

// DetectFormat guesses the format from the file extension.
func DetectFormat(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jsonl", ".ndjson", ".json":
		return FormatJSONL, nil
	case ".csv":
		return FormatCSV, nil
	case ".xlsx":
		return FormatXLSX, nil
	}
	return "", fmt.Errorf("unknown feed format for %s", path)
}

// Source reads records from one report file. It implements kwmine.Feed.
type Source struct {
	Path   string
	Format Format // empty means DetectFormat(Path)
	// Campaigns keeps only records of these campaigns (case-insensitive);
	// empty keeps everything.
	Campaigns []string
	// Limit truncates the feed after that many accepted records; 0 means no limit.
	Limit  int
	Logger *zap.Logger
}

// Records loads, validates and filters the file's records. Rows failing
// validation are skipped with a warning.
func (s *Source) Records(ctx context.Context) ([]ingest.QueryRecord, error) {
	log := s.Logger
	if log == nil {
		log = zap.NewNop()
	}

	format := s.Format
	if format == "" {
		f, err := DetectFormat(s.Path)
		if err != nil {
			return nil, err
		}
		format = f
	}

	var (
		raw []ingest.QueryRecord
		err error
	)
	switch format {
	case FormatJSONL:
		raw, err = s.readFile(ctx, log, readJSONL)
	case FormatCSV:
		raw, err = s.readFile(ctx, log, readCSV)
	case FormatXLSX:
		raw, err = readXLSX(ctx, s.Path)
	default:
		return nil, fmt.Errorf("unsupported feed format %q", format)
	}
	if err != nil {
		return nil, err
	}

	campaigns := make(map[string]struct{}, len(s.Campaigns))
	for _, c := range s.Campaigns {
		campaigns[strings.ToLower(strings.TrimSpace(c))] = struct{}{}
	}

	out := make([]ingest.QueryRecord, 0, len(raw))
	var invalid, filtered int
	for _, r := range raw {
		if err := r.Validate(); err != nil {
			invalid++
			log.Warn("skipping invalid record", zap.String("path", s.Path), zap.Error(err))
			continue
		}
		if len(campaigns) > 0 {
			if _, ok := campaigns[strings.ToLower(strings.TrimSpace(r.Campaign))]; !ok {
				filtered++
				continue
			}
		}
		out = append(out, r)
		if s.Limit > 0 && len(out) >= s.Limit {
			break
		}
	}

	log.Info("feed loaded",
		zap.String("path", s.Path),
		zap.String("format", string(format)),
		zap.Int("records", len(out)),
		zap.Int("invalid", invalid),
		zap.Int("filtered", filtered),
	)
	return out, nil
}

type readerFunc func(ctx context.Context, f *os.File, log *zap.Logger) ([]ingest.QueryRecord, error)

func (s *Source) readFile(ctx context.Context, log *zap.Logger, read readerFunc) ([]ingest.QueryRecord, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("open feed %s: %w", s.Path, err)
	}
	defer f.Close()

	records, err := read(ctx, f, log)
	if err != nil {
		return nil, fmt.Errorf("read feed %s: %w", s.Path, err)
	}
	return records, nil
}
