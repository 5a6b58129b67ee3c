package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
	_ "modernc.org/sqlite"

	"github.com/cognicore/kwmine/pkg/kwmine"
	"github.com/cognicore/kwmine/pkg/kwmine/aggregate"
	"github.com/cognicore/kwmine/pkg/kwmine/classify"
	"github.com/cognicore/kwmine/pkg/kwmine/internalerr"
	"github.com/cognicore/kwmine/pkg/kwmine/metrics"
	"github.com/cognicore/kwmine/pkg/kwmine/store"
)

// timeLayout is fixed-width so created_at sorts lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// sqliteStore implements the Store interface using SQLite
type sqliteStore struct {
	db *sql.DB
}

// OpenSQLite opens a SQLite database with WAL mode enabled and creates the
// schema if needed. A missing file is created.
func OpenSQLite(ctx context.Context, path string) (store.Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", internalerr.ErrStoreUnavailable, path, err)
	}

	// Enable WAL mode for better concurrency
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %s: %w", internalerr.ErrStoreUnavailable, path, err)
	}

	// Enable foreign keys
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %s: %w", internalerr.ErrStoreUnavailable, path, err)
	}

	if err := initSchema(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: init schema %s: %w", internalerr.ErrStoreUnavailable, path, err)
	}

	return &sqliteStore{db: db}, nil
}

// OpenExisting is OpenSQLite for readers: it fails with
// internalerr.ErrStoreUnavailable instead of creating a missing database.
func OpenExisting(ctx context.Context, path string) (store.Store, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", internalerr.ErrStoreUnavailable, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", internalerr.ErrStoreUnavailable, path)
	}
	return OpenSQLite(ctx, path)
}

// Close closes the database connection
func (s *sqliteStore) Close() error {
	return s.db.Close()
}

// initSchema creates tables if they don't exist
func initSchema(ctx context.Context, db *sql.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	created_at TEXT NOT NULL,
	records INTEGER NOT NULL,
	sizes TEXT NOT NULL,
	opportunities INTEGER NOT NULL,
	negatives INTEGER NOT NULL,
	config TEXT
);

CREATE TABLE IF NOT EXISTS recommendations (
	run_id TEXT NOT NULL,
	category TEXT NOT NULL,
	position INTEGER NOT NULL,
	ngram TEXT NOT NULL,
	size INTEGER NOT NULL,
	reason TEXT NOT NULL,
	query_count INTEGER NOT NULL,
	impressions INTEGER NOT NULL,
	clicks INTEGER NOT NULL,
	cost TEXT NOT NULL,
	conversions TEXT NOT NULL,
	conversion_value TEXT NOT NULL,
	ctr REAL,
	cpc REAL,
	conv_rate REAL,
	cpa REAL,
	roas REAL,
	PRIMARY KEY(run_id, category, position),
	FOREIGN KEY(run_id) REFERENCES runs(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS aggregates (
	run_id TEXT NOT NULL,
	size INTEGER NOT NULL,
	ngram TEXT NOT NULL,
	query_count INTEGER NOT NULL,
	impressions INTEGER NOT NULL,
	clicks INTEGER NOT NULL,
	cost TEXT NOT NULL,
	conversions TEXT NOT NULL,
	conversion_value TEXT NOT NULL,
	ctr REAL,
	cpc REAL,
	conv_rate REAL,
	cpa REAL,
	roas REAL,
	PRIMARY KEY(run_id, size, ngram),
	FOREIGN KEY(run_id) REFERENCES runs(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_aggregates_impressions ON aggregates(run_id, size, impressions DESC);
CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at DESC);
`

	_, err := db.ExecContext(ctx, schema)
	return err
}

// SaveRun stores a run in one transaction, replacing any previous run
// with the same ID.
func (s *sqliteStore) SaveRun(ctx context.Context, r kwmine.Result) error {
	if r.RunID == "" {
		return fmt.Errorf("%w: empty run id", internalerr.ErrInvalidInput)
	}

	sizes, err := json.Marshal(r.Sizes)
	if err != nil {
		return fmt.Errorf("encode sizes: %w", err)
	}
	cfg, err := yaml.Marshal(r.Config)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// foreign_keys is per connection, so children are cleared explicitly
	for _, q := range []string{
		`DELETE FROM recommendations WHERE run_id = ?`,
		`DELETE FROM aggregates WHERE run_id = ?`,
		`DELETE FROM runs WHERE id = ?`,
	} {
		if _, err := tx.ExecContext(ctx, q, r.RunID); err != nil {
			return err
		}
	}

	_, err = tx.ExecContext(ctx, `
INSERT INTO runs (id, created_at, records, sizes, opportunities, negatives, config)
VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.RunID,
		r.CreatedAt.UTC().Format(timeLayout),
		r.Records,
		string(sizes),
		len(r.Opportunities),
		len(r.Negatives),
		string(cfg),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	if err := insertRecommendations(ctx, tx, r.RunID, r.Opportunities); err != nil {
		return err
	}
	if err := insertRecommendations(ctx, tx, r.RunID, r.Negatives); err != nil {
		return err
	}
	if err := insertAggregates(ctx, tx, r.RunID, r.Tables); err != nil {
		return err
	}

	return tx.Commit()
}

func insertRecommendations(ctx context.Context, tx *sql.Tx, runID string, recs []classify.Recommendation) error {
	if len(recs) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO recommendations (
	run_id, category, position, ngram, size, reason,
	query_count, impressions, clicks, cost, conversions, conversion_value,
	ctr, cpc, conv_rate, cpa, roas
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, rec := range recs {
		_, err := stmt.ExecContext(ctx,
			runID, string(rec.Category), i+1, rec.Text, rec.Size, rec.Reason,
			rec.QueryCount, rec.Impressions, rec.Clicks,
			rec.Cost.String(), rec.Conversions.String(), rec.ConversionValue.String(),
			rec.CTR, rec.CPC, rec.ConvRate, rec.CPA, rec.ROAS,
		)
		if err != nil {
			return fmt.Errorf("insert recommendation %q: %w", rec.Text, err)
		}
	}
	return nil
}

func insertAggregates(ctx context.Context, tx *sql.Tx, runID string, tables map[int]metrics.Table) error {
	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO aggregates (
	run_id, size, ngram, query_count, impressions, clicks,
	cost, conversions, conversion_value, ctr, cpc, conv_rate, cpa, roas
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for size, table := range tables {
		for _, st := range table {
			_, err := stmt.ExecContext(ctx,
				runID, size, st.Text, st.QueryCount, st.Impressions, st.Clicks,
				st.Cost.String(), st.Conversions.String(), st.ConversionValue.String(),
				st.CTR, st.CPC, st.ConvRate, st.CPA, st.ROAS,
			)
			if err != nil {
				return fmt.Errorf("insert aggregate %q: %w", st.Text, err)
			}
		}
	}
	return nil
}

const runColumns = `id, created_at, records, sizes, opportunities, negatives, config`

// GetRun retrieves a run summary by ID
func (s *sqliteStore) GetRun(ctx context.Context, id string) (store.Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Run{}, internalerr.ErrNotFound
	}
	return run, err
}

// ListRuns returns runs newest first
func (s *sqliteStore) ListRuns(ctx context.Context, limit int) ([]store.Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs ORDER BY created_at DESC, id DESC`
	var args []interface{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []store.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(sc scanner) (store.Run, error) {
	var (
		run     store.Run
		created string
		sizes   string
		cfg     sql.NullString
	)
	if err := sc.Scan(&run.ID, &created, &run.Records, &sizes, &run.Opportunities, &run.Negatives, &cfg); err != nil {
		return store.Run{}, err
	}

	t, err := time.Parse(timeLayout, created)
	if err != nil {
		return store.Run{}, fmt.Errorf("parse created_at: %w", err)
	}
	run.CreatedAt = t

	if err := json.Unmarshal([]byte(sizes), &run.Sizes); err != nil {
		return store.Run{}, fmt.Errorf("decode sizes: %w", err)
	}
	if cfg.Valid && cfg.String != "" {
		if err := yaml.Unmarshal([]byte(cfg.String), &run.Config); err != nil {
			return store.Run{}, fmt.Errorf("decode config: %w", err)
		}
	}
	return run, nil
}

// Recommendations returns one list of a run in rank order
func (s *sqliteStore) Recommendations(ctx context.Context, runID string, cat classify.Category) ([]store.Recommendation, error) {
	if err := s.runExists(ctx, runID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT position, ngram, size, reason, query_count, impressions, clicks, cost, conversions, conversion_value
FROM recommendations
WHERE run_id = ? AND category = ?
ORDER BY position ASC`, runID, string(cat))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.Recommendation
	for rows.Next() {
		var (
			rec store.Recommendation
			agg aggregate.Aggregate
		)
		var cost, conv, value string
		if err := rows.Scan(&rec.Rank, &agg.Text, &agg.Size, &rec.Reason,
			&agg.QueryCount, &agg.Impressions, &agg.Clicks, &cost, &conv, &value); err != nil {
			return nil, err
		}
		if err := parseDecimals(&agg, cost, conv, value); err != nil {
			return nil, err
		}
		rec.RunID = runID
		rec.Category = cat
		rec.Stat = metrics.Stat{Aggregate: agg, Derived: metrics.Derive(agg)}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Aggregates returns the stats of one size, highest impressions first
func (s *sqliteStore) Aggregates(ctx context.Context, runID string, size int, limit int) ([]metrics.Stat, error) {
	if err := s.runExists(ctx, runID); err != nil {
		return nil, err
	}

	query := `
SELECT ngram, query_count, impressions, clicks, cost, conversions, conversion_value
FROM aggregates
WHERE run_id = ? AND size = ?
ORDER BY impressions DESC, ngram ASC`
	args := []interface{}{runID, size}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []metrics.Stat
	for rows.Next() {
		agg := aggregate.Aggregate{Size: size}
		var cost, conv, value string
		if err := rows.Scan(&agg.Text, &agg.QueryCount, &agg.Impressions, &agg.Clicks, &cost, &conv, &value); err != nil {
			return nil, err
		}
		if err := parseDecimals(&agg, cost, conv, value); err != nil {
			return nil, err
		}
		out = append(out, metrics.Stat{Aggregate: agg, Derived: metrics.Derive(agg)})
	}
	return out, rows.Err()
}

func (s *sqliteStore) runExists(ctx context.Context, runID string) error {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM runs WHERE id = ?`, runID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return internalerr.ErrNotFound
	}
	return err
}

func parseDecimals(agg *aggregate.Aggregate, cost, conv, value string) error {
	var err error
	if agg.Cost, err = decimal.NewFromString(cost); err != nil {
		return fmt.Errorf("parse cost %q: %w", cost, err)
	}
	if agg.Conversions, err = decimal.NewFromString(conv); err != nil {
		return fmt.Errorf("parse conversions %q: %w", conv, err)
	}
	if agg.ConversionValue, err = decimal.NewFromString(value); err != nil {
		return fmt.Errorf("parse conversion value %q: %w", value, err)
	}
	return nil
}
