package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/standards-cli/internal/db"
	"github.com/sells-group/standards-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS fda_standards (
	identity                             TEXT PRIMARY KEY,
	date_of_entry                        TEXT NOT NULL DEFAULT '',
	specialty_task_group_area            TEXT NOT NULL DEFAULT '',
	recognition_number                   TEXT NOT NULL DEFAULT '',
	extent_of_recognition                TEXT NOT NULL DEFAULT '',
	standards_developing_organization    TEXT NOT NULL DEFAULT '',
	standard_designation_number_and_date TEXT NOT NULL DEFAULT '',
	standard_title                       TEXT NOT NULL DEFAULT '',
	title_link                           TEXT NOT NULL DEFAULT '',
	bucket                               TEXT,
	artifact_key_primary                 TEXT,
	artifact_key_secondary               TEXT,
	created_at                           TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at                           TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_fda_standards_title_link ON fda_standards(title_link);
CREATE INDEX IF NOT EXISTS idx_fda_standards_recognition ON fda_standards(recognition_number);

CREATE TABLE IF NOT EXISTS sync_runs (
	id                  TEXT PRIMARY KEY,
	status              TEXT NOT NULL DEFAULT 'running',
	started_at          TIMESTAMPTZ NOT NULL DEFAULT now(),
	completed_at        TIMESTAMPTZ,
	crawl_outcome       TEXT,
	records_crawled     INTEGER NOT NULL DEFAULT 0,
	records_new         INTEGER NOT NULL DEFAULT 0,
	artifacts_succeeded INTEGER NOT NULL DEFAULT 0,
	artifacts_failed    INTEGER NOT NULL DEFAULT 0,
	error               TEXT
);

CREATE INDEX IF NOT EXISTS idx_sync_runs_started_at ON sync_runs(started_at DESC);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) AllIdentities(ctx context.Context) (map[model.Identity]struct{}, error) {
	rows, err := s.pool.Query(ctx, `SELECT identity FROM fda_standards`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: all identities")
	}
	defer rows.Close()

	ids := make(map[model.Identity]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, eris.Wrap(err, "postgres: scan identity")
		}
		ids[model.Identity(id)] = struct{}{}
	}
	return ids, eris.Wrap(rows.Err(), "postgres: iterate identities")
}

// InsertEntries bulk-loads entries in one transaction. Rows whose identity
// already exists are left untouched.
func (s *PostgresStore) InsertEntries(ctx context.Context, entries []model.CatalogEntry) (int64, error) {
	rows := make([][]any, len(entries))
	for i, e := range entries {
		rows[i] = entryRow(e)
	}
	n, err := db.BulkInsert(ctx, s.pool, db.InsertConfig{
		Table:        catalogTable,
		Columns:      entryColumns,
		ConflictKeys: []string{"identity"},
	}, rows)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: insert entries")
	}
	return n, nil
}

// SetArtifactKeys records both artifact keys on the entry's own row.
// Entries sharing a title link are updated independently.
func (s *PostgresStore) SetArtifactKeys(ctx context.Context, entry model.CatalogEntry, primaryKey, secondaryKey string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE fda_standards SET artifact_key_primary = $1, artifact_key_secondary = $2, updated_at = $3 WHERE identity = $4`,
		primaryKey, secondaryKey, time.Now().UTC(), string(entry.Identity),
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: set artifact keys %s", entry.Identity)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "postgres: set artifact keys %s", entry.Identity)
	}
	return nil
}

func (s *PostgresStore) ClearArtifactKeys(ctx context.Context) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE fda_standards SET artifact_key_primary = NULL, artifact_key_secondary = NULL, updated_at = $1`,
		time.Now().UTC(),
	)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: clear artifact keys")
	}
	return tag.RowsAffected(), nil
}

func (s *PostgresStore) ListUnprocessed(ctx context.Context) ([]model.CatalogEntry, error) {
	return s.queryEntries(ctx, entrySelect+` WHERE `+unprocessedPredicate+` ORDER BY created_at, identity`)
}

func (s *PostgresStore) ListEntries(ctx context.Context, filter EntryFilter) ([]model.CatalogEntry, error) {
	query := entrySelect + ` WHERE true`
	switch filter.State {
	case model.StateComplete:
		query += ` AND ` + processedPredicate
	case model.StateUnprocessed:
		query += ` AND (` + unprocessedPredicate + `)`
	}
	query += ` ORDER BY created_at, identity`

	args := []any{limitOrDefault(filter.Limit)}
	query += ` LIMIT $1`
	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, len(args)+1)
		args = append(args, filter.Offset)
	}
	return s.queryEntries(ctx, query, args...)
}

func (s *PostgresStore) queryEntries(ctx context.Context, query string, args ...any) ([]model.CatalogEntry, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list entries")
	}
	defer rows.Close()

	var entries []model.CatalogEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan entry")
		}
		entries = append(entries, e)
	}
	return entries, eris.Wrap(rows.Err(), "postgres: iterate entries")
}

func (s *PostgresStore) Status(ctx context.Context) (*model.SyncStatus, error) {
	var st model.SyncStatus
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*), COUNT(*) FILTER (WHERE `+processedPredicate+`) FROM fda_standards`,
	).Scan(&st.Total, &st.Processed)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: sync status")
	}
	st.Pending = st.Total - st.Processed
	return &st, nil
}

func (s *PostgresStore) StartRun(ctx context.Context) (*model.SyncRun, error) {
	run := &model.SyncRun{
		ID:        uuid.New().String(),
		Status:    model.RunStatusRunning,
		StartedAt: time.Now().UTC(),
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO sync_runs (id, status, started_at) VALUES ($1, $2, $3)`,
		run.ID, string(run.Status), run.StartedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: start run")
	}
	return run, nil
}

func (s *PostgresStore) CompleteRun(ctx context.Context, runID string, counts model.RunCounts) error {
	return s.finishRun(ctx, runID, model.RunStatusComplete, counts, nil)
}

func (s *PostgresStore) FailRun(ctx context.Context, runID string, counts model.RunCounts, errMsg string) error {
	return s.finishRun(ctx, runID, model.RunStatusFailed, counts, &errMsg)
}

func (s *PostgresStore) finishRun(ctx context.Context, runID string, status model.RunStatus, counts model.RunCounts, errMsg *string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE sync_runs
		 SET status = $1, completed_at = $2, crawl_outcome = $3, records_crawled = $4,
		     records_new = $5, artifacts_succeeded = $6, artifacts_failed = $7, error = $8
		 WHERE id = $9`,
		string(status), time.Now().UTC(), nullable(string(counts.CrawlOutcome)), counts.RecordsCrawled,
		counts.RecordsNew, counts.ArtifactsSucceeded, counts.ArtifactsFailed, errMsg, runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: finish run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "postgres: run %s", runID)
	}
	return nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, limit int) ([]model.SyncRun, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+runColumns+` FROM sync_runs ORDER BY started_at DESC LIMIT $1`,
		limitOrDefault(limit),
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.SyncRun
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: iterate runs")
}
