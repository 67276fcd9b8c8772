package store

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/standards-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	// The pragmas below are per connection.
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
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
	created_at                           DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at                           DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_fda_standards_title_link ON fda_standards(title_link);
CREATE INDEX IF NOT EXISTS idx_fda_standards_recognition ON fda_standards(recognition_number);

CREATE TABLE IF NOT EXISTS sync_runs (
	id                  TEXT PRIMARY KEY,
	status              TEXT NOT NULL DEFAULT 'running',
	started_at          DATETIME NOT NULL DEFAULT (datetime('now')),
	completed_at        DATETIME,
	crawl_outcome       TEXT,
	records_crawled     INTEGER NOT NULL DEFAULT 0,
	records_new         INTEGER NOT NULL DEFAULT 0,
	artifacts_succeeded INTEGER NOT NULL DEFAULT 0,
	artifacts_failed    INTEGER NOT NULL DEFAULT 0,
	error               TEXT
);

CREATE INDEX IF NOT EXISTS idx_sync_runs_started_at ON sync_runs(started_at);
`

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) AllIdentities(ctx context.Context) (map[model.Identity]struct{}, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT identity FROM fda_standards`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: all identities")
	}
	defer rows.Close() //nolint:errcheck

	ids := make(map[model.Identity]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan identity")
		}
		ids[model.Identity(id)] = struct{}{}
	}
	return ids, eris.Wrap(rows.Err(), "sqlite: iterate identities")
}

func (s *SQLiteStore) InsertEntries(ctx context.Context, entries []model.CatalogEntry) (int64, error) {
	if len(entries) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(entryColumns)), ", ")
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO fda_standards (`+strings.Join(entryColumns, ", ")+`) VALUES (`+placeholders+`)
		 ON CONFLICT (identity) DO NOTHING`,
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare insert")
	}
	defer stmt.Close() //nolint:errcheck

	var inserted int64
	for _, e := range entries {
		res, err := stmt.ExecContext(ctx, entryRow(e)...)
		if err != nil {
			return 0, eris.Wrapf(err, "sqlite: insert entry %s", e.Identity)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, eris.Wrap(err, "sqlite: rows affected")
		}
		inserted += n
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit tx")
	}
	return inserted, nil
}

func (s *SQLiteStore) SetArtifactKeys(ctx context.Context, entry model.CatalogEntry, primaryKey, secondaryKey string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE fda_standards SET artifact_key_primary = ?, artifact_key_secondary = ?, updated_at = ? WHERE identity = ?`,
		primaryKey, secondaryKey, time.Now().UTC(), string(entry.Identity),
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: set artifact keys %s", entry.Identity)
	}
	return checkRowsAffected(res, "entry", string(entry.Identity))
}

func (s *SQLiteStore) ClearArtifactKeys(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE fda_standards SET artifact_key_primary = NULL, artifact_key_secondary = NULL, updated_at = ?`,
		time.Now().UTC(),
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: clear artifact keys")
	}
	n, err := res.RowsAffected()
	return n, eris.Wrap(err, "sqlite: rows affected")
}

func (s *SQLiteStore) ListUnprocessed(ctx context.Context) ([]model.CatalogEntry, error) {
	return s.queryEntries(ctx, entrySelect+` WHERE `+unprocessedPredicate+` ORDER BY created_at, identity`)
}

func (s *SQLiteStore) ListEntries(ctx context.Context, filter EntryFilter) ([]model.CatalogEntry, error) {
	query := entrySelect + ` WHERE 1=1`
	switch filter.State {
	case model.StateComplete:
		query += ` AND ` + processedPredicate
	case model.StateUnprocessed:
		query += ` AND (` + unprocessedPredicate + `)`
	}
	query += ` ORDER BY created_at, identity LIMIT ? OFFSET ?`
	return s.queryEntries(ctx, query, limitOrDefault(filter.Limit), max(filter.Offset, 0))
}

func (s *SQLiteStore) queryEntries(ctx context.Context, query string, args ...any) ([]model.CatalogEntry, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list entries")
	}
	defer rows.Close() //nolint:errcheck

	var entries []model.CatalogEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan entry")
		}
		entries = append(entries, e)
	}
	return entries, eris.Wrap(rows.Err(), "sqlite: iterate entries")
}

func (s *SQLiteStore) Status(ctx context.Context) (*model.SyncStatus, error) {
	var st model.SyncStatus
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(CASE WHEN `+processedPredicate+` THEN 1 ELSE 0 END), 0) FROM fda_standards`,
	).Scan(&st.Total, &st.Processed)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: sync status")
	}
	st.Pending = st.Total - st.Processed
	return &st, nil
}

func (s *SQLiteStore) StartRun(ctx context.Context) (*model.SyncRun, error) {
	run := &model.SyncRun{
		ID:        uuid.New().String(),
		Status:    model.RunStatusRunning,
		StartedAt: time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sync_runs (id, status, started_at) VALUES (?, ?, ?)`,
		run.ID, string(run.Status), run.StartedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: start run")
	}
	return run, nil
}

func (s *SQLiteStore) CompleteRun(ctx context.Context, runID string, counts model.RunCounts) error {
	return s.finishRun(ctx, runID, model.RunStatusComplete, counts, nil)
}

func (s *SQLiteStore) FailRun(ctx context.Context, runID string, counts model.RunCounts, errMsg string) error {
	return s.finishRun(ctx, runID, model.RunStatusFailed, counts, &errMsg)
}

func (s *SQLiteStore) finishRun(ctx context.Context, runID string, status model.RunStatus, counts model.RunCounts, errMsg *string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE sync_runs
		 SET status = ?, completed_at = ?, crawl_outcome = ?, records_crawled = ?,
		     records_new = ?, artifacts_succeeded = ?, artifacts_failed = ?, error = ?
		 WHERE id = ?`,
		string(status), time.Now().UTC(), nullable(string(counts.CrawlOutcome)), counts.RecordsCrawled,
		counts.RecordsNew, counts.ArtifactsSucceeded, counts.ArtifactsFailed, errMsg, runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: finish run %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]model.SyncRun, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM sync_runs ORDER BY started_at DESC LIMIT ?`,
		limitOrDefault(limit),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close() //nolint:errcheck

	var runs []model.SyncRun
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run")
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: iterate runs")
}

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "%s not found: %s", entity, id)
	}
	return nil
}
