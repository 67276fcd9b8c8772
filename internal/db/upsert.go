package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
)

// InsertConfig defines the parameters for a bulk insert.
type InsertConfig struct {
	Table        string   // target table (e.g., "public.fda_standards")
	Columns      []string // all columns being inserted
	ConflictKeys []string // columns forming the unique constraint
	// UpdateCols lists the columns overwritten on conflict. Empty means
	// conflicting rows are left untouched (DO NOTHING).
	UpdateCols []string
}

// BulkInsert loads rows through a temp table and a single
// INSERT ... SELECT ... ON CONFLICT, all inside one transaction:
//  1. CREATE TEMP TABLE ... (LIKE target) ON COMMIT DROP
//  2. COPY rows into the temp table
//  3. INSERT INTO target SELECT ... FROM temp ON CONFLICT (keys) DO NOTHING | DO UPDATE
//
// It returns the number of rows inserted or updated in the target.
func BulkInsert(ctx context.Context, pool Pool, cfg InsertConfig, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	if len(cfg.Columns) == 0 {
		return 0, eris.New("db: bulk insert: no columns specified")
	}
	if len(cfg.ConflictKeys) == 0 {
		return 0, eris.New("db: bulk insert: no conflict keys specified")
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "db: bulk insert: begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	tempTable := "_tmp_insert_" + strings.ReplaceAll(cfg.Table, ".", "_")

	createSQL := fmt.Sprintf(
		"CREATE TEMP TABLE %s (LIKE %s INCLUDING DEFAULTS) ON COMMIT DROP",
		pgx.Identifier{tempTable}.Sanitize(),
		sanitizeTable(cfg.Table),
	)
	if _, err := tx.Exec(ctx, createSQL); err != nil {
		return 0, eris.Wrapf(err, "db: bulk insert: create temp table for %s", cfg.Table)
	}

	if _, err := tx.CopyFrom(ctx, pgx.Identifier{tempTable}, cfg.Columns, pgx.CopyFromRows(rows)); err != nil {
		return 0, eris.Wrapf(err, "db: bulk insert: COPY into temp table for %s", cfg.Table)
	}

	tag, err := tx.Exec(ctx, insertSQL(cfg, tempTable))
	if err != nil {
		return 0, eris.Wrapf(err, "db: bulk insert: INSERT ON CONFLICT for %s", cfg.Table)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrap(err, "db: bulk insert: commit tx")
	}

	return tag.RowsAffected(), nil
}

func insertSQL(cfg InsertConfig, tempTable string) string {
	colList := quoteAndJoin(cfg.Columns)
	action := "DO NOTHING"
	if len(cfg.UpdateCols) > 0 {
		setClauses := make([]string, len(cfg.UpdateCols))
		for i, col := range cfg.UpdateCols {
			id := pgx.Identifier{col}.Sanitize()
			setClauses[i] = fmt.Sprintf("%s = EXCLUDED.%s", id, id)
		}
		action = "DO UPDATE SET " + strings.Join(setClauses, ", ")
	}
	return fmt.Sprintf(
		"INSERT INTO %s (%s) SELECT %s FROM %s ON CONFLICT (%s) %s",
		sanitizeTable(cfg.Table),
		colList,
		colList,
		pgx.Identifier{tempTable}.Sanitize(),
		quoteAndJoin(cfg.ConflictKeys),
		action,
	)
}

// sanitizeTable handles schema-qualified table names like "public.fda_standards".
func sanitizeTable(table string) string {
	parts := strings.SplitN(table, ".", 2)
	if len(parts) == 2 {
		return pgx.Identifier{parts[0], parts[1]}.Sanitize()
	}
	return pgx.Identifier{table}.Sanitize()
}

// quoteAndJoin quotes each column name and joins with commas.
func quoteAndJoin(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = pgx.Identifier{c}.Sanitize()
	}
	return strings.Join(quoted, ", ")
}
