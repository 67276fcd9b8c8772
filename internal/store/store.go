package store

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/standards-cli/internal/model"
)

// ErrNotFound is returned when an update matches no catalog entry.
var ErrNotFound = eris.New("store: not found")

// EntryFilter specifies criteria for listing catalog entries.
type EntryFilter struct {
	State  model.ProcessingState `json:"state,omitempty"`
	Limit  int                   `json:"limit,omitempty"`
	Offset int                   `json:"offset,omitempty"`
}

// Store defines the persistence interface for the standards catalog.
type Store interface {
	// Catalog
	AllIdentities(ctx context.Context) (map[model.Identity]struct{}, error)
	InsertEntries(ctx context.Context, entries []model.CatalogEntry) (int64, error)
	SetArtifactKeys(ctx context.Context, entry model.CatalogEntry, primaryKey, secondaryKey string) error
	ClearArtifactKeys(ctx context.Context) (int64, error)
	ListUnprocessed(ctx context.Context) ([]model.CatalogEntry, error)
	ListEntries(ctx context.Context, filter EntryFilter) ([]model.CatalogEntry, error)
	Status(ctx context.Context) (*model.SyncStatus, error)

	// Run log
	StartRun(ctx context.Context) (*model.SyncRun, error)
	CompleteRun(ctx context.Context, runID string, counts model.RunCounts) error
	FailRun(ctx context.Context, runID string, counts model.RunCounts, errMsg string) error
	ListRuns(ctx context.Context, limit int) ([]model.SyncRun, error)

	// Lifecycle
	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Close() error
}

// catalogTable is the durable relation holding every discovered standard.
const catalogTable = "fda_standards"

// entryColumns lists fda_standards columns in scan order.
var entryColumns = []string{
	"identity",
	model.ColDateOfEntry,
	model.ColSpecialtyArea,
	model.ColRecognitionNumber,
	model.ColExtentOfRecognition,
	model.ColSDO,
	model.ColDesignation,
	model.ColStandardTitle,
	model.ColTitleLink,
	"bucket",
	"artifact_key_primary",
	"artifact_key_secondary",
	"created_at",
	"updated_at",
}

var entrySelect = "SELECT " + strings.Join(entryColumns, ", ") + " FROM " + catalogTable

// Both keys present and non-empty.
const processedPredicate = `artifact_key_primary IS NOT NULL AND artifact_key_primary <> ''
	AND artifact_key_secondary IS NOT NULL AND artifact_key_secondary <> ''`

const unprocessedPredicate = `(artifact_key_primary IS NULL OR artifact_key_primary = '')
	OR (artifact_key_secondary IS NULL OR artifact_key_secondary = '')`

const runColumns = `id, status, started_at, completed_at, crawl_outcome, records_crawled,
	records_new, artifacts_succeeded, artifacts_failed, error`

type scannable interface {
	Scan(dest ...any) error
}

// Nullable columns scan through pointers, which both pgx and database/sql
// set to nil on NULL.
func scanEntry(row scannable) (model.CatalogEntry, error) {
	var e model.CatalogEntry
	var identity string
	var bucket, primary, secondary *string
	err := row.Scan(
		&identity,
		&e.DateOfEntry,
		&e.SpecialtyArea,
		&e.RecognitionNumber,
		&e.ExtentOfRecognition,
		&e.SDO,
		&e.Designation,
		&e.Title,
		&e.TitleLink,
		&bucket,
		&primary,
		&secondary,
		&e.CreatedAt,
		&e.UpdatedAt,
	)
	if err != nil {
		return e, err
	}
	e.Identity = model.Identity(identity)
	e.Bucket = deref(bucket)
	e.ArtifactKeyPrimary = deref(primary)
	e.ArtifactKeySecondary = deref(secondary)
	return e, nil
}

func scanRun(row scannable) (model.SyncRun, error) {
	var r model.SyncRun
	var status string
	var completed *time.Time
	var outcome, errMsg *string
	err := row.Scan(
		&r.ID,
		&status,
		&r.StartedAt,
		&completed,
		&outcome,
		&r.RecordsCrawled,
		&r.RecordsNew,
		&r.ArtifactsSucceeded,
		&r.ArtifactsFailed,
		&errMsg,
	)
	if err != nil {
		return r, err
	}
	r.Status = model.RunStatus(status)
	r.CompletedAt = completed
	r.CrawlOutcome = model.CrawlOutcome(deref(outcome))
	r.Error = deref(errMsg)
	return r, nil
}

// entryRow flattens an entry into entryColumns order. Unset artifact keys
// are stored as NULL.
func entryRow(e model.CatalogEntry) []any {
	return []any{
		string(e.Identity),
		e.DateOfEntry,
		e.SpecialtyArea,
		e.RecognitionNumber,
		e.ExtentOfRecognition,
		e.SDO,
		e.Designation,
		e.Title,
		e.TitleLink,
		nullable(e.Bucket),
		nullable(e.ArtifactKeyPrimary),
		nullable(e.ArtifactKeySecondary),
		e.CreatedAt,
		e.UpdatedAt,
	}
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func limitOrDefault(limit int) int {
	if limit <= 0 {
		return 100
	}
	return limit
}
