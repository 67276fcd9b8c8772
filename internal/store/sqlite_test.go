package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/standards-cli/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func testEntry(id, recnum, link string) model.CatalogEntry {
	now := time.Now().UTC()
	return model.CatalogEntry{
		StandardRecord: model.StandardRecord{
			DateOfEntry:         "2023-05-29",
			SpecialtyArea:       "Biocompatibility",
			RecognitionNumber:   recnum,
			ExtentOfRecognition: "Complete standard",
			SDO:                 "ISO",
			Designation:         "10993-1 Fifth edition 2018-08",
			Title:               "Biological evaluation of medical devices",
			TitleLink:           link,
		},
		Identity:  model.Identity(id),
		Bucket:    "lexim-international",
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestSQLite_InsertAndListEntries(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	n, err := st.InsertEntries(ctx, []model.CatalogEntry{
		testEntry("id-1", "2-258", "https://example.com/detail?id=1"),
		testEntry("id-2", "2-259", "https://example.com/detail?id=2"),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	ids, err := st.AllIdentities(ctx)
	require.NoError(t, err)
	assert.Len(t, ids, 2)
	assert.Contains(t, ids, model.Identity("id-1"))

	entries, err := st.ListEntries(ctx, EntryFilter{})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "ISO", entries[0].SDO)
	assert.Equal(t, "lexim-international", entries[0].Bucket)
	assert.Empty(t, entries[0].ArtifactKeyPrimary)
	assert.Equal(t, model.StateUnprocessed, entries[0].State())
	assert.False(t, entries[0].CreatedAt.IsZero())
}

func TestSQLite_InsertEntries_ConflictIgnored(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	_, err := st.InsertEntries(ctx, []model.CatalogEntry{testEntry("id-1", "2-258", "https://example.com/1")})
	require.NoError(t, err)

	dup := testEntry("id-1", "2-258", "https://example.com/1")
	dup.Title = "changed"
	n, err := st.InsertEntries(ctx, []model.CatalogEntry{dup, testEntry("id-2", "2-259", "https://example.com/2")})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	entries, err := st.ListEntries(ctx, EntryFilter{})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	for _, e := range entries {
		if e.Identity == "id-1" {
			assert.Equal(t, "Biological evaluation of medical devices", e.Title)
		}
	}
}

func TestSQLite_InsertEntries_Empty(t *testing.T) {
	st := newTestSQLiteStore(t)
	n, err := st.InsertEntries(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestSQLite_SetArtifactKeys(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	e := testEntry("id-1", "2-258", "https://example.com/1")
	_, err := st.InsertEntries(ctx, []model.CatalogEntry{e, testEntry("id-2", "2-259", "https://example.com/2")})
	require.NoError(t, err)

	require.NoError(t, st.SetArtifactKeys(ctx, e, "FDA_STANDARDS/PDF/2-258_a.pdf", "FDA_STANDARDS/HTML/2-258_a.html"))

	status, err := st.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, &model.SyncStatus{Total: 2, Processed: 1, Pending: 1}, status)

	unprocessed, err := st.ListUnprocessed(ctx)
	require.NoError(t, err)
	require.Len(t, unprocessed, 1)
	assert.Equal(t, model.Identity("id-2"), unprocessed[0].Identity)

	done, err := st.ListEntries(ctx, EntryFilter{State: model.StateComplete})
	require.NoError(t, err)
	require.Len(t, done, 1)
	assert.Equal(t, "FDA_STANDARDS/PDF/2-258_a.pdf", done[0].ArtifactKeyPrimary)
	assert.Equal(t, "FDA_STANDARDS/HTML/2-258_a.html", done[0].ArtifactKeySecondary)
	assert.Equal(t, model.StateComplete, done[0].State())
}

func TestSQLite_SetArtifactKeys_EmptyLink(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	a := testEntry("id-1", "2-258", "")
	b := testEntry("id-2", "2-259", "")
	_, err := st.InsertEntries(ctx, []model.CatalogEntry{a, b})
	require.NoError(t, err)

	require.NoError(t, st.SetArtifactKeys(ctx, a, "p", "h"))

	status, err := st.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, status.Processed)
}

func TestSQLite_SetArtifactKeys_SharedLinkKeepsKeysApart(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	link := "https://example.com/detail?id=shared"
	a := testEntry("id-1", "2-258", link)
	b := testEntry("id-2", "2-259", link)
	_, err := st.InsertEntries(ctx, []model.CatalogEntry{a, b})
	require.NoError(t, err)

	require.NoError(t, st.SetArtifactKeys(ctx, a, "FDA_STANDARDS/PDF/2-258_a.pdf", "FDA_STANDARDS/HTML/2-258_a.html"))

	pending, err := st.ListUnprocessed(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, model.Identity("id-2"), pending[0].Identity)

	require.NoError(t, st.SetArtifactKeys(ctx, b, "FDA_STANDARDS/PDF/2-259_b.pdf", "FDA_STANDARDS/HTML/2-259_b.html"))

	done, err := st.ListEntries(ctx, EntryFilter{State: model.StateComplete})
	require.NoError(t, err)
	require.Len(t, done, 2)
	byID := map[model.Identity]string{}
	for _, e := range done {
		byID[e.Identity] = e.ArtifactKeyPrimary
	}
	assert.Equal(t, "FDA_STANDARDS/PDF/2-258_a.pdf", byID["id-1"])
	assert.Equal(t, "FDA_STANDARDS/PDF/2-259_b.pdf", byID["id-2"])
}

func TestSQLite_SetArtifactKeys_NotFound(t *testing.T) {
	st := newTestSQLiteStore(t)

	err := st.SetArtifactKeys(context.Background(), testEntry("missing", "1-1", "https://example.com/none"), "p", "h")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestSQLite_ClearArtifactKeys(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	a := testEntry("id-1", "2-258", "https://example.com/1")
	b := testEntry("id-2", "2-259", "https://example.com/2")
	_, err := st.InsertEntries(ctx, []model.CatalogEntry{a, b})
	require.NoError(t, err)
	require.NoError(t, st.SetArtifactKeys(ctx, a, "p1", "h1"))
	require.NoError(t, st.SetArtifactKeys(ctx, b, "p2", "h2"))

	n, err := st.ClearArtifactKeys(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	unprocessed, err := st.ListUnprocessed(ctx)
	require.NoError(t, err)
	assert.Len(t, unprocessed, 2)

	status, err := st.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, status.Processed)
	assert.Equal(t, 2, status.Pending)
}

func TestSQLite_ListEntries_LimitOffset(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	_, err := st.InsertEntries(ctx, []model.CatalogEntry{
		testEntry("a", "1-1", "https://example.com/a"),
		testEntry("b", "1-2", "https://example.com/b"),
		testEntry("c", "1-3", "https://example.com/c"),
	})
	require.NoError(t, err)

	page, err := st.ListEntries(ctx, EntryFilter{Limit: 2, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, model.Identity("b"), page[0].Identity)
	assert.Equal(t, model.Identity("c"), page[1].Identity)
}

func TestSQLite_Status_Empty(t *testing.T) {
	st := newTestSQLiteStore(t)
	status, err := st.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, &model.SyncStatus{}, status)
}

func TestSQLite_RunLog(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.StartRun(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, model.RunStatusRunning, run.Status)

	err = st.CompleteRun(ctx, run.ID, model.RunCounts{
		CrawlOutcome:       model.CrawlExhausted,
		RecordsCrawled:     1300,
		RecordsNew:         12,
		ArtifactsSucceeded: 11,
		ArtifactsFailed:    1,
	})
	require.NoError(t, err)

	failed, err := st.StartRun(ctx)
	require.NoError(t, err)
	require.NoError(t, st.FailRun(ctx, failed.ID, model.RunCounts{CrawlOutcome: model.CrawlAborted}, "listing: no records crawled"))

	runs, err := st.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)

	byID := map[string]model.SyncRun{}
	for _, r := range runs {
		byID[r.ID] = r
	}

	done := byID[run.ID]
	assert.Equal(t, model.RunStatusComplete, done.Status)
	assert.Equal(t, model.CrawlExhausted, done.CrawlOutcome)
	assert.Equal(t, 1300, done.RecordsCrawled)
	assert.Equal(t, 12, done.RecordsNew)
	assert.Equal(t, 11, done.ArtifactsSucceeded)
	assert.Equal(t, 1, done.ArtifactsFailed)
	require.NotNil(t, done.CompletedAt)
	assert.Empty(t, done.Error)

	bad := byID[failed.ID]
	assert.Equal(t, model.RunStatusFailed, bad.Status)
	assert.Equal(t, model.CrawlAborted, bad.CrawlOutcome)
	assert.Equal(t, "listing: no records crawled", bad.Error)
}

func TestSQLite_CompleteRun_NotFound(t *testing.T) {
	st := newTestSQLiteStore(t)
	err := st.CompleteRun(context.Background(), "nonexistent", model.RunCounts{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestSQLite_ImplementsStore(t *testing.T) {
	var _ Store = newTestSQLiteStore(t)
}

func TestSQLite_Ping(t *testing.T) {
	st := newTestSQLiteStore(t)
	require.NoError(t, st.Ping(context.Background()))

	require.NoError(t, st.Close())
	assert.Error(t, st.Ping(context.Background()))
}
