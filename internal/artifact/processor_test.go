package artifact

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/standards-cli/internal/catalog"
	"github.com/sells-group/standards-cli/internal/model"
	"github.com/sells-group/standards-cli/internal/objstore"
	"github.com/sells-group/standards-cli/internal/render"
	"github.com/sells-group/standards-cli/internal/store"
)

type mockStore struct{ mock.Mock }

func (m *mockStore) SetArtifactKeys(ctx context.Context, entry model.CatalogEntry, primaryKey, secondaryKey string) error {
	return m.Called(ctx, entry.Identity, primaryKey, secondaryKey).Error(0)
}

type mockObjects struct{ mock.Mock }

func (m *mockObjects) Exists(ctx context.Context, key string) (bool, error) {
	args := m.Called(ctx, key)
	return args.Bool(0), args.Error(1)
}

func (m *mockObjects) Put(ctx context.Context, key, localPath, contentType string) error {
	args := m.Called(ctx, key, contentType)
	// The local file must exist at upload time.
	if _, err := os.Stat(localPath); err != nil {
		return err
	}
	return args.Error(0)
}

func (m *mockObjects) Location() string { return "mock-bucket" }

type mockSource struct{ mock.Mock }

func (m *mockSource) Detail(ctx context.Context, entry model.CatalogEntry) (model.StandardDetail, error) {
	args := m.Called(ctx, entry.Identity)
	return args.Get(0).(model.StandardDetail), args.Error(1)
}

// countingSource serves a fixed detail and counts calls.
type countingSource struct{ calls atomic.Int32 }

func (c *countingSource) Detail(_ context.Context, e model.CatalogEntry) (model.StandardDetail, error) {
	c.calls.Add(1)
	return model.StandardDetail{FRRecognitionNumber: e.RecognitionNumber, DateOfEntry: e.DateOfEntry}, nil
}

func entry(recnum, title string) model.CatalogEntry {
	return model.CatalogEntry{
		StandardRecord: model.StandardRecord{
			RecognitionNumber: recnum,
			SDO:               "ISO",
			Designation:       "D-" + recnum,
			Title:             title,
			TitleLink:         "https://www.accessdata.fda.gov/detail.cfm?id=" + recnum,
		},
		Identity: catalog.Identity(recnum, "ISO", "D-"+recnum),
	}
}

func opts(t *testing.T) Options {
	return Options{Workers: 2, TempDir: t.TempDir(), Prefix: "FDA_STANDARDS"}
}

func assertEmptyDir(t *testing.T, dir string) {
	t.Helper()
	left, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, left, "temp files left behind")
}

func TestProcess_ExistingObjectsCompleteWithoutFetch(t *testing.T) {
	ms, mo, src := new(mockStore), new(mockObjects), new(mockSource)
	e := entry("2-258", "Biological evaluation of medical devices")
	keys := KeysFor("FDA_STANDARDS", e)

	mo.On("Exists", mock.Anything, keys.PDF).Return(true, nil)
	mo.On("Exists", mock.Anything, keys.HTML).Return(true, nil)
	ms.On("SetArtifactKeys", mock.Anything, e.Identity, keys.PDF, keys.HTML).Return(nil)

	res := NewProcessor(ms, mo, src, render.Files{}, opts(t)).Process(context.Background(), []model.CatalogEntry{e})

	assert.Equal(t, Result{Total: 1, Succeeded: 1, AlreadyStored: 1}, res)
	src.AssertNotCalled(t, "Detail", mock.Anything, mock.Anything)
	mo.AssertNotCalled(t, "Put", mock.Anything, mock.Anything, mock.Anything)
	ms.AssertExpectations(t)
}

func TestProcess_HTMLUploadFailureLeavesKeysUnset(t *testing.T) {
	ms, mo, src := new(mockStore), new(mockObjects), new(mockSource)
	e := entry("2-258", "Biological evaluation of medical devices")
	keys := KeysFor("FDA_STANDARDS", e)
	o := opts(t)

	mo.On("Exists", mock.Anything, keys.PDF).Return(false, nil)
	src.On("Detail", mock.Anything, e.Identity).Return(model.StandardDetail{FRRecognitionNumber: "2-258"}, nil)
	mo.On("Put", mock.Anything, keys.PDF, objstore.ContentTypePDF).Return(nil)
	mo.On("Put", mock.Anything, keys.HTML, objstore.ContentTypeHTML).Return(errors.New("connection reset"))

	res := NewProcessor(ms, mo, src, render.Files{}, o).Process(context.Background(), []model.CatalogEntry{e})

	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, 0, res.Succeeded)
	ms.AssertNotCalled(t, "SetArtifactKeys", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	mo.AssertExpectations(t)
	assertEmptyDir(t, o.TempDir)
}

func TestProcess_FetchFailureIsolated(t *testing.T) {
	ms, mo, src := new(mockStore), new(mockObjects), new(mockSource)
	bad := entry("1-1", "Broken link entry")
	good := entry("1-2", "Working link entry")
	o := opts(t)

	mo.On("Exists", mock.Anything, mock.Anything).Return(false, nil)
	src.On("Detail", mock.Anything, bad.Identity).Return(model.StandardDetail{}, errors.New("404"))
	src.On("Detail", mock.Anything, good.Identity).Return(model.StandardDetail{}, nil)
	mo.On("Put", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	goodKeys := KeysFor("FDA_STANDARDS", good)
	ms.On("SetArtifactKeys", mock.Anything, good.Identity, goodKeys.PDF, goodKeys.HTML).Return(nil)

	res := NewProcessor(ms, mo, src, render.Files{}, o).Process(context.Background(), []model.CatalogEntry{bad, good})

	assert.Equal(t, Result{Total: 2, Succeeded: 1, Failed: 1}, res)
	ms.AssertExpectations(t)
	assertEmptyDir(t, o.TempDir)
}

func TestProcess_ExistsErrorFailsEntry(t *testing.T) {
	ms, mo, src := new(mockStore), new(mockObjects), new(mockSource)
	e := entry("3-3", "Access denied entry")

	mo.On("Exists", mock.Anything, mock.Anything).Return(false, errors.New("AccessDenied"))

	res := NewProcessor(ms, mo, src, render.Files{}, opts(t)).Process(context.Background(), []model.CatalogEntry{e})
	assert.Equal(t, 1, res.Failed)
	src.AssertNotCalled(t, "Detail", mock.Anything, mock.Anything)
}

func TestProcess_OverwriteSkipsExistsCheck(t *testing.T) {
	ms, mo, src := new(mockStore), new(mockObjects), new(mockSource)
	e := entry("4-4", "Overwrite me now please")
	keys := KeysFor("FDA_STANDARDS", e)
	o := opts(t)
	o.Overwrite = true

	src.On("Detail", mock.Anything, e.Identity).Return(model.StandardDetail{}, nil)
	mo.On("Put", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	ms.On("SetArtifactKeys", mock.Anything, e.Identity, keys.PDF, keys.HTML).Return(nil)

	res := NewProcessor(ms, mo, src, render.Files{}, o).Process(context.Background(), []model.CatalogEntry{e})
	assert.Equal(t, 1, res.Succeeded)
	mo.AssertNotCalled(t, "Exists", mock.Anything, mock.Anything)
	mo.AssertNumberOfCalls(t, "Put", 2)
}

func TestProcess_CancelledContext(t *testing.T) {
	ms, mo, src := new(mockStore), new(mockObjects), new(mockSource)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := NewProcessor(ms, mo, src, render.Files{}, opts(t)).Process(ctx, []model.CatalogEntry{entry("5-5", "x")})
	assert.Equal(t, 1, res.Failed)
	mo.AssertNotCalled(t, "Exists", mock.Anything, mock.Anything)
}

func TestProcess_Empty(t *testing.T) {
	res := NewProcessor(new(mockStore), new(mockObjects), new(mockSource), render.Files{}, opts(t)).
		Process(context.Background(), nil)
	assert.Equal(t, Result{}, res)
}

func TestProcess_ResetAndRerun(t *testing.T) {
	ctx := context.Background()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "catalog.db"))
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck
	require.NoError(t, st.Migrate(ctx))

	objects, err := objstore.NewFileStore(filepath.Join(t.TempDir(), "objects"))
	require.NoError(t, err)

	entries := []model.CatalogEntry{
		entry("2-258", "Biological evaluation of medical devices"),
		entry("2-259", "Tests for in vitro cytotoxicity"),
		entry("2-260", "Tests for genotoxicity"),
	}
	_, err = st.InsertEntries(ctx, entries)
	require.NoError(t, err)

	src := &countingSource{}
	o := opts(t)
	o.Pace = time.Millisecond
	p := NewProcessor(st, objects, src, render.Files{}, o)

	pending, err := st.ListUnprocessed(ctx)
	require.NoError(t, err)
	first := p.Process(ctx, pending)
	assert.Equal(t, Result{Total: 3, Succeeded: 3}, first)
	assert.Equal(t, int32(3), src.calls.Load())

	status, err := st.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, status.Processed)

	cleared, err := st.ClearArtifactKeys(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), cleared)

	pending, err = st.ListUnprocessed(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 3)

	// Objects survive the reset, so the rerun only records keys.
	second := p.Process(ctx, pending)
	assert.Equal(t, Result{Total: 3, Succeeded: 3, AlreadyStored: 3}, second)
	assert.Equal(t, int32(3), src.calls.Load())

	status, err = st.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, status.Processed)
	assert.Equal(t, 0, status.Pending)

	// Overwrite forces every entry through fetch and render again.
	_, err = st.ClearArtifactKeys(ctx)
	require.NoError(t, err)
	pending, err = st.ListUnprocessed(ctx)
	require.NoError(t, err)
	o.Overwrite = true
	third := NewProcessor(st, objects, src, render.Files{}, o).Process(ctx, pending)
	assert.Equal(t, Result{Total: 3, Succeeded: 3}, third)
	assert.Equal(t, int32(6), src.calls.Load())
	assertEmptyDir(t, o.TempDir)

	ok, err := objects.Exists(ctx, "FDA_STANDARDS/PDF/2-258_Biological_evaluation_of.pdf")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestProcess_SharedTitleLinkKeepsOwnKeys(t *testing.T) {
	ctx := context.Background()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "catalog.db"))
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck
	require.NoError(t, st.Migrate(ctx))

	objects, err := objstore.NewFileStore(filepath.Join(t.TempDir(), "objects"))
	require.NoError(t, err)

	one := entry("2-258", "Biological evaluation one")
	two := entry("2-259", "Cytotoxicity tests two")
	two.TitleLink = one.TitleLink
	_, err = st.InsertEntries(ctx, []model.CatalogEntry{one, two})
	require.NoError(t, err)

	o := opts(t)
	o.Workers = 1
	res := NewProcessor(st, objects, &countingSource{}, render.Files{}, o).Process(ctx, []model.CatalogEntry{one, two})
	assert.Equal(t, Result{Total: 2, Succeeded: 2}, res)

	done, err := st.ListEntries(ctx, store.EntryFilter{State: model.StateComplete})
	require.NoError(t, err)
	require.Len(t, done, 2)
	for _, e := range done {
		want := KeysFor(o.Prefix, e)
		assert.Equal(t, want.PDF, e.ArtifactKeyPrimary, e.RecognitionNumber)
		assert.Equal(t, want.HTML, e.ArtifactKeySecondary, e.RecognitionNumber)
	}
}
