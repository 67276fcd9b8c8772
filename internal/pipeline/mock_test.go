package pipeline

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/standards-cli/internal/artifact"
	"github.com/sells-group/standards-cli/internal/catalog"
	"github.com/sells-group/standards-cli/internal/listing"
	"github.com/sells-group/standards-cli/internal/model"
)

// --- Store Mock ---

type mockStore struct {
	mock.Mock
}

func (m *mockStore) ClearArtifactKeys(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockStore) ListUnprocessed(ctx context.Context) ([]model.CatalogEntry, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.CatalogEntry), args.Error(1)
}

func (m *mockStore) Status(ctx context.Context) (*model.SyncStatus, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.SyncStatus), args.Error(1)
}

func (m *mockStore) StartRun(ctx context.Context) (*model.SyncRun, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.SyncRun), args.Error(1)
}

func (m *mockStore) CompleteRun(ctx context.Context, runID string, counts model.RunCounts) error {
	return m.Called(ctx, runID, counts).Error(0)
}

func (m *mockStore) FailRun(ctx context.Context, runID string, counts model.RunCounts, errMsg string) error {
	return m.Called(ctx, runID, counts, errMsg).Error(0)
}

// --- Crawler Mock ---

type mockCrawler struct {
	mock.Mock
}

func (m *mockCrawler) Crawl(ctx context.Context) listing.Result {
	return m.Called(ctx).Get(0).(listing.Result)
}

// --- Syncer Mock ---

type mockSyncer struct {
	mock.Mock
}

func (m *mockSyncer) Sync(ctx context.Context, set model.RecordSet) (*catalog.SyncResult, error) {
	args := m.Called(ctx, set)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalog.SyncResult), args.Error(1)
}

// --- Processor Mock ---

type mockProcessor struct {
	mock.Mock
}

func (m *mockProcessor) Process(ctx context.Context, entries []model.CatalogEntry) artifact.Result {
	return m.Called(ctx, entries).Get(0).(artifact.Result)
}
