package main

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/standards-cli/internal/model"
	"github.com/sells-group/standards-cli/internal/pipeline"
)

// blockingRunner holds each run open until release is closed.
type blockingRunner struct {
	mu      sync.Mutex
	calls   []pipeline.Options
	started chan struct{}
	release chan struct{}
}

func newBlockingRunner() *blockingRunner {
	return &blockingRunner{started: make(chan struct{}, 4), release: make(chan struct{})}
}

func (b *blockingRunner) Run(ctx context.Context, opts pipeline.Options) (*pipeline.RunResult, error) {
	b.mu.Lock()
	b.calls = append(b.calls, opts)
	b.mu.Unlock()
	b.started <- struct{}{}
	select {
	case <-b.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return &pipeline.RunResult{RunID: "run-1"}, nil
}

func (b *blockingRunner) options() []pipeline.Options {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]pipeline.Options(nil), b.calls...)
}

type mockStatus struct {
	mock.Mock
}

func (m *mockStatus) Ping(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockStatus) Status(ctx context.Context) (*model.SyncStatus, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.SyncStatus), args.Error(1)
}

func (m *mockStatus) ListRuns(ctx context.Context, limit int) ([]model.SyncRun, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.SyncRun), args.Error(1)
}

func post(t *testing.T, h http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func waitStarted(t *testing.T, r *blockingRunner) {
	t.Helper()
	select {
	case <-r.started:
	case <-time.After(2 * time.Second):
		t.Fatal("run did not start")
	}
}

func TestHealth(t *testing.T) {
	st := new(mockStatus)
	st.On("Ping", mock.Anything).Return(nil)
	s := newSyncServer(context.Background(), newBlockingRunner(), st)
	rec := httptest.NewRecorder()
	s.routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"status":"ok","running":false}`, rec.Body.String())
}

func TestHealth_StoreDown(t *testing.T) {
	st := new(mockStatus)
	st.On("Ping", mock.Anything).Return(assert.AnError)
	s := newSyncServer(context.Background(), newBlockingRunner(), st)
	rec := httptest.NewRecorder()
	s.routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"status":"unavailable","running":false}`, rec.Body.String())
}

func TestStatus(t *testing.T) {
	st := new(mockStatus)
	st.On("Status", mock.Anything).Return(&model.SyncStatus{Total: 3, Processed: 2, Pending: 1}, nil)
	st.On("ListRuns", mock.Anything, 10).Return([]model.SyncRun{{ID: "r1", Status: model.RunStatusComplete}}, nil)

	s := newSyncServer(context.Background(), newBlockingRunner(), st)
	rec := httptest.NewRecorder()
	s.routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var got struct {
		Status model.SyncStatus `json:"status"`
		Runs   []model.SyncRun  `json:"runs"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, 1, got.Status.Pending)
	require.Len(t, got.Runs, 1)
	assert.Equal(t, "r1", got.Runs[0].ID)
}

func TestStatus_StoreError(t *testing.T) {
	st := new(mockStatus)
	st.On("Status", mock.Anything).Return(nil, assert.AnError)

	s := newSyncServer(context.Background(), newBlockingRunner(), st)
	rec := httptest.NewRecorder()
	s.routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	st.AssertNotCalled(t, "ListRuns", mock.Anything, mock.Anything)
}

func TestSync_SingleFlight(t *testing.T) {
	runner := newBlockingRunner()
	s := newSyncServer(context.Background(), runner, new(mockStatus))
	h := s.routes()

	first := post(t, h, "/sync", `{"reset": true}`)
	assert.Equal(t, http.StatusAccepted, first.Code)
	waitStarted(t, runner)

	second := post(t, h, "/sync", "")
	assert.Equal(t, http.StatusConflict, second.Code)

	close(runner.release)
	s.wg.Wait()

	third := post(t, h, "/sync", "")
	assert.Equal(t, http.StatusAccepted, third.Code)
	waitStarted(t, runner)
	s.wg.Wait()

	opts := runner.options()
	require.Len(t, opts, 2)
	assert.True(t, opts[0].Reset)
	assert.False(t, opts[1].Reset)
}

func TestSync_BadBody(t *testing.T) {
	runner := newBlockingRunner()
	s := newSyncServer(context.Background(), runner, new(mockStatus))

	rec := post(t, s.routes(), "/sync", "{not json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, runner.options())
}

func TestSync_CancelledServerContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	runner := newBlockingRunner()
	s := newSyncServer(ctx, runner, new(mockStatus))

	rec := post(t, s.routes(), "/sync", "")
	require.Equal(t, http.StatusAccepted, rec.Code)
	waitStarted(t, runner)

	cancel()
	s.wg.Wait()
	assert.False(t, s.running.Load())
}

func TestCORSPreflight(t *testing.T) {
	s := newSyncServer(context.Background(), newBlockingRunner(), new(mockStatus))
	req := httptest.NewRequest(http.MethodOptions, "/sync", nil)
	req.Header.Set("Origin", "https://dashboard.example.test")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	s.routes().ServeHTTP(rec, req)

	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

// ignoringRunner blocks until release even after the server context ends.
type ignoringRunner struct {
	started chan struct{}
	release chan struct{}
}

func (r *ignoringRunner) Run(_ context.Context, _ pipeline.Options) (*pipeline.RunResult, error) {
	close(r.started)
	<-r.release
	return &pipeline.RunResult{RunID: "run-2"}, nil
}

func TestRunServer_WaitsForInFlightRun(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runner := &ignoringRunner{started: make(chan struct{}), release: make(chan struct{})}
	api := newSyncServer(ctx, runner, new(mockStatus))
	srv := &http.Server{Handler: api.routes(), ReadHeaderTimeout: time.Second}
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- runServer(ctx, srv, api, ln) }()

	resp, err := http.Post("http://"+ln.Addr().String()+"/sync", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close() //nolint:errcheck
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	<-runner.started

	cancel()
	select {
	case err := <-done:
		t.Fatalf("runServer returned before the run finished: %v", err)
	case <-time.After(100 * time.Millisecond):
	}

	close(runner.release)
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("runServer did not return")
	}

	rec := post(t, api.routes(), "/sync", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
