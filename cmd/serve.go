package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/standards-cli/internal/model"
	"github.com/sells-group/standards-cli/internal/pipeline"
)

const shutdownTimeout = 30 * time.Second

var servePort int

// syncRunner starts a full pipeline run.
type syncRunner interface {
	Run(ctx context.Context, opts pipeline.Options) (*pipeline.RunResult, error)
}

// statusSource reports store health, catalog status and run history.
type statusSource interface {
	Ping(ctx context.Context) error
	Status(ctx context.Context) (*model.SyncStatus, error)
	ListRuns(ctx context.Context, limit int) ([]model.SyncRun, error)
}

// syncServer serves the HTTP API. At most one run is in flight.
type syncServer struct {
	runner  syncRunner
	status  statusSource
	baseCtx context.Context
	running atomic.Bool
	log     *zap.Logger

	mu      sync.Mutex
	closing bool
	wg      sync.WaitGroup
}

func newSyncServer(ctx context.Context, runner syncRunner, status statusSource) *syncServer {
	return &syncServer{
		runner:  runner,
		status:  status,
		baseCtx: ctx,
		log:     zap.L().With(zap.String("component", "server")),
	}
}

type syncRequest struct {
	Reset         bool `json:"reset"`
	SkipArtifacts bool `json:"skip_artifacts"`
}

func (s *syncServer) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	r.Get("/status", s.handleStatus)
	r.Post("/sync", s.handleSync)
	return r
}

func (s *syncServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.status.Ping(r.Context()); err != nil {
		s.log.Warn("store ping failed", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "unavailable", "running": s.running.Load()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "running": s.running.Load()})
}

func (s *syncServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.status.Status(r.Context())
	if err != nil {
		s.log.Error("status query failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "status unavailable"})
		return
	}
	runs, err := s.status.ListRuns(r.Context(), 10)
	if err != nil {
		s.log.Error("run history query failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "status unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, statusReport{Status: status, Runs: runs})
}

func (s *syncServer) handleSync(w http.ResponseWriter, r *http.Request) {
	var req syncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	s.mu.Lock()
	if s.closing {
		s.mu.Unlock()
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "server is shutting down"})
		return
	}
	if !s.running.CompareAndSwap(false, true) {
		s.mu.Unlock()
		writeJSON(w, http.StatusConflict, map[string]string{"error": "a sync is already running"})
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		defer s.running.Store(false)

		res, err := s.runner.Run(s.baseCtx, pipeline.Options{Reset: req.Reset, SkipArtifacts: req.SkipArtifacts})
		if err != nil {
			s.log.Error("triggered sync failed", zap.Error(err))
			return
		}
		s.log.Info("triggered sync complete",
			zap.String("run_id", res.RunID),
			zap.Int("records", res.Crawl.Records),
			zap.Int("artifacts_failed", res.Artifacts.Failed),
		)
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

// wait refuses new runs, then blocks until an in-flight run returns.
func (s *syncServer) wait() {
	s.mu.Lock()
	s.closing = true
	s.mu.Unlock()
	s.wg.Wait()
}

// runServer serves on ln until ctx is done. It returns only after Shutdown
// has drained the handlers and any triggered run has finished, so the
// caller may close the store afterwards.
func runServer(ctx context.Context, srv *http.Server, api *syncServer, ln net.Listener) error {
	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		<-ctx.Done()
		zap.L().Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			zap.L().Warn("server shutdown", zap.Error(err))
		}
	}()

	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return eris.Wrap(err, "server listen")
	}
	<-shutdownDone
	api.wait()
	return nil
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the sync API",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if servePort != 0 {
			cfg.Server.Port = servePort
		}

		env, err := initPipeline(ctx, "serve", false)
		if err != nil {
			return err
		}
		defer env.Close()

		api := newSyncServer(ctx, env.Pipeline, env.Store)
		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:           api.routes(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		ln, err := net.Listen("tcp", srv.Addr)
		if err != nil {
			return eris.Wrap(err, "server listen")
		}

		zap.L().Info("starting server", zap.Int("port", cfg.Server.Port))
		if err := runServer(ctx, srv, api, ln); err != nil {
			return err
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
