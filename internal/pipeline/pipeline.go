// Package pipeline orchestrates a full run: crawl the listing, sync the
// catalog, then render and upload artifacts for every entry still missing
// them.
package pipeline

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/standards-cli/internal/artifact"
	"github.com/sells-group/standards-cli/internal/catalog"
	"github.com/sells-group/standards-cli/internal/listing"
	"github.com/sells-group/standards-cli/internal/model"
)

// ErrNoRecords fails a run whose crawl produced nothing to sync.
var ErrNoRecords = eris.New("pipeline: no records crawled")

// Store is the persistence surface a run needs.
type Store interface {
	ClearArtifactKeys(ctx context.Context) (int64, error)
	ListUnprocessed(ctx context.Context) ([]model.CatalogEntry, error)
	Status(ctx context.Context) (*model.SyncStatus, error)
	StartRun(ctx context.Context) (*model.SyncRun, error)
	CompleteRun(ctx context.Context, runID string, counts model.RunCounts) error
	FailRun(ctx context.Context, runID string, counts model.RunCounts, errMsg string) error
}

// Crawler produces the listing records.
type Crawler interface {
	Crawl(ctx context.Context) listing.Result
}

// Syncer reconciles records against the catalog.
type Syncer interface {
	Sync(ctx context.Context, set model.RecordSet) (*catalog.SyncResult, error)
}

// Processor renders and uploads artifacts.
type Processor interface {
	Process(ctx context.Context, entries []model.CatalogEntry) artifact.Result
}

// Options tune a single run.
type Options struct {
	// Reset clears every artifact key before crawling.
	Reset         bool
	SkipArtifacts bool
}

// CrawlSummary is the crawl part of a RunResult.
type CrawlSummary struct {
	Records int                `json:"records"`
	Pages   int                `json:"pages"`
	Outcome model.CrawlOutcome `json:"outcome"`
	Error   string             `json:"error,omitempty"`
}

// RunResult reports what a run did.
type RunResult struct {
	RunID         string              `json:"run_id"`
	Reset         int64               `json:"reset,omitempty"`
	InitialStatus *model.SyncStatus   `json:"initial_status,omitempty"`
	Crawl         CrawlSummary        `json:"crawl"`
	Sync          *catalog.SyncResult `json:"sync,omitempty"`
	Artifacts     artifact.Result     `json:"artifacts"`
	FinalStatus   *model.SyncStatus   `json:"final_status,omitempty"`
	Duration      time.Duration       `json:"duration"`
}

// Counts returns the figures recorded on the sync run.
func (r *RunResult) Counts() model.RunCounts {
	c := model.RunCounts{
		CrawlOutcome:       r.Crawl.Outcome,
		RecordsCrawled:     r.Crawl.Records,
		ArtifactsSucceeded: r.Artifacts.Succeeded,
		ArtifactsFailed:    r.Artifacts.Failed,
	}
	if r.Sync != nil {
		c.RecordsNew = r.Sync.New()
	}
	return c
}

// Pipeline wires the run stages together.
type Pipeline struct {
	store     Store
	crawler   Crawler
	syncer    Syncer
	processor Processor
	log       *zap.Logger
}

// New creates a Pipeline.
func New(st Store, crawler Crawler, syncer Syncer, processor Processor) *Pipeline {
	return &Pipeline{
		store:     st,
		crawler:   crawler,
		syncer:    syncer,
		processor: processor,
		log:       zap.L().With(zap.String("component", "pipeline")),
	}
}

// Run executes crawl, sync and artifact processing, recording the outcome as
// a sync run. A crawl that aborted after gathering records still proceeds.
// Run fails when nothing was crawled or when the sync or the store fails;
// individual artifact failures only show up in the counts.
func (p *Pipeline) Run(ctx context.Context, opts Options) (*RunResult, error) {
	start := time.Now()
	res := &RunResult{}

	initial, err := p.store.Status(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: initial status")
	}
	res.InitialStatus = initial
	p.log.Info("initial sync status",
		zap.Int("db_total", initial.Total),
		zap.Int("db_processed", initial.Processed),
		zap.Int("pending", initial.Pending),
	)

	if opts.Reset {
		n, err := p.store.ClearArtifactKeys(ctx)
		if err != nil {
			return nil, eris.Wrap(err, "pipeline: reset artifact keys")
		}
		res.Reset = n
		p.log.Info("artifact keys reset", zap.Int64("entries", n))
	}

	run, err := p.store.StartRun(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: start run")
	}
	res.RunID = run.ID
	log := p.log.With(zap.String("run_id", run.ID))

	log.Info("step 1: crawling listing")
	crawl := p.crawler.Crawl(ctx)
	res.Crawl = CrawlSummary{Records: len(crawl.Records), Pages: crawl.Pages, Outcome: crawl.Outcome}
	if crawl.Err != nil {
		res.Crawl.Error = crawl.Err.Error()
	}
	if len(crawl.Records) == 0 {
		err := ErrNoRecords
		if crawl.Err != nil {
			err = eris.Wrapf(ErrNoRecords, "crawl %s: %v", crawl.Outcome, crawl.Err)
		}
		return p.fail(ctx, log, res, start, err)
	}
	if crawl.Outcome == listing.OutcomeAborted {
		log.Warn("crawl aborted early, syncing partial records",
			zap.Int("records", len(crawl.Records)),
			zap.Error(crawl.Err),
		)
	}

	log.Info("step 2: syncing catalog", zap.Int("records", len(crawl.Records)))
	synced, err := p.syncer.Sync(ctx, crawl.RecordSet())
	if err != nil {
		return p.fail(ctx, log, res, start, eris.Wrap(err, "pipeline: sync"))
	}
	res.Sync = synced

	status, err := p.store.Status(ctx)
	if err != nil {
		return p.fail(ctx, log, res, start, eris.Wrap(err, "pipeline: status after sync"))
	}
	log.Info("catalog synced",
		zap.Int("new_records", synced.New()),
		zap.Int("pending", status.Pending),
	)

	switch {
	case opts.SkipArtifacts:
		log.Info("artifact processing skipped")
	case synced.New() == 0 && status.Pending == 0:
		log.Info("no new data or documents to process")
	default:
		log.Info("step 3: processing unprocessed standards")
		arts, err := p.processPending(ctx)
		if err != nil {
			return p.fail(ctx, log, res, start, err)
		}
		res.Artifacts = arts
	}

	final, err := p.store.Status(ctx)
	if err != nil {
		return p.fail(ctx, log, res, start, eris.Wrap(err, "pipeline: final status"))
	}
	res.FinalStatus = final
	res.Duration = time.Since(start)

	if err := p.store.CompleteRun(ctx, run.ID, res.Counts()); err != nil {
		return res, eris.Wrap(err, "pipeline: complete run")
	}
	log.Info("pipeline complete",
		zap.Int("db_total", final.Total),
		zap.Int("db_processed", final.Processed),
		zap.Int("pending", final.Pending),
		zap.Duration("duration", res.Duration),
	)
	return res, nil
}

// Process runs the artifact stage alone over every unprocessed entry.
func (p *Pipeline) Process(ctx context.Context) (artifact.Result, error) {
	return p.processPending(ctx)
}

func (p *Pipeline) processPending(ctx context.Context) (artifact.Result, error) {
	pending, err := p.store.ListUnprocessed(ctx)
	if err != nil {
		return artifact.Result{}, eris.Wrap(err, "pipeline: list unprocessed")
	}
	if len(pending) == 0 {
		p.log.Info("no unprocessed standards found")
		return artifact.Result{}, nil
	}
	return p.processor.Process(ctx, pending), nil
}

// fail records the run as failed. The original error is returned even when
// recording it also fails.
func (p *Pipeline) fail(ctx context.Context, log *zap.Logger, res *RunResult, start time.Time, cause error) (*RunResult, error) {
	res.Duration = time.Since(start)
	log.Error("pipeline failed", zap.Error(cause))
	// Record the failure even if the run context was cancelled.
	recCtx := context.WithoutCancel(ctx)
	if err := p.store.FailRun(recCtx, res.RunID, res.Counts(), cause.Error()); err != nil {
		log.Error("failed to record run failure", zap.Error(err))
	}
	return res, cause
}
