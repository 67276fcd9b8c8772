package artifact

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/standards-cli/internal/enrich"
	"github.com/sells-group/standards-cli/internal/model"
	"github.com/sells-group/standards-cli/internal/objstore"
	"github.com/sells-group/standards-cli/internal/resilience"
)

// Store records the artifact keys of a completed entry.
type Store interface {
	SetArtifactKeys(ctx context.Context, entry model.CatalogEntry, primaryKey, secondaryKey string) error
}

// Renderer writes a detail to local files.
type Renderer interface {
	PDF(d model.StandardDetail, path string) error
	HTML(d model.StandardDetail, path string) error
}

// Options configures a Processor.
type Options struct {
	Workers int
	// Pace is how long a worker waits after finishing an entry.
	Pace    time.Duration
	TempDir string
	Prefix  string
	// Overwrite skips the existence check and always renders and uploads.
	Overwrite bool
}

// Result counts entry outcomes. AlreadyStored entries are included in
// Succeeded.
type Result struct {
	Total         int `json:"total"`
	Succeeded     int `json:"succeeded"`
	Failed        int `json:"failed"`
	AlreadyStored int `json:"already_stored"`
}

// Processor drives entries through fetch, render, upload and record.
type Processor struct {
	store    Store
	objects  objstore.Store
	source   enrich.Source
	renderer Renderer
	opts     Options
	log      *zap.Logger
}

// NewProcessor creates a Processor. Workers below 1 are treated as 1.
func NewProcessor(st Store, objects objstore.Store, source enrich.Source, renderer Renderer, opts Options) *Processor {
	opts.Workers = max(opts.Workers, 1)
	if opts.TempDir == "" {
		opts.TempDir = os.TempDir()
	}
	if opts.Prefix == "" {
		opts.Prefix = DefaultPrefix
	}
	return &Processor{
		store:    st,
		objects:  objects,
		source:   source,
		renderer: renderer,
		opts:     opts,
		log:      zap.L().With(zap.String("component", "artifact.processor")),
	}
}

// Process handles every entry on a bounded worker pool. One entry's failure
// never stops the others; Process itself only returns once all are done.
func (p *Processor) Process(ctx context.Context, entries []model.CatalogEntry) Result {
	res := Result{Total: len(entries)}
	if len(entries) == 0 {
		p.log.Info("no unprocessed standards")
		return res
	}

	p.log.Info("processing entries",
		zap.Int("entries", len(entries)),
		zap.Int("workers", p.opts.Workers),
		zap.Bool("overwrite", p.opts.Overwrite),
	)
	start := time.Now()

	var g errgroup.Group
	g.SetLimit(p.opts.Workers)

	var succeeded, failed, stored atomic.Int64
	for _, entry := range entries {
		g.Go(func() error {
			already, err := p.processEntry(ctx, entry)
			if err != nil {
				failed.Add(1)
				p.log.Error("entry failed",
					zap.String("identity", string(entry.Identity)),
					zap.String("recognition_number", entry.RecognitionNumber),
					zap.String("title_link", entry.TitleLink),
					zap.String("class", resilience.ClassifyError(err)),
					zap.Error(err),
				)
			} else {
				succeeded.Add(1)
				if already {
					stored.Add(1)
				}
			}
			pause(ctx, p.opts.Pace)
			return nil // never abort siblings
		})
	}
	_ = g.Wait()

	res.Succeeded = int(succeeded.Load())
	res.Failed = int(failed.Load())
	res.AlreadyStored = int(stored.Load())
	p.log.Info("processing complete",
		zap.Int("total", res.Total),
		zap.Int("succeeded", res.Succeeded),
		zap.Int("failed", res.Failed),
		zap.Int("already_stored", res.AlreadyStored),
		zap.Duration("elapsed", time.Since(start)),
	)
	return res
}

// processEntry reports true when both objects were already stored and only
// the keys had to be recorded.
func (p *Processor) processEntry(ctx context.Context, entry model.CatalogEntry) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, eris.Wrap(err, "artifact: cancelled")
	}
	keys := KeysFor(p.opts.Prefix, entry)
	log := p.log.With(zap.String("identity", string(entry.Identity)))

	if !p.opts.Overwrite {
		exists, err := p.bothExist(ctx, keys)
		if err != nil {
			return false, err
		}
		if exists {
			log.Info("artifacts already stored, recording keys", zap.String("pdf_key", keys.PDF))
			if err := p.store.SetArtifactKeys(ctx, entry, keys.PDF, keys.HTML); err != nil {
				return false, eris.Wrap(err, "artifact: record existing keys")
			}
			return true, nil
		}
	}

	detail, err := p.source.Detail(ctx, entry)
	if err != nil {
		return false, eris.Wrap(err, "artifact: fetch detail")
	}

	dir, err := os.MkdirTemp(p.opts.TempDir, "standard-*")
	if err != nil {
		return false, eris.Wrap(err, "artifact: create temp dir")
	}
	defer func() {
		if rmErr := os.RemoveAll(dir); rmErr != nil {
			log.Warn("failed to remove temp dir", zap.String("dir", dir), zap.Error(rmErr))
		}
	}()

	name := Name(entry)
	pdfPath := filepath.Join(dir, name+".pdf")
	htmlPath := filepath.Join(dir, name+".html")

	if err := p.renderer.PDF(detail, pdfPath); err != nil {
		return false, eris.Wrap(err, "artifact: render pdf")
	}
	if err := p.renderer.HTML(detail, htmlPath); err != nil {
		return false, eris.Wrap(err, "artifact: render html")
	}

	if err := p.objects.Put(ctx, keys.PDF, pdfPath, objstore.ContentTypePDF); err != nil {
		return false, eris.Wrap(err, "artifact: upload pdf")
	}
	if err := p.objects.Put(ctx, keys.HTML, htmlPath, objstore.ContentTypeHTML); err != nil {
		return false, eris.Wrap(err, "artifact: upload html")
	}

	if err := p.store.SetArtifactKeys(ctx, entry, keys.PDF, keys.HTML); err != nil {
		return false, eris.Wrap(err, "artifact: record keys")
	}
	log.Info("artifacts stored", zap.String("pdf_key", keys.PDF), zap.String("html_key", keys.HTML))
	return false, nil
}

func (p *Processor) bothExist(ctx context.Context, keys Keys) (bool, error) {
	ok, err := p.objects.Exists(ctx, keys.PDF)
	if err != nil {
		return false, eris.Wrap(err, "artifact: check pdf")
	}
	if !ok {
		return false, nil
	}
	ok, err = p.objects.Exists(ctx, keys.HTML)
	if err != nil {
		return false, eris.Wrap(err, "artifact: check html")
	}
	return ok, nil
}

func pause(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
