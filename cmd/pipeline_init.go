package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/standards-cli/internal/artifact"
	"github.com/sells-group/standards-cli/internal/catalog"
	"github.com/sells-group/standards-cli/internal/enrich"
	"github.com/sells-group/standards-cli/internal/fetcher"
	"github.com/sells-group/standards-cli/internal/listing"
	"github.com/sells-group/standards-cli/internal/objstore"
	"github.com/sells-group/standards-cli/internal/pipeline"
	"github.com/sells-group/standards-cli/internal/render"
	"github.com/sells-group/standards-cli/internal/store"
)

const defaultSQLitePath = "standards.db"

// initStore opens the configured catalog store. The caller owns Close.
func initStore(ctx context.Context) (store.Store, error) {
	if err := cfg.Validate("store"); err != nil {
		return nil, err
	}

	switch cfg.Store.Driver {
	case "postgres":
		st, err := store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
		if err != nil {
			return nil, eris.Wrap(err, "init postgres store")
		}
		return st, nil
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = defaultSQLitePath
		}
		st, err := store.NewSQLite(dsn)
		if err != nil {
			return nil, eris.Wrap(err, "init sqlite store")
		}
		return st, nil
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// openStore opens and migrates the store.
func openStore(ctx context.Context) (store.Store, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

func newFetcher() fetcher.Fetcher {
	return fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		UserAgent:         cfg.Source.UserAgent,
		Timeout:           cfg.Source.Timeout(),
		RequestsPerSecond: cfg.Source.RequestsPerSecond,
	})
}

func newCrawler(f fetcher.Fetcher) (*listing.Crawler, error) {
	c, err := listing.NewCrawler(f, listing.CrawlerConfig{
		BaseURL:   cfg.Source.BaseURL,
		PageSize:  cfg.Crawl.PageSize,
		PageDelay: cfg.Crawl.PageDelay(),
	})
	if err != nil {
		return nil, eris.Wrap(err, "init crawler")
	}
	return c, nil
}

// pipelineEnv holds every handle a pipeline command needs.
type pipelineEnv struct {
	Store     store.Store
	Objects   objstore.Store
	Processor *artifact.Processor
	Pipeline  *pipeline.Pipeline
}

// Close releases the store.
func (e *pipelineEnv) Close() {
	if e.Store != nil {
		if err := e.Store.Close(); err != nil {
			zap.L().Warn("close store", zap.Error(err))
		}
	}
}

// initPipeline validates config for mode and wires the store, source,
// object store and stages. overwrite disables the existing-object check.
func initPipeline(ctx context.Context, mode string, overwrite bool) (*pipelineEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	st, err := openStore(ctx)
	if err != nil {
		return nil, err
	}
	env := &pipelineEnv{Store: st}

	objects, err := objstore.New(ctx, cfg.ObjStore)
	if err != nil {
		env.Close()
		return nil, eris.Wrap(err, "init object store")
	}
	env.Objects = objects

	f := newFetcher()
	crawler, err := newCrawler(f)
	if err != nil {
		env.Close()
		return nil, err
	}

	env.Processor = artifact.NewProcessor(st, objects, enrich.NewClient(f), render.Files{}, artifact.Options{
		Workers:   cfg.Artifacts.ArtifactWorkers(),
		Pace:      cfg.Artifacts.Pace(),
		TempDir:   cfg.Artifacts.TempDir,
		Prefix:    cfg.Artifacts.Prefix,
		Overwrite: overwrite,
	})
	env.Pipeline = pipeline.New(st, crawler, catalog.NewSynchronizer(st, objects.Location()), env.Processor)

	zap.L().Info("pipeline initialized",
		zap.String("store", cfg.Store.Driver),
		zap.String("objstore", cfg.ObjStore.Driver),
		zap.String("location", objects.Location()),
		zap.Int("workers", cfg.Artifacts.ArtifactWorkers()),
	)
	return env, nil
}

// bucketName is the location recorded on new catalog entries.
func bucketName() string {
	if cfg.ObjStore.Driver == objstore.DriverFS {
		return cfg.ObjStore.Dir
	}
	return cfg.ObjStore.Bucket
}
