// Package objstore stores rendered artifacts under string keys.
package objstore

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/standards-cli/internal/config"
)

// Driver names accepted by New.
const (
	DriverS3 = "s3"
	DriverFS = "fs"
)

// Content types of the artifacts the pipeline uploads.
const (
	ContentTypePDF  = "application/pdf"
	ContentTypeHTML = "text/html"
)

// Store is durable object storage addressed by key.
type Store interface {
	// Exists reports whether an object is stored under key.
	Exists(ctx context.Context, key string) (bool, error)
	// Put uploads the file at localPath under key.
	Put(ctx context.Context, key, localPath, contentType string) error
	// Location names where objects land: a bucket or a directory.
	Location() string
}

// New builds the Store selected by cfg.Driver.
func New(ctx context.Context, cfg config.ObjStoreConfig) (Store, error) {
	switch cfg.Driver {
	case DriverS3:
		return NewS3Store(ctx, S3Config{
			Bucket:   cfg.Bucket,
			Region:   cfg.Region,
			Endpoint: cfg.Endpoint,
		})
	case DriverFS:
		return NewFileStore(cfg.Dir)
	default:
		return nil, eris.Errorf("objstore: unsupported driver %q", cfg.Driver)
	}
}
