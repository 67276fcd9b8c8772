package fetcher

import (
	"context"
	"io"
)

// Fetcher downloads remote documents. Implementations make a single attempt
// per call and never retry.
type Fetcher interface {
	// Download fetches the URL and returns the response body. The caller
	// closes the body.
	Download(ctx context.Context, url string) (io.ReadCloser, error)
}
