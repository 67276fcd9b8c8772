package objstore

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
)

// FileStore keeps objects under a base directory, one file per key.
type FileStore struct {
	baseDir string
}

// NewFileStore creates the base directory if needed.
func NewFileStore(baseDir string) (*FileStore, error) {
	if baseDir == "" {
		return nil, eris.New("objstore: file store dir is empty")
	}
	//nolint:gosec // G301: artifacts are meant to be readable
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "objstore: create dir %s", baseDir)
	}
	return &FileStore{baseDir: baseDir}, nil
}

// Location returns the base directory.
func (s *FileStore) Location() string { return s.baseDir }

func (s *FileStore) path(key string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(key))
	if key == "" || filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", eris.Errorf("objstore: invalid key %q", key)
	}
	return filepath.Join(s.baseDir, clean), nil
}

// Exists reports whether a file is stored under key.
func (s *FileStore) Exists(_ context.Context, key string) (bool, error) {
	p, err := s.path(key)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(p)
	switch {
	case err == nil:
		return true, nil
	case os.IsNotExist(err):
		return false, nil
	default:
		return false, eris.Wrapf(err, "objstore: stat %s", key)
	}
}

// Put copies localPath to key. The write goes to a temp file that is
// renamed into place, so a reader never sees a partial object.
func (s *FileStore) Put(ctx context.Context, key, localPath, _ string) error {
	if err := ctx.Err(); err != nil {
		return eris.Wrap(err, "objstore: put")
	}
	dst, err := s.path(key)
	if err != nil {
		return err
	}
	//nolint:gosec // G301
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return eris.Wrapf(err, "objstore: create dir for %s", key)
	}

	src, err := os.Open(localPath) //nolint:gosec // path comes from the pipeline's temp dir
	if err != nil {
		return eris.Wrapf(err, "objstore: open %s", localPath)
	}
	defer src.Close() //nolint:errcheck

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".put-*")
	if err != nil {
		return eris.Wrapf(err, "objstore: create temp for %s", key)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) //nolint:errcheck

	if _, err := io.Copy(tmp, src); err != nil {
		_ = tmp.Close()
		return eris.Wrapf(err, "objstore: write %s", key)
	}
	if err := tmp.Close(); err != nil {
		return eris.Wrapf(err, "objstore: close %s", key)
	}
	if err := os.Rename(tmpName, dst); err != nil {
		return eris.Wrapf(err, "objstore: rename into %s", key)
	}
	return nil
}
