package storage

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
)

// LocalBucket keeps objects in a directory served under URLPrefix.
type LocalBucket struct {
	dir       string
	urlPrefix string
}

var _ Bucket = (*LocalBucket)(nil)

// NewLocalBucket creates dir when missing.
func NewLocalBucket(dir, urlPrefix string) (*LocalBucket, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, eris.New("upload directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "creating upload directory %s", dir)
	}
	if urlPrefix == "" {
		urlPrefix = "/uploads/"
	}
	if !strings.HasSuffix(urlPrefix, "/") {
		urlPrefix += "/"
	}
	return &LocalBucket{dir: dir, urlPrefix: urlPrefix}, nil
}

// Dir is the root directory of the bucket.
func (b *LocalBucket) Dir() string {
	return b.dir
}

// Upload writes data at path relative to the bucket root. Existing files are never replaced.
func (b *LocalBucket) Upload(_ context.Context, path string, data []byte, _ string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(strings.TrimLeft(path, "/")))
	if clean == "." || strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return "", eris.Errorf("invalid object path: %s", path)
	}

	target := filepath.Join(b.dir, clean)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", eris.Wrap(err, "creating object directory")
	}

	file, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return "", eris.Wrap(ErrExists, path)
		}
		return "", eris.Wrap(err, "creating object file")
	}

	if _, err := file.Write(data); err != nil {
		_ = file.Close()
		return "", eris.Wrap(err, "writing object file")
	}
	if err := file.Close(); err != nil {
		return "", eris.Wrap(err, "closing object file")
	}

	return b.urlPrefix + filepath.ToSlash(clean), nil
}
