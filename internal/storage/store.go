package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/harishm17/study-buddy-sub001/internal/config"
	"github.com/harishm17/study-buddy-sub001/internal/utils"
)

var (
	ErrNotFound       = errors.New("object not found")
	ErrInvalidKey     = errors.New("invalid object key")
	ErrURLUnsupported = errors.New("signed urls are not supported by this store")
)

// ObjectStore holds uploaded materials and exports.
type ObjectStore interface {
	Put(ctx context.Context, key string, r io.Reader, contentType string) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	// URL returns a time-limited download URL, or ErrURLUnsupported.
	URL(ctx context.Context, key string, ttl time.Duration) (string, error)
	Ping(ctx context.Context) error
	Name() string
}

// New builds the store selected by storage.backend.
func New(ctx context.Context, cfg config.StorageConfig) (ObjectStore, error) {
	switch cfg.Backend {
	case "gcs":
		return NewGCSStore(ctx, cfg.Bucket)
	case "local", "":
		return NewLocalStore(cfg.LocalDir)
	default:
		return nil, fmt.Errorf("unsupported storage backend: %s", cfg.Backend)
	}
}

func MaterialObjectKey(projectID, materialID, filename string) string {
	return fmt.Sprintf("projects/%s/materials/%s/%s", projectID, materialID, utils.SafeFilename(filename))
}

// ParseGCSPath splits gs://bucket/object into its parts.
func ParseGCSPath(path string) (bucket, object string, err error) {
	rest, ok := strings.CutPrefix(path, "gs://")
	if !ok {
		return "", "", fmt.Errorf("not a gcs path: %q", path)
	}
	bucket, object, ok = strings.Cut(rest, "/")
	if !ok || bucket == "" || object == "" {
		return "", "", fmt.Errorf("gcs path must be gs://bucket/object: %q", path)
	}
	return bucket, object, nil
}

// ReadAll opens key and reads it fully, refusing objects above limit bytes.
func ReadAll(ctx context.Context, store ObjectStore, key string, limit int64) ([]byte, error) {
	rc, err := store.Open(ctx, key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read object %s: %w", key, err)
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("object %s exceeds %d bytes", key, limit)
	}
	return data, nil
}

func validKey(key string) bool {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "\\") {
		return false
	}
	for _, part := range strings.Split(key, "/") {
		if part == "" || part == "." || part == ".." {
			return false
		}
	}
	return true
}
