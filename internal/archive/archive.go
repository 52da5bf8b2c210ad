package archive

import (
	"context"
	"fmt"
	"io"

	"github.com/couchdir/couchdir/config"
)

// ObjectStore is the slice of object storage the report archive needs.
type ObjectStore interface {
	EnsureBucket(ctx context.Context) error
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Bucket() string
}

// FromConfig builds the configured object store. Backend "none" returns
// nil: archiving disabled.
func FromConfig(ctx context.Context, cfg config.Config) (ObjectStore, error) {
	switch cfg.ArchiveBackend {
	case "", "none":
		return nil, nil
	case "minio":
		return NewMinioStore(cfg.Minio)
	case "gcs":
		return NewGCSStore(ctx, cfg.GCS)
	default:
		return nil, fmt.Errorf("unknown archive backend %q", cfg.ArchiveBackend)
	}
}
