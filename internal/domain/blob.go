package domain

import (
	"context"
	"io"
	"time"
)

// BlobWriter uploads objects to the archive store.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
}

// BlobReader retrieves and inspects archived objects.
type BlobReader interface {
	// Get returns the object body; the caller closes it. Returns
	// ErrNotFound when no object exists at path.
	Get(ctx context.Context, path string) (io.ReadCloser, error)
	List(ctx context.Context, prefix string) ([]BlobInfo, error)
	Exists(ctx context.Context, path string) (bool, error)
}

// BlobInfo describes one archived object.
type BlobInfo struct {
	Path         string    `json:"path"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"last_modified"`
}

// Archiver exports old audit entries to the blob store and prunes them from
// the primary database.
type Archiver interface {
	// Archive exports entries created before the cutoff and returns the
	// number of rows pruned.
	Archive(ctx context.Context, before time.Time) (int64, error)
}
