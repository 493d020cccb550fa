package domain

import (
	"context"
	"io"
	"time"
)

// BlobInfo describes a stored archive object.
type BlobInfo struct {
	Path         string
	Size         int64
	LastModified time.Time
}

// BlobWriter uploads archive objects.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
}

// BlobReader retrieves and inspects archive objects.
type BlobReader interface {
	Get(ctx context.Context, path string) (io.ReadCloser, error)
	List(ctx context.Context, prefix string) ([]BlobInfo, error)
	Exists(ctx context.Context, path string) (bool, error)
}

// LedgerArchiver persists ledger records to cold storage before the
// reconciliation engine deletes them. Implementations must verify the
// archive object exists before returning nil; a non-nil error blocks the
// deletion that follows.
type LedgerArchiver interface {
	ArchiveSoldListings(ctx context.Context, listings []ResaleListing) (string, error)
	ArchiveTransfers(ctx context.Context, transfers []PendingTransfer) (string, error)
}
