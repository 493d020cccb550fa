package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cryptoticketing/ticketd/internal/domain"
)

// existsChecker is the slice of domain.BlobReader the archiver needs to
// verify its uploads.
type existsChecker interface {
	Exists(ctx context.Context, path string) (bool, error)
}

// Archiver implements domain.LedgerArchiver: it serialises the records the
// reconciliation engine is about to prune as JSONL and uploads them before
// the deletion happens. Uploads are verified with a HeadObject round trip;
// an unverified upload blocks the prune.
type Archiver struct {
	writer domain.BlobWriter
	reader existsChecker

	// now is swapped in tests to pin archive keys.
	now func() time.Time
}

var _ domain.LedgerArchiver = (*Archiver)(nil)

// NewArchiver creates an Archiver writing through the given blob writer and
// verifying through the given reader.
func NewArchiver(writer domain.BlobWriter, reader existsChecker) *Archiver {
	return &Archiver{
		writer: writer,
		reader: reader,
		now:    time.Now,
	}
}

// ArchiveSoldListings uploads sold listings that have aged out of the
// ledger. Returns the archive object key.
func (a *Archiver) ArchiveSoldListings(ctx context.Context, listings []domain.ResaleListing) (string, error) {
	return archive(ctx, a, "sold_listings", listings)
}

// ArchiveTransfers uploads pending transfers about to be pruned. Returns
// the archive object key.
func (a *Archiver) ArchiveTransfers(ctx context.Context, transfers []domain.PendingTransfer) (string, error) {
	return archive(ctx, a, "pending_transfers", transfers)
}

func archive[T any](ctx context.Context, a *Archiver, kind string, records []T) (string, error) {
	if len(records) == 0 {
		return "", nil
	}

	buf, err := marshalJSONL(records)
	if err != nil {
		return "", fmt.Errorf("s3blob: archive %s marshal: %w", kind, err)
	}

	path := archivePath(kind, a.now().UTC())
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return "", fmt.Errorf("s3blob: archive %s upload: %w", kind, err)
	}

	ok, err := a.reader.Exists(ctx, path)
	if err != nil {
		return "", fmt.Errorf("s3blob: archive %s verify: %w", kind, err)
	}
	if !ok {
		return "", fmt.Errorf("s3blob: archive %s verify: object %s missing after upload", kind, path)
	}
	return path, nil
}

// archivePath builds the object key for one archive batch, e.g.
//
//	archive/sold_listings/20260831T120500.000000000.jsonl
func archivePath(kind string, at time.Time) string {
	return fmt.Sprintf("archive/%s/%s.jsonl", kind, at.Format("20060102T150405.000000000"))
}

// marshalJSONL serialises records as newline-delimited JSON.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}
