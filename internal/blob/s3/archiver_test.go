package s3blob

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/cryptoticketing/ticketd/internal/domain"
)

type memBlob struct {
	objects map[string][]byte
	putErr  error
}

func newMemBlob() *memBlob {
	return &memBlob{objects: map[string][]byte{}}
}

func (m *memBlob) Put(ctx context.Context, path string, data io.Reader, contentType string) error {
	if m.putErr != nil {
		return m.putErr
	}
	b, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	m.objects[path] = b
	return nil
}

func (m *memBlob) Exists(ctx context.Context, path string) (bool, error) {
	_, ok := m.objects[path]
	return ok, nil
}

func testArchiver(blob *memBlob) *Archiver {
	a := NewArchiver(blob, blob)
	a.now = func() time.Time {
		return time.Date(2026, 8, 31, 12, 5, 0, 0, time.UTC)
	}
	return a
}

func TestArchiveSoldListings(t *testing.T) {
	blob := newMemBlob()
	a := testArchiver(blob)

	sold := time.Date(2026, 8, 20, 9, 0, 0, 0, time.UTC)
	listings := []domain.ResaleListing{
		{
			ID: "l1", EventID: 7, Seller: "0xabc",
			Price: "0.05", PriceWei: "50000000000000000",
			IsClaimRight: true, Sold: true, SoldTimestamp: &sold,
		},
		{
			ID: "l2", EventID: 8, Seller: "0xdef",
			Price: "0.10", PriceWei: "100000000000000000",
			IsClaimRight: true, Sold: true, SoldTimestamp: &sold,
		},
	}

	path, err := a.ArchiveSoldListings(context.Background(), listings)
	if err != nil {
		t.Fatalf("ArchiveSoldListings: %v", err)
	}
	if !strings.HasPrefix(path, "archive/sold_listings/") || !strings.HasSuffix(path, ".jsonl") {
		t.Errorf("unexpected key %q", path)
	}

	body, ok := blob.objects[path]
	if !ok {
		t.Fatalf("object %q not uploaded", path)
	}

	var got []domain.ResaleListing
	sc := bufio.NewScanner(bytes.NewReader(body))
	for sc.Scan() {
		var l domain.ResaleListing
		if err := json.Unmarshal(sc.Bytes(), &l); err != nil {
			t.Fatalf("decode line: %v", err)
		}
		got = append(got, l)
	}
	if len(got) != 2 || got[0].ID != "l1" || got[1].ID != "l2" {
		t.Errorf("round trip = %+v", got)
	}
}

func TestArchiveEmptyBatchSkipsUpload(t *testing.T) {
	blob := newMemBlob()
	a := testArchiver(blob)

	path, err := a.ArchiveTransfers(context.Background(), nil)
	if err != nil {
		t.Fatalf("ArchiveTransfers: %v", err)
	}
	if path != "" {
		t.Errorf("key for empty batch: %q", path)
	}
	if len(blob.objects) != 0 {
		t.Error("empty batch was uploaded")
	}
}

func TestArchiveUploadFailure(t *testing.T) {
	blob := newMemBlob()
	blob.putErr = io.ErrClosedPipe
	a := testArchiver(blob)

	_, err := a.ArchiveTransfers(context.Background(), []domain.PendingTransfer{
		{ID: "t1", EventID: 1, Seller: "0xabc", Buyer: "0xdef"},
	})
	if err == nil {
		t.Fatal("upload failure not surfaced")
	}
}
