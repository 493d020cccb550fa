package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// ClaimRightStore persists claim-right records. The store is append-only;
// duplicate (eventID, newOwner) rows are expected and resolved at read time.
type ClaimRightStore interface {
	Add(ctx context.Context, right ClaimRight) error
	ListByOwner(ctx context.Context, owner string) ([]ClaimRight, error)
	ListByEvent(ctx context.Context, eventID uint64) ([]ClaimRight, error)
}

// ListingStore persists resale listings. Create must reject a second active
// claim-right listing for the same (eventID, seller) with
// ErrDuplicateListing. Sold listings are retained, not deleted.
type ListingStore interface {
	Create(ctx context.Context, listing ResaleListing) error
	GetByID(ctx context.Context, id string) (ResaleListing, error)
	ActiveClaimRight(ctx context.Context, eventID uint64, seller string) (ResaleListing, error)
	ListOpen(ctx context.Context, opts ListOpts) ([]ResaleListing, error)
	ListBySeller(ctx context.Context, seller string) ([]ResaleListing, error)
	MarkSold(ctx context.Context, id string, soldAt time.Time) error
	Delete(ctx context.Context, id string) error
	DeleteAllUnsold(ctx context.Context) (int64, error)
	ListSoldBefore(ctx context.Context, cutoff time.Time) ([]ResaleListing, error)
}

// TransferStore persists pending winner-status transfers. Complete marks a
// transfer done exactly once; completing an already-completed transfer is a
// no-op returning ErrAlreadyExists.
type TransferStore interface {
	Create(ctx context.Context, transfer PendingTransfer) error
	GetByID(ctx context.Context, id string) (PendingTransfer, error)
	Complete(ctx context.Context, id string, buyerAddress string, at time.Time) error
	FindOpen(ctx context.Context, eventID uint64, seller string) (PendingTransfer, error)
	ListIncompleteBySeller(ctx context.Context, seller string) ([]PendingTransfer, error)
	ListStale(ctx context.Context, olderThan time.Time) ([]PendingTransfer, error)
	DeleteStale(ctx context.Context, olderThan time.Time) (int64, error)
	DeleteCompleted(ctx context.Context) (int64, error)
	DeleteInvalid(ctx context.Context) (int64, error)
}

// SoldKeyStore persists sold-claim-right markers. Add is idempotent.
type SoldKeyStore interface {
	Add(ctx context.Context, key SoldClaimRightKey) error
	Exists(ctx context.Context, eventID uint64, seller string) (bool, error)
	List(ctx context.Context) ([]SoldClaimRightKey, error)
	ListBySeller(ctx context.Context, seller string) ([]SoldClaimRightKey, error)
	Delete(ctx context.Context, eventID uint64, seller string) error
}

// ReceiptStore persists ticket mint receipts.
type ReceiptStore interface {
	Add(ctx context.Context, receipt ClaimReceipt) error
	Exists(ctx context.Context, eventID uint64, wallet string) (bool, error)
	ListByWallet(ctx context.Context, wallet string) ([]ClaimReceipt, error)
}

// EventStore persists event metadata created through the catalog.
type EventStore interface {
	Upsert(ctx context.Context, meta EventMeta) error
	GetByID(ctx context.Context, eventID uint64) (EventMeta, error)
	List(ctx context.Context, opts ListOpts) ([]EventMeta, error)
	Delete(ctx context.Context, eventID uint64) error
}
