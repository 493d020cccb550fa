package domain

import (
	"context"
	"time"
)

// SnapshotCache stores participant snapshots keyed by (eventID, wallet).
// Put must preserve a previously stored HasClaimedRefund=true; only
// MarkRefundClaimed sets it.
type SnapshotCache interface {
	Get(ctx context.Context, eventID uint64, wallet string) (ParticipantSnapshot, error)
	Put(ctx context.Context, snap ParticipantSnapshot) error
	MarkRefundClaimed(ctx context.Context, eventID uint64, wallet string) error
	Purge(ctx context.Context, eventID uint64, wallet string) error
}

// SaleCache stores per-event sale overviews with a short TTL so repeated
// reads between reconciliation passes avoid chain calls.
type SaleCache interface {
	Get(ctx context.Context, eventID uint64) (SaleOverview, error)
	Put(ctx context.Context, overview SaleOverview) error
	Invalidate(ctx context.Context, eventID uint64) error
}

// ViewCache stores derived claim views between reconciliation passes.
type ViewCache interface {
	Get(ctx context.Context, eventID uint64, wallet string) (DerivedView, error)
	Put(ctx context.Context, view DerivedView) error
	Invalidate(ctx context.Context, eventID uint64, wallet string) error
}

// SignalBus provides pub/sub for reconciliation triggers, such as the
// lottery-completed broadcast that wakes every subscriber immediately.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}

// RateLimiter gates requests under a sliding-window limit. Allow counts
// the request when it is permitted.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// LockManager provides coarse distributed locks so concurrent engine
// instances never run the same critical section twice.
type LockManager interface {
	// Acquire obtains the named lock for at most ttl and returns an unlock
	// function that is safe to call more than once. ErrLockHeld means
	// another holder has it.
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error)
}
