package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/cryptoticketing/ticketd/internal/domain"
)

// SnapshotCache implements domain.SnapshotCache using JSON values in Redis.
// Snapshots carry no TTL: hasClaimedRefund is local truth the chain cannot
// restore, so entries live until explicitly purged.
//
// Key schema:
//
//	snapshot:{eventID}:{wallet} - JSON-serialized ParticipantSnapshot
type SnapshotCache struct {
	rdb *redis.Client
}

// NewSnapshotCache creates a SnapshotCache backed by the given Client.
func NewSnapshotCache(c *Client) *SnapshotCache {
	return &SnapshotCache{rdb: c.Underlying()}
}

func snapshotKey(eventID uint64, wallet string) string {
	return fmt.Sprintf("snapshot:%d:%s", eventID, domain.NormalizeAddress(wallet))
}

// Get retrieves the snapshot for (event, wallet). It returns
// domain.ErrNotFound when none is stored.
func (sc *SnapshotCache) Get(ctx context.Context, eventID uint64, wallet string) (domain.ParticipantSnapshot, error) {
	data, err := sc.rdb.Get(ctx, snapshotKey(eventID, wallet)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.ParticipantSnapshot{}, domain.ErrNotFound
		}
		return domain.ParticipantSnapshot{}, fmt.Errorf("redis: get snapshot: %w", err)
	}

	var snap domain.ParticipantSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return domain.ParticipantSnapshot{}, fmt.Errorf("redis: unmarshal snapshot: %w", err)
	}
	return snap, nil
}

// Put stores a snapshot. A previously recorded hasClaimedRefund=true is
// preserved even when the incoming snapshot says false, since refresh reads
// the chain and the chain does not know about local refund claims.
func (sc *SnapshotCache) Put(ctx context.Context, snap domain.ParticipantSnapshot) error {
	snap.Wallet = domain.NormalizeAddress(snap.Wallet)

	prev, err := sc.Get(ctx, snap.EventID, snap.Wallet)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return err
	}
	if err == nil && prev.HasClaimedRefund {
		snap.HasClaimedRefund = true
	}

	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("redis: marshal snapshot: %w", err)
	}
	if err := sc.rdb.Set(ctx, snapshotKey(snap.EventID, snap.Wallet), data, 0).Err(); err != nil {
		return fmt.Errorf("redis: put snapshot: %w", err)
	}
	return nil
}

// MarkRefundClaimed flips hasClaimedRefund for (event, wallet). The snapshot
// must already exist.
func (sc *SnapshotCache) MarkRefundClaimed(ctx context.Context, eventID uint64, wallet string) error {
	snap, err := sc.Get(ctx, eventID, wallet)
	if err != nil {
		return err
	}
	snap.HasClaimedRefund = true

	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("redis: marshal snapshot: %w", err)
	}
	if err := sc.rdb.Set(ctx, snapshotKey(eventID, wallet), data, 0).Err(); err != nil {
		return fmt.Errorf("redis: mark refund claimed: %w", err)
	}
	return nil
}

// Purge removes the stored snapshot.
func (sc *SnapshotCache) Purge(ctx context.Context, eventID uint64, wallet string) error {
	if err := sc.rdb.Del(ctx, snapshotKey(eventID, wallet)).Err(); err != nil {
		return fmt.Errorf("redis: purge snapshot: %w", err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.SnapshotCache = (*SnapshotCache)(nil)
