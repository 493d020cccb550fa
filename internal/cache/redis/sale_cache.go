package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/cryptoticketing/ticketd/internal/domain"
)

// saleTTL keeps cached sale overviews fresh enough that reads between
// reconciliation passes never serve data older than a few polling cycles.
const saleTTL = 30 * time.Second

// SaleCache implements domain.SaleCache using JSON values in Redis.
//
// Key schema:
//
//	sale:{eventID} - JSON-serialized SaleOverview
type SaleCache struct {
	rdb *redis.Client
}

// NewSaleCache creates a SaleCache backed by the given Client.
func NewSaleCache(c *Client) *SaleCache {
	return &SaleCache{rdb: c.Underlying()}
}

func saleKey(eventID uint64) string {
	return fmt.Sprintf("sale:%d", eventID)
}

// Get retrieves the cached sale overview for an event.
func (sc *SaleCache) Get(ctx context.Context, eventID uint64) (domain.SaleOverview, error) {
	data, err := sc.rdb.Get(ctx, saleKey(eventID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.SaleOverview{}, domain.ErrNotFound
		}
		return domain.SaleOverview{}, fmt.Errorf("redis: get sale %d: %w", eventID, err)
	}

	var overview domain.SaleOverview
	if err := json.Unmarshal(data, &overview); err != nil {
		return domain.SaleOverview{}, fmt.Errorf("redis: unmarshal sale %d: %w", eventID, err)
	}
	return overview, nil
}

// Put stores a sale overview with the cache TTL.
func (sc *SaleCache) Put(ctx context.Context, overview domain.SaleOverview) error {
	data, err := json.Marshal(overview)
	if err != nil {
		return fmt.Errorf("redis: marshal sale %d: %w", overview.EventID, err)
	}
	if err := sc.rdb.Set(ctx, saleKey(overview.EventID), data, saleTTL).Err(); err != nil {
		return fmt.Errorf("redis: put sale %d: %w", overview.EventID, err)
	}
	return nil
}

// Invalidate drops the cached overview, forcing the next read to the chain.
func (sc *SaleCache) Invalidate(ctx context.Context, eventID uint64) error {
	if err := sc.rdb.Del(ctx, saleKey(eventID)).Err(); err != nil {
		return fmt.Errorf("redis: invalidate sale %d: %w", eventID, err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.SaleCache = (*SaleCache)(nil)
