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

// viewTTL bounds how stale a served claim view can be if reconciliation
// stalls; a healthy engine rewrites entries every pass.
const viewTTL = time.Minute

// ViewCache implements domain.ViewCache using JSON values in Redis.
//
// Key schema:
//
//	view:{eventID}:{wallet} - JSON-serialized DerivedView
type ViewCache struct {
	rdb *redis.Client
}

// NewViewCache creates a ViewCache backed by the given Client.
func NewViewCache(c *Client) *ViewCache {
	return &ViewCache{rdb: c.Underlying()}
}

func viewKey(eventID uint64, wallet string) string {
	return fmt.Sprintf("view:%d:%s", eventID, domain.NormalizeAddress(wallet))
}

// Get retrieves the derived view for (event, wallet).
func (vc *ViewCache) Get(ctx context.Context, eventID uint64, wallet string) (domain.DerivedView, error) {
	data, err := vc.rdb.Get(ctx, viewKey(eventID, wallet)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.DerivedView{}, domain.ErrNotFound
		}
		return domain.DerivedView{}, fmt.Errorf("redis: get view: %w", err)
	}

	var view domain.DerivedView
	if err := json.Unmarshal(data, &view); err != nil {
		return domain.DerivedView{}, fmt.Errorf("redis: unmarshal view: %w", err)
	}
	return view, nil
}

// Put stores a derived view with the cache TTL.
func (vc *ViewCache) Put(ctx context.Context, view domain.DerivedView) error {
	view.Wallet = domain.NormalizeAddress(view.Wallet)
	data, err := json.Marshal(view)
	if err != nil {
		return fmt.Errorf("redis: marshal view: %w", err)
	}
	if err := vc.rdb.Set(ctx, viewKey(view.EventID, view.Wallet), data, viewTTL).Err(); err != nil {
		return fmt.Errorf("redis: put view: %w", err)
	}
	return nil
}

// Invalidate drops the cached view.
func (vc *ViewCache) Invalidate(ctx context.Context, eventID uint64, wallet string) error {
	if err := vc.rdb.Del(ctx, viewKey(eventID, wallet)).Err(); err != nil {
		return fmt.Errorf("redis: invalidate view: %w", err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.ViewCache = (*ViewCache)(nil)
