package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Emmyhack/Ahorro/internal/domain"
)

const snapshotTTL = 30 * time.Second

// GroupCache implements domain.GroupCache using JSON-serialized snapshots
// with a short TTL. Mutating operations invalidate the entry after commit,
// so the TTL only bounds staleness for readers racing a mutation.
type GroupCache struct {
	rdb *redis.Client
}

// NewGroupCache creates a GroupCache backed by the given Client.
func NewGroupCache(c *Client) *GroupCache {
	return &GroupCache{rdb: c.Underlying()}
}

func groupKey(id string) string { return "group:" + id }

// Get retrieves a cached snapshot, or domain.ErrNotFound on a miss.
func (gc *GroupCache) Get(ctx context.Context, id string) (domain.GroupSnapshot, error) {
	data, err := gc.rdb.Get(ctx, groupKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.GroupSnapshot{}, domain.ErrNotFound
		}
		return domain.GroupSnapshot{}, fmt.Errorf("redis: get group %s: %w", id, err)
	}

	var snap domain.GroupSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return domain.GroupSnapshot{}, fmt.Errorf("redis: unmarshal group %s: %w", id, err)
	}
	return snap, nil
}

// Set stores a snapshot with the cache TTL.
func (gc *GroupCache) Set(ctx context.Context, snap domain.GroupSnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("redis: marshal group %s: %w", snap.Group.ID, err)
	}
	if err := gc.rdb.Set(ctx, groupKey(snap.Group.ID), data, snapshotTTL).Err(); err != nil {
		return fmt.Errorf("redis: set group %s: %w", snap.Group.ID, err)
	}
	return nil
}

// Invalidate removes a snapshot after a committed mutation.
func (gc *GroupCache) Invalidate(ctx context.Context, id string) error {
	if err := gc.rdb.Del(ctx, groupKey(id)).Err(); err != nil {
		return fmt.Errorf("redis: invalidate group %s: %w", id, err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.GroupCache = (*GroupCache)(nil)
