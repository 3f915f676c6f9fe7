// Package tiered layers a local result cache over a shared one.
package tiered

import (
	"context"
	"log/slog"
	"time"

	"github.com/Strob0t/docmesh/internal/port/cache"
)

// Cache reads the local level first and falls back to the shared level,
// copying shared hits into the local one. Writes go to both.
//
// The shared level is best effort: its errors are logged and treated as a
// miss so a broker outage degrades to per-replica results.
type Cache struct {
	local    cache.Cache
	shared   cache.Cache
	backfill time.Duration
}

// New creates a tiered cache. backfill bounds how long shared hits stay in
// the local level.
func New(local, shared cache.Cache, backfill time.Duration) *Cache {
	return &Cache{local: local, shared: shared, backfill: backfill}
}

// Get checks the local level, then the shared one.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, found, err := c.local.Get(ctx, key)
	if err != nil {
		return nil, false, err
	}
	if found {
		return val, true, nil
	}

	val, found, err = c.shared.Get(ctx, key)
	if err != nil {
		slog.Warn("shared result cache read failed", "key", key, "error", err)
		return nil, false, nil
	}
	if !found {
		return nil, false, nil
	}
	if err := c.local.Set(ctx, key, val, c.backfill); err != nil {
		slog.Debug("result cache backfill failed", "key", key, "error", err)
	}
	return val, true, nil
}

// Set writes both levels. Only a local failure is returned.
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.local.Set(ctx, key, value, ttl); err != nil {
		return err
	}
	if err := c.shared.Set(ctx, key, value, ttl); err != nil {
		slog.Warn("shared result cache write failed", "key", key, "error", err)
	}
	return nil
}

// Delete removes key from both levels.
func (c *Cache) Delete(ctx context.Context, key string) error {
	if err := c.local.Delete(ctx, key); err != nil {
		return err
	}
	if err := c.shared.Delete(ctx, key); err != nil {
		slog.Warn("shared result cache delete failed", "key", key, "error", err)
	}
	return nil
}
