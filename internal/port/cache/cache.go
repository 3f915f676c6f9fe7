// Package cache defines the port interface for short-lived key-value caching.
// The agent server keeps finished task results here, keyed by correlation id.
package cache

import (
	"context"
	"time"
)

// Cache is the port interface for key-value caching. A value written by Set
// must be visible to the next Get.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}
