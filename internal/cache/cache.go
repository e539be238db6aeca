// Package cache provides the keyed TTL store used for category reads and
// view deduplication. Values are stored as JSON.
package cache

import (
	"context"
	"time"
)

// Store is a keyed TTL cache shared by the services.
type Store interface {
	// Get decodes the value under key into dest and reports whether it was present.
	Get(ctx context.Context, key string, dest any) (bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	// SetNX creates key only if it is absent and reports whether it did.
	SetNX(ctx context.Context, key string, ttl time.Duration) (bool, error)
}
