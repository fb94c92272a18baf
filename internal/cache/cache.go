// Package cache provides the tiered key/value store backing the wiki API:
// a fast volatile Redis tier with a durable local file fallback, and the
// key space conventions mapping logical entities to cache keys.
//
// Values are opaque byte payloads; entity structs are JSON-encoded by the
// callers at a single serialization boundary.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrUnavailable is returned when every tier failed on an operation.
// Single-tier failures are absorbed and retried against the other tier.
var ErrUnavailable = errors.New("cache: all tiers unavailable")

// Tier is one backing store layer. Implementations must be safe for
// concurrent use.
type Tier interface {
	// Get retrieves a value. The second return value reports presence;
	// an expired entry is treated as absent.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores a value. A ttl of zero means no expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a key, reporting whether anything was evicted.
	Delete(ctx context.Context, key string) (bool, error)

	// Flush removes every entry in the tier.
	Flush(ctx context.Context) error

	// Close releases any resources held by the tier.
	Close() error
}
