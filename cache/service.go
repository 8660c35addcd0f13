package cache

import (
	"context"
	"time"
)

// DefaultTTL is how long a cached query result lives after it is written.
const DefaultTTL = 60 * time.Second

// Store is the tag-scoped key-value contract the query interceptor needs.
// The outer key (tag) groups entries for invalidation, the inner key is the
// serialized query. Implementations must be safe for concurrent use.
type Store interface {
	// Get returns the stored value. found is false when the entry is missing
	// or expired; an error means the backend could not be reached.
	Get(ctx context.Context, tag, key string) (value []byte, found bool, err error)
	// Set stores value under (tag, key) for ttl of wall-clock time.
	Set(ctx context.Context, tag, key string, value []byte, ttl time.Duration) error
	// Invalidate removes every entry under tag. Readers observe either the
	// whole tag or none of it.
	Invalidate(ctx context.Context, tag string) error
	// Close releases the backend handle.
	Close() error
}

// KeySerializer builds the inner cache key from the queried collection and
// its criteria. Keys must be deterministic for equal inputs.
type KeySerializer interface {
	SerializeKey(collection string, criteria any) (string, error)
}

// Clock reports the current time. Stores use it to decide expiry so tests can
// move time forward without sleeping.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

// Now implements Clock.
func (f ClockFunc) Now() time.Time { return f() }

// SystemClock is the wall clock.
var SystemClock Clock = ClockFunc(time.Now)
