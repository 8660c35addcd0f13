package querycache

import (
	"log/slog"
	"time"

	"github.com/goliatone/go-query-cache/cache"
)

// Option configures a CachedExecutor.
type Option[T any] func(*CachedExecutor[T])

// WithKeySerializer replaces the JSON key serializer.
func WithKeySerializer[T any](s cache.KeySerializer) Option[T] {
	return func(c *CachedExecutor[T]) {
		if s != nil {
			c.keys = s
		}
	}
}

// WithCodec replaces the JSON codec.
func WithCodec[T any](codec cache.Codec) Option[T] {
	return func(c *CachedExecutor[T]) {
		if codec != nil {
			c.codec = codec
		}
	}
}

// WithTTL sets how long written entries live. Non-positive values keep the default.
func WithTTL[T any](ttl time.Duration) Option[T] {
	return func(c *CachedExecutor[T]) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithReconstructor sets how cached elements become model instances.
func WithReconstructor[T any](r Reconstructor[T]) Option[T] {
	return func(c *CachedExecutor[T]) {
		if r != nil {
			c.reconstruct = r
		}
	}
}

// WithLogger sets the logger used for write-back failures.
func WithLogger[T any](logger *slog.Logger) Option[T] {
	return func(c *CachedExecutor[T]) {
		if logger != nil {
			c.logger = logger
		}
	}
}
