// Package cacheinfra holds the cache.Store backends: Redis hashes, an
// in-process sturdyc client and a scratch bbolt file.
package cacheinfra

import (
	"context"
	"fmt"

	"github.com/goliatone/go-query-cache/cache"
)

var (
	_ cache.Store = (*RedisStore)(nil)
	_ cache.Store = (*SturdycStore)(nil)
	_ cache.Store = (*BoltStore)(nil)
)

// NewStore validates cfg and opens the backend it names.
func NewStore(ctx context.Context, cfg cache.Config, opts ...Option) (cache.Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.Backend {
	case cache.BackendRedis:
		return OpenRedis(ctx, cfg, opts...)
	case cache.BackendMemory:
		return NewSturdycStore(cfg.Memory, opts...)
	case cache.BackendBolt:
		return OpenBolt(cfg.BoltDir, opts...)
	default:
		return nil, fmt.Errorf("unsupported cache backend %q", cfg.Backend)
	}
}
