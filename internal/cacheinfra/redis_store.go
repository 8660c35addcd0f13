package cacheinfra

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/goliatone/go-query-cache/cache"
	"github.com/redis/go-redis/v9"
)

// RedisStore keeps every tag in its own Redis hash. Fields are serialized
// query keys and values carry the expiry envelope. The hash TTL is refreshed
// on each write, so an idle tag disappears on its own.
type RedisStore struct {
	client     redis.UniversalClient
	prefix     string
	clock      cache.Clock
	ownsClient bool
}

// NewRedisStore wraps an existing client. The caller keeps ownership of the
// client and must close it.
func NewRedisStore(client redis.UniversalClient, prefix string, opts ...Option) *RedisStore {
	o := newOptions(opts)
	return &RedisStore{
		client: client,
		prefix: prefix,
		clock:  o.clock,
	}
}

// OpenRedis dials the configured address and pings it. A server that cannot
// be reached at startup is an error.
func OpenRedis(ctx context.Context, cfg cache.Config, opts ...Option) (*RedisStore, error) {
	redisOpts, err := redisOptions(cfg)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(redisOpts)
	pingCtx, cancel := context.WithTimeout(ctx, redisOpts.DialTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, cache.Unavailable(err, "connect")
	}

	store := NewRedisStore(client, cfg.Prefix, opts...)
	store.ownsClient = true
	return store, nil
}

func redisOptions(cfg cache.Config) (*redis.Options, error) {
	var (
		opts *redis.Options
		err  error
	)
	if strings.Contains(cfg.Address, "://") {
		opts, err = redis.ParseURL(cfg.Address)
		if err != nil {
			return nil, err
		}
	} else {
		opts = &redis.Options{Addr: cfg.Address}
	}
	if cfg.DialTimeout > 0 {
		opts.DialTimeout = cfg.DialTimeout
	}
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = 5 * time.Second
	}
	if cfg.MaxRetries != 0 {
		opts.MaxRetries = cfg.MaxRetries
	}
	return opts, nil
}

func (s *RedisStore) hashKey(tag string) string {
	return s.prefix + tag
}

// Get reads one field of the tag hash.
func (s *RedisStore) Get(ctx context.Context, tag, key string) ([]byte, bool, error) {
	raw, err := s.client.HGet(ctx, s.hashKey(tag), key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, cache.Unavailable(err, "get")
	}

	value, expiresAt, err := decodeEntry(raw)
	if err != nil {
		return nil, false, cache.CorruptPayload(err, key)
	}
	if expired(expiresAt, s.clock.Now()) {
		return nil, false, nil
	}
	return value, true, nil
}

// Set writes the field and refreshes the hash TTL in one transaction.
func (s *RedisStore) Set(ctx context.Context, tag, key string, value []byte, ttl time.Duration) error {
	hk := s.hashKey(tag)
	entry := encodeEntry(value, deadline(s.clock.Now(), ttl))

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, hk, key, entry)
		if ttl > 0 {
			pipe.Expire(ctx, hk, ttl)
		}
		return nil
	})
	if err != nil {
		return cache.Unavailable(err, "set")
	}
	return nil
}

// Invalidate deletes the whole tag hash with a single DEL.
func (s *RedisStore) Invalidate(ctx context.Context, tag string) error {
	if err := s.client.Del(ctx, s.hashKey(tag)).Err(); err != nil {
		return cache.Unavailable(err, "invalidate")
	}
	return nil
}

// Close closes the client when the store opened it.
func (s *RedisStore) Close() error {
	if !s.ownsClient {
		return nil
	}
	return s.client.Close()
}
