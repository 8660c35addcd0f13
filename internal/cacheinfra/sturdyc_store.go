package cacheinfra

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/goliatone/go-query-cache/cache"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/viccon/sturdyc"
)

// SturdycStore is the in-process backend. Each tag carries a generation
// number that is part of every entry key; invalidating a tag bumps the
// generation, which hides all of its entries at once, and then sweeps the
// stale keys out of the client.
type SturdycStore struct {
	client      *sturdyc.Client[[]byte]
	generations *xsync.MapOf[string, uint64]
	clock       cache.Clock
}

// NewSturdycStore validates the memory settings and builds the sturdyc
// client. Capacity, NumShards, TTL and EvictionPercentage go straight to
// sturdyc.New; TTL there only caps how long sturdyc keeps an entry, the
// query TTL is enforced by the entry deadline.
func NewSturdycStore(cfg cache.MemoryConfig, opts ...Option) (*SturdycStore, error) {
	memCfg := cache.DefaultConfig()
	memCfg.Backend = cache.BackendMemory
	memCfg.Memory = cfg
	if err := memCfg.Validate(); err != nil {
		return nil, err
	}

	var sturdycOpts []sturdyc.Option
	if cfg.EvictionInterval > 0 {
		sturdycOpts = append(sturdycOpts, sturdyc.WithEvictionInterval(cfg.EvictionInterval))
	}

	o := newOptions(opts)
	client := sturdyc.New[[]byte](
		cfg.Capacity,
		cfg.NumShards,
		cfg.TTL,
		cfg.EvictionPercentage,
		sturdycOpts...,
	)

	return &SturdycStore{
		client:      client,
		generations: xsync.NewMapOf[string, uint64](),
		clock:       o.clock,
	}, nil
}

// tagPrefix is length-prefixed so one tag can never be a prefix of another.
func tagPrefix(tag string) string {
	return strconv.Itoa(len(tag)) + ":" + tag + ":"
}

func generationPrefix(tag string, gen uint64) string {
	return tagPrefix(tag) + strconv.FormatUint(gen, 10) + ":"
}

func (s *SturdycStore) entryKey(tag, key string) string {
	gen, _ := s.generations.Load(tag)
	return generationPrefix(tag, gen) + key
}

// Get implements cache.Store.
func (s *SturdycStore) Get(_ context.Context, tag, key string) ([]byte, bool, error) {
	k := s.entryKey(tag, key)
	raw, ok := s.client.Get(k)
	if !ok {
		return nil, false, nil
	}

	value, expiresAt, err := decodeEntry(raw)
	if err != nil {
		return nil, false, cache.CorruptPayload(err, key)
	}
	if expired(expiresAt, s.clock.Now()) {
		s.client.Delete(k)
		return nil, false, nil
	}
	return value, true, nil
}

// Set implements cache.Store.
func (s *SturdycStore) Set(_ context.Context, tag, key string, value []byte, ttl time.Duration) error {
	s.client.Set(s.entryKey(tag, key), encodeEntry(value, deadline(s.clock.Now(), ttl)))
	return nil
}

// Invalidate implements cache.Store.
func (s *SturdycStore) Invalidate(_ context.Context, tag string) error {
	current, _ := s.generations.Compute(tag, func(old uint64, _ bool) (uint64, bool) {
		return old + 1, false
	})

	prefix := tagPrefix(tag)
	live := generationPrefix(tag, current)
	for _, k := range s.client.ScanKeys() {
		if strings.HasPrefix(k, prefix) && !strings.HasPrefix(k, live) {
			s.client.Delete(k)
		}
	}
	return nil
}

// Size reports how many entries sturdyc currently holds, stale ones included.
func (s *SturdycStore) Size() int {
	return s.client.Size()
}

// Close implements cache.Store. sturdyc has nothing to release.
func (s *SturdycStore) Close() error {
	return nil
}
