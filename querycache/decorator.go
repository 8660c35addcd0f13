package querycache

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/goliatone/go-query-cache/cache"
)

var _ Executor[any] = (*CachedExecutor[any])(nil)

// Stats is a snapshot of executor counters.
type Stats struct {
	Hits          uint64
	Misses        uint64
	Bypassed      uint64
	WriteFailures uint64
}

// CachedExecutor decorates an Executor with a read-through cache. Queries
// that were not marked with Cache go straight to the base executor.
//
// Concurrent misses on the same key are not coalesced: each one runs the
// live query and the last write wins.
type CachedExecutor[T any] struct {
	base        Executor[T]
	store       cache.Store
	keys        cache.KeySerializer
	codec       cache.Codec
	ttl         time.Duration
	reconstruct Reconstructor[T]
	logger      *slog.Logger

	hits          atomic.Uint64
	misses        atomic.Uint64
	bypassed      atomic.Uint64
	writeFailures atomic.Uint64
}

// New wraps base with a cache backed by store.
func New[T any](base Executor[T], store cache.Store, opts ...Option[T]) *CachedExecutor[T] {
	c := &CachedExecutor[T]{
		base:        base,
		store:       store,
		keys:        cache.NewDefaultKeySerializer(),
		codec:       cache.NewJSONCodec(),
		ttl:         cache.DefaultTTL,
		reconstruct: DecodeReconstructor[T],
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	c.logger = c.logger.With("component", "querycache")
	return c
}

// Execute serves cacheable queries from the store and falls through to the
// base executor on a miss. A store read failure is returned as is; the live
// store is not consulted in that case.
func (c *CachedExecutor[T]) Execute(ctx context.Context, q *Query) (Result[T], error) {
	if !q.Cacheable() {
		c.bypassed.Add(1)
		return c.base.Execute(ctx, q)
	}

	key, err := c.keys.SerializeKey(q.Collection, q.Criteria)
	if err != nil {
		return Result[T]{}, err
	}
	tag := q.Tag()

	raw, found, err := c.store.Get(ctx, tag, key)
	if err != nil {
		return Result[T]{}, asStoreError(err, "get")
	}

	if found {
		c.hits.Add(1)
		return c.decode(key, raw)
	}

	c.misses.Add(1)
	res, err := c.base.Execute(ctx, q)
	if err != nil {
		return Result[T]{}, err
	}

	c.writeBack(ctx, tag, key, q.Collection, res)
	return res, nil
}

func (c *CachedExecutor[T]) decode(key string, raw []byte) (Result[T], error) {
	payload, err := c.codec.Inspect(raw)
	if err != nil {
		return Result[T]{}, cache.CorruptPayload(err, key)
	}

	switch payload.Shape {
	case cache.ShapeNull:
		return None[T](), nil
	case cache.ShapeList:
		records := make([]T, 0, len(payload.Items))
		for _, item := range payload.Items {
			v, err := c.reconstruct(c.codec, item)
			if err != nil {
				return Result[T]{}, cache.CorruptPayload(err, key)
			}
			records = append(records, v)
		}
		return Many(records), nil
	default:
		v, err := c.reconstruct(c.codec, payload.Record)
		if err != nil {
			return Result[T]{}, cache.CorruptPayload(err, key)
		}
		return One(v), nil
	}
}

// writeBack stores res. Failures are logged and dropped; the caller already
// has the authoritative result.
func (c *CachedExecutor[T]) writeBack(ctx context.Context, tag, key, collection string, res Result[T]) {
	data, err := c.codec.Marshal(res.value())
	if err != nil {
		c.writeFailures.Add(1)
		c.logger.WarnContext(ctx, "encode query result", "tag", tag, "collection", collection, "key", key, "error", err)
		return
	}

	if err := c.store.Set(ctx, tag, key, data, c.ttl); err != nil {
		c.writeFailures.Add(1)
		c.logger.WarnContext(ctx, "write query result", "tag", tag, "collection", collection, "key", key, "error", err)
	}
}

// Invalidate drops every entry cached under tag.
func (c *CachedExecutor[T]) Invalidate(ctx context.Context, tag string) error {
	if err := c.store.Invalidate(ctx, tag); err != nil {
		return asStoreError(err, "invalidate")
	}
	return nil
}

// Stats returns the current counters.
func (c *CachedExecutor[T]) Stats() Stats {
	return Stats{
		Hits:          c.hits.Load(),
		Misses:        c.misses.Load(),
		Bypassed:      c.bypassed.Load(),
		WriteFailures: c.writeFailures.Load(),
	}
}

// asStoreError keeps categorized store errors and marks anything else as a
// connectivity failure.
func asStoreError(err error, op string) error {
	if cache.IsUnavailable(err) || cache.IsCorruptPayload(err) {
		return err
	}
	return cache.Unavailable(err, op)
}
