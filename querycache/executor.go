package querycache

import (
	"context"

	"github.com/goliatone/go-query-cache/cache"
)

// Executor runs a query against a data store.
type Executor[T any] interface {
	Execute(ctx context.Context, q *Query) (Result[T], error)
}

// ExecutorFunc adapts a function to Executor.
type ExecutorFunc[T any] func(ctx context.Context, q *Query) (Result[T], error)

// Execute implements Executor.
func (f ExecutorFunc[T]) Execute(ctx context.Context, q *Query) (Result[T], error) {
	return f(ctx, q)
}

// Reconstructor rebuilds one model instance from a cached element. Models
// that need post-load fixups supply their own through WithReconstructor.
type Reconstructor[T any] func(codec cache.Codec, raw []byte) (T, error)

// DecodeReconstructor decodes raw with the codec into a fresh T.
func DecodeReconstructor[T any](codec cache.Codec, raw []byte) (T, error) {
	var v T
	err := codec.Unmarshal(raw, &v)
	return v, err
}
