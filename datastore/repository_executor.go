package datastore

import (
	"context"
	"database/sql"
	"errors"

	goerrors "github.com/goliatone/go-errors"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-query-cache/querycache"
)

var _ querycache.Executor[any] = (*RepositoryExecutor[any])(nil)

// RepositoryExecutor runs queries through a go-repository-bun repository,
// so any model handlers and hooks the repository applies still run.
type RepositoryExecutor[T any] struct {
	repo       repository.Repository[T]
	collection string
}

// NewRepositoryExecutor wraps repo. An empty collection defaults to
// CollectionOf[T]().
func NewRepositoryExecutor[T any](repo repository.Repository[T], collection string) *RepositoryExecutor[T] {
	if collection == "" {
		collection = CollectionOf[T]()
	}
	return &RepositoryExecutor[T]{repo: repo, collection: collection}
}

// Collection returns the collection name this executor answers for.
func (e *RepositoryExecutor[T]) Collection() string {
	return e.collection
}

// Execute implements querycache.Executor. Single lookups use Get, lists use
// List; the total List reports is dropped.
func (e *RepositoryExecutor[T]) Execute(ctx context.Context, q *querycache.Query) (querycache.Result[T], error) {
	if q == nil {
		return querycache.Result[T]{}, goerrors.New("nil query", goerrors.CategoryBadInput)
	}
	if q.Collection != e.collection {
		return querycache.Result[T]{}, goerrors.New("query collection does not match repository", goerrors.CategoryBadInput).
			WithMetadata(map[string]any{"collection": q.Collection, "repository": e.collection})
	}

	criteria := selectCriteria(q.Criteria)

	if q.Criteria.One {
		record, err := e.repo.Get(ctx, criteria...)
		if err != nil {
			if isNotFound(err) {
				return querycache.None[T](), nil
			}
			return querycache.Result[T]{}, err
		}
		return querycache.One(record), nil
	}

	records, _, err := e.repo.List(ctx, criteria...)
	if err != nil {
		if isNotFound(err) {
			return querycache.Many[T](nil), nil
		}
		return querycache.Result[T]{}, err
	}
	return querycache.Many(records), nil
}

func selectCriteria(c querycache.Criteria) []repository.SelectCriteria {
	var out []repository.SelectCriteria
	out = append(out, func(sel *bun.SelectQuery) *bun.SelectQuery {
		return applyCriteria(sel, c)
	})
	return out
}

func isNotFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows) || goerrors.IsNotFound(err)
}
