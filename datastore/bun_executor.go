package datastore

import (
	"context"
	"database/sql"
	"errors"
	"reflect"
	"sort"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-query-cache/querycache"
)

var _ querycache.Executor[any] = (*BunExecutor[any])(nil)

// BunExecutor runs queries straight against a bun database. The query's
// collection must name the model's table.
type BunExecutor[T any] struct {
	db    bun.IDB
	table string
}

// NewBunExecutor binds T to its bun table.
func NewBunExecutor[T any](db *bun.DB) *BunExecutor[T] {
	typ := reflect.TypeOf((*T)(nil)).Elem()
	return &BunExecutor[T]{
		db:    db,
		table: db.Table(typ).Name,
	}
}

// Table returns the table name queries must use as their collection.
func (e *BunExecutor[T]) Table() string {
	return e.table
}

// Execute implements querycache.Executor. Filters become equality
// predicates, Sort entries with a leading "-" sort descending. A single
// record lookup that matches nothing is an absent result.
func (e *BunExecutor[T]) Execute(ctx context.Context, q *querycache.Query) (querycache.Result[T], error) {
	if q == nil {
		return querycache.Result[T]{}, goerrors.New("nil query", goerrors.CategoryBadInput)
	}
	if q.Collection != e.table {
		return querycache.Result[T]{}, goerrors.New("query collection does not match table", goerrors.CategoryBadInput).
			WithMetadata(map[string]any{"collection": q.Collection, "table": e.table})
	}

	if q.Criteria.One {
		var record T
		sel := applyCriteria(e.db.NewSelect().Model(&record), q.Criteria).Limit(1)
		if err := sel.Scan(ctx); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return querycache.None[T](), nil
			}
			return querycache.Result[T]{}, goerrors.Wrap(err, goerrors.CategoryExternal, "select "+e.table)
		}
		return querycache.One(record), nil
	}

	var records []T
	sel := applyCriteria(e.db.NewSelect().Model(&records), q.Criteria)
	if err := sel.Scan(ctx); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return querycache.Result[T]{}, goerrors.Wrap(err, goerrors.CategoryExternal, "select "+e.table)
	}
	return querycache.Many(records), nil
}

func applyCriteria(sel *bun.SelectQuery, c querycache.Criteria) *bun.SelectQuery {
	for _, column := range filterColumns(c.Filter) {
		sel = sel.Where("? = ?", bun.Ident(column), c.Filter[column])
	}
	for _, field := range c.Sort {
		column, dir := sortColumn(field)
		sel = sel.OrderExpr("? "+dir, bun.Ident(column))
	}
	if c.Limit > 0 {
		sel = sel.Limit(c.Limit)
	}
	return sel
}

// filterColumns returns filter keys in a stable order so equal queries
// produce equal SQL.
func filterColumns(filter map[string]any) []string {
	columns := make([]string, 0, len(filter))
	for k := range filter {
		columns = append(columns, k)
	}
	sort.Strings(columns)
	return columns
}

func sortColumn(field string) (column, dir string) {
	if strings.HasPrefix(field, "-") {
		return strings.TrimPrefix(field, "-"), "DESC"
	}
	return strings.TrimPrefix(field, "+"), "ASC"
}
