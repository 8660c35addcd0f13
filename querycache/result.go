package querycache

import (
	"reflect"

	"github.com/goliatone/go-query-cache/cache"
)

// Result is what a query returns: nothing, one record, or an ordered list.
// The zero value is an absent result.
type Result[T any] struct {
	shape   cache.Shape
	record  T
	records []T
}

// None returns an absent result.
func None[T any]() Result[T] {
	return Result[T]{shape: cache.ShapeNull}
}

// One wraps a single record. A nil record (pointer, map, slice or
// interface) is an absent result: it is stored as null and a hit could not
// tell it apart from None.
func One[T any](record T) Result[T] {
	if isNil(record) {
		return None[T]()
	}
	return Result[T]{shape: cache.ShapeRecord, record: record}
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	switch rv := reflect.ValueOf(v); rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface:
		return rv.IsNil()
	}
	return false
}

// Many wraps an ordered list. A nil slice is an empty list, not an absent
// result.
func Many[T any](records []T) Result[T] {
	if records == nil {
		records = []T{}
	}
	return Result[T]{shape: cache.ShapeList, records: records}
}

// Shape reports which of the three forms the result has.
func (r Result[T]) Shape() cache.Shape { return r.shape }

// IsNone reports an absent result.
func (r Result[T]) IsNone() bool { return r.shape == cache.ShapeNull }

// IsList reports a list result, empty or not.
func (r Result[T]) IsList() bool { return r.shape == cache.ShapeList }

// Record returns the single record. ok is false for absent and list results.
func (r Result[T]) Record() (T, bool) {
	return r.record, r.shape == cache.ShapeRecord
}

// Records returns the list. A single record comes back as a one-element
// slice and an absent result as nil.
func (r Result[T]) Records() []T {
	switch r.shape {
	case cache.ShapeList:
		return r.records
	case cache.ShapeRecord:
		return []T{r.record}
	default:
		return nil
	}
}

// value is what gets handed to the codec: nil, the record, or the list.
func (r Result[T]) value() any {
	switch r.shape {
	case cache.ShapeRecord:
		return r.record
	case cache.ShapeList:
		if r.records == nil {
			return []T{}
		}
		return r.records
	default:
		return nil
	}
}
