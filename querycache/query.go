package querycache

// Criteria is the part of a query that decides which records come back.
// It is serialized into the cache key, so every field that changes the
// result must live here.
type Criteria struct {
	Filter map[string]any `json:"filter,omitempty"`
	// Sort lists column names; a leading "-" sorts descending.
	Sort  []string `json:"sort,omitempty"`
	Limit int      `json:"limit,omitempty"`
	// One asks for a single record instead of a list.
	One bool `json:"one,omitempty"`
}

// Query is a read against one collection. Cache state travels with the
// query value and is only consulted by CachedExecutor.
type Query struct {
	Collection string
	Criteria   Criteria

	cacheable bool
	tag       string
}

// NewQuery starts a list query over collection.
func NewQuery(collection string) *Query {
	return &Query{Collection: collection}
}

// Where adds an equality filter.
func (q *Query) Where(field string, value any) *Query {
	if q.Criteria.Filter == nil {
		q.Criteria.Filter = make(map[string]any)
	}
	q.Criteria.Filter[field] = value
	return q
}

// OrderBy appends sort columns.
func (q *Query) OrderBy(fields ...string) *Query {
	q.Criteria.Sort = append(q.Criteria.Sort, fields...)
	return q
}

// Limit caps the number of records.
func (q *Query) Limit(n int) *Query {
	q.Criteria.Limit = n
	return q
}

// First turns the query into a single record lookup.
func (q *Query) First() *Query {
	q.Criteria.One = true
	return q
}

// Cache marks the query cacheable under tag. Calling it again replaces the
// tag. The empty tag is valid and shared by every query cached without one.
// Nothing touches the store until the query is executed.
func (q *Query) Cache(tag string) *Query {
	q.cacheable = true
	q.tag = tag
	return q
}

// EnableCache is the function form of (*Query).Cache.
func EnableCache(q *Query, tag string) *Query {
	return q.Cache(tag)
}

// Cacheable reports whether Cache was called.
func (q *Query) Cacheable() bool {
	return q != nil && q.cacheable
}

// Tag returns the cache tag, "" when none was given.
func (q *Query) Tag() string {
	if q == nil {
		return ""
	}
	return q.tag
}
