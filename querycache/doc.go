// Package querycache adds read-through caching to query execution.
//
// # Overview
//
// A Query names a collection and its Criteria. Marking it with Cache(tag)
// makes it eligible for caching; nothing else changes about the query.
// CachedExecutor wraps the Executor that talks to the live data store and
// implements Executor itself, so callers do not know whether a result came
// from the store or from cache:
//
//	live := datastore.NewBunExecutor[blog.Blog](db)
//	exec := querycache.New[blog.Blog](live, store)
//
//	q := querycache.NewQuery("blogs").Where("user_id", "42").Cache("user:42")
//	res, err := exec.Execute(ctx, q)
//
// # Read path
//
//  1. Serialize (collection, criteria) into the key
//  2. Look up (tag, key) in the store
//  3. On a hit, rebuild the result with the same shape the live store gave:
//     absent, one record, or a list in the original order
//  4. On a miss, run the live query, write the result back with a 60 second
//     TTL and return it
//
// A store that cannot be read is an error for the caller. A store that cannot
// be written is logged at warn level and ignored.
//
// # Invalidation
//
// The write path calls Invalidate(ctx, tag) after changing data. Every entry
// under the tag goes away at once. Tags are independent: the empty tag is
// not a parent of "user:42".
package querycache
