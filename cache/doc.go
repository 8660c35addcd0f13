// Package cache defines the storage contract behind query result caching.
//
// # Overview
//
// The package exports the pieces a query interceptor needs and nothing that
// depends on a particular backend:
//
//   - Store: a tag-scoped key-value store with per-entry expiry
//   - KeySerializer: builds the inner cache key from a collection and its criteria
//   - Codec: turns results into bytes and reports the payload shape on the way back
//   - Config: selects a backend and loads from YAML plus QUERYCACHE_* variables
//
// Backends live in internal/cacheinfra and are built from a Config by the
// pkg/di container.
//
// # Tags and keys
//
// Every entry is addressed by (tag, key). The tag groups entries that are
// invalidated together, usually one per user:
//
//	store.Set(ctx, "user:42", key, payload, cache.DefaultTTL)
//	store.Invalidate(ctx, "user:42")
//
// The empty tag is a namespace like any other. Invalidating "user:42" never
// touches the empty tag, and the other way round.
//
// The default key serializer writes
//
//	{"criteria":{"filter":{"user_id":"42"}},"collection":"blogs"}
//
// encoding/json sorts map keys, so filters built in a different order produce
// the same key. NewHashedKeySerializer trades readability for short keys.
//
// # Errors
//
// Backend failures are wrapped with Unavailable (category external) and
// malformed stored data with CorruptPayload. Use IsUnavailable and
// IsCorruptPayload to tell them apart; both survive further wrapping with
// go-errors.
package cache
