package cache

import (
	goerrors "github.com/goliatone/go-errors"
)

// Text codes attached to cache errors.
const (
	TextCodeUnavailable    = "CACHE_UNAVAILABLE"
	TextCodeCorruptPayload = "CACHE_CORRUPT_PAYLOAD"
	TextCodeKey            = "CACHE_KEY"
)

// Unavailable wraps a backend failure so callers can tell connectivity
// problems apart from data problems.
func Unavailable(err error, op string) error {
	if err == nil {
		return nil
	}
	return goerrors.Wrap(err, goerrors.CategoryExternal, "cache "+op).
		WithTextCode(TextCodeUnavailable)
}

// CorruptPayload wraps a decoding failure on a cache hit.
func CorruptPayload(err error, key string) error {
	if err == nil {
		return nil
	}
	return goerrors.Wrap(err, goerrors.CategoryInternal, "decode cached payload").
		WithTextCode(TextCodeCorruptPayload).
		WithMetadata(map[string]any{"key": key})
}

// KeyError wraps a failure to derive a cache key from a query.
func KeyError(err error, collection string) error {
	if err == nil {
		return nil
	}
	return goerrors.Wrap(err, goerrors.CategoryBadInput, "serialize cache key").
		WithTextCode(TextCodeKey).
		WithMetadata(map[string]any{"collection": collection})
}

// IsUnavailable reports whether err came from an unreachable cache backend.
func IsUnavailable(err error) bool {
	return hasTextCode(err, TextCodeUnavailable)
}

// IsCorruptPayload reports whether err came from a malformed cached value.
func IsCorruptPayload(err error) bool {
	return hasTextCode(err, TextCodeCorruptPayload)
}

func hasTextCode(err error, code string) bool {
	var e *goerrors.Error
	if goerrors.As(err, &e) {
		return e.TextCode == code
	}
	return false
}
