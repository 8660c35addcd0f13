package cacheinfra

import (
	"encoding/binary"
	"errors"
	"time"
)

// entryHeaderSize is the length of the expiry prefix on every stored value.
const entryHeaderSize = 8

var errShortEntry = errors.New("stored entry shorter than expiry header")

// encodeEntry prefixes value with its deadline as big-endian unix nanoseconds.
// A zero deadline never expires.
func encodeEntry(value []byte, expiresAt time.Time) []byte {
	buf := make([]byte, entryHeaderSize+len(value))
	var deadline int64
	if !expiresAt.IsZero() {
		deadline = expiresAt.UnixNano()
	}
	binary.BigEndian.PutUint64(buf[:entryHeaderSize], uint64(deadline))
	copy(buf[entryHeaderSize:], value)
	return buf
}

// decodeEntry splits a stored value into payload and deadline.
func decodeEntry(raw []byte) (value []byte, expiresAt time.Time, err error) {
	if len(raw) < entryHeaderSize {
		return nil, time.Time{}, errShortEntry
	}
	deadline := int64(binary.BigEndian.Uint64(raw[:entryHeaderSize]))
	if deadline != 0 {
		expiresAt = time.Unix(0, deadline)
	}
	return raw[entryHeaderSize:], expiresAt, nil
}

// expired reports whether an entry with the given deadline is dead at now.
// The deadline itself is already expired.
func expired(expiresAt, now time.Time) bool {
	return !expiresAt.IsZero() && !now.Before(expiresAt)
}

// deadline returns the expiry instant for a write at now.
func deadline(now time.Time, ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return now.Add(ttl)
}
