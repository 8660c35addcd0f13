package cache

import (
	"encoding/json"
	"errors"
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// KeySeparator sits between the collection and the digest in hashed keys.
const KeySeparator = ":"

// queryKey is the document a query key is serialized from. Field order is
// fixed by the struct; encoding/json sorts map keys inside criteria.
type queryKey struct {
	Criteria   any    `json:"criteria"`
	Collection string `json:"collection"`
}

type jsonKeySerializer struct{}

// NewDefaultKeySerializer returns the JSON key serializer. Keys look like
// {"criteria":{"filter":{"user_id":"42"}},"collection":"blogs"}.
func NewDefaultKeySerializer() KeySerializer {
	return jsonKeySerializer{}
}

// SerializeKey implements KeySerializer.
func (jsonKeySerializer) SerializeKey(collection string, criteria any) (string, error) {
	if collection == "" {
		return "", KeyError(errors.New("collection name is required"), collection)
	}
	data, err := json.Marshal(queryKey{Criteria: criteria, Collection: collection})
	if err != nil {
		return "", KeyError(err, collection)
	}
	return string(data), nil
}

type hashedKeySerializer struct {
	inner KeySerializer
}

// NewHashedKeySerializer wraps inner and replaces its output with
// "<collection>:<xxhash64 hex>". Useful when filters are large and the store
// charges for key length.
func NewHashedKeySerializer(inner KeySerializer) KeySerializer {
	if inner == nil {
		inner = NewDefaultKeySerializer()
	}
	return hashedKeySerializer{inner: inner}
}

// SerializeKey implements KeySerializer.
func (s hashedKeySerializer) SerializeKey(collection string, criteria any) (string, error) {
	full, err := s.inner.SerializeKey(collection, criteria)
	if err != nil {
		return "", err
	}
	sum := xxhash.Sum64String(full)
	return collection + KeySeparator + strconv.FormatUint(sum, 16), nil
}

// KeySerializerByName resolves a serializer from its configured name. An
// empty name selects the JSON serializer.
func KeySerializerByName(name string) (KeySerializer, error) {
	switch name {
	case "", "json":
		return NewDefaultKeySerializer(), nil
	case "xxhash":
		return NewHashedKeySerializer(nil), nil
	default:
		return nil, KeyError(errors.New("unknown key serializer "+strconv.Quote(name)), "")
	}
}
