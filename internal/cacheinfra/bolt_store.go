package cacheinfra

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/goliatone/go-query-cache/cache"
	bolt "go.etcd.io/bbolt"
)

var rootBucket = []byte("querycache")

// tagBucketPrefix keeps bucket names non-empty for the empty tag.
const tagBucketPrefix = "tag:"

// BoltStore keeps one nested bucket per tag inside a bbolt file. The file is
// scratch space for this process: when the store created it, Close removes it.
type BoltStore struct {
	db      *bolt.DB
	dir     string
	cleanup bool
	clock   cache.Clock
	logger  *slog.Logger
}

// OpenBolt opens cache.db under dir. An empty dir creates a temporary
// directory that is removed on Close.
func OpenBolt(dir string, opts ...Option) (*BoltStore, error) {
	cleanup := false
	if dir == "" {
		tmp, err := os.MkdirTemp("", "querycache-*")
		if err != nil {
			return nil, cache.Unavailable(err, "create bolt dir")
		}
		dir = tmp
		cleanup = true
	} else if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, cache.Unavailable(err, "create bolt dir")
	}

	db, err := bolt.Open(filepath.Join(dir, "cache.db"), 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		if cleanup {
			_ = os.RemoveAll(dir)
		}
		return nil, cache.Unavailable(err, "open bolt")
	}

	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(rootBucket)
		return err
	}); err != nil {
		_ = db.Close()
		if cleanup {
			_ = os.RemoveAll(dir)
		}
		return nil, cache.Unavailable(err, "open bolt")
	}

	o := newOptions(opts)
	return &BoltStore{
		db:      db,
		dir:     dir,
		cleanup: cleanup,
		clock:   o.clock,
		logger:  o.logger,
	}, nil
}

func tagBucket(tag string) []byte {
	return []byte(tagBucketPrefix + tag)
}

// Get implements cache.Store. Expired entries are left for the next write
// to the tag or the next invalidation.
func (s *BoltStore) Get(_ context.Context, tag, key string) ([]byte, bool, error) {
	var raw []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(rootBucket).Bucket(tagBucket(tag))
		if b == nil {
			return nil
		}
		if v := b.Get([]byte(key)); v != nil {
			raw = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return nil, false, cache.Unavailable(err, "get")
	}
	if raw == nil {
		return nil, false, nil
	}

	value, expiresAt, err := decodeEntry(raw)
	if err != nil {
		return nil, false, cache.CorruptPayload(err, key)
	}
	if expired(expiresAt, s.clock.Now()) {
		return nil, false, nil
	}
	return value, true, nil
}

// Set implements cache.Store.
func (s *BoltStore) Set(_ context.Context, tag, key string, value []byte, ttl time.Duration) error {
	if key == "" {
		return cache.KeyError(errors.New("empty cache key"), "")
	}
	now := s.clock.Now()
	entry := encodeEntry(value, deadline(now, ttl))

	err := s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.Bucket(rootBucket).CreateBucketIfNotExists(tagBucket(tag))
		if err != nil {
			return err
		}
		if err := s.pruneExpired(b, now); err != nil {
			return err
		}
		return b.Put([]byte(key), entry)
	})
	if err != nil {
		return cache.Unavailable(err, "set")
	}
	return nil
}

// pruneExpired drops dead entries from a tag bucket. Keys are collected first
// because bbolt forbids deleting while iterating with ForEach.
func (s *BoltStore) pruneExpired(b *bolt.Bucket, now time.Time) error {
	var dead [][]byte
	err := b.ForEach(func(k, v []byte) error {
		if v == nil {
			return nil
		}
		if _, expiresAt, err := decodeEntry(v); err != nil || expired(expiresAt, now) {
			dead = append(dead, append([]byte(nil), k...))
		}
		return nil
	})
	if err != nil {
		return err
	}
	for _, k := range dead {
		if err := b.Delete(k); err != nil {
			return err
		}
	}
	return nil
}

// Invalidate implements cache.Store. Dropping the bucket happens in one
// transaction, so readers see the whole tag or none of it.
func (s *BoltStore) Invalidate(_ context.Context, tag string) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		err := tx.Bucket(rootBucket).DeleteBucket(tagBucket(tag))
		if errors.Is(err, bolt.ErrBucketNotFound) {
			return nil
		}
		return err
	})
	if err != nil {
		return cache.Unavailable(err, "invalidate")
	}
	return nil
}

// Path returns the database file path.
func (s *BoltStore) Path() string {
	return s.db.Path()
}

// Close implements cache.Store.
func (s *BoltStore) Close() error {
	err := s.db.Close()
	if s.cleanup {
		if rmErr := os.RemoveAll(s.dir); rmErr != nil {
			s.logger.Warn("remove bolt cache dir", "dir", s.dir, "error", rmErr)
		}
	}
	return err
}
