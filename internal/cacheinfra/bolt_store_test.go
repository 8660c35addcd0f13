package cacheinfra

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/goliatone/go-query-cache/pkg/testsupport"
	bolt "go.etcd.io/bbolt"
)

func TestOpenBolt_TemporaryDirRemovedOnClose(t *testing.T) {
	store, err := OpenBolt("")
	if err != nil {
		t.Fatalf("failed to open bolt store: %v", err)
	}

	path := store.Path()
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected database file at %s: %v", path, err)
	}

	if err := store.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if _, err := os.Stat(filepath.Dir(path)); !os.IsNotExist(err) {
		t.Errorf("expected temporary dir to be removed, stat err: %v", err)
	}
}

func TestOpenBolt_ConfiguredDirKept(t *testing.T) {
	dir := t.TempDir()
	store, err := OpenBolt(dir)
	if err != nil {
		t.Fatalf("failed to open bolt store: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "cache.db")); err != nil {
		t.Errorf("expected database file to be kept: %v", err)
	}
}

func TestBoltStore_SetPrunesExpiredEntries(t *testing.T) {
	clock := testsupport.NewFakeClock(time.Time{})
	store, err := OpenBolt(t.TempDir(), WithClock(clock))
	if err != nil {
		t.Fatalf("failed to open bolt store: %v", err)
	}
	defer store.Close()
	ctx := context.Background()

	_ = store.Set(ctx, "user:1", "old", []byte("1"), time.Second)
	clock.Advance(2 * time.Second)
	_ = store.Set(ctx, "user:1", "new", []byte("2"), time.Minute)

	var keys []string
	err = store.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(rootBucket).Bucket(tagBucket("user:1")).ForEach(func(k, _ []byte) error {
			keys = append(keys, string(k))
			return nil
		})
	})
	if err != nil {
		t.Fatalf("view failed: %v", err)
	}
	if len(keys) != 1 || keys[0] != "new" {
		t.Errorf("expected only the live entry to remain, got %v", keys)
	}
}
