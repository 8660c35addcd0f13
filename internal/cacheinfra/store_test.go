package cacheinfra

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/goliatone/go-query-cache/cache"
	"github.com/goliatone/go-query-cache/pkg/testsupport"
)

type storeFactory func(t *testing.T, clock cache.Clock) cache.Store

func backends() map[string]storeFactory {
	return map[string]storeFactory{
		"redis": func(t *testing.T, clock cache.Clock) cache.Store {
			_, client := testsupport.StartRedis(t)
			return NewRedisStore(client, "qc:", WithClock(clock))
		},
		"memory": func(t *testing.T, clock cache.Clock) cache.Store {
			store, err := NewSturdycStore(cache.DefaultMemoryConfig(), WithClock(clock))
			if err != nil {
				t.Fatalf("failed to create sturdyc store: %v", err)
			}
			return store
		},
		"bolt": func(t *testing.T, clock cache.Clock) cache.Store {
			store, err := OpenBolt(t.TempDir(), WithClock(clock))
			if err != nil {
				t.Fatalf("failed to open bolt store: %v", err)
			}
			t.Cleanup(func() { _ = store.Close() })
			return store
		},
	}
}

func mustGet(t *testing.T, store cache.Store, tag, key string) ([]byte, bool) {
	t.Helper()
	value, found, err := store.Get(context.Background(), tag, key)
	if err != nil {
		t.Fatalf("get %s/%s failed: %v", tag, key, err)
	}
	return value, found
}

func mustSet(t *testing.T, store cache.Store, tag, key, value string, ttl time.Duration) {
	t.Helper()
	if err := store.Set(context.Background(), tag, key, []byte(value), ttl); err != nil {
		t.Fatalf("set %s/%s failed: %v", tag, key, err)
	}
}

func TestStore_Contract(t *testing.T) {
	for name, factory := range backends() {
		t.Run(name, func(t *testing.T) {
			t.Run("miss on empty store", func(t *testing.T) {
				store := factory(t, testsupport.NewFakeClock(time.Time{}))
				if _, found := mustGet(t, store, "user:1", "k"); found {
					t.Error("expected miss on empty store")
				}
			})

			t.Run("set then get", func(t *testing.T) {
				store := factory(t, testsupport.NewFakeClock(time.Time{}))
				mustSet(t, store, "user:1", "k", `[{"id":1}]`, time.Minute)

				value, found := mustGet(t, store, "user:1", "k")
				if !found {
					t.Fatal("expected hit after set")
				}
				if string(value) != `[{"id":1}]` {
					t.Errorf("expected stored payload, got %q", value)
				}
			})

			t.Run("empty tag is its own namespace", func(t *testing.T) {
				store := factory(t, testsupport.NewFakeClock(time.Time{}))
				mustSet(t, store, "", "k", "untagged", time.Minute)
				mustSet(t, store, "user:1", "k", "tagged", time.Minute)

				value, found := mustGet(t, store, "", "k")
				if !found || string(value) != "untagged" {
					t.Errorf("expected untagged entry, got %q found=%v", value, found)
				}
			})

			t.Run("entry expires at ttl", func(t *testing.T) {
				clock := testsupport.NewFakeClock(time.Time{})
				store := factory(t, clock)
				mustSet(t, store, "user:1", "k", "v", time.Minute)

				clock.Advance(59 * time.Second)
				if _, found := mustGet(t, store, "user:1", "k"); !found {
					t.Error("expected hit before ttl elapsed")
				}

				clock.Advance(time.Second)
				if _, found := mustGet(t, store, "user:1", "k"); found {
					t.Error("expected miss once ttl elapsed")
				}
			})

			t.Run("invalidate removes whole tag only", func(t *testing.T) {
				store := factory(t, testsupport.NewFakeClock(time.Time{}))
				mustSet(t, store, "user:1", "a", "1", time.Minute)
				mustSet(t, store, "user:1", "b", "2", time.Minute)
				mustSet(t, store, "user:2", "a", "3", time.Minute)

				if err := store.Invalidate(context.Background(), "user:1"); err != nil {
					t.Fatalf("invalidate failed: %v", err)
				}

				for _, key := range []string{"a", "b"} {
					if _, found := mustGet(t, store, "user:1", key); found {
						t.Errorf("expected user:1/%s to be gone", key)
					}
				}
				if value, found := mustGet(t, store, "user:2", "a"); !found || string(value) != "3" {
					t.Errorf("expected user:2 untouched, got %q found=%v", value, found)
				}
			})

			t.Run("invalidate unknown tag is a no-op", func(t *testing.T) {
				store := factory(t, testsupport.NewFakeClock(time.Time{}))
				if err := store.Invalidate(context.Background(), "nobody"); err != nil {
					t.Errorf("expected no error, got %v", err)
				}
			})

			t.Run("write after invalidate is visible", func(t *testing.T) {
				store := factory(t, testsupport.NewFakeClock(time.Time{}))
				mustSet(t, store, "user:1", "k", "old", time.Minute)
				if err := store.Invalidate(context.Background(), "user:1"); err != nil {
					t.Fatalf("invalidate failed: %v", err)
				}
				mustSet(t, store, "user:1", "k", "new", time.Minute)

				if value, found := mustGet(t, store, "user:1", "k"); !found || string(value) != "new" {
					t.Errorf("expected new value, got %q found=%v", value, found)
				}
			})

			t.Run("invalidate is all or nothing for readers", func(t *testing.T) {
				store := factory(t, testsupport.NewFakeClock(time.Time{}))
				ctx := context.Background()

				const numKeys = 10
				want := make(map[string]string, numKeys)
				for i := 0; i < numKeys; i++ {
					key := fmt.Sprintf("k%d", i)
					want[key] = "v" + key
					mustSet(t, store, "user:1", key, want[key], time.Minute)
				}

				start := make(chan struct{})
				stop := make(chan struct{})
				errs := make(chan error, 64)
				var wg sync.WaitGroup
				for r := 0; r < 4; r++ {
					wg.Add(1)
					go func(reader int) {
						defer wg.Done()
						<-start
						sawMiss := false
						for i := 0; ; i++ {
							select {
							case <-stop:
								return
							default:
							}
							key := fmt.Sprintf("k%d", (i+reader)%numKeys)
							value, found, err := store.Get(ctx, "user:1", key)
							switch {
							case err != nil:
								errs <- fmt.Errorf("reader %d: get %s: %w", reader, key, err)
								return
							case found && string(value) != want[key]:
								errs <- fmt.Errorf("reader %d: expected %q for %s, got %q", reader, want[key], key, value)
								return
							case found && sawMiss:
								errs <- fmt.Errorf("reader %d: %s visible after another key was already gone", reader, key)
								return
							case !found:
								sawMiss = true
							}
						}
					}(r)
				}

				close(start)
				if err := store.Invalidate(ctx, "user:1"); err != nil {
					t.Fatalf("invalidate failed: %v", err)
				}
				for key := range want {
					if _, found := mustGet(t, store, "user:1", key); found {
						t.Errorf("expected %s gone after invalidate", key)
					}
				}
				close(stop)
				wg.Wait()
				close(errs)

				for err := range errs {
					t.Error(err)
				}
			})

			t.Run("concurrent writers and readers", func(t *testing.T) {
				store := factory(t, testsupport.NewFakeClock(time.Time{}))
				ctx := context.Background()

				errs := make(chan error, 8*21)
				var wg sync.WaitGroup
				for w := 0; w < 8; w++ {
					wg.Add(1)
					go func(worker int) {
						defer wg.Done()
						key := fmt.Sprintf("w%d", worker)
						for j := 0; j < 20; j++ {
							value := fmt.Sprintf("%s-%d", key, j)
							if err := store.Set(ctx, "user:1", key, []byte(value), time.Minute); err != nil {
								errs <- fmt.Errorf("set %s: %w", key, err)
								return
							}
							got, found, err := store.Get(ctx, "user:1", key)
							if err != nil {
								errs <- fmt.Errorf("get %s: %w", key, err)
								return
							}
							// a concurrent invalidate may drop the entry, nothing else may replace it
							if found && string(got) != value {
								errs <- fmt.Errorf("expected %q for %s, got %q", value, key, got)
							}
							if j%5 == 0 {
								if err := store.Invalidate(ctx, "user:1"); err != nil {
									errs <- fmt.Errorf("invalidate: %w", err)
									return
								}
							}
						}
					}(w)
				}
				wg.Wait()
				close(errs)

				for err := range errs {
					t.Error(err)
				}

				if err := store.Invalidate(ctx, "user:1"); err != nil {
					t.Fatalf("invalidate failed: %v", err)
				}
				for w := 0; w < 8; w++ {
					if _, found := mustGet(t, store, "user:1", fmt.Sprintf("w%d", w)); found {
						t.Errorf("expected w%d gone after final invalidate", w)
					}
				}
			})
		})
	}
}

func TestNewStore(t *testing.T) {
	srv, _ := testsupport.StartRedis(t)

	tests := []struct {
		name    string
		mutate  func(*cache.Config)
		wantErr bool
	}{
		{
			name: "redis",
			mutate: func(c *cache.Config) {
				c.Address = srv.Addr()
			},
		},
		{
			name: "memory",
			mutate: func(c *cache.Config) {
				c.Backend = cache.BackendMemory
			},
		},
		{
			name: "bolt",
			mutate: func(c *cache.Config) {
				c.Backend = cache.BackendBolt
			},
		},
		{
			name: "invalid backend",
			mutate: func(c *cache.Config) {
				c.Backend = "memcached"
			},
			wantErr: true,
		},
		{
			name: "invalid redis address",
			mutate: func(c *cache.Config) {
				c.Address = "not an address"
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := cache.DefaultConfig()
			tt.mutate(&cfg)

			store, err := NewStore(context.Background(), cfg)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if err := store.Close(); err != nil {
				t.Errorf("close failed: %v", err)
			}
		})
	}
}
