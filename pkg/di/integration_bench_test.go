package di

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/goliatone/go-query-cache/cache"
	"github.com/goliatone/go-query-cache/querycache"
)

type post struct {
	ID     string `json:"id"`
	UserID string `json:"user_id"`
	Title  string `json:"title"`
}

// staticExecutor answers every query with the same posts for the filtered user.
func staticExecutor(posts map[string][]post) querycache.ExecutorFunc[post] {
	return func(_ context.Context, q *querycache.Query) (querycache.Result[post], error) {
		userID, _ := q.Criteria.Filter["user_id"].(string)
		return querycache.Many(posts[userID]), nil
	}
}

func benchContainer(tb testing.TB, mutate func(*cache.Config)) *Container {
	tb.Helper()
	cfg := cache.DefaultConfig()
	cfg.Backend = cache.BackendMemory
	cfg.Address = ""
	if mutate != nil {
		mutate(&cfg)
	}
	container, err := NewContainer(context.Background(), cfg)
	if err != nil {
		tb.Fatalf("NewContainer() failed: %v", err)
	}
	tb.Cleanup(func() { container.Close() })
	return container
}

func seedPosts(users, perUser int) map[string][]post {
	posts := make(map[string][]post, users)
	for u := 0; u < users; u++ {
		userID := fmt.Sprintf("%d", u)
		for p := 0; p < perUser; p++ {
			posts[userID] = append(posts[userID], post{
				ID:     fmt.Sprintf("%s-%d", userID, p),
				UserID: userID,
				Title:  fmt.Sprintf("Post %d", p),
			})
		}
	}
	return posts
}

func userQuery(userID string) *querycache.Query {
	return querycache.NewQuery("posts").Where("user_id", userID).Cache("user:" + userID)
}

func TestConcurrentAccess(t *testing.T) {
	container := benchContainer(t, nil)
	posts := seedPosts(20, 5)
	cached := NewCachedExecutor[post](container, staticExecutor(posts))

	ctx := context.Background()
	const numGoroutines = 50
	const operationsPerGoroutine = 20

	var wg sync.WaitGroup
	errs := make(chan error, numGoroutines*operationsPerGoroutine)

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for j := 0; j < operationsPerGoroutine; j++ {
				userID := fmt.Sprintf("%d", (workerID+j)%20)
				if j%7 == 0 {
					if err := cached.Invalidate(ctx, "user:"+userID); err != nil {
						errs <- err
					}
					continue
				}
				res, err := cached.Execute(ctx, userQuery(userID))
				if err != nil {
					errs <- err
					continue
				}
				if len(res.Records()) != 5 {
					errs <- fmt.Errorf("worker %d: expected 5 posts for user %s, got %d", workerID, userID, len(res.Records()))
				}
			}
		}(i)
	}

	wg.Wait()
	close(errs)

	for err := range errs {
		t.Error(err)
	}

	stats := cached.Stats()
	if stats.Hits == 0 {
		t.Error("Expected some cache hits under concurrent load")
	}
	if stats.WriteFailures != 0 {
		t.Errorf("Expected no write failures, got %d", stats.WriteFailures)
	}
}

func BenchmarkExecute_Base(b *testing.B) {
	exec := staticExecutor(seedPosts(1, 20))
	ctx := context.Background()
	q := userQuery("0")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := exec.Execute(ctx, q); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkExecute_CachedHit(b *testing.B) {
	for _, codec := range []string{"json", "msgpack"} {
		b.Run(codec, func(b *testing.B) {
			container := benchContainer(b, func(c *cache.Config) { c.Codec = codec })
			cached := NewCachedExecutor[post](container, staticExecutor(seedPosts(1, 20)))
			ctx := context.Background()
			q := userQuery("0")

			if _, err := cached.Execute(ctx, q); err != nil {
				b.Fatal(err)
			}

			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if _, err := cached.Execute(ctx, q); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

func BenchmarkExecute_Parallel(b *testing.B) {
	container := benchContainer(b, nil)
	cached := NewCachedExecutor[post](container, staticExecutor(seedPosts(100, 5)))
	ctx := context.Background()

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			if _, err := cached.Execute(ctx, userQuery(fmt.Sprintf("%d", i%100))); err != nil {
				b.Error(err)
				return
			}
			i++
		}
	})
}

func BenchmarkInvalidate(b *testing.B) {
	container := benchContainer(b, nil)
	cached := NewCachedExecutor[post](container, staticExecutor(seedPosts(1, 5)))
	ctx := context.Background()
	q := userQuery("0")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := cached.Execute(ctx, q); err != nil {
			b.Fatal(err)
		}
		if err := cached.Invalidate(ctx, "user:0"); err != nil {
			b.Fatal(err)
		}
	}
}
