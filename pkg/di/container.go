package di

import (
	"context"
	"log/slog"
	"sync"

	"github.com/uptrace/bun"

	"github.com/goliatone/go-query-cache/cache"
	"github.com/goliatone/go-query-cache/datastore"
	"github.com/goliatone/go-query-cache/internal/blog"
	"github.com/goliatone/go-query-cache/internal/cacheinfra"
	"github.com/goliatone/go-query-cache/querycache"
)

// Container owns the process-wide cache store and the pieces every cached
// executor shares. It hands out executors wired to that store.
type Container struct {
	store         cache.Store
	keySerializer cache.KeySerializer
	codec         cache.Codec
	config        cache.Config
	clock         cache.Clock
	logger        *slog.Logger

	closeOnce sync.Once
	closeErr  error
}

// Option configures a Container.
type Option func(*Container)

// WithLogger sets the logger passed to stores and executors.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Container) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithClock sets the clock stores use for expiry.
func WithClock(clock cache.Clock) Option {
	return func(c *Container) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// NewContainer validates config and opens the store it selects. An invalid
// or unreachable store fails here rather than on the first query.
func NewContainer(ctx context.Context, config cache.Config, opts ...Option) (*Container, error) {
	c := &Container{
		config: config,
		clock:  cache.SystemClock,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	keySerializer, err := cache.KeySerializerByName(config.KeySerializer)
	if err != nil {
		return nil, err
	}
	codec, err := cache.CodecByName(config.Codec)
	if err != nil {
		return nil, err
	}

	store, err := cacheinfra.NewStore(ctx, config,
		cacheinfra.WithClock(c.clock),
		cacheinfra.WithLogger(c.logger),
	)
	if err != nil {
		return nil, err
	}

	c.store = store
	c.keySerializer = keySerializer
	c.codec = codec

	c.logger.Info("query cache ready",
		"backend", string(config.Backend),
		"codec", codec.Name(),
		"ttl", config.TTL,
	)
	return c, nil
}

// NewContainerFromFile loads configuration with cache.LoadConfig and builds a
// container from it.
func NewContainerFromFile(ctx context.Context, path string, opts ...Option) (*Container, error) {
	config, err := cache.LoadConfig(path)
	if err != nil {
		return nil, err
	}
	return NewContainer(ctx, config, opts...)
}

// Store returns the shared cache store.
func (c *Container) Store() cache.Store {
	return c.store
}

// KeySerializer returns the configured key serializer.
func (c *Container) KeySerializer() cache.KeySerializer {
	return c.keySerializer
}

// Codec returns the configured payload codec.
func (c *Container) Codec() cache.Codec {
	return c.codec
}

// Config returns a copy of the configuration the container was built from.
func (c *Container) Config() cache.Config {
	return c.config
}

// Close releases the store. Safe to call more than once.
func (c *Container) Close() error {
	c.closeOnce.Do(func() {
		if c.store != nil {
			c.closeErr = c.store.Close()
		}
	})
	return c.closeErr
}

// NewCachedExecutor wraps base with the container's store, key serializer,
// codec and TTL. Extra options are applied after those defaults.
//
// Since Go methods cannot have type parameters, this is provided as a package-level function.
// Example: NewCachedExecutor[Blog](container, datastore.NewBunExecutor[Blog](db))
func NewCachedExecutor[T any](container *Container, base querycache.Executor[T], opts ...querycache.Option[T]) *querycache.CachedExecutor[T] {
	defaults := []querycache.Option[T]{
		querycache.WithKeySerializer[T](container.keySerializer),
		querycache.WithCodec[T](container.codec),
		querycache.WithTTL[T](container.config.TTL),
		querycache.WithLogger[T](container.logger),
	}
	return querycache.New(base, container.store, append(defaults, opts...)...)
}

// NewBlogService wires the blog service to db with cached reads.
func NewBlogService(container *Container, db *bun.DB, opts ...blog.Option) *blog.Service {
	reader := NewCachedExecutor[blog.Blog](container,
		datastore.NewBunExecutor[blog.Blog](db),
		querycache.WithReconstructor[blog.Blog](blog.Reconstruct),
	)
	opts = append([]blog.Option{blog.WithLogger(container.logger), blog.WithClock(container.clock)}, opts...)
	return blog.NewService(db, reader, opts...)
}
