package cacheinfra

import (
	"log/slog"

	"github.com/goliatone/go-query-cache/cache"
)

// Option configures a store.
type Option func(*options)

type options struct {
	clock  cache.Clock
	logger *slog.Logger
}

func newOptions(opts []Option) options {
	o := options{
		clock:  cache.SystemClock,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}

// WithClock sets the clock used to stamp and check entry deadlines.
func WithClock(clock cache.Clock) Option {
	return func(o *options) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// WithLogger sets the logger stores report background failures to.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}
