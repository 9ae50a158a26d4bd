package coro

import (
	"io"
	"log/slog"
)

// Option configures a backend.
type Option func(*options)

type options struct {
	logger *slog.Logger
	limit  int64
}

func makeOptions(opts []Option) options {
	o := options{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithLogger sets the logger receiving lifecycle events. Coroutine names are
// attached to every record. Nothing is logged by default.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithLimit caps the number of coroutines that may be alive at once. Create
// fails with ErrExhausted past the limit. Zero means no limit.
func WithLimit(n int) Option {
	return func(o *options) { o.limit = int64(n) }
}
