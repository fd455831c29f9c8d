package engine

import (
	"io"
	"log/slog"

	"github.com/dukgo/dukgo/pkg/pool"
)

// Option configures a Context at construction time. The surface mirrors the
// distribution's optional features: debug, logging, spam, trace.
type Option func(*options)

type options struct {
	debug   bool
	logging bool
	spam    bool
	trace   bool
	logger  *slog.Logger
	pool    *pool.Pool
}

// WithDebug enables debug instrumentation. Debug implies logging.
func WithDebug() Option {
	return func(o *options) {
		o.debug = true
		o.logging = true
	}
}

// WithLogging enables diagnostic logging through the supplied logger.
// A nil logger selects slog.Default.
func WithLogging(logger *slog.Logger) Option {
	return func(o *options) {
		o.logging = true
		o.logger = logger
	}
}

// WithSpam enables per-value conversion diagnostics. Extremely chatty;
// implies trace.
func WithSpam() Option {
	return func(o *options) {
		o.spam = true
		o.trace = true
	}
}

// WithTrace logs every eval and call at debug level.
func WithTrace() Option {
	return func(o *options) {
		o.trace = true
	}
}

// WithBufferPool routes byte-buffer allocations through a fixed pool.
// The caller owns the pool's lifetime; buffers stay live until Reset.
func WithBufferPool(p *pool.Pool) Option {
	return func(o *options) {
		o.pool = p
	}
}

func (o *options) resolveLogger() *slog.Logger {
	if !o.logging {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if o.logger != nil {
		return o.logger
	}
	return slog.Default()
}
