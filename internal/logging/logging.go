// Package logging configures the process-wide structured logger.
package logging

import (
	"context"
	"log/slog"
	"os"
	"sync"
)

// Format selects the rendering used for log records.
type Format string

const (
	FormatPretty Format = "pretty"
	FormatJSON   Format = "json"
)

var (
	mu      sync.Mutex
	base    *slog.Logger = slog.Default()
	configured bool
)

// Configure installs the process-wide logger. Call once at startup.
func Configure(format Format, debug bool) {
	mu.Lock()
	defer mu.Unlock()

	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}

	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: level}
	switch format {
	case FormatJSON:
		handler = slog.NewJSONHandler(os.Stderr, opts)
	default:
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	base = slog.New(handler)
	slog.SetDefault(base)
	configured = true
}

// For returns a logger scoped to component, e.g. logging.For("event_store").
func For(component string) *slog.Logger {
	mu.Lock()
	l := base
	mu.Unlock()
	return l.With("component", component)
}

// ctxKey is unexported so only this package can stash/retrieve loggers on a context.
type ctxKey struct{}

// WithContext attaches logger to ctx for downstream retrieval via FromContext.
func WithContext(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, logger)
}

// FromContext returns the logger attached to ctx, or the default component-less
// logger if none was attached.
func FromContext(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(ctxKey{}).(*slog.Logger); ok {
		return l
	}
	mu.Lock()
	defer mu.Unlock()
	return base
}

// Configured reports whether Configure has been called (tests use this to
// avoid clobbering a caller's handler).
func Configured() bool {
	mu.Lock()
	defer mu.Unlock()
	return configured
}
