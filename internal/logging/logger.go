// Package logging defines a minimal structured-logging interface used across
// the project, with slog and zap backed implementations.
package logging

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"go.uber.org/zap"
)

// Logger is a context-aware, structured logger.
//
// The variadic args are interpreted as key–value pairs, e.g.:
//
//	log.Info(ctx, "starting server", "addr", addr, "mode", mode)
type Logger interface {
	// Debug logs a diagnostic message, usually suppressed in production.
	Debug(ctx context.Context, msg string, args ...any)
	// Info logs an informational message.
	Info(ctx context.Context, msg string, args ...any)
	// Warn logs a warning message for unusual but non-fatal conditions.
	Warn(ctx context.Context, msg string, args ...any)
	// Error logs an error message for failures.
	Error(ctx context.Context, msg string, args ...any)
	// With returns a child logger that always includes the given key–value pairs.
	With(args ...any) Logger
}

// Supported backend names for New.
const (
	BackendSlog = "slog"
	BackendZap  = "zap"
)

// New builds a Logger writing JSON to stdout using the named backend.
// In development mode debug messages are enabled.
func New(backend string, development bool) (Logger, error) {
	switch backend {
	case "", BackendSlog:
		level := slog.LevelInfo
		if development {
			level = slog.LevelDebug
		}
		h := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
		return NewSlogLogger(slog.New(h)), nil
	case BackendZap:
		var (
			l   *zap.Logger
			err error
		)
		if development {
			l, err = zap.NewDevelopment()
		} else {
			l, err = zap.NewProduction()
		}
		if err != nil {
			return nil, fmt.Errorf("zap init: %w", err)
		}
		return NewZapLogger(l), nil
	default:
		return nil, fmt.Errorf("unknown log backend %q", backend)
	}
}

// Nop returns a Logger that discards everything. Useful in tests.
func Nop() Logger {
	return NewZapLogger(zap.NewNop())
}
