package slogutil

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"strings"
)

// silentLevel sits above anything a record can carry; quiet mode and the
// discard logger both use it.
const silentLevel = slog.Level(100)

// NewLogger creates a slog.Logger in lore's line format.
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(NewLoreHandler(w, &slog.HandlerOptions{Level: level}))
}

// NewFileLogger creates a logger appending to the file at path, creating
// it if needed. The returned closer owns the file handle.
func NewFileLogger(path string, level slog.Level) (*slog.Logger, io.Closer, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, err
	}
	return NewLogger(f, level), f, nil
}

// NewDiscardLogger creates a logger that drops everything. Library code
// takes a logger unconditionally; tests pass this instead of nil.
func NewDiscardLogger() *slog.Logger {
	return slog.New(NewLoreHandler(io.Discard, &slog.HandlerOptions{Level: silentLevel}))
}

// LevelFromString maps a config string to a level (case-insensitive),
// defaulting to info for anything unrecognized.
func LevelFromString(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// LevelFromVerbosity maps the -v/-q flags to a level: warnings only by
// default, info at -v, debug at -vv and beyond. Quiet beats verbosity.
func LevelFromVerbosity(verbosity int, quiet bool) slog.Level {
	switch {
	case quiet:
		return silentLevel
	case verbosity <= 0:
		return slog.LevelWarn
	case verbosity == 1:
		return slog.LevelInfo
	default:
		return slog.LevelDebug
	}
}

// TeeHandler fans each record out to several handlers; the CLI tees
// stderr and the rotating log file through one logger.
type TeeHandler struct {
	handlers []slog.Handler
}

// NewTeeHandler creates a handler that writes to all provided handlers.
func NewTeeHandler(handlers ...slog.Handler) *TeeHandler {
	return &TeeHandler{handlers: handlers}
}

// NewTeeLogger creates a logger that writes to multiple destinations.
func NewTeeLogger(handlers ...slog.Handler) *slog.Logger {
	return slog.New(NewTeeHandler(handlers...))
}

// Enabled reports whether any underlying handler wants the level.
func (t *TeeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range t.handlers {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

// Handle delivers the record to every handler that accepts its level; one
// failing destination does not starve the others.
func (t *TeeHandler) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range t.handlers {
		if h.Enabled(ctx, r.Level) {
			if err := h.Handle(ctx, r.Clone()); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// WithAttrs forwards the attrs to every underlying handler.
func (t *TeeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return t.fanOut(func(h slog.Handler) slog.Handler { return h.WithAttrs(attrs) })
}

// WithGroup forwards the group to every underlying handler.
func (t *TeeHandler) WithGroup(name string) slog.Handler {
	return t.fanOut(func(h slog.Handler) slog.Handler { return h.WithGroup(name) })
}

func (t *TeeHandler) fanOut(wrap func(slog.Handler) slog.Handler) slog.Handler {
	wrapped := make([]slog.Handler, len(t.handlers))
	for i, h := range t.handlers {
		wrapped[i] = wrap(h)
	}
	return &TeeHandler{handlers: wrapped}
}
