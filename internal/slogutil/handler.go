// Package slogutil provides custom slog handlers and utilities for lore logging.
package slogutil

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"
)

// LoreHandler formats records as single greppable lines:
// TIMESTAMP [level] Message | key=value key=value
type LoreHandler struct {
	w      io.Writer
	level  slog.Leveler
	attrs  []slog.Attr // keys already carry their group prefix
	prefix string      // open group prefix, "a.b."
	mu     *sync.Mutex
}

// NewLoreHandler creates a new lore log handler.
func NewLoreHandler(w io.Writer, opts *slog.HandlerOptions) *LoreHandler {
	level := slog.Leveler(slog.LevelInfo)
	if opts != nil && opts.Level != nil {
		level = opts.Level
	}
	return &LoreHandler{w: w, level: level, mu: &sync.Mutex{}}
}

// Enabled reports whether the handler handles records at the given level.
func (h *LoreHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

// Handle formats and writes the log record as one line.
func (h *LoreHandler) Handle(_ context.Context, r slog.Record) error {
	var line bytes.Buffer
	line.WriteString(r.Time.UTC().Format(time.RFC3339))
	line.WriteString(" [")
	line.WriteString(levelString(r.Level))
	line.WriteString("] ")
	line.WriteString(r.Message)

	var tail bytes.Buffer
	for _, a := range h.attrs {
		appendAttr(&tail, "", a)
	}
	r.Attrs(func(a slog.Attr) bool {
		appendAttr(&tail, h.prefix, a)
		return true
	})
	if tail.Len() > 0 {
		line.WriteString(" |")
		line.Write(tail.Bytes())
	}
	line.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.w.Write(line.Bytes())
	return err
}

// WithAttrs returns a handler with the attrs appended. Keys are qualified
// with the groups open right now; a group opened later must not rename
// attrs added before it.
func (h *LoreHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	merged := make([]slog.Attr, len(h.attrs), len(h.attrs)+len(attrs))
	copy(merged, h.attrs)
	for _, a := range attrs {
		merged = append(merged, qualify(h.prefix, a))
	}
	return &LoreHandler{w: h.w, level: h.level, attrs: merged, prefix: h.prefix, mu: h.mu}
}

// WithGroup returns a handler whose subsequent attrs get a dotted prefix.
func (h *LoreHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return &LoreHandler{w: h.w, level: h.level, attrs: h.attrs, prefix: h.prefix + name + ".", mu: h.mu}
}

// qualify bakes the open group prefix into an attr at the time it is
// added. Inline groups (empty key) qualify their members instead.
func qualify(prefix string, a slog.Attr) slog.Attr {
	if prefix == "" {
		return a
	}
	if a.Key == "" && a.Value.Kind() == slog.KindGroup {
		members := a.Value.Group()
		qualified := make([]slog.Attr, len(members))
		for i, m := range members {
			qualified[i] = qualify(prefix, m)
		}
		return slog.Attr{Value: slog.GroupValue(qualified...)}
	}
	a.Key = prefix + a.Key
	return a
}

// appendAttr writes " key=value" onto the tail, flattening group values
// into dotted keys and resolving LogValuers.
func appendAttr(tail *bytes.Buffer, prefix string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Value.Kind() == slog.KindGroup {
		if a.Key != "" {
			prefix = prefix + a.Key + "."
		}
		for _, m := range a.Value.Group() {
			appendAttr(tail, prefix, m)
		}
		return
	}
	if a.Key == "" {
		return
	}
	tail.WriteByte(' ')
	tail.WriteString(prefix)
	tail.WriteString(a.Key)
	tail.WriteByte('=')
	tail.WriteString(formatValue(a.Value))
}

// levelString returns a lowercase string for the log level.
func levelString(level slog.Level) string {
	switch {
	case level < slog.LevelInfo:
		return "debug"
	case level < slog.LevelWarn:
		return "info"
	case level < slog.LevelError:
		return "warn"
	default:
		return "error"
	}
}

// formatValue renders a value for the k=v tail. Anything that would break
// the tail's shape is quoted; git stderr and wrapped error chains carry
// spaces, quotes, and newlines routinely.
func formatValue(v slog.Value) string {
	var s string
	switch v.Kind() {
	case slog.KindString:
		s = v.String()
	case slog.KindTime:
		s = v.Time().UTC().Format(time.RFC3339)
	case slog.KindDuration:
		s = v.Duration().String()
	default:
		s = fmt.Sprint(v.Any())
	}
	if s == "" || strings.ContainsAny(s, " =\"\t\n") {
		return strconv.Quote(s)
	}
	return s
}
