package slogutil

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// ParseSize parses a human size like "10MB", "1.5GB", or "500KB" into
// bytes. Suffixes B, KB, MB, GB, case-insensitive; a bare number is
// bytes. Returns 0 for anything unparseable.
func ParseSize(s string) int64 {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return 0
	}

	factor := int64(1)
	for _, unit := range []struct {
		suffix string
		factor int64
	}{{"GB", 1 << 30}, {"MB", 1 << 20}, {"KB", 1 << 10}, {"B", 1}} {
		if rest, ok := strings.CutSuffix(s, unit.suffix); ok {
			s, factor = strings.TrimSpace(rest), unit.factor
			break
		}
	}

	value, err := strconv.ParseFloat(s, 64)
	if err != nil || value < 0 {
		return 0
	}
	return int64(value * float64(factor))
}

// NewFileLoggerWithRotation creates a rotating file logger backed by
// lumberjack, sized by maxSize (e.g. "10MB") and pruned by maxBackups and
// maxAge (days). An empty or invalid maxSize falls back to a plain
// append-only file logger.
func NewFileLoggerWithRotation(path string, level slog.Level, maxSize string, maxBackups, maxAge int) (*slog.Logger, io.Closer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, nil, err
	}

	size := ParseSize(maxSize)
	if size <= 0 {
		return NewFileLogger(path, level)
	}

	// lumberjack sizes are whole megabytes
	sizeMB := int(size / (1 << 20))
	if sizeMB < 1 {
		sizeMB = 1
	}

	lj := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    sizeMB,
		MaxBackups: maxBackups,
		MaxAge:     maxAge,
	}
	return NewLogger(lj, level), lj, nil
}
