package slogutil

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseSize(t *testing.T) {
	tests := []struct {
		input    string
		expected int64
	}{
		{"", 0},
		{"0", 0},
		{"100", 100},
		{"100B", 100},
		{"1KB", 1024},
		{"10KB", 10 * 1024},
		{"1MB", 1024 * 1024},
		{"10MB", 10 * 1024 * 1024},
		{"1GB", 1024 * 1024 * 1024},
		{"1.5MB", int64(1.5 * 1024 * 1024)},
		{"10 MB", 10 * 1024 * 1024},
		{"10mb", 10 * 1024 * 1024},
		{"invalid", 0},
		{"MB", 0},
		{"-5MB", 0},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := ParseSize(tt.input)
			if got != tt.expected {
				t.Errorf("ParseSize(%q) = %d, want %d", tt.input, got, tt.expected)
			}
		})
	}
}

func TestNewFileLoggerWithRotation(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "logs", "lore.log")

	logger, closer, err := NewFileLoggerWithRotation(path, slog.LevelInfo, "1MB", 3, 7)
	if err != nil {
		t.Fatalf("NewFileLoggerWithRotation failed: %v", err)
	}
	defer func() { _ = closer.Close() }()

	logger.Info("rotation smoke test", "key", "value")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("log file not created: %v", err)
	}
	if !strings.Contains(string(data), "rotation smoke test") {
		t.Errorf("log file missing message, got: %s", data)
	}
	if !strings.Contains(string(data), "key=value") {
		t.Errorf("log file missing attrs, got: %s", data)
	}
}

func TestNewFileLoggerWithRotation_NoSizeFallsBack(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "lore.log")

	logger, closer, err := NewFileLoggerWithRotation(path, slog.LevelInfo, "", 3, 7)
	if err != nil {
		t.Fatalf("NewFileLoggerWithRotation failed: %v", err)
	}
	defer func() { _ = closer.Close() }()

	logger.Warn("plain file fallback")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("log file not created: %v", err)
	}
	if !strings.Contains(string(data), "plain file fallback") {
		t.Errorf("log file missing message, got: %s", data)
	}
}
