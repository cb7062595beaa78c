package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"DEBUG", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"fatal", zerolog.FatalLevel},
		{"unknown", zerolog.InfoLevel},
		{"", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := parseLevel(tt.input); got != tt.expected {
				t.Errorf("parseLevel(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestInitFormats(t *testing.T) {
	defer func() { _ = Close() }()

	for _, format := range []string{"console", "json"} {
		t.Run(format, func(t *testing.T) {
			if err := Init(LogConfig{Level: "debug", Format: format}); err != nil {
				t.Fatalf("Init failed: %v", err)
			}
			if Get() == nil {
				t.Fatal("Get() returned nil")
			}
		})
	}
}

func TestInitWithFile(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "logs", "pilot.log")

	defer func() { _ = Close() }()

	if err := Init(LogConfig{Level: "debug", Format: "json", File: logPath}); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	Info().Str("test", "value").Msg("test message")

	if err := Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("Read log file failed: %v", err)
	}
	if !strings.Contains(string(content), "test message") {
		t.Errorf("Log file doesn't contain expected message, got: %s", string(content))
	}
}

func TestInitWithUnusableFilePath(t *testing.T) {
	// A regular file in the middle of the path makes MkdirAll fail.
	blocker := filepath.Join(t.TempDir(), "blocker")
	if err := os.WriteFile(blocker, []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}

	defer func() { _ = Close() }()

	err := Init(LogConfig{Level: "info", Format: "json", File: filepath.Join(blocker, "sub", "pilot.log")})
	if err == nil {
		t.Error("expected error for unusable file path")
	}
}

func TestComponent(t *testing.T) {
	defer func() { _ = Close() }()

	if err := Init(LogConfig{Level: "debug", Format: "json"}); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	if Component("gateway") == nil {
		t.Fatal("Component() returned nil")
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer

	logger := zerolog.New(&buf).Level(zerolog.WarnLevel)

	logger.Debug().Msg("debug message")
	if buf.Len() > 0 {
		t.Error("debug message should be filtered")
	}

	logger.Warn().Msg("warn message")
	if buf.Len() == 0 {
		t.Error("warn message should be logged")
	}

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse log entry: %v", err)
	}
	if entry["level"] != "warn" {
		t.Errorf("expected level 'warn', got %v", entry["level"])
	}
}

func TestConvenienceFunctions(t *testing.T) {
	defer func() { _ = Close() }()

	if err := Init(LogConfig{Level: "debug", Format: "json"}); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	Debug().Msg("debug")
	Info().Msg("info")
	Warn().Msg("warn")
	Error().Msg("error")

	Infof("info %s", "formatted")
	Warnf("warn %s", "formatted")
	Errorf("error %s", "formatted")
}

func TestGetWithoutInit(t *testing.T) {
	mu.Lock()
	initialized = false
	mu.Unlock()

	if Get() == nil {
		t.Fatal("Get() should return a default logger when not initialized")
	}
}
