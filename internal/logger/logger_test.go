package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestSetup_ReturnsJSONLogger(t *testing.T) {
	var buf bytes.Buffer
	l := Setup(&buf, "info")

	l.Info("test message", slog.String("key", "value"))

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected valid JSON log output, got error: %v\nraw output: %s", err, buf.String())
	}

	if entry["msg"] != "test message" {
		t.Errorf("msg = %q, want %q", entry["msg"], "test message")
	}
	if entry["key"] != "value" {
		t.Errorf("key = %q, want %q", entry["key"], "value")
	}
	if _, ok := entry["time"]; !ok {
		t.Error("expected time field in log output")
	}
}

func TestSetup_DebugSuppressedAtInfo(t *testing.T) {
	var buf bytes.Buffer
	l := Setup(&buf, "info")

	l.Debug("hidden")

	if buf.Len() != 0 {
		t.Errorf("expected no output for debug at info level, got %q", buf.String())
	}
}

func TestSetup_DebugLevelEmitsDebug(t *testing.T) {
	var buf bytes.Buffer
	l := Setup(&buf, "debug")

	l.Debug("visible")

	if !strings.Contains(buf.String(), "visible") {
		t.Errorf("expected debug output, got %q", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestSetupDefault_SetsGlobalLogger(t *testing.T) {
	prev := slog.Default()
	defer slog.SetDefault(prev)

	var buf bytes.Buffer
	SetupDefault(&buf, "info")

	slog.Info("global message")

	if !strings.Contains(buf.String(), "global message") {
		t.Errorf("expected global logger to write to buffer, got %q", buf.String())
	}
}
