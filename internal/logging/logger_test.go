package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"WARN", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"info", slog.LevelInfo},
		{"nonsense", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := parseLevel(tt.in); got != tt.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNewHandler_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewHandler(&buf, "info", "json"))
	logger.Info("hello", "markers", 3)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v (%q)", err, buf.String())
	}
	if entry["msg"] != "hello" {
		t.Errorf("msg = %v, want hello", entry["msg"])
	}
	if entry["markers"] != float64(3) {
		t.Errorf("markers = %v, want 3", entry["markers"])
	}
}

func TestNewHandler_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewHandler(&buf, "warn", "text"))
	logger.Info("dropped")
	if buf.Len() != 0 {
		t.Errorf("info line written at warn level: %q", buf.String())
	}
}

func TestContextWith_Accumulates(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(NewHandler(&buf, "debug", "text")))
	defer slog.SetDefault(prev)

	ctx := ContextWith(context.Background(), "session_id", "abc")
	ctx = ContextWith(ctx, "dataset", "primary")
	FromContext(ctx).Info("composed")

	out := buf.String()
	for _, want := range []string{"session_id=abc", "dataset=primary", "msg=composed"} {
		if !strings.Contains(out, want) {
			t.Errorf("log line %q missing %q", out, want)
		}
	}
}
