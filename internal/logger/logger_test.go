package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestNewWithWriterLevels(t *testing.T) {
	tests := []struct {
		level     string
		wantDebug bool
	}{
		{"debug", true},
		{"info", false},
		{"warn", false},
		{"error", false},
		{"bogus", false}, // unknown levels fall back to info
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			var buf bytes.Buffer
			log := NewWithWriter(tt.level, &buf)

			log.Debug("debug line")
			gotDebug := strings.Contains(buf.String(), "debug line")
			if gotDebug != tt.wantDebug {
				t.Errorf("level %q: debug emitted = %v, want %v", tt.level, gotDebug, tt.wantDebug)
			}
		})
	}
}

func TestJSONFieldRenaming(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter("info", &buf)

	log.WithModule("kb").WithField("table", "SimpleQnA").Warn("table empty")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}

	if entry["message"] != "table empty" {
		t.Errorf("message = %v, want %q", entry["message"], "table empty")
	}
	if entry["level"] != "warning" {
		t.Errorf("level = %v, want %q", entry["level"], "warning")
	}
	if entry["module"] != "kb" {
		t.Errorf("module = %v, want %q", entry["module"], "kb")
	}
	if _, ok := entry["timestamp"]; !ok {
		t.Error("timestamp field missing")
	}
}

func TestMultiHandlerFanOut(t *testing.T) {
	var a, b bytes.Buffer
	ha := slog.NewJSONHandler(&a, nil)
	hb := slog.NewJSONHandler(&b, nil)

	log := slog.New(NewMultiHandler(ha, hb, nil))
	log.Info("fan out")

	if !strings.Contains(a.String(), "fan out") {
		t.Error("first handler did not receive record")
	}
	if !strings.Contains(b.String(), "fan out") {
		t.Error("second handler did not receive record")
	}
}

func TestMultiHandlerEnabled(t *testing.T) {
	var buf bytes.Buffer
	warnOnly := slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn})

	h := NewMultiHandler(warnOnly)
	if h.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("Enabled(debug) = true with warn-only handler")
	}
	if !h.Enabled(context.Background(), slog.LevelError) {
		t.Error("Enabled(error) = false with warn-only handler")
	}
}
