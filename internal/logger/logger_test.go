package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestNewLoggerWithFormat_JSON(t *testing.T) {
	var buf bytes.Buffer

	log := NewLoggerWithFormat("info", "json", &buf)
	log.With("run_id", "r1").Info("run started", "queries", 2)
	log.Debug("hidden")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("Expected 1 line, got %d: %q", len(lines), buf.String())
	}

	var rec map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatalf("Expected JSON record: %v", err)
	}

	if rec["run_id"] != "r1" || rec["msg"] != "run started" {
		t.Errorf("Unexpected record: %v", rec)
	}
}

func TestSetLevel(t *testing.T) {
	var buf bytes.Buffer

	log := NewLoggerWithFormat("error", "text", &buf)
	log.Info("dropped")

	log.SetLevel("debug")
	log.Debug("kept")

	out := buf.String()
	if strings.Contains(out, "dropped") || !strings.Contains(out, "kept") {
		t.Errorf("Unexpected output: %q", out)
	}
}

func TestParseLevel(t *testing.T) {
	if ParseLevel("WARN") != slog.LevelWarn {
		t.Error("Expected warn level")
	}

	if ParseLevel("bogus") != slog.LevelInfo {
		t.Error("Expected info fallback")
	}
}
