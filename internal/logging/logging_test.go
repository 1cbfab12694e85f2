package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := New(Options{Format: "xml"}); err == nil {
		t.Fatal("want error for unknown format")
	}
}

func TestConsoleHandlerRendersAttrs(t *testing.T) {
	var buf bytes.Buffer
	lvl := new(slog.LevelVar)
	logger := slog.New(newConsoleHandler(&buf, lvl))

	WithComponent(logger, "batch").Info("run planned", Int("todo", 42))

	line := buf.String()
	if !strings.Contains(line, "run planned") {
		t.Fatalf("message missing: %q", line)
	}
	if !strings.Contains(line, "batch") {
		t.Fatalf("component missing: %q", line)
	}
	if !strings.Contains(line, "todo=42") {
		t.Fatalf("attr missing: %q", line)
	}
}

func TestJSONHandlerEmitsStandardFields(t *testing.T) {
	var buf bytes.Buffer
	lvl := new(slog.LevelVar)
	logger := slog.New(newJSONHandler(&buf, lvl))

	logger.Warn("task failed", String(FieldTaskID, "1001"))

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("not JSON: %v (%q)", err, buf.String())
	}
	if record["msg"] != "task failed" {
		t.Fatalf("msg = %v", record["msg"])
	}
	if record[FieldTaskID] != "1001" {
		t.Fatalf("task id = %v", record[FieldTaskID])
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	lvl := new(slog.LevelVar)
	lvl.Set(slog.LevelWarn)
	handler := newConsoleHandler(&buf, lvl)
	if handler.Enabled(context.Background(), slog.LevelInfo) {
		t.Fatal("info should be filtered at warn level")
	}
	if !handler.Enabled(context.Background(), slog.LevelError) {
		t.Fatal("error should pass at warn level")
	}
}

func TestNewCreatesLogFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "app.log")
	logger, err := New(Options{Format: "json", OutputPaths: []string{path}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	logger.Info("hello")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("log file: %v", err)
	}
	if !strings.Contains(string(data), "hello") {
		t.Fatalf("log content %q", data)
	}
}
