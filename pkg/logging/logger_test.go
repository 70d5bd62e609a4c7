package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/oklog/ulid/v2"
)

func TestOpenEventLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "logs", "run.jsonl")
	log, err := OpenEventLog(path, "run-1")
	if err != nil {
		t.Fatalf("OpenEventLog() error = %v", err)
	}
	defer log.Close()

	if log.Path() != path {
		t.Errorf("Path() = %q, want %q", log.Path(), path)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("log file not created: %v", err)
	}
}

func TestEventLogWritesJSONL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.jsonl")
	log, err := OpenEventLog(path, "run-1")
	if err != nil {
		t.Fatalf("OpenEventLog() error = %v", err)
	}

	if err := log.Info(CategoryCleanup, "artifact_removed", "Delete temporary files: build", map[string]any{"role": "build_dir"}); err != nil {
		t.Fatalf("Info() error = %v", err)
	}
	if err := log.Error(CategoryProbe, "toolchain_unavailable", "idf.py missing", nil); err != nil {
		t.Fatalf("Error() error = %v", err)
	}
	if err := log.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %q", len(lines), data)
	}

	var first Event
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatalf("line is not JSON: %v", err)
	}
	if first.RunID != "run-1" || first.Category != CategoryCleanup || first.EventType != "artifact_removed" {
		t.Errorf("unexpected event: %+v", first)
	}
	if first.Timestamp.IsZero() {
		t.Error("timestamp should be filled in")
	}
}

func TestEventLogMinLevel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.jsonl")
	log, err := OpenEventLog(path, "run-2")
	if err != nil {
		t.Fatal(err)
	}
	log.SetMinLevel(LevelWarn)

	_ = log.Info(CategoryRun, "ignored", "", nil)
	_ = log.Warn(CategoryRun, "kept", "", nil)
	_ = log.Close()

	events, err := ReadEvents(path)
	if err != nil {
		t.Fatalf("ReadEvents() error = %v", err)
	}
	if len(events) != 1 || events[0].EventType != "kept" {
		t.Fatalf("expected only the warning, got %+v", events)
	}
}

func TestNilEventLogDiscards(t *testing.T) {
	var log *EventLog
	if err := log.Info(CategoryRun, "started", "", nil); err != nil {
		t.Fatalf("nil log should discard, got %v", err)
	}
	log.SetMinLevel(LevelError)
	if log.Path() != "" {
		t.Error("nil log has no path")
	}
	if err := log.Close(); err != nil {
		t.Fatalf("Close() on nil log = %v", err)
	}
}

func TestReadEventsMissingFile(t *testing.T) {
	if _, err := ReadEvents(filepath.Join(t.TempDir(), "missing.jsonl")); err == nil {
		t.Fatal("expected error for missing log")
	}
}

func TestNewRunIDIsULID(t *testing.T) {
	a := NewRunID()
	b := NewRunID()
	if _, err := ulid.Parse(a); err != nil {
		t.Fatalf("run id %q is not a ULID: %v", a, err)
	}
	if a == b {
		t.Fatal("run ids should be unique")
	}
}

func TestNewSlog(t *testing.T) {
	var buf bytes.Buffer
	logger := NewSlog(&buf, "warn", "json")

	logger.Info("hidden")
	logger.Warn("shown", "step", "build")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info should be filtered at warn level: %q", out)
	}
	var record map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(out)), &record); err != nil {
		t.Fatalf("json handler output not JSON: %v", err)
	}
	if record["system"] != "espboot" || record["step"] != "build" {
		t.Errorf("unexpected record: %v", record)
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
