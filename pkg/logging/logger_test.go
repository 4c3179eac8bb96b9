package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/dd0wney/cluso-fdb/pkg/native"
)

func parseEntries(t *testing.T, buf *bytes.Buffer) []LogEntry {
	t.Helper()
	var entries []LogEntry
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var e LogEntry
		if err := json.Unmarshal([]byte(line), &e); err != nil {
			t.Fatalf("Failed to parse log line %q: %v", line, err)
		}
		entries = append(entries, e)
	}
	return entries
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewJSONLogger(&buf, WarnLevel)

	logger.Debug("debug msg")
	logger.Info("info msg")
	logger.Warn("warn msg")
	logger.Error("error msg")

	entries := parseEntries(t, &buf)
	if len(entries) != 2 {
		t.Fatalf("Expected 2 entries at warn level, got %d", len(entries))
	}
	if entries[0].Level != "WARN" || entries[1].Level != "ERROR" {
		t.Errorf("Unexpected levels: %s, %s", entries[0].Level, entries[1].Level)
	}
}

func TestSetLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewJSONLogger(&buf, ErrorLevel)

	logger.Info("dropped")
	logger.SetLevel(DebugLevel)
	logger.Debug("kept")

	entries := parseEntries(t, &buf)
	if len(entries) != 1 || entries[0].Message != "kept" {
		t.Errorf("Expected only the post-SetLevel entry, got %+v", entries)
	}
}

func TestStructuredFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewJSONLogger(&buf, DebugLevel)

	logger.Info("handle adopted",
		Ptr(native.Pointer(42)),
		ClusterFile(""),
		DatabaseName("DB"),
		NativeCode(native.CodeClusterFileNotFound),
		Count(3),
		Bool("cached", true),
	)

	entries := parseEntries(t, &buf)
	if len(entries) != 1 {
		t.Fatalf("Expected 1 entry, got %d", len(entries))
	}
	fields := entries[0].Fields
	if fields["ptr"] != float64(42) {
		t.Errorf("Expected ptr 42, got %v", fields["ptr"])
	}
	if fields["cluster_file"] != "<default>" {
		t.Errorf("Empty cluster file should log as <default>, got %v", fields["cluster_file"])
	}
	if fields["database"] != "DB" {
		t.Errorf("Expected database DB, got %v", fields["database"])
	}
	if fields["count"] != float64(3) {
		t.Errorf("Expected count 3, got %v", fields["count"])
	}
}

func TestWithInheritsFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewJSONLogger(&buf, InfoLevel)

	child := logger.With(Component("bridge"))
	child.Info("started", Int("api_version", 101))

	entries := parseEntries(t, &buf)
	if len(entries) != 1 {
		t.Fatalf("Expected 1 entry, got %d", len(entries))
	}
	if entries[0].Fields["component"] != "bridge" {
		t.Errorf("Child logger lost inherited field: %+v", entries[0].Fields)
	}
	if entries[0].Fields["api_version"] != float64(101) {
		t.Errorf("Child logger lost call-site field: %+v", entries[0].Fields)
	}

	// The parent is unaffected.
	buf.Reset()
	logger.Info("plain")
	entries = parseEntries(t, &buf)
	if _, ok := entries[0].Fields["component"]; ok {
		t.Error("Parent logger inherited the child's field")
	}
}

func TestErrorField(t *testing.T) {
	var buf bytes.Buffer
	logger := NewJSONLogger(&buf, InfoLevel)

	logger.Error("open failed", Error(errors.New("boom")))
	logger.Error("nil error", Error(nil))

	entries := parseEntries(t, &buf)
	if entries[0].Fields["error"] != "boom" {
		t.Errorf("Expected error field boom, got %v", entries[0].Fields["error"])
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{
		"debug":   DebugLevel,
		"DEBUG":   DebugLevel,
		"info":    InfoLevel,
		"warn":    WarnLevel,
		"WARNING": WarnLevel,
		"error":   ErrorLevel,
		"bogus":   InfoLevel,
		"":        InfoLevel,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestTimedOperation(t *testing.T) {
	var buf bytes.Buffer
	logger := NewJSONLogger(&buf, InfoLevel)

	timer := StartTimer(logger, "open database", DatabaseName("DB"))
	time.Sleep(time.Millisecond)
	timer.End()

	entries := parseEntries(t, &buf)
	if len(entries) != 1 {
		t.Fatalf("Expected 1 entry, got %d", len(entries))
	}
	if entries[0].Message != "open database" {
		t.Errorf("Unexpected message %q", entries[0].Message)
	}
	if _, ok := entries[0].Fields["latency"]; !ok {
		t.Errorf("Expected latency field, got %+v", entries[0].Fields)
	}
}

func TestNopLogger(t *testing.T) {
	logger := NewNopLogger()
	logger.Info("ignored")
	if logger.With(Component("x")) == nil {
		t.Error("NopLogger.With should return a usable logger")
	}
}
