package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func fixedLogger(level Level, jsonFormat bool) (*Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	l := NewLogger(level, jsonFormat)
	l.SetOutput(&buf)
	l.now = func() time.Time { return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC) }
	return l, &buf
}

func TestLoggerFiltersBelowLevel(t *testing.T) {
	l, buf := fixedLogger(WARN, false)

	l.Info("dropped")
	l.Warn("kept")

	out := buf.String()
	if strings.Contains(out, "dropped") {
		t.Errorf("INFO line should be filtered at WARN level: %q", out)
	}
	if !strings.Contains(out, "WARN: kept") {
		t.Errorf("expected WARN line, got %q", out)
	}
}

func TestLoggerTextFieldsSorted(t *testing.T) {
	l, buf := fixedLogger(DEBUG, false)

	l.WithField("task", "check").Info("submitted", Fields{"hit_id": "H1"})

	want := "[2024-03-01 12:00:00] INFO: submitted hit_id=H1 task=check\n"
	if buf.String() != want {
		t.Errorf("got %q, want %q", buf.String(), want)
	}
}

func TestLoggerJSON(t *testing.T) {
	l, buf := fixedLogger(DEBUG, true)

	l.Error("boom", Fields{"hit_id": "H2"})

	var entry LogEntry
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if entry.Level != "ERROR" || entry.Message != "boom" {
		t.Errorf("unexpected entry %+v", entry)
	}
	if entry.Fields["hit_id"] != "H2" {
		t.Errorf("expected hit_id field, got %v", entry.Fields)
	}
}

func TestWithFieldDoesNotMutateParent(t *testing.T) {
	l, buf := fixedLogger(DEBUG, false)

	_ = l.WithField("task", "a")
	l.Info("plain")

	if strings.Contains(buf.String(), "task=") {
		t.Errorf("parent logger picked up child field: %q", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]Level{
		"debug":   DEBUG,
		"INFO":    INFO,
		"warning": WARN,
		"error":   ERROR,
		"bogus":   INFO,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
