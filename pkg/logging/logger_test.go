package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

// TestLevelFiltering verifies messages below the configured level are
// dropped.
func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger(WARN, false)
	log.SetOutput(&buf)

	log.Debug("debug line")
	log.Info("info line")
	log.Warn("warn line")
	log.Error("error line")

	out := buf.String()
	if strings.Contains(out, "debug line") || strings.Contains(out, "info line") {
		t.Errorf("Expected sub-warn messages dropped, got:\n%s", out)
	}
	if !strings.Contains(out, "warn line") || !strings.Contains(out, "error line") {
		t.Errorf("Expected warn and error messages kept, got:\n%s", out)
	}
}

// TestJSONFormat verifies JSON entries carry level, message and fields
func TestJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger(INFO, true)
	log.SetOutput(&buf)

	log.Info("holding", map[string]interface{}{"devices": 2})

	var entry LogEntry
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("Log line is not valid JSON: %v", err)
	}
	if entry.Level != "INFO" {
		t.Errorf("Expected level INFO, got %s", entry.Level)
	}
	if entry.Message != "holding" {
		t.Errorf("Expected message holding, got %s", entry.Message)
	}
	if got, ok := entry.Fields["devices"]; !ok || got != float64(2) {
		t.Errorf("Expected devices field 2, got %v", entry.Fields)
	}
}

// TestWithField verifies derived loggers carry their context without
// mutating the parent.
func TestWithField(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger(INFO, true)
	log.SetOutput(&buf)

	child := log.WithField("component", "status-api")
	child.Info("listening")

	var entry LogEntry
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("Log line is not valid JSON: %v", err)
	}
	if entry.Fields["component"] != "status-api" {
		t.Errorf("Expected component field on child entry, got %v", entry.Fields)
	}

	buf.Reset()
	log.Info("plain")
	entry = LogEntry{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("Log line is not valid JSON: %v", err)
	}
	if _, ok := entry.Fields["component"]; ok {
		t.Error("Expected parent logger unaffected by WithField")
	}
}

// TestParseLevel covers the string forms accepted from flags and config
func TestParseLevel(t *testing.T) {
	cases := []struct {
		in   string
		want Level
	}{
		{"debug", DEBUG},
		{"INFO", INFO},
		{"warning", WARN},
		{"error", ERROR},
		{"fatal", FATAL},
		{"nonsense", INFO},
	}

	for _, c := range cases {
		if got := ParseLevel(c.in); got != c.want {
			t.Errorf("ParseLevel(%q): expected %s, got %s", c.in, c.want, got)
		}
	}
}
