package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestLogger_Log(t *testing.T) {
	tests := []struct {
		name    string
		level   Level
		message string
		fields  Fields
		err     error
		want    bool // should log
	}{
		{
			name:    "info message",
			level:   LevelInfo,
			message: "index resolved",
			fields:  Fields{"url": "https://example.com/a.zip"},
			want:    true,
		},
		{
			name:    "debug below threshold",
			level:   LevelDebug,
			message: "debug message",
			want:    false, // won't log (below INFO)
		},
		{
			name:    "error with err",
			level:   LevelError,
			message: "run failed",
			err:     errors.New("boom"),
			want:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := New(LevelInfo, &buf)

			logger.log(tt.level, tt.message, tt.fields, tt.err)

			logged := buf.Len() > 0
			if logged != tt.want {
				t.Errorf("log() logged = %v, want %v", logged, tt.want)
			}
		})
	}
}

func TestLogger_EntryShape(t *testing.T) {
	var buf bytes.Buffer
	logger := New(LevelDebug, &buf)

	logger.Error("archive fetch failed", Fields{"status": 503}, errors.New("unexpected status code: 503"))

	var entry LogEntry
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("Unmarshal() error = %v (line %q)", err, buf.String())
	}
	if entry.Level != "ERROR" {
		t.Errorf("Level = %q, want ERROR", entry.Level)
	}
	if entry.Error != "unexpected status code: 503" {
		t.Errorf("Error = %q", entry.Error)
	}
	if entry.Fields["status"].(float64) != 503 {
		t.Errorf("Fields[status] = %v, want 503", entry.Fields["status"])
	}
	if _, err := time.Parse(time.RFC3339, entry.Timestamp); err != nil {
		t.Errorf("Timestamp %q is not RFC3339: %v", entry.Timestamp, err)
	}
}

func TestLogger_With(t *testing.T) {
	var buf bytes.Buffer
	parent := New(LevelInfo, &buf)
	child := parent.With(Fields{"run_id": "abc", "state": "DE"})

	child.Info("batch written", Fields{"batch": 1, "state": "NY"})

	var entry LogEntry
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if entry.Fields["run_id"] != "abc" {
		t.Errorf("run_id = %v, want abc", entry.Fields["run_id"])
	}
	if entry.Fields["state"] != "NY" {
		t.Errorf("per-call field should win, state = %v", entry.Fields["state"])
	}

	buf.Reset()
	parent.Info("plain", nil)
	if strings.Contains(buf.String(), "run_id") {
		t.Errorf("parent logger picked up child fields: %s", buf.String())
	}
}

func TestMetrics_Counter(t *testing.T) {
	m := NewMetrics()

	m.IncrCounter("rows.read")
	m.IncrCounter("rows.read")
	m.AddCounter("rows.read", 10)

	snapshot := m.GetSnapshot()
	counters := snapshot["counters"].(map[string]int64)

	if counters["rows.read"] != 12 {
		t.Errorf("Counter = %v, want 12", counters["rows.read"])
	}
}

func TestMetrics_Gauge(t *testing.T) {
	m := NewMetrics()

	m.SetGauge("archive.bytes", 512.5)
	m.SetGauge("archive.bytes", 1024.0)

	snapshot := m.GetSnapshot()
	gauges := snapshot["gauges"].(map[string]float64)

	if gauges["archive.bytes"] != 1024.0 {
		t.Errorf("Gauge = %v, want 1024.0", gauges["archive.bytes"])
	}
}

func TestMetrics_Timing(t *testing.T) {
	m := NewMetrics()

	m.RecordTiming("phase.filter", 100*time.Millisecond)
	m.RecordTiming("phase.filter", 200*time.Millisecond)
	m.RecordTiming("phase.filter", 150*time.Millisecond)

	snapshot := m.GetSnapshot()
	timings := snapshot["timings"].(map[string]map[string]interface{})

	filterTiming := timings["phase.filter"]
	if filterTiming["count"].(int) != 3 {
		t.Errorf("Timing count = %v, want 3", filterTiming["count"])
	}

	if filterTiming["min"].(string) != "100ms" {
		t.Errorf("Min timing = %v, want 100ms", filterTiming["min"])
	}

	if filterTiming["max"].(string) != "200ms" {
		t.Errorf("Max timing = %v, want 200ms", filterTiming["max"])
	}
}

func TestDefault(t *testing.T) {
	var buf bytes.Buffer
	prev := Default()
	SetDefault(New(LevelWarn, &buf))
	defer SetDefault(prev)

	Default().Info("dropped", nil)
	Default().Warn("filter column missing", Fields{"filter": "active"})

	if got := strings.Count(buf.String(), "\n"); got != 1 {
		t.Fatalf("default logger wrote %d lines, want 1: %s", got, buf.String())
	}
	if !strings.Contains(buf.String(), `"level":"WARN"`) {
		t.Errorf("entry = %s, want WARN level", buf.String())
	}
}

func TestLogger_Levels(t *testing.T) {
	tests := []struct {
		name      string
		minLevel  Level
		logLevel  Level
		shouldLog bool
	}{
		{"debug logs at debug", LevelDebug, LevelDebug, true},
		{"info logs at debug", LevelDebug, LevelInfo, true},
		{"debug doesn't log at info", LevelInfo, LevelDebug, false},
		{"warn doesn't log at error", LevelError, LevelWarn, false},
		{"error always logs", LevelDebug, LevelError, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := New(tt.minLevel, &buf)

			logger.log(tt.logLevel, "test", nil, nil)

			logged := buf.Len() > 0
			if logged != tt.shouldLog {
				t.Errorf("shouldLog = %v, want %v", logged, tt.shouldLog)
			}
		})
	}
}
