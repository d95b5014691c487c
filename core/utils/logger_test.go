package utils

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestLoggerJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	l := NewLoggerWithOptions(&buf, "info", "json")
	l.Printf("seeded %d complaints", 5)
	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("decode log line: %v (%s)", err, buf.String())
	}
	if rec["msg"] != "seeded 5 complaints" {
		t.Fatalf("unexpected msg %v", rec["msg"])
	}
	if rec["level"] != "INFO" {
		t.Fatalf("unexpected level %v", rec["level"])
	}
}

func TestLoggerLevelFilters(t *testing.T) {
	var buf bytes.Buffer
	l := NewLoggerWithOptions(&buf, "warn", "text")
	l.Info("hidden")
	l.Debug("hidden too")
	l.Warn("shown", "complaint_id", "c1")
	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info/debug should be filtered: %s", out)
	}
	if !strings.Contains(out, "complaint_id=c1") {
		t.Fatalf("expected structured attr in %s", out)
	}
}

func TestNilLoggerIsSafe(t *testing.T) {
	var l *Logger
	l.Printf("x")
	l.Errorf("x")
	l.Info("x")
	l.With("k", "v").Warn("x")
	if l.Slog() == nil {
		t.Fatalf("expected discard logger")
	}
}

func TestNowUTCTruncated(t *testing.T) {
	now := NowUTC()
	if now.Location() != time.UTC {
		t.Fatalf("expected UTC, got %v", now.Location())
	}
	if now.Nanosecond()%1000 != 0 {
		t.Fatalf("expected microsecond precision, got %d", now.Nanosecond())
	}
}
