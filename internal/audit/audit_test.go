package audit

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestAppend_CreatesFileAndWritesJSONL(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	l := NewLogger(path)

	if err := l.RollbackInitiated("1.2", "pyairbyte_integration", "regression", false); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := l.RollbackCompleted("1.2", "pyairbyte_integration", false); err != nil {
		t.Fatalf("append: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer func() { _ = f.Close() }()

	var entries []Entry
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var e Entry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			t.Fatalf("unmarshal line: %v", err)
		}
		entries = append(entries, e)
	}
	if err := sc.Err(); err != nil {
		t.Fatalf("scan: %v", err)
	}

	if len(entries) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(entries))
	}
	if entries[0].EventType != "rollback_initiated" {
		t.Fatalf("event type = %q", entries[0].EventType)
	}
	if entries[0].Payload["reason"] != "regression" {
		t.Fatalf("reason missing from payload: %v", entries[0].Payload)
	}
	if entries[0].Timestamp.IsZero() {
		t.Fatalf("timestamp not set")
	}
	if entries[1].EventType != "rollback_completed" {
		t.Fatalf("event type = %q", entries[1].EventType)
	}
}

func TestNilLoggerDiscards(t *testing.T) {
	var l *Logger
	if err := l.LogSecurityEvent("info", "noop", nil); err != nil {
		t.Fatalf("nil logger: %v", err)
	}
}
