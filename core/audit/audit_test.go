package audit_test

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"banyan/core/audit"
)

func newTestLog(t *testing.T) (*audit.Log, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "audit.log")
	l, err := audit.NewLog(path, 100)
	if err != nil {
		t.Fatalf("new log: %v", err)
	}
	return l, path
}

func TestLog_RecordStampsIDAndTimestamp(t *testing.T) {
	l, _ := newTestLog(t)
	if err := l.Record(audit.Entry{Source: "test", Action: "did.thing"}); err != nil {
		t.Fatalf("record: %v", err)
	}
	l.Close()

	entries := l.Query("test", 0)
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].ID == "" {
		t.Fatal("expected entry ID to be stamped")
	}
	if entries[0].Timestamp.IsZero() {
		t.Fatal("expected entry timestamp to be stamped")
	}
}

func TestLog_QueryFiltersAndOrders(t *testing.T) {
	l, _ := newTestLog(t)
	for i := 0; i < 3; i++ {
		if err := l.Record(audit.Entry{Source: "a", Action: "x", Timestamp: time.Now().Add(time.Duration(i) * time.Millisecond)}); err != nil {
			t.Fatalf("record: %v", err)
		}
	}
	if err := l.Record(audit.Entry{Source: "b", Action: "y"}); err != nil {
		t.Fatalf("record: %v", err)
	}
	l.Close()

	if got := len(l.Query("a", 0)); got != 3 {
		t.Fatalf("expected 3 entries for source a, got %d", got)
	}
	if got := len(l.Query("a", 2)); got != 2 {
		t.Fatalf("expected limit to trim to 2, got %d", got)
	}
	if got := len(l.Query("", 0)); got != 4 {
		t.Fatalf("expected 4 entries total, got %d", got)
	}
}

func TestLog_WritesJSONLines(t *testing.T) {
	l, path := newTestLog(t)
	if err := l.Record(audit.Entry{Source: "test", Action: "did.thing", Details: map[string]string{"k": "v"}}); err != nil {
		t.Fatalf("record: %v", err)
	}
	l.Close()

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open log file: %v", err)
	}
	defer f.Close()
	scanner := bufio.NewScanner(f)
	var lines int
	for scanner.Scan() {
		lines++
		var e audit.Entry
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			t.Fatalf("line %d is not valid JSON: %v", lines, err)
		}
		if e.Action != "did.thing" {
			t.Fatalf("unexpected action: %s", e.Action)
		}
	}
	if lines != 1 {
		t.Fatalf("expected 1 line, got %d", lines)
	}
}

func TestLog_RetentionWindow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.log")
	l, err := audit.NewLog(path, 5)
	if err != nil {
		t.Fatalf("new log: %v", err)
	}
	for i := 0; i < 12; i++ {
		if err := l.Record(audit.Entry{Source: "test", Action: "x"}); err != nil {
			t.Fatalf("record: %v", err)
		}
	}
	l.Close()

	if got := len(l.Query("test", 0)); got != 5 {
		t.Fatalf("expected retention window of 5, got %d", got)
	}
}
