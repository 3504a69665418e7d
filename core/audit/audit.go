// Package audit provides an append-only JSON-lines audit sink. Entries are
// buffered through a background writer so recording never blocks a core
// operation; a bounded in-memory window stays queryable for tooling.
package audit

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Entry is a single audit record.
type Entry struct {
	ID        string            `json:"id"`
	Timestamp time.Time         `json:"timestamp"`
	Source    string            `json:"source"`
	Action    string            `json:"action"`
	Details   map[string]string `json:"details,omitempty"`
}

// Log is the audit sink. Record is safe for concurrent use.
type Log struct {
	mu        sync.RWMutex
	entries   []Entry
	path      string
	maxEvents int
	entryCh   chan Entry
	shutdown  chan struct{}
	done      chan struct{}
}

// NewLog creates an audit log writing JSON lines to path, keeping at most
// maxEvents entries in memory for queries.
func NewLog(path string, maxEvents int) (*Log, error) {
	if maxEvents <= 0 {
		maxEvents = 10000
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create audit log directory: %w", err)
	}
	l := &Log{
		path:      path,
		maxEvents: maxEvents,
		entryCh:   make(chan Entry, 1000),
		shutdown:  make(chan struct{}),
		done:      make(chan struct{}),
	}
	go l.backgroundWriter()
	return l, nil
}

// Record appends an entry. A missing ID or timestamp is stamped here.
func (l *Log) Record(e Entry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	select {
	case l.entryCh <- e:
		return nil
	case <-time.After(time.Second):
		// Writer is wedged; fall back to a synchronous append.
		return l.append(e)
	}
}

// Query returns up to limit entries from the given source, newest first.
// A limit <= 0 returns all retained entries for the source.
func (l *Log) Query(source string, limit int) []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []Entry
	for i := len(l.entries) - 1; i >= 0; i-- {
		if source != "" && l.entries[i].Source != source {
			continue
		}
		out = append(out, l.entries[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

// Close drains buffered entries and stops the background writer.
func (l *Log) Close() {
	close(l.shutdown)
	<-l.done
}

func (l *Log) backgroundWriter() {
	defer close(l.done)
	for {
		select {
		case e := <-l.entryCh:
			if err := l.append(e); err != nil {
				fmt.Fprintf(os.Stderr, "audit: failed to append entry: %v\n", err)
			}
		case <-l.shutdown:
			for {
				select {
				case e := <-l.entryCh:
					if err := l.append(e); err != nil {
						fmt.Fprintf(os.Stderr, "audit: failed to append entry: %v\n", err)
					}
				default:
					return
				}
			}
		}
	}
}

func (l *Log) append(e Entry) error {
	l.mu.Lock()
	l.entries = append(l.entries, e)
	if len(l.entries) > l.maxEvents {
		l.entries = l.entries[len(l.entries)-l.maxEvents:]
	}
	l.mu.Unlock()

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open audit log: %w", err)
	}
	defer f.Close()
	line, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal audit entry: %w", err)
	}
	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("failed to write audit entry: %w", err)
	}
	return nil
}
