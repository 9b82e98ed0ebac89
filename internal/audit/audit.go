// Package audit keeps a history of executed statements.
//
// Recording is best effort: callers log a failed Record and carry on.
package audit

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Entry is one executed (or attempted) statement.
type Entry struct {
	ID         string    `json:"id"`
	At         time.Time `json:"at"`
	Question   string    `json:"question,omitempty"`
	SQL        string    `json:"sql"`
	Table      string    `json:"table,omitempty"`
	RowCount   int       `json:"row_count"`
	DurationMs int64     `json:"duration_ms"`
	Error      string    `json:"error,omitempty"`
}

// Recorder stores entries and lists the newest ones first.
type Recorder interface {
	Record(ctx context.Context, e Entry) error
	List(ctx context.Context, limit int) ([]Entry, error)
}

// DefaultListLimit applies when List is called with limit <= 0.
const DefaultListLimit = 50

// NewID returns an identifier that sorts by creation time.
func NewID(at time.Time) string {
	var b [4]byte
	_, _ = rand.Read(b[:])
	return fmt.Sprintf("%019d-%s", at.UTC().UnixNano(), hex.EncodeToString(b[:]))
}

// Stamp fills ID and At when they are unset.
func (e *Entry) Stamp(now time.Time) {
	if e.At.IsZero() {
		e.At = now.UTC()
	}
	if e.ID == "" {
		e.ID = NewID(e.At)
	}
}

// Nop discards every entry.
type Nop struct{}

func (Nop) Record(context.Context, Entry) error { return nil }

func (Nop) List(context.Context, int) ([]Entry, error) { return []Entry{}, nil }

// Memory keeps the newest entries in process. It is used when history is
// enabled without an object store endpoint.
type Memory struct {
	mu       sync.Mutex
	capacity int
	entries  []Entry
}

// NewMemory holds at most capacity entries; older ones are dropped.
func NewMemory(capacity int) *Memory {
	if capacity <= 0 {
		capacity = 1000
	}
	return &Memory{capacity: capacity}
}

func (m *Memory) Record(_ context.Context, e Entry) error {
	e.Stamp(time.Now())

	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, e)
	if over := len(m.entries) - m.capacity; over > 0 {
		m.entries = append([]Entry(nil), m.entries[over:]...)
	}
	return nil
}

func (m *Memory) List(_ context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	m.mu.Lock()
	out := append([]Entry(nil), m.entries...)
	m.mu.Unlock()

	SortNewestFirst(out)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// SortNewestFirst orders entries by time, newest first, breaking ties on ID.
func SortNewestFirst(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if !entries[i].At.Equal(entries[j].At) {
			return entries[i].At.After(entries[j].At)
		}
		return entries[i].ID > entries[j].ID
	})
}
