package botlog

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// Level is the severity of a diagnostic entry
type Level string

const (
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
	LevelDebug Level = "DEBUG"
)

const timeFormat = "15:04:05.000"

// Entry is one immutable diagnostic line
type Entry struct {
	Time  time.Time
	Level Level
	Text  string
}

// String formats the entry as "[HH:MM:SS.mmm LEVEL] text"
func (e Entry) String() string {
	return fmt.Sprintf("[%s %s] %s", e.Time.Format(timeFormat), e.Level, e.Text)
}

// Buffer is a fixed-capacity ring of entries. When full, appending evicts
// the oldest entry. All methods are safe for concurrent use.
type Buffer struct {
	mu      sync.Mutex
	entries []Entry
	head    int // index of the oldest entry
	size    int
	now     func() time.Time
}

// NewBuffer creates a buffer holding at most capacity entries.
// A capacity below one is raised to one.
func NewBuffer(capacity int) *Buffer {
	if capacity < 1 {
		capacity = 1
	}
	return &Buffer{
		entries: make([]Entry, capacity),
		now:     time.Now,
	}
}

// Append stamps a new entry with the current time and adds it at the tail
func (b *Buffer) Append(level Level, text string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	entry := Entry{Time: b.now(), Level: level, Text: text}
	capacity := len(b.entries)

	if b.size < capacity {
		b.entries[(b.head+b.size)%capacity] = entry
		b.size++
		return
	}

	// Full: overwrite the oldest slot and advance the head
	b.entries[b.head] = entry
	b.head = (b.head + 1) % capacity
}

// Entries returns a copy of the buffered entries in insertion order
func (b *Buffer) Entries() []Entry {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]Entry, b.size)
	for i := 0; i < b.size; i++ {
		out[i] = b.entries[(b.head+i)%len(b.entries)]
	}
	return out
}

// Snapshot returns the formatted entries in insertion order
func (b *Buffer) Snapshot() []string {
	entries := b.Entries()
	lines := make([]string, len(entries))
	for i, e := range entries {
		lines[i] = e.String()
	}
	return lines
}

// String joins the snapshot with newlines
func (b *Buffer) String() string {
	return strings.Join(b.Snapshot(), "\n")
}

// Len returns the number of buffered entries
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.size
}

// Cap returns the fixed capacity
func (b *Buffer) Cap() int {
	return len(b.entries)
}
