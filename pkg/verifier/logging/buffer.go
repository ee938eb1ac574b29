package logging

import "sync"

// DefaultBufferSize is the number of entries kept in TUI mode.
const DefaultBufferSize = 200

// Buffer is a fixed-capacity ring of log entries, safe for concurrent use.
type Buffer struct {
	mu      sync.RWMutex
	entries []Entry
	next    int
	full    bool
}

// NewBuffer returns a ring holding at most capacity entries. A non-positive
// capacity uses DefaultBufferSize.
func NewBuffer(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = DefaultBufferSize
	}
	return &Buffer{entries: make([]Entry, capacity)}
}

// Add appends e, overwriting the oldest entry once the ring is full.
func (b *Buffer) Add(e Entry) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.entries[b.next] = e
	b.next = (b.next + 1) % len(b.entries)
	if b.next == 0 {
		b.full = true
	}
}

// Len returns the number of entries held.
func (b *Buffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.len()
}

func (b *Buffer) len() int {
	if b.full {
		return len(b.entries)
	}
	return b.next
}

// Last returns up to n of the newest entries, oldest first.
func (b *Buffer) Last(n int) []Entry {
	b.mu.RLock()
	defer b.mu.RUnlock()

	size := b.len()
	n = min(max(n, 0), size)
	out := make([]Entry, n)
	start := b.next - n
	if start < 0 {
		start += len(b.entries)
	}
	for i := range n {
		out[i] = b.entries[(start+i)%len(b.entries)]
	}
	return out
}

// Entries returns every held entry, oldest first.
func (b *Buffer) Entries() []Entry {
	return b.Last(b.Len())
}

// Clear empties the ring.
func (b *Buffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.next = 0
	b.full = false
	clear(b.entries)
}
