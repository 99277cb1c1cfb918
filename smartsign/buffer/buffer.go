// Package buffer holds the rows of text shared between the refresh
// goroutine (the producer) and the scroll renderer (the consumer).
//
// A Buffer is only ever replaced wholesale: every Publish swaps all rows
// at once and every ReadSnapshot returns a copy of exactly one publish.
package buffer

import "sync"

// DefaultRows matches the 20x4 character LCD.
const DefaultRows = 4

// Buffer is a fixed-size set of text rows guarded by a mutex.
type Buffer struct {
	mu      sync.Mutex
	rows    []string
	version uint64
}

// New returns a Buffer holding n empty rows. A non-positive n uses DefaultRows.
func New(n int) *Buffer {
	if n < 1 {
		n = DefaultRows
	}
	return &Buffer{rows: make([]string, n)}
}

// Len returns the fixed number of rows.
func (b *Buffer) Len() int {
	return len(b.rows)
}

// ReadSnapshot returns a copy of the current rows.
func (b *Buffer) ReadSnapshot() []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	snap := make([]string, len(b.rows))
	copy(snap, b.rows)
	return snap
}

// Publish replaces every row. Missing rows become empty strings and
// extra rows are dropped, so the row count never changes.
func (b *Buffer) Publish(rows []string) {
	next := make([]string, len(b.rows))
	copy(next, rows)

	b.mu.Lock()
	b.rows = next
	b.version++
	b.mu.Unlock()
}

// Version counts completed publishes.
func (b *Buffer) Version() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.version
}
