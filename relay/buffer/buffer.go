// Package buffer implements the per-participant offline operation buffer:
// a FIFO queue the relay appends to when it cannot fan an operation out to
// a disconnected session, drained on reconnect via Drain.
package buffer

import (
	"sync"
	"time"

	"github.com/digital-defiance/eecp/codec"
)

// MaxEntries is the hard cap on buffered operations per participant. Once
// reached, the oldest entry is evicted to make room for the newest.
const MaxEntries = 1000

// TTL is how long a buffered entry survives before Purge drops it.
const TTL = time.Hour

// entry pairs a buffered operation with the instant it was enqueued, since
// EncryptedOperation's own Timestamp is the sender's clock, not the
// relay's receipt time that TTL purging is measured against.
type entry struct {
	op         codec.EncryptedOperation
	enqueuedAt time.Time
}

// Buffer is a single participant's offline FIFO. The zero value is not
// usable; construct with New.
type Buffer struct {
	mu      sync.Mutex
	entries []entry
}

// New creates an empty offline buffer.
func New() *Buffer {
	return &Buffer{}
}

// Push appends op, evicting the oldest entry first if the buffer is at
// MaxEntries.
func (b *Buffer) Push(op codec.EncryptedOperation, now time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.entries) >= MaxEntries {
		b.entries = b.entries[1:]
	}
	b.entries = append(b.entries, entry{op: op, enqueuedAt: now})
}

// Drain returns every buffered operation, oldest first, and empties the
// buffer. Callers typically call this once a session reconnects and fan
// the result out over the transport.
func (b *Buffer) Drain() []codec.EncryptedOperation {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]codec.EncryptedOperation, len(b.entries))
	for i, e := range b.entries {
		out[i] = e.op
	}
	b.entries = nil
	return out
}

// Len reports the number of buffered operations.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}

// Purge drops every entry older than TTL as of now, returning the number
// of entries removed.
func (b *Buffer) Purge(now time.Time) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	kept := b.entries[:0]
	removed := 0
	for _, e := range b.entries {
		if now.Sub(e.enqueuedAt) >= TTL {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	b.entries = kept
	return removed
}
