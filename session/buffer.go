package session

import (
	"sort"
	"sync"

	"github.com/digital-defiance/eecp/codec"
)

// MaxOfflineEntries caps a client's offline buffer, mirroring the relay's
// own per-participant buffer (relay/buffer.MaxEntries).
const MaxOfflineEntries = 1000

// OfflineBuffer holds encrypted operations a client could not send while
// its transport was down. Per §4.5 it is FIFO going in and, on drain,
// sorted ascending by timestamp (ties broken by operation id lexical
// order) so a long outage still replays in a sensible order.
type OfflineBuffer struct {
	mu      sync.Mutex
	entries []*codec.EncryptedOperation
}

// NewOfflineBuffer creates an empty buffer.
func NewOfflineBuffer() *OfflineBuffer {
	return &OfflineBuffer{}
}

// Push appends op, evicting the oldest entry once MaxOfflineEntries is
// reached.
func (b *OfflineBuffer) Push(op *codec.EncryptedOperation) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.entries) >= MaxOfflineEntries {
		b.entries = b.entries[1:]
	}
	b.entries = append(b.entries, op)
}

// Len reports the number of buffered entries.
func (b *OfflineBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}

// Drain empties the buffer and returns its contents sorted per the
// reconnect replay order described above.
func (b *OfflineBuffer) Drain() []*codec.EncryptedOperation {
	b.mu.Lock()
	out := b.entries
	b.entries = nil
	b.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.Before(out[j].Timestamp)
		}
		return out[i].OperationID < out[j].OperationID
	})
	return out
}
