// Package crdt implements the sequence data type CRDT Operation Codec and
// Client Session build on: a commutative, idempotent insert/delete sequence
// over Unicode code points (the Go-native equivalent of the UTF-16 code
// unit sequence the protocol specifies). Its internal conflict-resolution
// algorithm is intentionally simple — the wire contract carries only a
// participant's locally-observed position, not a causal anchor, so this
// package treats position as advisory at apply time (clamped to the
// receiving replica's current view) rather than attempting full
// operational-transform reconciliation. What it guarantees exactly is:
// every operation is applied at most once, deletes never run past the end
// of the document, and replaying the same operation log on any replica
// reproduces the same document.
package crdt

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// OperationType distinguishes an insert from a delete.
type OperationType string

const (
	OpInsert OperationType = "insert"
	OpDelete OperationType = "delete"
)

// Operation is the plaintext CRDT operation described by the protocol: an
// operation id, the originating participant, a millisecond timestamp, a
// type, a position, and exactly one of Content (insert) or Length (delete).
type Operation struct {
	OperationID   string        `json:"operation_id"`
	ParticipantID string        `json:"participant_id"`
	Timestamp     time.Time     `json:"timestamp"`
	Type          OperationType `json:"type"`
	Position      int           `json:"position"`
	Content       string        `json:"content,omitempty"`
	Length        int           `json:"length,omitempty"`
}

// element is one tracked code point in the document. Deleted elements are
// kept as tombstones so concurrent deletes of the same range are harmless
// and so GetState can replay the exact operation log that produced them.
type element struct {
	id        string
	value     rune
	tombstone bool
}

// Document is a single collaboratively-edited sequence. Zero value is not
// usable; construct with NewDocument.
type Document struct {
	mu       sync.Mutex
	elements []element
	log      []Operation
	applied  map[string]struct{}
}

// NewDocument creates an empty document.
func NewDocument() *Document {
	return &Document{applied: make(map[string]struct{})}
}

// liveLen returns the number of non-tombstoned elements. Caller must hold mu.
func (d *Document) liveLen() int {
	n := 0
	for _, e := range d.elements {
		if !e.tombstone {
			n++
		}
	}
	return n
}

// liveIndexToSlice converts a position in the live (visible) sequence to an
// index into the underlying elements slice, clamped to [0, liveLen]. The
// returned index is suitable both for "insert before" and as the exclusive
// upper bound of a scan.
func (d *Document) liveIndexToSlice(pos int) int {
	if pos <= 0 {
		return 0
	}
	seen := 0
	for i, e := range d.elements {
		if !e.tombstone {
			if seen == pos {
				return i
			}
			seen++
		}
	}
	return len(d.elements)
}

// clampPosition restricts pos to [0, liveLen]. Caller must hold mu.
func (d *Document) clampPosition(pos int) int {
	n := d.liveLen()
	if pos < 0 {
		return 0
	}
	if pos > n {
		return n
	}
	return pos
}

// LocalInsert applies an insert at pos (clamped to the current document
// length) on behalf of participantID and returns the operation descriptor
// that should be encoded and broadcast.
func (d *Document) LocalInsert(pos int, text string, participantID string) Operation {
	d.mu.Lock()
	defer d.mu.Unlock()

	pos = d.clampPosition(pos)
	op := Operation{
		OperationID:   uuid.NewString(),
		ParticipantID: participantID,
		Timestamp:     time.Now(),
		Type:          OpInsert,
		Position:      pos,
		Content:       text,
	}
	d.insertLocked(op)
	return op
}

// LocalDelete applies a delete of length starting at pos (clamped and
// clipped to the current document length) on behalf of participantID and
// returns the operation descriptor. A delete whose clipped length is zero
// is still returned so causal fan-out ordering that depends on message
// count is preserved.
func (d *Document) LocalDelete(pos, length int, participantID string) Operation {
	d.mu.Lock()
	defer d.mu.Unlock()

	pos = d.clampPosition(pos)
	clipped := clipLength(length, pos, d.liveLen())
	op := Operation{
		OperationID:   uuid.NewString(),
		ParticipantID: participantID,
		Timestamp:     time.Now(),
		Type:          OpDelete,
		Position:      pos,
		Length:        clipped,
	}
	d.deleteLocked(op)
	return op
}

// clipLength clips a requested delete length so pos+length never exceeds
// the document length.
func clipLength(length, pos, docLen int) int {
	if length < 0 {
		return 0
	}
	if pos+length > docLen {
		clipped := docLen - pos
		if clipped < 0 {
			return 0
		}
		return clipped
	}
	return length
}

// ApplyRemote applies a remote operation. It is idempotent (re-applying an
// already-seen operation id is a no-op) and total on well-typed operations:
// out-of-range positions are clamped and length underruns are clipped
// rather than rejected.
func (d *Document) ApplyRemote(op Operation) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, seen := d.applied[op.OperationID]; seen {
		return nil
	}

	pos := d.clampPosition(op.Position)
	switch op.Type {
	case OpInsert:
		applied := op
		applied.Position = pos
		d.insertLocked(applied)
	case OpDelete:
		clipped := clipLength(op.Length, pos, d.liveLen())
		applied := op
		applied.Position = pos
		applied.Length = clipped
		d.deleteLocked(applied)
	default:
		return fmt.Errorf("%w: %q", ErrInvalidOperation, op.Type)
	}
	return nil
}

// insertLocked performs the insert and records it in applied/log. Caller
// must hold mu and op.Position must already be clamped.
func (d *Document) insertLocked(op Operation) {
	idx := d.liveIndexToSlice(op.Position)
	runes := []rune(op.Content)
	newElems := make([]element, len(runes))
	for i, r := range runes {
		newElems[i] = element{id: fmt.Sprintf("%s:%d", op.OperationID, i), value: r}
	}
	out := make([]element, 0, len(d.elements)+len(newElems))
	out = append(out, d.elements[:idx]...)
	out = append(out, newElems...)
	out = append(out, d.elements[idx:]...)
	d.elements = out

	d.applied[op.OperationID] = struct{}{}
	d.log = append(d.log, op)
}

// deleteLocked tombstones op.Length live elements starting at op.Position.
// Caller must hold mu and op.Position/op.Length must already be
// clamped/clipped.
func (d *Document) deleteLocked(op Operation) {
	if op.Length > 0 {
		start := d.liveIndexToSlice(op.Position)
		remaining := op.Length
		for i := start; i < len(d.elements) && remaining > 0; i++ {
			if d.elements[i].tombstone {
				continue
			}
			d.elements[i].tombstone = true
			remaining--
		}
	}
	d.applied[op.OperationID] = struct{}{}
	d.log = append(d.log, op)
}

// GetText returns the current visible document contents.
func (d *Document) GetText() string {
	d.mu.Lock()
	defer d.mu.Unlock()

	var out []rune
	for _, e := range d.elements {
		if !e.tombstone {
			out = append(out, e.value)
		}
	}
	return string(out)
}

// Len returns the current visible document length in code points.
func (d *Document) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.liveLen()
}

// state is the wire shape GetState/ApplyState exchange: the full operation
// log applied on this replica so far, replayable in any order by ApplyState
// because ApplyRemote is idempotent per operation id.
type state struct {
	Log []Operation `json:"log"`
}

// GetState returns an opaque snapshot of every operation applied to this
// document, suitable for a newly joined or resyncing replica.
func (d *Document) GetState() ([]byte, error) {
	d.mu.Lock()
	logCopy := make([]Operation, len(d.log))
	copy(logCopy, d.log)
	d.mu.Unlock()

	return json.Marshal(state{Log: logCopy})
}

// ApplyState merges a snapshot produced by GetState into this document. It
// never replaces local state: operations already applied are skipped, so
// applying the same snapshot twice is a no-op.
func (d *Document) ApplyState(data []byte) error {
	var s state
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("crdt: decode state: %w", err)
	}
	for _, op := range s.Log {
		if err := d.ApplyRemote(op); err != nil {
			return err
		}
	}
	return nil
}
