package session

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/digital-defiance/eecp/codec"
)

func TestOfflineBuffer_FIFOWithinBound(t *testing.T) {
	buf := NewOfflineBuffer()
	base := time.Now()
	for i := 0; i < 5; i++ {
		buf.Push(&codec.EncryptedOperation{
			OperationID: string(rune('a' + i)),
			Timestamp:   base.Add(time.Duration(i) * time.Second),
		})
	}
	require.Equal(t, 5, buf.Len())

	drained := buf.Drain()
	require.Len(t, drained, 5)
	for i, op := range drained {
		require.Equal(t, string(rune('a'+i)), op.OperationID)
	}
	require.Equal(t, 0, buf.Len())
}

func TestOfflineBuffer_EvictsOldestPastCap(t *testing.T) {
	buf := NewOfflineBuffer()
	base := time.Now()
	for i := 0; i < MaxOfflineEntries+10; i++ {
		buf.Push(&codec.EncryptedOperation{
			OperationID: fmt.Sprintf("op-%d", i),
			Timestamp:   base.Add(time.Duration(i) * time.Millisecond),
		})
	}
	require.Equal(t, MaxOfflineEntries, buf.Len())
}

func TestOfflineBuffer_DrainOrdersByTimestampThenID(t *testing.T) {
	buf := NewOfflineBuffer()
	now := time.Now()
	// Pushed out of chronological order; drain must sort by timestamp,
	// then by operation id for exact ties.
	buf.Push(&codec.EncryptedOperation{OperationID: "z", Timestamp: now.Add(2 * time.Second)})
	buf.Push(&codec.EncryptedOperation{OperationID: "b", Timestamp: now})
	buf.Push(&codec.EncryptedOperation{OperationID: "a", Timestamp: now})
	buf.Push(&codec.EncryptedOperation{OperationID: "m", Timestamp: now.Add(time.Second)})

	drained := buf.Drain()
	require.Len(t, drained, 4)
	require.Equal(t, []string{"a", "b", "m", "z"}, []string{
		drained[0].OperationID, drained[1].OperationID, drained[2].OperationID, drained[3].OperationID,
	})
}

func TestOfflineBuffer_DrainOnEmptyIsNoop(t *testing.T) {
	buf := NewOfflineBuffer()
	require.Empty(t, buf.Drain())
	require.Equal(t, 0, buf.Len())
}
