package ledger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCompute_Deterministic(t *testing.T) {
	var material [32]byte
	for i := range material {
		material[i] = byte(i)
	}
	from := time.Unix(1000, 0)
	until := time.Unix(2000, 0)

	h1, err := Compute(material, "key-1", from, until)
	require.NoError(t, err)
	h2, err := Compute(material, "key-1", from, until)
	require.NoError(t, err)
	require.Equal(t, h1, h2)

	h3, err := Compute(material, "key-2", from, until)
	require.NoError(t, err)
	require.NotEqual(t, h1, h3)
}

func TestCompute_RejectsEmptyKeyID(t *testing.T) {
	var material [32]byte
	_, err := Compute(material, "", time.Now(), time.Now())
	require.ErrorIs(t, err, ErrKeyIDEmpty)
}

func TestMemoryLedger_AppendOnlyAndOrdered(t *testing.T) {
	l := NewMemoryLedger()

	c1 := Commitment{KeyID: "key-0", CreatedAt: time.Unix(100, 0)}
	c2 := Commitment{KeyID: "key-1", CreatedAt: time.Unix(200, 0)}

	require.NoError(t, l.Append(c1))
	require.NoError(t, l.Append(c2))

	all, err := l.List()
	require.NoError(t, err)
	require.Equal(t, []Commitment{c1, c2}, all)
}

func TestMemoryLedger_ForKey(t *testing.T) {
	l := NewMemoryLedger()
	require.NoError(t, l.Append(Commitment{KeyID: "key-0", CreatedAt: time.Unix(1, 0)}))
	require.NoError(t, l.Append(Commitment{KeyID: "key-1", CreatedAt: time.Unix(2, 0)}))
	require.NoError(t, l.Append(Commitment{KeyID: "key-0", CreatedAt: time.Unix(3, 0)}))

	entries, err := l.ForKey("key-0")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.True(t, entries[0].CreatedAt.Before(entries[1].CreatedAt))
}

func TestMemoryLedger_ListReturnsCopy(t *testing.T) {
	l := NewMemoryLedger()
	require.NoError(t, l.Append(Commitment{KeyID: "key-0"}))

	all, err := l.List()
	require.NoError(t, err)
	all[0].KeyID = "mutated"

	again, err := l.List()
	require.NoError(t, err)
	require.Equal(t, "key-0", again[0].KeyID)
}
