package keystore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/digital-defiance/eecp/crypto/tkd"
)

func TestMemoryKeyStore_StoreAndGetByID(t *testing.T) {
	ks := NewMemoryKeyStore()
	ctx := context.Background()

	key := &tkd.TemporalKey{ID: "key-0", ValidFrom: time.Unix(0, 0), ValidUntil: time.Unix(100, 0)}
	require.NoError(t, ks.StoreKey(ctx, "ws-1", key))

	got, err := ks.GetKeyByID(ctx, "ws-1", "key-0")
	require.NoError(t, err)
	require.Equal(t, "key-0", got.ID)

	_, err = ks.GetKeyByID(ctx, "ws-1", "key-missing")
	require.ErrorIs(t, err, ErrNotFound)

	_, err = ks.GetKeyByID(ctx, "ws-missing", "key-0")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryKeyStore_CurrentKeyTracksLatestValidFrom(t *testing.T) {
	ks := NewMemoryKeyStore()
	ctx := context.Background()

	old := &tkd.TemporalKey{ID: "key-0", ValidFrom: time.Unix(0, 0)}
	newer := &tkd.TemporalKey{ID: "key-1", ValidFrom: time.Unix(1000, 0)}

	require.NoError(t, ks.StoreKey(ctx, "ws-1", old))
	require.NoError(t, ks.StoreKey(ctx, "ws-1", newer))

	cur, err := ks.GetCurrentKey(ctx, "ws-1")
	require.NoError(t, err)
	require.Equal(t, "key-1", cur.ID)
}

func TestMemoryKeyStore_DeleteWorkspaceKeysScrubs(t *testing.T) {
	ks := NewMemoryKeyStore().(*memoryKeyStore)
	ctx := context.Background()

	key := &tkd.TemporalKey{ID: "key-0"}
	for i := range key.Material {
		key.Material[i] = 0xFF
	}
	require.NoError(t, ks.StoreKey(ctx, "ws-1", key))

	require.NoError(t, ks.DeleteWorkspaceKeys(ctx, "ws-1"))

	_, err := ks.GetKeyByID(ctx, "ws-1", "key-0")
	require.ErrorIs(t, err, ErrNotFound)

	var zero [32]byte
	require.Equal(t, zero, key.Material)
}

func TestMemoryKeyStore_ParticipantKeys(t *testing.T) {
	ks := NewMemoryKeyStore()
	ctx := context.Background()

	require.NoError(t, ks.StoreParticipantKey(ctx, "p1", []byte("priv"), []byte("pub")))

	priv, err := ks.GetParticipantPrivate(ctx, "p1")
	require.NoError(t, err)
	require.Equal(t, []byte("priv"), priv)

	_, err = ks.GetParticipantPrivate(ctx, "p-missing")
	require.ErrorIs(t, err, ErrNotFound)
}
