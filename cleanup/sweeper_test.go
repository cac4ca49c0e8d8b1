package cleanup

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/digital-defiance/eecp/relay"
	"github.com/digital-defiance/eecp/workspace"
)

func TestSweep_ExpiresDueWorkspace(t *testing.T) {
	now := time.Now().UTC()
	r := relay.New(nil, nil, 100)
	ws, err := r.CreateWorkspace(context.Background(), workspace.NewBuilder().
		WithCreatedAt(now).
		WithExpiresAfter(time.Minute))
	require.NoError(t, err)

	s := New(r, time.Minute)
	require.NoError(t, s.Sweep(context.Background(), now.Add(2*time.Minute)))

	got, err := r.Workspace(ws.ID)
	require.NoError(t, err)
	assert.False(t, got.IsActive())
}

func TestSweep_DestroysKeyPastGracePeriodWithCommitment(t *testing.T) {
	now := time.Now().UTC()
	r := relay.New(nil, nil, 100)
	ws, err := r.CreateWorkspace(context.Background(), workspace.NewBuilder().
		WithCreatedAt(now).
		WithExpiresAfter(time.Hour).
		WithRotationInterval(time.Minute).
		WithGracePeriod(5*time.Second))
	require.NoError(t, err)

	keyID := ws.CurrentKeyID(now)
	key, err := ws.DeriveKey(keyID)
	require.NoError(t, err)
	require.NoError(t, r.KeyStore().StoreKey(context.Background(), ws.ID, key))

	s := New(r, time.Minute)
	require.NoError(t, s.Sweep(context.Background(), key.GracePeriodEnd.Add(time.Second)))

	_, err = r.KeyStore().GetKeyByID(context.Background(), ws.ID, keyID)
	assert.Error(t, err)

	commitments, err := r.Ledger().ForKey(keyID)
	require.NoError(t, err)
	require.Len(t, commitments, 1)
	assert.Equal(t, keyID, commitments[0].KeyID)
}

func TestSweep_CommitsRotatedKeyNobodyEverHandshookDuring(t *testing.T) {
	now := time.Now().UTC()
	r := relay.New(nil, nil, 100)
	ws, err := r.CreateWorkspace(context.Background(), workspace.NewBuilder().
		WithCreatedAt(now).
		WithExpiresAfter(time.Hour).
		WithRotationInterval(time.Minute).
		WithGracePeriod(5*time.Second))
	require.NoError(t, err)

	// No handshake and no StoreKey call ever touches key-1: it only ever
	// exists because rotation made it the current slot.
	rotatedKeyID := ws.CurrentKeyID(now.Add(90 * time.Second))
	require.Equal(t, "key-1", rotatedKeyID)
	rotatedKey, err := ws.DeriveKey(rotatedKeyID)
	require.NoError(t, err)

	s := New(r, time.Minute)
	require.NoError(t, s.Sweep(context.Background(), rotatedKey.GracePeriodEnd.Add(time.Second)))

	commitments, err := r.Ledger().ForKey(rotatedKeyID)
	require.NoError(t, err)
	require.Len(t, commitments, 1, "a rotation slot with no handshake during it must still be committed before scrub")

	_, err = r.KeyStore().GetKeyByID(context.Background(), ws.ID, rotatedKeyID)
	assert.Error(t, err, "a committed key must be destroyed, not left in the keystore")
}

func TestSweep_NeverDoubleCommitsAKeyAcrossRepeatedSweeps(t *testing.T) {
	now := time.Now().UTC()
	r := relay.New(nil, nil, 100)
	ws, err := r.CreateWorkspace(context.Background(), workspace.NewBuilder().
		WithCreatedAt(now).
		WithExpiresAfter(time.Hour).
		WithRotationInterval(time.Minute).
		WithGracePeriod(5*time.Second))
	require.NoError(t, err)

	keyID := ws.CurrentKeyID(now)
	key, err := ws.DeriveKey(keyID)
	require.NoError(t, err)

	s := New(r, time.Minute)
	sweepTime := key.GracePeriodEnd.Add(time.Second)
	require.NoError(t, s.Sweep(context.Background(), sweepTime))
	require.NoError(t, s.Sweep(context.Background(), sweepTime.Add(time.Minute)))

	commitments, err := r.Ledger().ForKey(keyID)
	require.NoError(t, err)
	assert.Len(t, commitments, 1, "a destroyed key must not be re-derived, re-stored, and re-committed on a later sweep")
}

func TestSweep_PurgesChallenges(t *testing.T) {
	r := relay.New(nil, nil, 100)
	now := time.Now().UTC()
	id, _, err := r.Challenges().Issue(now)
	require.NoError(t, err)

	s := New(r, time.Minute)
	require.NoError(t, s.Sweep(context.Background(), now.Add(2*time.Minute)))

	_, err = r.Challenges().Consume(id, now)
	assert.Error(t, err)
}

func TestStartStop_DoesNotPanicOrDoubleStart(t *testing.T) {
	r := relay.New(nil, nil, 100)
	s := New(r, 10*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, s.Start(ctx))
	assert.ErrorIs(t, s.Start(ctx), ErrAlreadyRunning)
	s.Stop()
	s.Stop()
}
