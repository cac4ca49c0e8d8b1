package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	eecpcrypto "github.com/digital-defiance/eecp/crypto"
	"github.com/digital-defiance/eecp/crypto/keys"
	"github.com/digital-defiance/eecp/relay"
	"github.com/digital-defiance/eecp/transport"
	"github.com/digital-defiance/eecp/workspace"
)

// testRoster backs PeerKeyResolver with a fixed set of known participants,
// standing in for the out-of-band roster fetch a real embedder would do.
type testRoster struct {
	keys map[string]eecpcrypto.KeyPair
}

func (r *testRoster) resolve(participantID string) (eecpcrypto.KeyPair, error) {
	k, ok := r.keys[participantID]
	if !ok {
		return nil, ErrKeyRecoveryFailed
	}
	return k, nil
}

func newConnectedSession(t *testing.T, r *relay.Relay, ws *workspace.Workspace, participantID string, roster *testRoster) *ClientSession {
	t.Helper()
	kp, err := keys.GenerateEd25519KeyPair()
	require.NoError(t, err)
	roster.keys[participantID] = kp

	cs, err := NewClientSession(ws.ID, participantID, ws.Secret, WindowParams{
		CreatedAt:        ws.CreatedAt,
		RotationInterval: ws.Window.RotationInterval,
		GracePeriod:      ws.Window.GracePeriod,
	}, kp, roster.resolve)
	require.NoError(t, err)

	clientEnd, relayEnd := transport.NewPipe(8)
	go func() { _ = r.Serve(context.Background(), relayEnd) }()

	require.NoError(t, cs.Connect(context.Background(), clientEnd))
	return cs
}

func TestConnect_CompletesHandshake(t *testing.T) {
	r := relay.New(nil, nil, 100)
	ws, err := r.CreateWorkspace(context.Background(), workspace.NewBuilder().WithExpiresAfter(time.Hour))
	require.NoError(t, err)

	roster := &testRoster{keys: make(map[string]eecpcrypto.KeyPair)}
	cs := newConnectedSession(t, r, ws, "alice", roster)
	assert.True(t, cs.IsConnected())
}

func TestInsert_LocalApplyIsImmediate(t *testing.T) {
	r := relay.New(nil, nil, 100)
	ws, err := r.CreateWorkspace(context.Background(), workspace.NewBuilder().WithExpiresAfter(time.Hour))
	require.NoError(t, err)

	roster := &testRoster{keys: make(map[string]eecpcrypto.KeyPair)}
	cs := newConnectedSession(t, r, ws, "alice", roster)

	require.NoError(t, cs.Insert(context.Background(), 0, "hello"))
	assert.Equal(t, "hello", cs.GetText())
}

func TestRemoteOperation_AppliesAndNotifies(t *testing.T) {
	r := relay.New(nil, nil, 100)
	ws, err := r.CreateWorkspace(context.Background(), workspace.NewBuilder().WithExpiresAfter(time.Hour))
	require.NoError(t, err)

	roster := &testRoster{keys: make(map[string]eecpcrypto.KeyPair)}
	alice := newConnectedSession(t, r, ws, "alice", roster)
	bob := newConnectedSession(t, r, ws, "bob", roster)

	notified := make(chan string, 4)
	bob.OnChange(func(text string) { notified <- text })

	require.NoError(t, alice.Insert(context.Background(), 0, "hi"))

	select {
	case text := <-notified:
		assert.Equal(t, "hi", text)
	case <-time.After(2 * time.Second):
		t.Fatal("bob never received alice's operation")
	}
	assert.Equal(t, "hi", bob.GetText())
}

func TestDisconnect_ClearsTransportAndCancelsReconnect(t *testing.T) {
	r := relay.New(nil, nil, 100)
	ws, err := r.CreateWorkspace(context.Background(), workspace.NewBuilder().WithExpiresAfter(time.Hour))
	require.NoError(t, err)

	roster := &testRoster{keys: make(map[string]eecpcrypto.KeyPair)}
	cs := newConnectedSession(t, r, ws, "alice", roster)

	require.NoError(t, cs.Disconnect())
	assert.False(t, cs.IsConnected())
	assert.ErrorIs(t, cs.Disconnect(), ErrNotConnected)
}

func TestInsert_BuffersWhenDisconnected(t *testing.T) {
	r := relay.New(nil, nil, 100)
	ws, err := r.CreateWorkspace(context.Background(), workspace.NewBuilder().WithExpiresAfter(time.Hour))
	require.NoError(t, err)

	kp, err := keys.GenerateEd25519KeyPair()
	require.NoError(t, err)
	roster := &testRoster{keys: map[string]eecpcrypto.KeyPair{"alice": kp}}

	cs, err := NewClientSession(ws.ID, "alice", ws.Secret, WindowParams{
		CreatedAt:        ws.CreatedAt,
		RotationInterval: ws.Window.RotationInterval,
		GracePeriod:      ws.Window.GracePeriod,
	}, kp, roster.resolve)
	require.NoError(t, err)

	require.NoError(t, cs.Insert(context.Background(), 0, "offline"))
	assert.Equal(t, "offline", cs.GetText())
	assert.Equal(t, 1, cs.buffer.Len())
}
