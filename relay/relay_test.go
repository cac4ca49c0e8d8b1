package relay_test

import (
	"context"
	"crypto/ed25519"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/digital-defiance/eecp/codec"
	"github.com/digital-defiance/eecp/crdt"
	eecpcrypto "github.com/digital-defiance/eecp/crypto"
	"github.com/digital-defiance/eecp/crypto/ae"
	"github.com/digital-defiance/eecp/crypto/keys"
	"github.com/digital-defiance/eecp/crypto/keystore"
	"github.com/digital-defiance/eecp/crypto/ledger"
	"github.com/digital-defiance/eecp/crypto/tkd"
	"github.com/digital-defiance/eecp/relay"
	"github.com/digital-defiance/eecp/relay/participant"
	"github.com/digital-defiance/eecp/transport"
	"github.com/digital-defiance/eecp/workspace"
)

// testParticipant wraps the identity a test client handshakes with.
type testParticipant struct {
	id   string
	priv ed25519.PrivateKey
	pub  ed25519.PublicKey
	kp   eecpcrypto.KeyPair
}

func newTestParticipant(t *testing.T, id string) *testParticipant {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	kp, err := keys.NewEd25519KeyPair(priv, id)
	require.NoError(t, err)
	return &testParticipant{id: id, priv: priv, pub: pub, kp: kp}
}

// handshake drives the client half of the challenge/handshake exchange
// over tr and returns the handshake_ack payload.
func handshake(t *testing.T, ctx context.Context, tr transport.Transport, p *testParticipant, workspaceID string) *transport.HandshakeAckPayload {
	t.Helper()

	env, err := tr.Receive(ctx)
	require.NoError(t, err)
	require.Equal(t, transport.TypeChallenge, env.Type)
	decoded, err := env.Decode()
	require.NoError(t, err)
	challenge := decoded.(*transport.ChallengePayload)
	var nonce [32]byte
	copy(nonce[:], challenge.Challenge)

	now := time.Now()
	proof := participant.SignProof(p.priv, nonce, now, p.id)
	hsEnv, err := transport.NewEnvelope(transport.TypeHandshake, transport.HandshakePayload{
		ProtocolVersion: transport.ProtocolVersion,
		WorkspaceID:     workspaceID,
		ParticipantID:   p.id,
		PublicKey:       p.pub,
		Proof:           proof,
	}, now)
	require.NoError(t, err)
	require.NoError(t, tr.Send(ctx, hsEnv))

	ackEnv, err := tr.Receive(ctx)
	require.NoError(t, err)
	require.Equal(t, transport.TypeHandshakeAck, ackEnv.Type)
	decodedAck, err := ackEnv.Decode()
	require.NoError(t, err)
	ack := decodedAck.(*transport.HandshakeAckPayload)
	require.True(t, ack.Success)
	return ack
}

// TestRelay_S1_InsertFansOutToOtherParticipant follows spec scenario S1:
// a workspace is created, Alice and Bob both join, Alice inserts "Hi" at
// position 0, and the relay fans Alice's operation out to the connected
// Bob without ever being able to read its plaintext.
func TestRelay_S1_InsertFansOutToOtherParticipant(t *testing.T) {
	r := relay.New(keystore.NewMemoryKeyStore(), ledger.NewMemoryLedger(), 100)

	ws, err := r.CreateWorkspace(context.Background(), workspace.NewBuilder().
		WithRotationInterval(15*time.Minute).
		WithExpiresAfter(30*time.Minute))
	require.NoError(t, err)

	alice := newTestParticipant(t, "alice")
	aliceClient, aliceServer := transport.NewPipe(8)
	go func() { _ = r.Serve(context.Background(), aliceServer) }()
	ack := handshake(t, context.Background(), aliceClient, alice, ws.ID)
	require.NotEmpty(t, ack.CurrentKeyID)

	bob := newTestParticipant(t, "bob")
	bobClient, bobServer := transport.NewPipe(8)
	go func() { _ = r.Serve(context.Background(), bobServer) }()
	_ = handshake(t, context.Background(), bobClient, bob, ws.ID)

	key, err := ws.DeriveKey(ack.CurrentKeyID)
	require.NoError(t, err)
	aeKey := ae.NewKey(key.ID, key.Material)

	op := crdt.Operation{
		OperationID:   "11111111-1111-1111-1111-111111111111",
		ParticipantID: alice.id,
		Timestamp:     time.Now(),
		Type:          crdt.OpInsert,
		Position:      0,
		Content:       "Hi",
	}
	encOp, err := codec.EncryptOperation(op, aeKey, alice.kp, ws.ID)
	require.NoError(t, err)
	// The server never sees plaintext: encrypted_content must not contain
	// the inserted text.
	require.NotContains(t, string(encOp.EncryptedContent), "Hi")

	opEnv, err := transport.NewEnvelope(transport.TypeOperation, transport.OperationPayload{Operation: *encOp}, time.Now())
	require.NoError(t, err)
	require.NoError(t, aliceClient.Send(context.Background(), opEnv))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	recvEnv, err := bobClient.Receive(ctx)
	require.NoError(t, err)
	require.Equal(t, transport.TypeOperation, recvEnv.Type)
	decoded, err := recvEnv.Decode()
	require.NoError(t, err)
	payload := decoded.(*transport.OperationPayload)

	bobPlain, err := codec.Receive(&payload.Operation, alice.kp, ws.ID, func(keyID string) (*ae.Key, error) {
		tk, err := tkd.DeriveKey(ws.Secret, ws.CreatedAt, keyID, key.ValidUntil, key.GracePeriodEnd)
		if err != nil {
			return nil, err
		}
		return ae.NewKey(tk.ID, tk.Material), nil
	})
	require.NoError(t, err)
	require.Equal(t, "Hi", bobPlain.Content)
	require.Equal(t, crdt.OpInsert, bobPlain.Type)
}

// TestRelay_S5_ProtocolVersionMismatchRejected reproduces spec scenario
// S5: a handshake with the wrong protocol version is rejected with
// AUTH_FAILED and the workspace's participant count stays unchanged.
func TestRelay_S5_ProtocolVersionMismatchRejected(t *testing.T) {
	r := relay.New(keystore.NewMemoryKeyStore(), ledger.NewMemoryLedger(), 100)
	ws, err := r.CreateWorkspace(context.Background(), workspace.NewBuilder().WithExpiresAfter(30*time.Minute))
	require.NoError(t, err)

	charlie := newTestParticipant(t, "charlie")
	client, server := transport.NewPipe(8)
	go func() { _ = r.Serve(context.Background(), server) }()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	env, err := client.Receive(ctx)
	require.NoError(t, err)
	require.Equal(t, transport.TypeChallenge, env.Type)
	decoded, err := env.Decode()
	require.NoError(t, err)
	challenge := decoded.(*transport.ChallengePayload)
	var nonce [32]byte
	copy(nonce[:], challenge.Challenge)

	now := time.Now()
	proof := participant.SignProof(charlie.priv, nonce, now, charlie.id)
	hsEnv, err := transport.NewEnvelope(transport.TypeHandshake, transport.HandshakePayload{
		ProtocolVersion: "2.0.0",
		WorkspaceID:     ws.ID,
		ParticipantID:   charlie.id,
		PublicKey:       charlie.pub,
		Proof:           proof,
	}, now)
	require.NoError(t, err)
	require.NoError(t, client.Send(ctx, hsEnv))

	errEnv, err := client.Receive(ctx)
	require.NoError(t, err)
	require.Equal(t, transport.TypeError, errEnv.Type)
	decodedErr, err := errEnv.Decode()
	require.NoError(t, err)
	errPayload := decodedErr.(*transport.ErrorPayload)
	require.Equal(t, transport.ErrCodeAuthFailed, errPayload.Code)

	got, err := r.Workspace(ws.ID)
	require.NoError(t, err)
	require.Equal(t, 0, got.ParticipantCount())
}

// TestRelay_S4_RateLimitExceeded follows spec scenario S4: a session that
// exceeds its per-second operation budget gets RATE_LIMIT_EXCEEDED. It
// does not check that the session can send again once the window rolls.
func TestRelay_S4_RateLimitExceeded(t *testing.T) {
	r := relay.New(keystore.NewMemoryKeyStore(), ledger.NewMemoryLedger(), 5)
	ws, err := r.CreateWorkspace(context.Background(), workspace.NewBuilder().WithExpiresAfter(30*time.Minute))
	require.NoError(t, err)

	bob := newTestParticipant(t, "bob")
	client, server := transport.NewPipe(64)
	go func() { _ = r.Serve(context.Background(), server) }()
	ack := handshake(t, context.Background(), client, bob, ws.ID)

	key, err := ws.DeriveKey(ack.CurrentKeyID)
	require.NoError(t, err)
	aeKey := ae.NewKey(key.ID, key.Material)

	sendOp := func(i int) {
		op := crdt.Operation{
			OperationID:   uuidLike(i),
			ParticipantID: bob.id,
			Timestamp:     time.Now(),
			Type:          crdt.OpInsert,
			Position:      0,
			Content:       "x",
		}
		encOp, err := codec.EncryptOperation(op, aeKey, bob.kp, ws.ID)
		require.NoError(t, err)
		env, err := transport.NewEnvelope(transport.TypeOperation, transport.OperationPayload{Operation: *encOp}, time.Now())
		require.NoError(t, err)
		require.NoError(t, client.Send(context.Background(), env))
	}

	for i := 0; i < 10; i++ {
		sendOp(i)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	sawRateLimit := false
	for i := 0; i < 10; i++ {
		env, err := client.Receive(ctx)
		require.NoError(t, err)
		if env.Type == transport.TypeError {
			decoded, err := env.Decode()
			require.NoError(t, err)
			errPayload := decoded.(*transport.ErrorPayload)
			if errPayload.Code == transport.ErrCodeRateLimitExceeded {
				sawRateLimit = true
				break
			}
		}
	}
	require.True(t, sawRateLimit, "expected at least one RATE_LIMIT_EXCEEDED error")
}

func uuidLike(i int) string {
	const hex = "0123456789abcdef"
	b := []byte("00000000-0000-0000-0000-000000000000")
	b[35] = hex[i%16]
	return string(b)
}
