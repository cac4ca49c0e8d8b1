package session

import (
	"context"
	"crypto/ed25519"
	"fmt"
	"sync"
	"time"

	"github.com/digital-defiance/eecp/codec"
	"github.com/digital-defiance/eecp/crdt"
	eecpcrypto "github.com/digital-defiance/eecp/crypto"
	"github.com/digital-defiance/eecp/crypto/ae"
	"github.com/digital-defiance/eecp/internal/logger"
	"github.com/digital-defiance/eecp/relay/participant"
	"github.com/digital-defiance/eecp/transport"
)

// ClientSession is the collaborative-editing client side of the protocol
// (§4.5): one CRDT document, one temporal-key cache, one offline buffer,
// and at most one live transport. Local edits, remote applies, and change
// notifications all run on whichever goroutine calls into it or reads from
// its transport — callers serialize their own access to CE via this type's
// internal mutex rather than this type scheduling work onto a dedicated
// loop.
type ClientSession struct {
	mu sync.Mutex

	workspaceID   string
	participantID string

	signingKey  eecpcrypto.KeyPair
	signingPriv ed25519.PrivateKey
	publicKey   []byte
	peerKeys    PeerKeyResolver

	doc    *crdt.Document
	keys   *keyCache
	buffer *OfflineBuffer

	transport        transport.Transport
	dialer           Dialer
	reconnectAttempt int
	userDisconnected bool

	handlers []ChangeHandler
	logger   logger.Logger
}

// NewClientSession constructs a disconnected session for one participant
// in one workspace. signingKey must be an Ed25519 KeyPair (crypto/keys);
// workspaceSecret and window must match the values the relay used to
// create the workspace, since every key is rederived locally, never
// transmitted (§4.1, §4.6).
func NewClientSession(workspaceID, participantID string, workspaceSecret []byte, window WindowParams, signingKey eecpcrypto.KeyPair, peerKeys PeerKeyResolver) (*ClientSession, error) {
	priv, ok := signingKey.PrivateKey().(ed25519.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("session: signing key is not Ed25519")
	}
	pub, ok := signingKey.PublicKey().(ed25519.PublicKey)
	if !ok {
		return nil, fmt.Errorf("session: signing key is not Ed25519")
	}
	return &ClientSession{
		workspaceID:   workspaceID,
		participantID: participantID,
		signingKey:    signingKey,
		signingPriv:   priv,
		publicKey:     append([]byte(nil), pub...),
		peerKeys:      peerKeys,
		doc:           crdt.NewDocument(),
		keys:          newKeyCache(workspaceSecret, window),
		buffer:        NewOfflineBuffer(),
		logger:        logger.GetDefaultLogger(),
	}, nil
}

// SetDialer installs the function Connect uses to open a replacement
// transport after an unplanned disconnect. Without one, a dropped
// transport simply leaves the session disconnected.
func (c *ClientSession) SetDialer(d Dialer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dialer = d
}

// IsConnected reports whether the session currently has a live transport.
func (c *ClientSession) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.transport != nil
}

// Connect performs the challenge/handshake exchange over tr and, on
// success, starts the session's receive loop and flushes any buffered
// offline operations.
func (c *ClientSession) Connect(ctx context.Context, tr transport.Transport) error {
	c.mu.Lock()
	if c.transport != nil {
		c.mu.Unlock()
		return ErrAlreadyConnected
	}
	c.mu.Unlock()

	if err := c.handshake(ctx, tr); err != nil {
		return err
	}

	c.mu.Lock()
	c.transport = tr
	c.reconnectAttempt = 0
	c.userDisconnected = false
	c.mu.Unlock()

	c.flushOfflineBuffer(ctx, tr)

	go c.receiveLoop(tr)
	return nil
}

// handshake runs the client half of §4.7's handshake state machine:
// receive the challenge, sign a proof over it, send the handshake, and
// wait for handshake_ack.
func (c *ClientSession) handshake(ctx context.Context, tr transport.Transport) error {
	env, err := tr.Receive(ctx)
	if err != nil {
		return err
	}
	if env.Type != transport.TypeChallenge {
		return ErrUnexpectedMessage
	}
	decoded, err := env.Decode()
	if err != nil {
		return err
	}
	challenge := decoded.(*transport.ChallengePayload)
	var nonce [32]byte
	copy(nonce[:], challenge.Challenge)

	now := time.Now()
	proof := participant.SignProof(c.signingPriv, nonce, now, c.participantID)

	hsEnv, err := transport.NewEnvelope(transport.TypeHandshake, transport.HandshakePayload{
		ProtocolVersion: transport.ProtocolVersion,
		WorkspaceID:     c.workspaceID,
		ParticipantID:   c.participantID,
		PublicKey:       c.publicKey,
		Proof:           proof,
	}, now)
	if err != nil {
		return err
	}
	if err := tr.Send(ctx, hsEnv); err != nil {
		return err
	}

	ackEnv, err := tr.Receive(ctx)
	if err != nil {
		return err
	}
	if ackEnv.Type == transport.TypeError {
		return ErrHandshakeRejected
	}
	if ackEnv.Type != transport.TypeHandshakeAck {
		return ErrUnexpectedMessage
	}
	decodedAck, err := ackEnv.Decode()
	if err != nil {
		return err
	}
	ack := decodedAck.(*transport.HandshakeAckPayload)
	if !ack.Success {
		return ErrHandshakeRejected
	}
	return nil
}

// Insert applies a local insert at pos and sends (or buffers) it, per
// §4.5's local edit path.
func (c *ClientSession) Insert(ctx context.Context, pos int, text string) error {
	op := c.doc.LocalInsert(pos, text, c.participantID)
	return c.dispatchLocal(ctx, op)
}

// Delete applies a local delete of length starting at pos and sends (or
// buffers) it, per §4.5's local edit path.
func (c *ClientSession) Delete(ctx context.Context, pos, length int) error {
	op := c.doc.LocalDelete(pos, length, c.participantID)
	return c.dispatchLocal(ctx, op)
}

// dispatchLocal encodes op under the current temporal key, sends it if a
// transport is live (buffering on send failure), or buffers it directly
// when offline, then notifies subscribers.
func (c *ClientSession) dispatchLocal(ctx context.Context, op crdt.Operation) error {
	now := time.Now()
	keyID := c.keys.currentKeyID(now)
	key, err := c.keys.resolve(keyID, now)
	if err != nil {
		return err
	}
	encOp, err := codec.EncryptOperation(op, key, c.signingKey, c.workspaceID)
	if err != nil {
		return err
	}

	c.mu.Lock()
	tr := c.transport
	c.mu.Unlock()

	if tr == nil {
		c.buffer.Push(encOp)
	} else {
		env, envErr := transport.NewEnvelope(transport.TypeOperation, transport.OperationPayload{Operation: *encOp}, now)
		if envErr != nil || tr.Send(ctx, env) != nil {
			c.buffer.Push(encOp)
		}
	}

	c.notify()
	return nil
}

// GetText returns the document's current visible contents.
func (c *ClientSession) GetText() string {
	return c.doc.GetText()
}

// OnChange registers cb to run after every local edit and every
// successfully applied remote operation.
func (c *ClientSession) OnChange(cb ChangeHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers = append(c.handlers, cb)
}

// Disconnect closes the session's transport and cancels any pending
// reconnect, per §4.5's user-initiated disconnect rule.
func (c *ClientSession) Disconnect() error {
	c.mu.Lock()
	c.userDisconnected = true
	tr := c.transport
	c.transport = nil
	c.mu.Unlock()

	if tr == nil {
		return ErrNotConnected
	}
	return tr.Close()
}

func (c *ClientSession) notify() {
	c.mu.Lock()
	handlers := append([]ChangeHandler(nil), c.handlers...)
	c.mu.Unlock()

	text := c.doc.GetText()
	for _, h := range handlers {
		h(text)
	}
}

// flushOfflineBuffer drains the buffer in replay order and sends each
// entry, dropping (and logging) any whose encrypting key has since passed
// its grace period — no peer could decrypt it either.
func (c *ClientSession) flushOfflineBuffer(ctx context.Context, tr transport.Transport) {
	now := time.Now()
	for _, encOp := range c.buffer.Drain() {
		if !c.keys.stillValid(encOp.KeyID, now) {
			c.logger.Warn("session: dropping buffered operation with expired key",
				logger.String("operation_id", encOp.OperationID), logger.String("key_id", encOp.KeyID))
			continue
		}
		env, err := transport.NewEnvelope(transport.TypeOperation, transport.OperationPayload{Operation: *encOp}, encOp.Timestamp)
		if err != nil {
			continue
		}
		if err := tr.Send(ctx, env); err != nil {
			c.buffer.Push(encOp)
		}
	}
}

// receiveLoop reads envelopes from tr until it closes or errors, dispatching
// operation and sync_response messages. On read failure it hands off to
// onDisconnect, which starts reconnect if a dialer is configured.
func (c *ClientSession) receiveLoop(tr transport.Transport) {
	ctx := context.Background()
	for {
		env, err := tr.Receive(ctx)
		if err != nil {
			c.onDisconnect(tr)
			return
		}
		switch env.Type {
		case transport.TypeOperation:
			c.handleRemoteOperation(env)
		case transport.TypeSyncResponse:
			c.handleSyncResponse(env)
		}
	}
}

// handleRemoteOperation implements §4.5's remote edit path: verify,
// resolve the encrypting key (triggering recovery on a cache miss),
// decrypt, apply, notify. Any failure is logged and the envelope is
// dropped; the session itself never aborts (§4.6).
func (c *ClientSession) handleRemoteOperation(env *transport.Envelope) {
	decoded, err := env.Decode()
	if err != nil {
		return
	}
	payload := decoded.(*transport.OperationPayload)
	encOp := payload.Operation

	peerKey, err := c.peerKeys(encOp.ParticipantID)
	if err != nil {
		c.logger.Warn("session: unknown peer, dropping operation",
			logger.String("participant_id", encOp.ParticipantID), logger.Error(err))
		return
	}

	op, err := codec.Receive(&encOp, peerKey, c.workspaceID, func(keyID string) (*ae.Key, error) {
		return c.keys.resolve(keyID, time.Now())
	})
	if err != nil {
		c.logger.Warn("session: decryption failed",
			logger.String("operation_id", encOp.OperationID), logger.Error(err))
		return
	}

	if err := c.doc.ApplyRemote(op); err != nil {
		c.logger.Warn("session: apply remote failed", logger.Error(err))
		return
	}
	c.notify()
}

// handleSyncResponse merges the backlog and state snapshot a sync_request
// returned. ApplyRemote/ApplyState are idempotent, so replaying operations
// already applied locally is harmless.
func (c *ClientSession) handleSyncResponse(env *transport.Envelope) {
	decoded, err := env.Decode()
	if err != nil {
		return
	}
	payload := decoded.(*transport.SyncResponsePayload)

	for i := range payload.Operations {
		encOp := payload.Operations[i]
		peerKey, err := c.peerKeys(encOp.ParticipantID)
		if err != nil {
			continue
		}
		op, err := codec.Receive(&encOp, peerKey, c.workspaceID, func(keyID string) (*ae.Key, error) {
			return c.keys.resolve(keyID, time.Now())
		})
		if err != nil {
			continue
		}
		_ = c.doc.ApplyRemote(op)
	}
	if len(payload.CurrentState) > 0 {
		_ = c.doc.ApplyState(payload.CurrentState)
	}
	c.notify()
}

// onDisconnect clears the session's transport and, unless the
// disconnect was user-initiated or no dialer is configured, starts the
// bounded reconnect backoff loop from §4.5.
func (c *ClientSession) onDisconnect(tr transport.Transport) {
	c.mu.Lock()
	if c.transport != tr {
		c.mu.Unlock()
		return
	}
	c.transport = nil
	userInitiated := c.userDisconnected
	dialer := c.dialer
	c.mu.Unlock()

	if userInitiated || dialer == nil {
		return
	}
	go c.reconnectLoop(dialer)
}

// reconnectLoop retries Connect with exponential backoff, giving up after
// MaxReconnectAttempts.
func (c *ClientSession) reconnectLoop(dial Dialer) {
	for attempt := 0; attempt < MaxReconnectAttempts; attempt++ {
		c.mu.Lock()
		userInitiated := c.userDisconnected
		c.mu.Unlock()
		if userInitiated {
			return
		}

		time.Sleep(ReconnectDelay(attempt))

		tr, err := dial(context.Background())
		if err != nil {
			continue
		}
		if err := c.Connect(context.Background(), tr); err != nil {
			_ = tr.Close()
			continue
		}
		return
	}
	c.logger.Warn("session: reconnect abandoned", logger.String("participant_id", c.participantID))
}
