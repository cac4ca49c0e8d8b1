// Package participant implements the relay-side participant handshake
// state machine (§4.7): challenge issuance, zero-knowledge proof
// verification, and the per-connection Session a relay tracks from first
// contact through authentication.
package participant

import (
	"context"
	"crypto/ed25519"
	"fmt"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/digital-defiance/eecp/codec"
	"github.com/digital-defiance/eecp/transport"
)

// DeliverFunc pushes a fanned-out operation onto a session's live
// transport. The connection loop that owns the transport installs this on
// its Session once authenticated so other connections' fan-out can reach
// it without holding a reference to the transport itself.
type DeliverFunc func(ctx context.Context, op codec.EncryptedOperation) error

// State is a connection's position in the handshake state machine:
//
//	DISCONNECTED --connect--> CHALLENGED --handshake--> AUTHENTICATED
//	                  |                        |
//	                  +--handshake_timeout--> DISCONNECTED
//	                  +--auth_fail----------> DISCONNECTED
type State string

const (
	StateDisconnected  State = "DISCONNECTED"
	StateChallenged    State = "CHALLENGED"
	StateAuthenticated State = "AUTHENTICATED"
)

// HandshakeTimeout is how long a CHALLENGED connection has to present a
// valid handshake before the relay closes it.
const HandshakeTimeout = 60 * time.Second

// MaxClockSkew bounds how far a proof's timestamp may drift from the
// relay's clock.
const MaxClockSkew = 60 * time.Second

// Session is the relay's live view of one participant connection.
type Session struct {
	mu sync.RWMutex

	ParticipantID string
	WorkspaceID   string
	PublicKey     ed25519.PublicKey
	State         State
	ConnectedAt   time.Time
	Limiter       *rate.Limiter
	deliver       DeliverFunc
}

// SetDeliver installs (or clears, with nil) the callback fan-out uses to
// push an operation to this session's transport.
func (s *Session) SetDeliver(f DeliverFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deliver = f
}

// GetDeliver returns the currently installed delivery callback, or nil if
// the session has no live transport attached.
func (s *Session) GetDeliver() DeliverFunc {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.deliver
}

// NewSession creates a freshly connected, unauthenticated session. opsPerSec
// seeds the session's rate limiter (§4.7 invariant 8); it takes effect only
// once the session reaches AUTHENTICATED.
func NewSession(opsPerSec float64, now time.Time) *Session {
	return &Session{
		State:       StateChallenged,
		ConnectedAt: now,
		Limiter:     rate.NewLimiter(rate.Limit(opsPerSec), int(opsPerSec)),
	}
}

// Authenticate transitions the session to AUTHENTICATED and records the
// participant's identity.
func (s *Session) Authenticate(participantID, workspaceID string, publicKey ed25519.PublicKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ParticipantID = participantID
	s.WorkspaceID = workspaceID
	s.PublicKey = publicKey
	s.State = StateAuthenticated
}

// Fail returns the session to DISCONNECTED after a handshake or auth
// failure.
func (s *Session) Fail() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.State = StateDisconnected
}

// IsAuthenticated reports whether the session has completed its handshake.
func (s *Session) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.State == StateAuthenticated
}

// CurrentState returns the session's state machine position.
func (s *Session) CurrentState() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.State
}

// signedProofMessage builds challenge || timestamp_ascii || participant_id_ascii,
// the fixed byte layout a handshake proof signs, per §4.7.
func signedProofMessage(challenge [32]byte, ts time.Time, participantID string) []byte {
	msg := make([]byte, 0, 32+20+len(participantID))
	msg = append(msg, challenge[:]...)
	msg = append(msg, []byte(strconv.FormatInt(ts.UnixMilli(), 10))...)
	msg = append(msg, []byte(participantID)...)
	return msg
}

// VerifyHandshake validates a handshake message against an issued
// challenge nonce, in the order §4.7 specifies: protocol version, clock
// skew, then signature. Workspace existence/activity and participant-cap
// checks are the caller's responsibility since they require the workspace
// registry this package does not hold.
func VerifyHandshake(hs *transport.HandshakePayload, challenge [32]byte, now time.Time) error {
	if hs.ProtocolVersion != transport.ProtocolVersion {
		return ErrProtocolVersionMismatch
	}
	skew := now.Sub(hs.Proof.Timestamp)
	if skew < 0 {
		skew = -skew
	}
	if skew > MaxClockSkew {
		return ErrTimestampSkew
	}
	if len(hs.PublicKey) != ed25519.PublicKeySize {
		return fmt.Errorf("%w: public key wrong size", ErrBadProof)
	}
	msg := signedProofMessage(challenge, hs.Proof.Timestamp, hs.ParticipantID)
	if !ed25519.Verify(ed25519.PublicKey(hs.PublicKey), msg, hs.Proof.Signature) {
		return ErrBadProof
	}
	return nil
}

// SignProof is the client-side counterpart to VerifyHandshake: it signs
// challenge || timestamp || participant_id under a participant's private
// key to produce the ZeroKnowledgeProof carried in a handshake message.
func SignProof(priv ed25519.PrivateKey, challenge [32]byte, ts time.Time, participantID string) transport.ZeroKnowledgeProof {
	msg := signedProofMessage(challenge, ts, participantID)
	return transport.ZeroKnowledgeProof{
		Signature: ed25519.Sign(priv, msg),
		Timestamp: ts,
	}
}
