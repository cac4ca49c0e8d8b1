// Package transport defines the wire-level MessageEnvelope exchanged
// between relay and client, transport-agnostic per §6: anything that can
// move a JSON frame both ways (WebSocket, an in-memory pipe for tests, a
// future QUIC stream) can satisfy the Transport interface in this package.
package transport

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/digital-defiance/eecp/codec"
	"github.com/google/uuid"
)

// MessageType enumerates the envelope's type field. Values are the exact
// wire strings per the protocol table; do not renumber or rename them.
type MessageType string

const (
	TypeChallenge     MessageType = "challenge"
	TypeHandshake     MessageType = "handshake"
	TypeHandshakeAck  MessageType = "handshake_ack"
	TypeOperation     MessageType = "operation"
	TypeOperationAck  MessageType = "operation_ack"
	TypeSyncRequest   MessageType = "sync_request"
	TypeSyncResponse  MessageType = "sync_response"
	TypeError         MessageType = "error"
	TypePing          MessageType = "ping"
	TypePong          MessageType = "pong"
	// TypeStateBroadcast is not in the protocol's literal message table;
	// it backs the SUPPLEMENTED sync_response.current_state provenance
	// decision (relay/sync.go): a participant that computes a fresh CRDT
	// snapshot may push it so sync_request callers get a cached answer
	// instead of an empty one.
	TypeStateBroadcast MessageType = "state_broadcast"
)

// ProtocolVersion is the only handshake version this module speaks. A
// mismatch at handshake is a fatal AUTH_FAILED per §6.
const ProtocolVersion = "1.0.0"

// Envelope is the wire message: a typed, timestamped frame carrying one of
// the payload structs below as opaque JSON. Decode dispatches Payload into
// the concrete type Type implies.
type Envelope struct {
	Type      MessageType     `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
	MessageID string          `json:"message_id"`
}

// ChallengePayload is the server->client challenge frame payload.
type ChallengePayload struct {
	ChallengeID string `json:"challenge_id"`
	Challenge   []byte `json:"challenge"`
}

// ZeroKnowledgeProof proves possession of a participant's private key
// without disclosing it: a signature over challenge||timestamp||participant_id.
type ZeroKnowledgeProof struct {
	Signature []byte    `json:"signature"`
	Timestamp time.Time `json:"timestamp"`
}

// HandshakePayload is the client->server handshake frame payload.
type HandshakePayload struct {
	ProtocolVersion string             `json:"protocol_version"`
	WorkspaceID     string             `json:"workspace_id"`
	ParticipantID   string             `json:"participant_id"`
	PublicKey       []byte             `json:"public_key"`
	Proof           ZeroKnowledgeProof `json:"proof"`
}

// HandshakeAckPayload is the server->client handshake result payload.
// EncryptedMetadata is the sealed {key_id, valid_until, grace_period_end}
// blob sealed by relay/metadata.go; absence of a
// usable value is not fatal, since the client falls back to on-demand
// key-id resolution (§4.6).
type HandshakeAckPayload struct {
	Success           bool      `json:"success"`
	CurrentKeyID      string    `json:"current_key_id"`
	EncryptedMetadata []byte    `json:"encrypted_metadata,omitempty"`
	ServerTime        time.Time `json:"server_time"`
}

// OperationPayload wraps a single encrypted CRDT operation, bidirectional.
type OperationPayload struct {
	Operation codec.EncryptedOperation `json:"operation"`
}

// OperationAckPayload acknowledges receipt of an operation message.
type OperationAckPayload struct {
	OperationID    string    `json:"operation_id"`
	ServerTimestamp time.Time `json:"server_timestamp"`
}

// SyncRequestPayload asks the relay for every operation since a timestamp.
type SyncRequestPayload struct {
	FromTimestamp time.Time `json:"from_timestamp"`
}

// SyncResponsePayload answers a sync_request with the operation backlog
// plus an opaque CRDT state snapshot (relay/sync.go documents provenance).
type SyncResponsePayload struct {
	Operations   []codec.EncryptedOperation `json:"operations"`
	CurrentState []byte                     `json:"current_state"`
}

// StateBroadcastPayload carries a participant's locally computed CRDT
// state snapshot (crdt.Document.GetState) for the relay to cache as the
// workspace's current_state answer to future sync_requests.
type StateBroadcastPayload struct {
	State []byte `json:"state"`
}

// ErrorCode enumerates the typed error codes the relay may emit.
type ErrorCode string

const (
	ErrCodeAuthFailed         ErrorCode = "AUTH_FAILED"
	ErrCodeWorkspaceNotFound  ErrorCode = "WORKSPACE_NOT_FOUND"
	ErrCodeWorkspaceExpired   ErrorCode = "WORKSPACE_EXPIRED"
	ErrCodeInvalidOperation   ErrorCode = "INVALID_OPERATION"
	ErrCodeRateLimitExceeded  ErrorCode = "RATE_LIMIT_EXCEEDED"
	ErrCodeParticipantRevoked ErrorCode = "PARTICIPANT_REVOKED"
)

// ErrorPayload is the server->client typed error frame payload.
type ErrorPayload struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Details string    `json:"details,omitempty"`
}

// PingPongPayload is shared by ping and pong frames.
type PingPongPayload struct {
	Timestamp time.Time `json:"timestamp"`
}

// NewEnvelope marshals payload and stamps a fresh message id and the
// given timestamp.
func NewEnvelope(msgType MessageType, payload any, ts time.Time) (*Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("transport: marshal payload: %w", err)
	}
	return &Envelope{
		Type:      msgType,
		Payload:   raw,
		Timestamp: ts,
		MessageID: uuid.NewString(),
	}, nil
}

// Decode unmarshals e.Payload into the struct its Type implies, returning
// it as an any the caller type-switches on. Unknown types return
// ErrUnknownMessageType.
func (e *Envelope) Decode() (any, error) {
	var target any
	switch e.Type {
	case TypeChallenge:
		target = &ChallengePayload{}
	case TypeHandshake:
		target = &HandshakePayload{}
	case TypeHandshakeAck:
		target = &HandshakeAckPayload{}
	case TypeOperation:
		target = &OperationPayload{}
	case TypeOperationAck:
		target = &OperationAckPayload{}
	case TypeSyncRequest:
		target = &SyncRequestPayload{}
	case TypeSyncResponse:
		target = &SyncResponsePayload{}
	case TypeStateBroadcast:
		target = &StateBroadcastPayload{}
	case TypeError:
		target = &ErrorPayload{}
	case TypePing, TypePong:
		target = &PingPongPayload{}
	default:
		return nil, ErrUnknownMessageType
	}
	if err := json.Unmarshal(e.Payload, target); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPayloadMismatch, err)
	}
	return target, nil
}
