package participant

import "errors"

var (
	// ErrChallengeExpired is returned when a handshake arrives for a
	// challenge that has exceeded its TTL.
	ErrChallengeExpired = errors.New("participant: challenge expired")
	// ErrChallengeUnknown is returned when a handshake names a challenge id
	// the relay never issued (or already consumed).
	ErrChallengeUnknown = errors.New("participant: challenge unknown")
	// ErrProtocolVersionMismatch is returned when a handshake declares a
	// protocol version other than transport.ProtocolVersion.
	ErrProtocolVersionMismatch = errors.New("participant: protocol version mismatch")
	// ErrTimestampSkew is returned when a handshake's proof timestamp is
	// further than 60s from the relay's clock.
	ErrTimestampSkew = errors.New("participant: proof timestamp out of range")
	// ErrBadProof is returned when a ZeroKnowledgeProof signature fails
	// verification.
	ErrBadProof = errors.New("participant: bad zero-knowledge proof")
	// ErrNotAuthenticated is returned when an operation/sync message
	// arrives on a session that never completed the handshake.
	ErrNotAuthenticated = errors.New("participant: session not authenticated")
)
