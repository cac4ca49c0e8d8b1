package session

import "errors"

var (
	// ErrNotConnected is returned by an operation that requires a live
	// transport when the session has none.
	ErrNotConnected = errors.New("session: not connected")
	// ErrAlreadyConnected is returned by Connect on a session that already
	// has a live transport.
	ErrAlreadyConnected = errors.New("session: already connected")
	// ErrReconnectAbandoned names the state reached once MaxReconnectAttempts
	// has been exhausted without a successful reconnect. The reconnect loop
	// logs the abandonment and does not return this error to any caller.
	ErrReconnectAbandoned = errors.New("session: reconnect attempts exhausted")
	// ErrKeyRecoveryFailed is returned when a key cannot be derived (bad
	// id) or has already passed its grace period.
	ErrKeyRecoveryFailed = errors.New("session: key recovery failed")
	// ErrUnexpectedMessage is returned when a handshake step receives a
	// message of the wrong type.
	ErrUnexpectedMessage = errors.New("session: unexpected message during handshake")
	// ErrHandshakeRejected is returned when the relay's handshake_ack
	// reports failure.
	ErrHandshakeRejected = errors.New("session: handshake rejected")
)
