package transport

import "errors"

var (
	// ErrUnknownMessageType is returned when an envelope's type field does
	// not match any known MessageType.
	ErrUnknownMessageType = errors.New("transport: unknown message type")
	// ErrPayloadMismatch is returned when an envelope's payload cannot be
	// decoded into the struct its type implies.
	ErrPayloadMismatch = errors.New("transport: payload does not match message type")
	// ErrClosed is returned by Send/Receive once a Transport has been closed.
	ErrClosed = errors.New("transport: closed")
)
