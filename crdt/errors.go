package crdt

import "errors"

var (
	// ErrInvalidOperation is returned by ApplyRemote when an operation's
	// type is neither insert nor delete.
	ErrInvalidOperation = errors.New("crdt: invalid operation type")
)
