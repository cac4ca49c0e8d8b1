package tkd

import "errors"

var (
	// ErrInvalidKeyID is returned when a key id does not match "key-<n>".
	ErrInvalidKeyID = errors.New("tkd: invalid key id")
	// ErrInvalidSecret is returned when the workspace secret is empty.
	ErrInvalidSecret = errors.New("tkd: invalid secret")
)
