package ae

import "errors"

var (
	// ErrKeyIDMismatch is returned when a payload's key id does not match
	// the key it is being decrypted with.
	ErrKeyIDMismatch = errors.New("ae: key id mismatch")
	// ErrAuthenticationFailed is returned when GCM tag verification fails.
	ErrAuthenticationFailed = errors.New("ae: authentication failed")
	// ErrKeyDestroyed is returned when encrypt/decrypt is attempted against
	// a key that has already been destroyed.
	ErrKeyDestroyed = errors.New("ae: key destroyed")
	// ErrCiphertextTruncated is returned when encrypted_content is shorter
	// than nonce+tag.
	ErrCiphertextTruncated = errors.New("ae: ciphertext truncated")
)
