package codec

import "errors"

var (
	// ErrBadSignature is returned when an envelope's signature does not
	// verify under the claimed participant's public key.
	ErrBadSignature = errors.New("codec: bad signature")
	// ErrWorkspaceMismatch is returned when an envelope's workspace id does
	// not match the expected workspace.
	ErrWorkspaceMismatch = errors.New("codec: workspace mismatch")
	// ErrCiphertextTruncated is returned when encrypted_content is shorter
	// than nonce+tag.
	ErrCiphertextTruncated = errors.New("codec: ciphertext truncated")
	// ErrDecryptionFailed is returned when AEAD decryption fails.
	ErrDecryptionFailed = errors.New("codec: decryption failed")
	// ErrMalformedPayload is returned when the decrypted plaintext is not
	// the canonical JSON shape expected for the operation's type.
	ErrMalformedPayload = errors.New("codec: malformed payload")
)
