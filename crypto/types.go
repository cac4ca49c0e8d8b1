package crypto

import (
	"crypto"
	"errors"
)

// KeyType identifies the signature algorithm a KeyPair uses. Participant
// identity keys are Ed25519 only; the protocol does not negotiate or
// support alternative signature algorithms.
type KeyType string

const (
	KeyTypeEd25519 KeyType = "Ed25519"
)

// KeyPair is a participant's identity key pair: the public half is carried
// in the handshake message and used to verify operation signatures, the
// private half signs outgoing operations and handshake proofs.
type KeyPair interface {
	// PublicKey returns the public key
	PublicKey() crypto.PublicKey

	// PrivateKey returns the private key
	PrivateKey() crypto.PrivateKey

	// Type returns the key type
	Type() KeyType

	// Sign signs the given message
	Sign(message []byte) ([]byte, error)

	// Verify verifies the signature
	Verify(message, signature []byte) error

	// ID returns a unique identifier for this key pair
	ID() string
}

// Common errors
var (
	ErrInvalidSignature = errors.New("invalid signature")
)
