package keys

import (
	"crypto"
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/hex"
	"errors"

	eecpcrypto "github.com/digital-defiance/eecp/crypto"
)

// NewEd25519KeyPair creates a new Ed25519 key pair from an existing private key.
func NewEd25519KeyPair(privateKey ed25519.PrivateKey, id string) (eecpcrypto.KeyPair, error) {
	publicKey := privateKey.Public().(ed25519.PublicKey)

	if id == "" {
		hash := sha256.Sum256(publicKey)
		id = hex.EncodeToString(hash[:8])
	}

	return &ed25519KeyPair{
		privateKey: privateKey,
		publicKey:  publicKey,
		id:         id,
	}, nil
}

// publicKeyOnlyEd25519 wraps an Ed25519 public key for verification only,
// the shape a relay holds for a participant whose private key it never
// sees.
type publicKeyOnlyEd25519 struct {
	publicKey ed25519.PublicKey
	id        string
}

// NewEd25519PublicKeyPair wraps a bare public key for signature verification.
func NewEd25519PublicKeyPair(publicKey ed25519.PublicKey, id string) eecpcrypto.KeyPair {
	if id == "" {
		hash := sha256.Sum256(publicKey)
		id = hex.EncodeToString(hash[:8])
	}
	return &publicKeyOnlyEd25519{publicKey: publicKey, id: id}
}

func (pk *publicKeyOnlyEd25519) PublicKey() crypto.PublicKey {
	return pk.publicKey
}

func (pk *publicKeyOnlyEd25519) PrivateKey() crypto.PrivateKey {
	return nil
}

func (pk *publicKeyOnlyEd25519) Type() eecpcrypto.KeyType {
	return eecpcrypto.KeyTypeEd25519
}

func (pk *publicKeyOnlyEd25519) Sign(message []byte) ([]byte, error) {
	return nil, errors.New("cannot sign with public key only")
}

func (pk *publicKeyOnlyEd25519) Verify(message, signature []byte) error {
	if !ed25519.Verify(pk.publicKey, message, signature) {
		return eecpcrypto.ErrInvalidSignature
	}
	return nil
}

func (pk *publicKeyOnlyEd25519) ID() string {
	return pk.id
}
