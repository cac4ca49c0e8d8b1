// Package ae implements the authenticated encryption used to seal CRDT
// operations under a tkd.TemporalKey. It follows the same
// nonce-prefixed-AEAD shape the rest of this module uses for session
// transport encryption, swapped to AES-256-GCM and a fixed on-wire layout:
// nonce(12) || auth_tag(16) || ciphertext.
package ae

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
	"io"
)

const (
	// NonceSize is the random nonce length in bytes.
	NonceSize = 12
	// TagSize is the GCM authentication tag length in bytes.
	TagSize = 16
	// KeySize is the AES-256 key length in bytes.
	KeySize = 32
)

// Key is a single temporal key's material, bound to a key id for AAD
// construction and payload validation. Destroy renders it permanently
// unusable.
type Key struct {
	ID        string
	material  [KeySize]byte
	destroyed bool
}

// NewKey wraps 32 bytes of key material under the given id.
func NewKey(id string, material [KeySize]byte) *Key {
	return &Key{ID: id, material: material}
}

// Destroyed reports whether Destroy has already run on this key.
func (k *Key) Destroyed() bool {
	return k.destroyed
}

// Destroy overwrites the key material with random bytes, then zeros it, and
// marks the key unusable. The zeroing is irreversible; any subsequent
// Encrypt or Decrypt call against a destroyed key fails with
// ErrKeyDestroyed. Destroy does not consult the commitment ledger.
func (k *Key) Destroy() error {
	if k.destroyed {
		return nil
	}
	if _, err := io.ReadFull(rand.Reader, k.material[:]); err != nil {
		return fmt.Errorf("scrub key material: %w", err)
	}
	for i := range k.material {
		k.material[i] = 0
	}
	k.destroyed = true
	return nil
}

func (k *Key) aead() (cipher.AEAD, error) {
	if k.destroyed {
		return nil, ErrKeyDestroyed
	}
	block, err := aes.NewCipher(k.material[:])
	if err != nil {
		return nil, fmt.Errorf("new aes cipher: %w", err)
	}
	return cipher.NewGCM(block)
}

// Payload is the decomposed form of an encrypted_content blob: the key id
// it was sealed under (tracked by the caller, not carried on the wire) plus
// the nonce, tag and ciphertext bytes.
type Payload struct {
	KeyID      string
	Nonce      [NonceSize]byte
	Tag        [TagSize]byte
	Ciphertext []byte
}

// Marshal renders the payload as nonce || auth_tag || ciphertext, the
// encrypted_content wire format.
func (p Payload) Marshal() []byte {
	out := make([]byte, 0, NonceSize+TagSize+len(p.Ciphertext))
	out = append(out, p.Nonce[:]...)
	out = append(out, p.Tag[:]...)
	out = append(out, p.Ciphertext...)
	return out
}

// Unmarshal parses an encrypted_content blob into a Payload tagged with
// keyID, the key id the caller intends to decrypt it with.
func Unmarshal(keyID string, data []byte) (Payload, error) {
	if len(data) < NonceSize+TagSize {
		return Payload{}, ErrCiphertextTruncated
	}
	var p Payload
	p.KeyID = keyID
	copy(p.Nonce[:], data[:NonceSize])
	copy(p.Tag[:], data[NonceSize:NonceSize+TagSize])
	p.Ciphertext = append([]byte(nil), data[NonceSize+TagSize:]...)
	return p, nil
}

// aad builds the AAD passed to AES-GCM: key_id_utf8 || caller_aad.
func aad(keyID string, callerAAD []byte) []byte {
	out := make([]byte, 0, len(keyID)+len(callerAAD))
	out = append(out, []byte(keyID)...)
	out = append(out, callerAAD...)
	return out
}

// Encrypt seals plaintext under key with a fresh random nonce, binding the
// key id and callerAAD as additional authenticated data.
func Encrypt(plaintext []byte, key *Key, callerAAD []byte) (Payload, error) {
	g, err := key.aead()
	if err != nil {
		return Payload{}, err
	}

	var nonce [NonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return Payload{}, fmt.Errorf("generate nonce: %w", err)
	}

	sealed := g.Seal(nil, nonce[:], plaintext, aad(key.ID, callerAAD))
	// Go's GCM appends the tag after the ciphertext; split it so Marshal can
	// reorder to nonce || tag || ciphertext.
	ct := sealed[:len(sealed)-TagSize]
	var tag [TagSize]byte
	copy(tag[:], sealed[len(sealed)-TagSize:])

	return Payload{KeyID: key.ID, Nonce: nonce, Tag: tag, Ciphertext: ct}, nil
}

// Decrypt opens a Payload under key. It refuses before attempting the
// cipher if payload.KeyID does not match key.ID.
func Decrypt(payload Payload, key *Key, callerAAD []byte) ([]byte, error) {
	if payload.KeyID != key.ID {
		return nil, ErrKeyIDMismatch
	}
	g, err := key.aead()
	if err != nil {
		return nil, err
	}

	sealed := make([]byte, 0, len(payload.Ciphertext)+TagSize)
	sealed = append(sealed, payload.Ciphertext...)
	sealed = append(sealed, payload.Tag[:]...)

	plaintext, err := g.Open(nil, payload.Nonce[:], sealed, aad(key.ID, callerAAD))
	if err != nil {
		return nil, ErrAuthenticationFailed
	}
	return plaintext, nil
}
