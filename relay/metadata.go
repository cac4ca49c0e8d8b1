package relay

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"golang.org/x/crypto/hkdf"

	"github.com/digital-defiance/eecp/crypto/ae"
	"github.com/digital-defiance/eecp/crypto/tkd"
)

const metadataHKDFInfo = "EECP-Handshake-Metadata-v1"

// keyMetadata is the plaintext handshake_ack.encrypted_metadata payload:
// enough for a participant to start using the current key without a
// separate recovery round-trip.
type keyMetadata struct {
	KeyID          string    `json:"key_id"`
	ValidUntil     time.Time `json:"valid_until"`
	GracePeriodEnd time.Time `json:"grace_period_end"`
}

// sealMetadataKey derives the handshake-scoped symmetric key that seals
// encrypted_metadata: HKDF-SHA256 over the workspace secret (IKM), the
// challenge nonce (salt), and the participant's public key folded into
// info. Every participant already holds the workspace secret, so this is
// an integrity/structure measure against a passive relay log, not a
// confidentiality boundary between participants — documented as such in
// DESIGN.md.
func sealMetadataKey(workspaceSecret []byte, challenge [32]byte, publicKey []byte) (*ae.Key, error) {
	info := append([]byte(metadataHKDFInfo), publicKey...)
	r := hkdf.New(sha256.New, workspaceSecret, challenge[:], info)
	var material [32]byte
	if _, err := io.ReadFull(r, material[:]); err != nil {
		return nil, fmt.Errorf("relay: derive metadata key: %w", err)
	}
	return ae.NewKey("handshake-metadata", material), nil
}

// sealMetadata builds and encrypts the encrypted_metadata blob for a
// handshake_ack.
func sealMetadata(workspaceSecret []byte, challenge [32]byte, publicKey []byte, key *tkd.TemporalKey) ([]byte, error) {
	plaintext, err := json.Marshal(keyMetadata{
		KeyID:          key.ID,
		ValidUntil:     key.ValidUntil,
		GracePeriodEnd: key.GracePeriodEnd,
	})
	if err != nil {
		return nil, err
	}
	sk, err := sealMetadataKey(workspaceSecret, challenge, publicKey)
	if err != nil {
		return nil, err
	}
	payload, err := ae.Encrypt(plaintext, sk, nil)
	if err != nil {
		return nil, err
	}
	return payload.Marshal(), nil
}

// UnsealMetadata is the client-side counterpart: given the same inputs the
// relay sealed with, recover the key metadata. A client that cannot unseal
// it (e.g. it forgot the challenge nonce) simply falls back to requesting
// the key id on first use (§4.6), so failures here are never fatal.
func UnsealMetadata(workspaceSecret []byte, challenge [32]byte, publicKey, sealed []byte) (keyID string, validUntil, gracePeriodEnd time.Time, err error) {
	sk, err := sealMetadataKey(workspaceSecret, challenge, publicKey)
	if err != nil {
		return "", time.Time{}, time.Time{}, err
	}
	payload, err := ae.Unmarshal(sk.ID, sealed)
	if err != nil {
		return "", time.Time{}, time.Time{}, err
	}
	plaintext, err := ae.Decrypt(payload, sk, nil)
	if err != nil {
		return "", time.Time{}, time.Time{}, err
	}
	var meta keyMetadata
	if err := json.Unmarshal(plaintext, &meta); err != nil {
		return "", time.Time{}, time.Time{}, err
	}
	return meta.KeyID, meta.ValidUntil, meta.GracePeriodEnd, nil
}
