// Package codec implements the Operation Codec: encryption, signing,
// verification, and decryption of CRDT operations, binding every envelope
// to the workspace and temporal key that sealed it. The server only ever
// sees the fields this package declares public; encrypted_content is
// opaque to anyone without the matching temporal key.
package codec

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/digital-defiance/eecp/crdt"
	eecpcrypto "github.com/digital-defiance/eecp/crypto"
	"github.com/digital-defiance/eecp/crypto/ae"
)

// EncryptedOperation is the wire envelope for a single CRDT operation.
// OperationID, WorkspaceID, ParticipantID, Timestamp, Position and
// OperationType are server-visible and used for routing/ordering;
// EncryptedContent is opaque. KeyID is carried alongside so a receiver does
// not have to brute-force every cached temporal key to find the right one;
// it is still bound into the AEAD as part of the AAD (crypto/ae), so
// tampering with it invalidates the tag.
type EncryptedOperation struct {
	OperationID      string              `json:"operation_id"`
	WorkspaceID      string              `json:"workspace_id"`
	ParticipantID    string              `json:"participant_id"`
	Timestamp        time.Time           `json:"timestamp"`
	Position         int                 `json:"position"`
	OperationType    crdt.OperationType  `json:"operation_type"`
	KeyID            string              `json:"key_id"`
	EncryptedContent []byte              `json:"encrypted_content"`
	Signature        []byte              `json:"signature"`
}

// insertPayload/deletePayload are the canonical JSON plaintext payloads.
// Exactly one of the two shapes is ever encrypted, selected by op.Type.
type insertPayload struct {
	Content string `json:"content"`
}

type deletePayload struct {
	Length int `json:"length"`
}

// signedMessage builds the fixed-order byte concatenation that is signed
// and later re-verified: operation_id bytes, timestamp decimal
// milliseconds, position decimal, operation_type ascii, encrypted_content.
// Resolves the source's ambiguity between signing operation.id.toString()
// and raw bytes by always signing the operation id's UTF-8 string form.
func signedMessage(operationID string, ts time.Time, position int, opType crdt.OperationType, encryptedContent []byte) []byte {
	msg := make([]byte, 0, len(operationID)+32+len(encryptedContent))
	msg = append(msg, []byte(operationID)...)
	msg = append(msg, []byte(strconv.FormatInt(ts.UnixMilli(), 10))...)
	msg = append(msg, []byte(strconv.Itoa(position))...)
	msg = append(msg, []byte(opType)...)
	msg = append(msg, encryptedContent...)
	return msg
}

// EncryptOperation seals a plaintext CRDT operation under key and signs the
// resulting envelope with signingKey. workspaceID is stamped on the
// envelope so receivers can reject cross-workspace replay.
func EncryptOperation(op crdt.Operation, key *ae.Key, signingKey eecpcrypto.KeyPair, workspaceID string) (*EncryptedOperation, error) {
	var plaintext []byte
	var err error
	switch op.Type {
	case crdt.OpInsert:
		plaintext, err = json.Marshal(insertPayload{Content: op.Content})
	case crdt.OpDelete:
		plaintext, err = json.Marshal(deletePayload{Length: op.Length})
	default:
		return nil, fmt.Errorf("%w: %q", ErrMalformedPayload, op.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("codec: marshal payload: %w", err)
	}

	payload, err := ae.Encrypt(plaintext, key, nil)
	if err != nil {
		return nil, fmt.Errorf("codec: encrypt: %w", err)
	}
	encryptedContent := payload.Marshal()

	msg := signedMessage(op.OperationID, op.Timestamp, op.Position, op.Type, encryptedContent)
	sig, err := signingKey.Sign(msg)
	if err != nil {
		return nil, fmt.Errorf("codec: sign: %w", err)
	}

	return &EncryptedOperation{
		OperationID:      op.OperationID,
		WorkspaceID:      workspaceID,
		ParticipantID:    op.ParticipantID,
		Timestamp:        op.Timestamp,
		Position:         op.Position,
		OperationType:    op.Type,
		KeyID:            key.ID,
		EncryptedContent: encryptedContent,
		Signature:        sig,
	}, nil
}

// Verify checks env's signature under verifyingKey. It does not touch the
// ciphertext.
func Verify(env *EncryptedOperation, verifyingKey eecpcrypto.KeyPair) bool {
	msg := signedMessage(env.OperationID, env.Timestamp, env.Position, env.OperationType, env.EncryptedContent)
	return verifyingKey.Verify(msg, env.Signature) == nil
}

// DecryptOperation opens env under key and reconstructs the plaintext CRDT
// operation. It does not verify the signature or workspace id; callers
// follow the order in Receive (or replicate it) before calling this.
func DecryptOperation(env *EncryptedOperation, key *ae.Key) (crdt.Operation, error) {
	if len(env.EncryptedContent) < ae.NonceSize+ae.TagSize {
		return crdt.Operation{}, ErrCiphertextTruncated
	}
	payload, err := ae.Unmarshal(key.ID, env.EncryptedContent)
	if err != nil {
		return crdt.Operation{}, ErrCiphertextTruncated
	}

	plaintext, err := ae.Decrypt(payload, key, nil)
	if err != nil {
		return crdt.Operation{}, ErrDecryptionFailed
	}

	op := crdt.Operation{
		OperationID:   env.OperationID,
		ParticipantID: env.ParticipantID,
		Timestamp:     env.Timestamp,
		Type:          env.OperationType,
		Position:      env.Position,
	}
	switch env.OperationType {
	case crdt.OpInsert:
		var p insertPayload
		if err := json.Unmarshal(plaintext, &p); err != nil {
			return crdt.Operation{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
		}
		op.Content = p.Content
	case crdt.OpDelete:
		var p deletePayload
		if err := json.Unmarshal(plaintext, &p); err != nil {
			return crdt.Operation{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
		}
		op.Length = p.Length
	default:
		return crdt.Operation{}, fmt.Errorf("%w: %q", ErrMalformedPayload, env.OperationType)
	}
	return op, nil
}

// KeyResolver looks up the temporal key that should decrypt an envelope
// given the key id it names. Implementations (e.g. Client Session's key
// cache) may trigger key recovery before returning.
type KeyResolver func(keyID string) (*ae.Key, error)

// Receive performs the full receive-side verification order from §4.4:
// (1) verify signature, (2) check workspace id, (3) decrypt with the
// resolved key, (4) return the plaintext operation. Signature and
// workspace-id failures are permanent for this envelope; decryption
// failures are returned as-is so callers can distinguish a missing/expired
// key (worth retrying after recovery) from definitive tamper evidence.
func Receive(env *EncryptedOperation, verifyingKey eecpcrypto.KeyPair, expectedWorkspaceID string, resolve KeyResolver) (crdt.Operation, error) {
	if !Verify(env, verifyingKey) {
		return crdt.Operation{}, ErrBadSignature
	}
	if env.WorkspaceID != expectedWorkspaceID {
		return crdt.Operation{}, ErrWorkspaceMismatch
	}
	key, err := resolve(env.KeyID)
	if err != nil {
		return crdt.Operation{}, fmt.Errorf("codec: resolve key %q: %w", env.KeyID, err)
	}
	return DecryptOperation(env, key)
}
