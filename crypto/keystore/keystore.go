// Package keystore defines the persistence trait that backs a relay's
// temporal keys and participant private keys across restarts. The relay's
// hot path never needs it: temporal keys are cheap to re-derive (see
// crypto/tkd) and are normally cached in memory only. An adapter exists so
// a long-running relay can recover workspace key metadata and participant
// key material after a restart instead of rejecting every connection until
// participants re-handshake.
package keystore

import (
	"context"
	"errors"

	"github.com/digital-defiance/eecp/crypto/tkd"
)

// ErrNotFound is returned when a requested key or participant record does
// not exist.
var ErrNotFound = errors.New("keystore: not found")

// KeyStore is the persistence trait every adapter implements.
type KeyStore interface {
	// StoreKey records a workspace's temporal key.
	StoreKey(ctx context.Context, workspaceID string, key *tkd.TemporalKey) error
	// GetKeyByID retrieves one previously stored temporal key.
	GetKeyByID(ctx context.Context, workspaceID, keyID string) (*tkd.TemporalKey, error)
	// GetCurrentKey retrieves the most recently stored temporal key for a
	// workspace, i.e. the one with the latest ValidFrom.
	GetCurrentKey(ctx context.Context, workspaceID string) (*tkd.TemporalKey, error)
	// DeleteWorkspaceKeys scrubs and removes every temporal key recorded
	// for a workspace.
	DeleteWorkspaceKeys(ctx context.Context, workspaceID string) error
	// ListKeys returns every temporal key recorded for a workspace, for
	// Temporal Cleanup to find keys whose grace period has elapsed.
	ListKeys(ctx context.Context, workspaceID string) ([]*tkd.TemporalKey, error)
	// DeleteKey scrubs and removes a single temporal key, once Temporal
	// Cleanup has durably committed to it being destroyed.
	DeleteKey(ctx context.Context, workspaceID, keyID string) error

	// StoreParticipantKey records a participant's key pair.
	StoreParticipantKey(ctx context.Context, participantID string, private, public []byte) error
	// GetParticipantPrivate retrieves a participant's private key bytes.
	GetParticipantPrivate(ctx context.Context, participantID string) ([]byte, error)

	// Close releases any resources held by the adapter.
	Close() error
}
