package keystore

import (
	"context"
	"crypto/rand"
	"sync"

	"github.com/digital-defiance/eecp/crypto/tkd"
)

// memoryKeyStore implements KeyStore using in-memory maps, the same
// mutex-guarded map shape used throughout this module for local storage.
type memoryKeyStore struct {
	mu               sync.RWMutex
	keys             map[string]map[string]*tkd.TemporalKey // workspaceID -> keyID -> key
	current          map[string]string                      // workspaceID -> keyID
	participantKeys  map[string][]byte                      // participantID -> private
	participantPubs  map[string][]byte                      // participantID -> public
}

// NewMemoryKeyStore creates an empty in-memory KeyStore.
func NewMemoryKeyStore() KeyStore {
	return &memoryKeyStore{
		keys:            make(map[string]map[string]*tkd.TemporalKey),
		current:         make(map[string]string),
		participantKeys: make(map[string][]byte),
		participantPubs: make(map[string][]byte),
	}
}

func (m *memoryKeyStore) StoreKey(_ context.Context, workspaceID string, key *tkd.TemporalKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	ws, ok := m.keys[workspaceID]
	if !ok {
		ws = make(map[string]*tkd.TemporalKey)
		m.keys[workspaceID] = ws
	}
	ws[key.ID] = key

	cur, ok := ws[m.current[workspaceID]]
	if !ok || key.ValidFrom.After(cur.ValidFrom) {
		m.current[workspaceID] = key.ID
	}
	return nil
}

func (m *memoryKeyStore) GetKeyByID(_ context.Context, workspaceID, keyID string) (*tkd.TemporalKey, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ws, ok := m.keys[workspaceID]
	if !ok {
		return nil, ErrNotFound
	}
	k, ok := ws[keyID]
	if !ok {
		return nil, ErrNotFound
	}
	return k, nil
}

func (m *memoryKeyStore) GetCurrentKey(_ context.Context, workspaceID string) (*tkd.TemporalKey, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keyID, ok := m.current[workspaceID]
	if !ok {
		return nil, ErrNotFound
	}
	k, ok := m.keys[workspaceID][keyID]
	if !ok {
		return nil, ErrNotFound
	}
	return k, nil
}

func (m *memoryKeyStore) DeleteWorkspaceKeys(_ context.Context, workspaceID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, k := range m.keys[workspaceID] {
		scrub(k.Material[:])
	}
	delete(m.keys, workspaceID)
	delete(m.current, workspaceID)
	return nil
}

func (m *memoryKeyStore) ListKeys(_ context.Context, workspaceID string) ([]*tkd.TemporalKey, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ws, ok := m.keys[workspaceID]
	if !ok {
		return nil, nil
	}
	out := make([]*tkd.TemporalKey, 0, len(ws))
	for _, k := range ws {
		out = append(out, k)
	}
	return out, nil
}

func (m *memoryKeyStore) DeleteKey(_ context.Context, workspaceID, keyID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	ws, ok := m.keys[workspaceID]
	if !ok {
		return nil
	}
	if k, ok := ws[keyID]; ok {
		scrub(k.Material[:])
		delete(ws, keyID)
	}
	if m.current[workspaceID] == keyID {
		delete(m.current, workspaceID)
	}
	return nil
}

func (m *memoryKeyStore) StoreParticipantKey(_ context.Context, participantID string, private, public []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	priv := append([]byte(nil), private...)
	pub := append([]byte(nil), public...)
	m.participantKeys[participantID] = priv
	m.participantPubs[participantID] = pub
	return nil
}

func (m *memoryKeyStore) GetParticipantPrivate(_ context.Context, participantID string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	priv, ok := m.participantKeys[participantID]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), priv...), nil
}

func (m *memoryKeyStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ws := range m.keys {
		for _, k := range ws {
			scrub(k.Material[:])
		}
	}
	for _, priv := range m.participantKeys {
		scrub(priv)
	}
	return nil
}

// scrub overwrites b with random bytes, then with zeros. Adapters call it on
// every deletion path so key material does not linger in process memory.
func scrub(b []byte) {
	_, _ = rand.Read(b)
	for i := range b {
		b[i] = 0
	}
}
