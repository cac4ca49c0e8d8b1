// Package relay implements the Zero-Knowledge Relay Core (§4.7): the
// server component that routes opaque encrypted operations between
// participants without ever decrypting them, authenticates participants
// via challenge-response, and enforces per-workspace lifecycle and
// per-session rate limits.
package relay

import (
	"context"
	"sync"
	"time"

	"github.com/digital-defiance/eecp/crypto/keystore"
	"github.com/digital-defiance/eecp/crypto/ledger"
	"github.com/digital-defiance/eecp/internal/logger"
	"github.com/digital-defiance/eecp/internal/metrics"
	"github.com/digital-defiance/eecp/relay/buffer"
	"github.com/digital-defiance/eecp/relay/participant"
	"github.com/digital-defiance/eecp/workspace"
)

// workspaceEntry bundles one workspace with the relay-side state attached
// to it: its authenticated sessions, each participant's offline buffer,
// and the cached sync snapshot.
type workspaceEntry struct {
	ws           *workspace.Workspace
	sessions     map[string]*participant.Session
	buffers      map[string]*buffer.Buffer
	syncState    []byte
	operationLog []operationRecord
}

// operationRecord is one entry in a workspace's bounded operation log,
// used to answer sync_request's `operations with timestamp > from_timestamp`.
type operationRecord struct {
	timestamp time.Time
	envelope  []byte // json-encoded codec.EncryptedOperation
}

// maxOperationLog bounds the in-memory operation log per workspace (§4.8
// references a bounded log without fixing a number; 10000 entries, ten
// times the offline buffer's cap, keeps a single workspace from growing
// unbounded memory use between cleanup sweeps).
const maxOperationLog = 10000

// Relay is the process-wide zero-knowledge relay core: an in-memory
// registry of workspaces plus everything needed to route, buffer, and
// authenticate their traffic.
type Relay struct {
	mu         sync.RWMutex
	workspaces map[string]*workspaceEntry

	challenges *participant.ChallengeStore
	keyStore   keystore.KeyStore
	ledger     ledger.Ledger
	logger     logger.Logger

	defaultOpsPerSecond float64
}

// New creates an empty Relay. keyStore and commitmentLedger may be nil to
// use in-memory-only defaults (keystore.NewMemoryKeyStore,
// ledger.NewMemoryLedger).
func New(keyStore keystore.KeyStore, commitmentLedger ledger.Ledger, defaultOpsPerSecond float64) *Relay {
	if keyStore == nil {
		keyStore = keystore.NewMemoryKeyStore()
	}
	if commitmentLedger == nil {
		commitmentLedger = ledger.NewMemoryLedger()
	}
	return &Relay{
		workspaces:          make(map[string]*workspaceEntry),
		challenges:          participant.NewChallengeStore(),
		keyStore:            keyStore,
		ledger:              commitmentLedger,
		logger:              logger.GetDefaultLogger(),
		defaultOpsPerSecond: defaultOpsPerSecond,
	}
}

// CreateWorkspace builds a workspace via b and registers it with the relay.
func (r *Relay) CreateWorkspace(ctx context.Context, b *workspace.Builder) (*workspace.Workspace, error) {
	ws, err := b.Build()
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.workspaces[ws.ID] = &workspaceEntry{
		ws:       ws,
		sessions: make(map[string]*participant.Session),
		buffers:  make(map[string]*buffer.Buffer),
	}
	r.mu.Unlock()

	metrics.WorkspacesActive.Inc()
	metrics.WorkspaceTransitions.WithLabelValues(string(workspace.StatusActive)).Inc()

	if key, err := ws.DeriveKey(ws.CurrentKeyID(time.Now())); err == nil {
		_ = r.keyStore.StoreKey(ctx, ws.ID, key)
	}
	return ws, nil
}

// Workspace looks up a registered workspace by id.
func (r *Relay) Workspace(workspaceID string) (*workspace.Workspace, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.workspaces[workspaceID]
	if !ok {
		return nil, ErrWorkspaceNotFound
	}
	return entry.ws, nil
}

// ExtendWorkspace extends a workspace's expiry by additional.
func (r *Relay) ExtendWorkspace(workspaceID string, additional time.Duration) error {
	ws, err := r.Workspace(workspaceID)
	if err != nil {
		return err
	}
	return ws.Extend(additional)
}

// RevokeWorkspace immediately terminates a workspace: its sessions are
// marked failed, so the relay rejects their further operations, and the
// workspace's operation log and offline buffers are cleared. The sessions'
// transports are not closed here; each stays open until its connection
// loop ends. Per §4.7, the workspace
// entry itself stays addressable (for audit) until Temporal Cleanup
// eventually removes it.
func (r *Relay) RevokeWorkspace(workspaceID string, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.workspaces[workspaceID]
	if !ok {
		return ErrWorkspaceNotFound
	}
	wasActive := entry.ws.IsActive()
	entry.ws.Revoke(now)
	for _, sess := range entry.sessions {
		sess.Fail()
	}
	entry.operationLog = nil
	entry.buffers = make(map[string]*buffer.Buffer)
	if wasActive {
		metrics.WorkspacesActive.Dec()
	}
	metrics.WorkspaceTransitions.WithLabelValues(string(workspace.StatusRevoked)).Inc()
	return nil
}

// expireWorkspace transitions a workspace to expired if due, called by the
// Temporal Cleanup sweep. It reports whether a transition occurred.
func (r *Relay) expireWorkspace(workspaceID string, now time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.workspaces[workspaceID]
	if !ok {
		return false
	}
	if !entry.ws.CheckExpiry(now) {
		return false
	}
	for _, sess := range entry.sessions {
		sess.Fail()
	}
	entry.operationLog = nil
	metrics.WorkspacesActive.Dec()
	metrics.WorkspaceTransitions.WithLabelValues(string(workspace.StatusExpired)).Inc()
	return true
}

// entryFor is an internal accessor used by the routing and cleanup paths.
func (r *Relay) entryFor(workspaceID string) (*workspaceEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.workspaces[workspaceID]
	return e, ok
}

// allEntries returns every registered workspace entry, for use by the
// cleanup sweep.
func (r *Relay) allEntries() map[string]*workspaceEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]*workspaceEntry, len(r.workspaces))
	for k, v := range r.workspaces {
		out[k] = v
	}
	return out
}

// removeWorkspace deletes a workspace entry entirely (called once Temporal
// Cleanup has finished destroying its keys).
func (r *Relay) removeWorkspace(workspaceID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.workspaces, workspaceID)
}

// Challenges exposes the relay's shared challenge store, e.g. for a
// cleanup sweep to purge expired entries.
func (r *Relay) Challenges() *participant.ChallengeStore { return r.challenges }

// KeyStore exposes the relay's temporal-key persistence adapter.
func (r *Relay) KeyStore() keystore.KeyStore { return r.keyStore }

// Ledger exposes the relay's commitment ledger.
func (r *Relay) Ledger() ledger.Ledger { return r.ledger }
