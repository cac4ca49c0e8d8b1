package relay

import (
	"context"
	"encoding/json"
	"time"

	"github.com/digital-defiance/eecp/codec"
	"github.com/digital-defiance/eecp/relay/participant"
	"github.com/digital-defiance/eecp/transport"
)

// flushBuffer drains and returns a reconnecting participant's offline
// buffer, per §4.7's cancellation/reconnect contract.
func (r *Relay) flushBuffer(entry *workspaceEntry, participantID string) []codec.EncryptedOperation {
	r.mu.RLock()
	buf := entry.buffers[participantID]
	r.mu.RUnlock()
	if buf == nil {
		return nil
	}
	return buf.Drain()
}

// handleSyncRequest answers a sync_request with every logged operation
// whose timestamp is after from_timestamp, plus the workspace's cached
// CRDT state snapshot: current_state is the most recent state_broadcast
// any participant has sent, not a concatenation of the operation log.
func (r *Relay) handleSyncRequest(ctx context.Context, tr transport.Transport, entry *workspaceEntry, sess *participant.Session, env *transport.Envelope) error {
	decoded, err := env.Decode()
	if err != nil {
		return err
	}
	req := decoded.(*transport.SyncRequestPayload)

	r.mu.RLock()
	var ops []codec.EncryptedOperation
	for _, rec := range entry.operationLog {
		if rec.timestamp.After(req.FromTimestamp) {
			var op codec.EncryptedOperation
			if err := json.Unmarshal(rec.envelope, &op); err == nil {
				ops = append(ops, op)
			}
		}
	}
	state := append([]byte(nil), entry.syncState...)
	r.mu.RUnlock()

	respEnv, err := transport.NewEnvelope(transport.TypeSyncResponse, transport.SyncResponsePayload{
		Operations:   ops,
		CurrentState: state,
	}, time.Now())
	if err != nil {
		return err
	}
	return tr.Send(ctx, respEnv)
}

// handleStateBroadcast caches a participant's CRDT state snapshot as the
// workspace's current sync_response answer.
func (r *Relay) handleStateBroadcast(entry *workspaceEntry, env *transport.Envelope) error {
	decoded, err := env.Decode()
	if err != nil {
		return err
	}
	payload := decoded.(*transport.StateBroadcastPayload)

	r.mu.Lock()
	entry.syncState = append([]byte(nil), payload.State...)
	r.mu.Unlock()
	return nil
}
