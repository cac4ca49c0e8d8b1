package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/digital-defiance/eecp/codec"
	"github.com/digital-defiance/eecp/internal/metrics"
	"github.com/digital-defiance/eecp/relay/buffer"
	"github.com/digital-defiance/eecp/relay/participant"
	"github.com/digital-defiance/eecp/transport"
)

func newBuffer() *buffer.Buffer { return buffer.New() }

// dispatch routes one inbound envelope from an authenticated session.
func (r *Relay) dispatch(ctx context.Context, tr transport.Transport, entry *workspaceEntry, sess *participant.Session, env *transport.Envelope) error {
	switch env.Type {
	case transport.TypeOperation:
		return r.handleOperation(ctx, tr, entry, sess, env)
	case transport.TypeSyncRequest:
		return r.handleSyncRequest(ctx, tr, entry, sess, env)
	case transport.TypeStateBroadcast:
		return r.handleStateBroadcast(entry, env)
	case transport.TypePing:
		pong, err := transport.NewEnvelope(transport.TypePong, transport.PingPongPayload{Timestamp: time.Now()}, time.Now())
		if err != nil {
			return err
		}
		return tr.Send(ctx, pong)
	default:
		metrics.MessagesProcessed.WithLabelValues(string(env.Type), "dropped").Inc()
		return fmt.Errorf("relay: unexpected message type %q from authenticated session", env.Type)
	}
}

// handleOperation implements §4.7's operation routing order: session must
// be authenticated, workspace must be active, the session's rate limit
// must allow it, the envelope's identity fields must match the session,
// then it is logged and fanned out.
func (r *Relay) handleOperation(ctx context.Context, tr transport.Transport, entry *workspaceEntry, sess *participant.Session, env *transport.Envelope) error {
	if !sess.IsAuthenticated() {
		metrics.MessagesProcessed.WithLabelValues("operation", "dropped").Inc()
		return participant.ErrNotAuthenticated
	}
	if !entry.ws.IsActive() {
		metrics.MessagesProcessed.WithLabelValues("operation", "dropped").Inc()
		return ErrWorkspaceNotActive
	}
	if !sess.Limiter.Allow() {
		metrics.RateLimitRejections.WithLabelValues(entry.ws.ID).Inc()
		errEnv, _ := transport.NewEnvelope(transport.TypeError, transport.ErrorPayload{
			Code: transport.ErrCodeRateLimitExceeded, Message: "operations per second exceeded",
		}, time.Now())
		if errEnv != nil {
			_ = tr.Send(ctx, errEnv)
		}
		return ErrRateLimitExceeded
	}

	decoded, err := env.Decode()
	if err != nil {
		metrics.MessagesProcessed.WithLabelValues("operation", "dropped").Inc()
		return err
	}
	payload := decoded.(*transport.OperationPayload)
	op := payload.Operation

	if op.WorkspaceID != entry.ws.ID || op.ParticipantID != sess.ParticipantID {
		metrics.MessagesProcessed.WithLabelValues("operation", "dropped").Inc()
		return ErrEnvelopeWorkspaceMismatch
	}

	r.appendOperationLog(entry, op)
	r.fanOut(ctx, entry, sess.ParticipantID, op)
	metrics.MessagesProcessed.WithLabelValues("operation", "delivered").Inc()

	ackEnv, err := transport.NewEnvelope(transport.TypeOperationAck, transport.OperationAckPayload{
		OperationID:     op.OperationID,
		ServerTimestamp: time.Now(),
	}, time.Now())
	if err != nil {
		return err
	}
	return tr.Send(ctx, ackEnv)
}

// appendOperationLog records op in the workspace's bounded log, evicting
// the oldest entry once maxOperationLog is reached.
func (r *Relay) appendOperationLog(entry *workspaceEntry, op codec.EncryptedOperation) {
	raw, err := json.Marshal(op)
	if err != nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(entry.operationLog) >= maxOperationLog {
		entry.operationLog = entry.operationLog[1:]
	}
	entry.operationLog = append(entry.operationLog, operationRecord{timestamp: op.Timestamp, envelope: raw})
}

// fanOut broadcasts op to every other session in the workspace
// concurrently, per §4.7 step 6; disconnected participants get it
// appended to their offline buffer instead. The sender is excluded from
// the target set by senderID.
func (r *Relay) fanOut(ctx context.Context, entry *workspaceEntry, senderID string, op codec.EncryptedOperation) {
	r.mu.RLock()
	targets := make(map[string]*participant.Session, len(entry.sessions))
	for id, s := range entry.sessions {
		if id != senderID {
			targets[id] = s
		}
	}
	bufferedIDs := make([]string, 0)
	for id := range entry.buffers {
		if id == senderID {
			continue
		}
		if _, connected := entry.sessions[id]; !connected {
			bufferedIDs = append(bufferedIDs, id)
		}
	}
	r.mu.RUnlock()

	now := time.Now()
	for _, id := range bufferedIDs {
		r.mu.RLock()
		buf := entry.buffers[id]
		r.mu.RUnlock()
		if buf != nil {
			buf.Push(op, now)
		}
	}

	if len(targets) == 0 {
		return
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(16)
	for _, sess := range targets {
		sess := sess
		g.Go(func() error {
			return r.deliverTo(gctx, sess, op)
		})
	}
	_ = g.Wait()
}

func (r *Relay) deliverTo(ctx context.Context, sess *participant.Session, op codec.EncryptedOperation) error {
	deliver := sess.GetDeliver()
	if deliver == nil {
		return nil
	}
	return deliver(ctx, op)
}
