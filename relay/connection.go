package relay

import (
	"context"
	"errors"
	"time"

	"github.com/digital-defiance/eecp/codec"
	"github.com/digital-defiance/eecp/internal/logger"
	"github.com/digital-defiance/eecp/internal/metrics"
	"github.com/digital-defiance/eecp/relay/participant"
	"github.com/digital-defiance/eecp/transport"
	"github.com/digital-defiance/eecp/workspace"
)

// Serve drives one participant connection end to end: challenge, handshake
// verification, registration, and the authenticated message loop. It
// returns once the transport closes or ctx is canceled.
func (r *Relay) Serve(ctx context.Context, tr transport.Transport) error {
	now := time.Now()
	metrics.HandshakesInitiated.WithLabelValues("relay").Inc()

	challengeID, nonce, err := r.challenges.Issue(now)
	if err != nil {
		return err
	}
	challengeEnv, err := transport.NewEnvelope(transport.TypeChallenge, transport.ChallengePayload{
		ChallengeID: challengeID,
		Challenge:   nonce[:],
	}, now)
	if err != nil {
		return err
	}
	if err := tr.Send(ctx, challengeEnv); err != nil {
		return err
	}

	hsCtx, cancel := context.WithTimeout(ctx, participant.HandshakeTimeout)
	defer cancel()
	hsEnv, err := tr.Receive(hsCtx)
	if err != nil {
		metrics.HandshakesFailed.WithLabelValues("timeout").Inc()
		return err
	}

	sess, entry, err := r.authenticate(ctx, tr, hsEnv, challengeID, nonce, now)
	if err != nil {
		return err
	}
	sess.SetDeliver(func(deliverCtx context.Context, op codec.EncryptedOperation) error {
		env, err := transport.NewEnvelope(transport.TypeOperation, transport.OperationPayload{Operation: op}, time.Now())
		if err != nil {
			return err
		}
		return tr.Send(deliverCtx, env)
	})
	defer r.detach(entry, sess)

	metrics.SessionsActive.Inc()
	defer metrics.SessionsActive.Dec()

	for _, op := range r.flushBuffer(entry, sess.ParticipantID) {
		env, err := transport.NewEnvelope(transport.TypeOperation, transport.OperationPayload{Operation: op}, time.Now())
		if err == nil {
			_ = tr.Send(ctx, env)
		}
	}

	for {
		env, err := tr.Receive(ctx)
		if err != nil {
			return err
		}
		if err := r.dispatch(ctx, tr, entry, sess, env); err != nil {
			r.logger.Warn("relay: dispatch failed", logger.Error(err), logger.String("participant_id", sess.ParticipantID))
		}
	}
}

// authenticate runs the handshake validation chain and, on success,
// registers a new session and sends handshake_ack.
func (r *Relay) authenticate(ctx context.Context, tr transport.Transport, hsEnv *transport.Envelope, challengeID string, nonce [32]byte, now time.Time) (*participant.Session, *workspaceEntry, error) {
	fail := func(code transport.ErrorCode, reason string, cause error) error {
		metrics.HandshakesFailed.WithLabelValues(reason).Inc()
		metrics.HandshakesCompleted.WithLabelValues("failure").Inc()
		errEnv, _ := transport.NewEnvelope(transport.TypeError, transport.ErrorPayload{
			Code: code, Message: cause.Error(),
		}, time.Now())
		if errEnv != nil {
			_ = tr.Send(ctx, errEnv)
		}
		return cause
	}

	if hsEnv.Type != transport.TypeHandshake {
		return nil, nil, fail(transport.ErrCodeAuthFailed, "wrong_message_type", errors.New("relay: expected handshake"))
	}
	decoded, err := hsEnv.Decode()
	if err != nil {
		return nil, nil, fail(transport.ErrCodeAuthFailed, "malformed", err)
	}
	hs := decoded.(*transport.HandshakePayload)

	if err := participant.VerifyHandshake(hs, nonce, now); err != nil {
		return nil, nil, fail(transport.ErrCodeAuthFailed, "bad_proof", err)
	}

	entry, ok := r.entryFor(hs.WorkspaceID)
	if !ok {
		return nil, nil, fail(transport.ErrCodeWorkspaceNotFound, "workspace_not_found", ErrWorkspaceNotFound)
	}
	if !entry.ws.IsActive() {
		return nil, nil, fail(transport.ErrCodeWorkspaceExpired, "workspace_expired", ErrWorkspaceNotActive)
	}

	sess := participant.NewSession(r.defaultOpsPerSecond, now)
	sess.Authenticate(hs.ParticipantID, hs.WorkspaceID, hs.PublicKey)

	if err := entry.ws.AddParticipant(&workspace.Participant{
		ID: hs.ParticipantID, PublicKey: hs.PublicKey, JoinedAt: now, Role: workspace.RoleEditor,
	}); err != nil {
		return nil, nil, fail(transport.ErrCodeRateLimitExceeded, "participant_cap", ErrParticipantCapExceeded)
	}

	r.mu.Lock()
	entry.sessions[hs.ParticipantID] = sess
	if _, ok := entry.buffers[hs.ParticipantID]; !ok {
		entry.buffers[hs.ParticipantID] = newBuffer()
	}
	r.mu.Unlock()

	currentKeyID := entry.ws.CurrentKeyID(now)
	key, keyErr := entry.ws.DeriveKey(currentKeyID)
	var sealedMeta []byte
	if keyErr == nil {
		sealedMeta, _ = sealMetadata(entry.ws.Secret, nonce, hs.PublicKey, key)
	}

	ackEnv, err := transport.NewEnvelope(transport.TypeHandshakeAck, transport.HandshakeAckPayload{
		Success:           true,
		CurrentKeyID:      currentKeyID,
		EncryptedMetadata: sealedMeta,
		ServerTime:        now,
	}, now)
	if err != nil {
		return nil, nil, err
	}
	if err := tr.Send(ctx, ackEnv); err != nil {
		return nil, nil, err
	}

	metrics.HandshakesCompleted.WithLabelValues("success").Inc()
	return sess, entry, nil
}

// detach removes a session from its workspace entry on disconnect. The
// offline buffer is preserved per §4.7's cancellation rule.
func (r *Relay) detach(entry *workspaceEntry, sess *participant.Session) {
	if entry == nil || sess == nil {
		return
	}
	sess.SetDeliver(nil)
	sess.Fail()
	r.mu.Lock()
	delete(entry.sessions, sess.ParticipantID)
	r.mu.Unlock()
}
