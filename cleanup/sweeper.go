// Package cleanup implements Temporal Cleanup (§4.8): the background sweep
// that expires workspaces past their lifetime, commits and destroys
// temporal keys past their grace period, and purges stale offline buffers
// and handshake challenges. It runs on its own ticker the same way a
// background session reaper would.
package cleanup

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/digital-defiance/eecp/crypto/ledger"
	"github.com/digital-defiance/eecp/crypto/tkd"
	"github.com/digital-defiance/eecp/internal/logger"
	"github.com/digital-defiance/eecp/internal/metrics"
	"github.com/digital-defiance/eecp/relay"
)

// DefaultSweepInterval is how often Run fires a sweep when the caller does
// not configure one explicitly (config.CleanupConfig.SweepInterval).
const DefaultSweepInterval = 60 * time.Second

// maxConcurrentWorkspaceSweeps bounds how many workspaces are swept at once
// within a single pass, mirroring the fan-out cap used elsewhere in the
// relay.
const maxConcurrentWorkspaceSweeps = 16

// Sweeper runs Temporal Cleanup passes against a Relay on a fixed interval.
type Sweeper struct {
	relay    *relay.Relay
	interval time.Duration
	logger   logger.Logger

	mu      sync.Mutex
	ticker  *time.Ticker
	stop    chan struct{}
	running bool

	destroyedMu sync.Mutex
	destroyed   map[string]map[string]bool
}

// New creates a Sweeper. interval <= 0 uses DefaultSweepInterval.
func New(r *relay.Relay, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &Sweeper{
		relay:     r,
		interval:  interval,
		logger:    logger.GetDefaultLogger(),
		destroyed: make(map[string]map[string]bool),
	}
}

// Start launches the background sweep loop. It returns immediately; call
// Stop to end it.
func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return ErrAlreadyRunning
	}
	s.ticker = time.NewTicker(s.interval)
	s.stop = make(chan struct{})
	s.running = true
	s.mu.Unlock()

	go s.run(ctx)
	return nil
}

func (s *Sweeper) run(ctx context.Context) {
	for {
		select {
		case <-s.ticker.C:
			if err := s.Sweep(ctx, time.Now()); err != nil {
				s.logger.Warn("cleanup: sweep failed", logger.Error(err))
			}
		case <-s.stop:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Stop ends the background loop. A Sweeper that was never Started can be
// Stopped harmlessly.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.ticker.Stop()
	close(s.stop)
	s.running = false
}

// Sweep runs one complete cleanup pass: per-workspace expiry/key
// destruction/buffer purge concurrently, then the shared challenge store
// purge. It is exported so a graceful shutdown can run one final pass
// synchronously instead of waiting for the next tick.
func (s *Sweeper) Sweep(ctx context.Context, now time.Time) error {
	start := time.Now()

	ids := s.relay.WorkspaceIDs()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentWorkspaceSweeps)
	for _, id := range ids {
		id := id
		g.Go(func() error {
			s.sweepWorkspace(gctx, id, now)
			return nil
		})
	}
	err := g.Wait()

	purgedChallenges := s.relay.Challenges().Purge(now)
	metrics.ChallengesExpired.Add(float64(purgedChallenges))

	metrics.CleanupSweeps.Inc()
	metrics.CleanupSweepDuration.Observe(time.Since(start).Seconds())
	return err
}

// sweepWorkspace runs the three per-workspace cleanup actions for one
// workspace id. Failures are logged rather than propagated so one
// workspace's trouble (e.g. a keystore timeout) does not stop the sweep
// from reaching the rest.
func (s *Sweeper) sweepWorkspace(ctx context.Context, workspaceID string, now time.Time) {
	s.relay.ExpireIfDue(workspaceID, now)

	purged := s.relay.PurgeBuffers(workspaceID, now)
	if purged > 0 {
		metrics.BuffersPurged.Add(float64(purged))
	}

	if err := s.destroyExpiredKeys(ctx, workspaceID, now); err != nil {
		s.logger.Warn("cleanup: key destruction failed",
			logger.String("workspace_id", workspaceID), logger.Error(err))
	}
}

// destroyExpiredKeys commits and destroys every temporal key of
// workspaceID whose grace period has elapsed. The commitment must be
// durably appended to the ledger before the key material is scrubbed —
// a key destroyed without a preceding commitment would be unrecoverable
// and unaudited, violating §4.8's ordering invariant. A key is skipped,
// not destroyed, if its commitment cannot be appended.
//
// Before walking the keystore it backfills any rotation slot the
// keystore has never heard of: a slot nobody handshook during while it
// was current is otherwise invisible to this sweep and would reach its
// grace deadline with no commitment at all.
func (s *Sweeper) destroyExpiredKeys(ctx context.Context, workspaceID string, now time.Time) error {
	if err := s.backfillRotationSlots(ctx, workspaceID, now); err != nil {
		s.logger.Warn("cleanup: key backfill failed",
			logger.String("workspace_id", workspaceID), logger.Error(err))
	}

	keys, err := s.relay.KeyStore().ListKeys(ctx, workspaceID)
	if err != nil {
		return err
	}
	for _, key := range keys {
		if !now.After(key.GracePeriodEnd) {
			continue
		}
		hash, err := ledger.Compute(key.Material, key.ID, key.ValidFrom, key.ValidUntil)
		if err != nil {
			s.logger.Warn("cleanup: commitment compute failed",
				logger.String("key_id", key.ID), logger.Error(err))
			continue
		}
		commitment := ledger.Commitment{
			KeyID:      key.ID,
			Hash:       hash,
			CreatedAt:  now,
			ValidFrom:  key.ValidFrom,
			ValidUntil: key.ValidUntil,
		}
		if err := s.relay.Ledger().Append(commitment); err != nil {
			s.logger.Warn("cleanup: commitment append failed",
				logger.String("key_id", key.ID), logger.Error(err))
			continue
		}
		metrics.LedgerCommitments.Inc()

		if err := s.relay.KeyStore().DeleteKey(ctx, workspaceID, key.ID); err != nil {
			s.logger.Warn("cleanup: key delete failed",
				logger.String("key_id", key.ID), logger.Error(err))
			continue
		}
		metrics.KeysDestroyed.Inc()
		s.markDestroyed(workspaceID, key.ID)
	}
	return nil
}

// backfillRotationSlots derives and stores every rotation slot from a
// workspace's creation up to the slot active at now that the keystore
// does not already hold, so rotation alone — not a participant handshake
// — is what puts a key in reach of destroyExpiredKeys. A slot already
// committed and destroyed this process's lifetime is never re-derived,
// since re-storing it would hand destroyExpiredKeys a duplicate
// commitment for key material that was already scrubbed.
func (s *Sweeper) backfillRotationSlots(ctx context.Context, workspaceID string, now time.Time) error {
	ws, err := s.relay.Workspace(workspaceID)
	if err != nil {
		return err
	}
	currentSlot, err := tkd.ParseKeyID(ws.CurrentKeyID(now))
	if err != nil {
		return err
	}
	for slot := 0; slot <= currentSlot; slot++ {
		keyID := tkd.FormatKeyID(slot)
		if s.isDestroyed(workspaceID, keyID) {
			continue
		}
		if _, err := s.relay.KeyStore().GetKeyByID(ctx, workspaceID, keyID); err == nil {
			continue
		}
		key, err := ws.DeriveKey(keyID)
		if err != nil {
			continue
		}
		if err := s.relay.KeyStore().StoreKey(ctx, workspaceID, key); err != nil {
			s.logger.Warn("cleanup: key backfill store failed",
				logger.String("key_id", keyID), logger.Error(err))
		}
	}
	return nil
}

func (s *Sweeper) markDestroyed(workspaceID, keyID string) {
	s.destroyedMu.Lock()
	defer s.destroyedMu.Unlock()
	if s.destroyed[workspaceID] == nil {
		s.destroyed[workspaceID] = make(map[string]bool)
	}
	s.destroyed[workspaceID][keyID] = true
}

func (s *Sweeper) isDestroyed(workspaceID, keyID string) bool {
	s.destroyedMu.Lock()
	defer s.destroyedMu.Unlock()
	return s.destroyed[workspaceID][keyID]
}
