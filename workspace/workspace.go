package workspace

import (
	"sync"
	"time"

	"github.com/digital-defiance/eecp/crypto/tkd"
)

// Workspace is an ephemeral, time-bounded collaborative context. Its
// secret never leaves the process: temporal keys are derived from it on
// demand (crypto/tkd); the Workspace itself holds no key material.
type Workspace struct {
	mu sync.RWMutex

	ID               string
	Secret           []byte
	CreatedAt        time.Time
	Window           TimeWindow
	MaxParticipants  int
	ExtensionAllowed bool
	Status           Status

	participants map[string]*Participant
}

// New validates and constructs a Workspace. createdAt must be at or before
// window.Start, and window.End is taken as the workspace's expires_at.
func New(id string, secret []byte, createdAt time.Time, window TimeWindow, maxParticipants int, extensionAllowed bool) (*Workspace, error) {
	if !validRotationIntervals[window.RotationInterval] {
		return nil, ErrInvalidRotationInterval
	}
	if maxParticipants <= 0 {
		return nil, ErrInvalidMaxParticipants
	}
	if !window.End.After(time.Now()) {
		return nil, ErrInvalidExpiry
	}

	return &Workspace{
		ID:               id,
		Secret:           secret,
		CreatedAt:        createdAt,
		Window:           window,
		MaxParticipants:  maxParticipants,
		ExtensionAllowed: extensionAllowed,
		Status:           StatusActive,
		participants:     make(map[string]*Participant),
	}, nil
}

// ExpiresAt returns the workspace's expiration instant (Window.End).
func (w *Workspace) ExpiresAt() time.Time {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.Window.End
}

// Extend pushes expires_at and the window end out by additional, provided
// the workspace is active and was created with ExtensionAllowed.
func (w *Workspace) Extend(additional time.Duration) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.Status != StatusActive {
		return ErrNotActive
	}
	if !w.ExtensionAllowed {
		return ErrExtensionNotAllowed
	}
	w.Window.End = w.Window.End.Add(additional)
	return nil
}

// Revoke immediately terminates the workspace. Revocation is final.
func (w *Workspace) Revoke(now time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.Status != StatusActive {
		return
	}
	w.Window.End = now
	w.Status = StatusRevoked
}

// CheckExpiry transitions an active workspace to expired if now is at or
// past expires_at, and reports whether a transition happened.
func (w *Workspace) CheckExpiry(now time.Time) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.Status != StatusActive {
		return false
	}
	if now.Before(w.Window.End) {
		return false
	}
	w.Status = StatusExpired
	return true
}

// IsActive reports whether the workspace currently accepts operations.
func (w *Workspace) IsActive() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.Status == StatusActive
}

// AddParticipant admits a participant if the workspace is under its
// participant cap. The (N+1)th admission past MaxParticipants fails.
func (w *Workspace) AddParticipant(p *Participant) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, exists := w.participants[p.ID]; exists {
		return nil
	}
	if len(w.participants) >= w.MaxParticipants {
		return ErrParticipantCapExceeded
	}
	w.participants[p.ID] = p
	return nil
}

// RemoveParticipant evicts a participant (e.g. on revocation).
func (w *Workspace) RemoveParticipant(id string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.participants, id)
}

// Participant looks up a participant by id.
func (w *Workspace) Participant(id string) (*Participant, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	p, ok := w.participants[id]
	return p, ok
}

// ParticipantCount returns the number of admitted participants.
func (w *Workspace) ParticipantCount() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.participants)
}

// CurrentKeyID returns the rotation slot active at now.
func (w *Workspace) CurrentKeyID(now time.Time) string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return tkd.CurrentKeyID(w.CreatedAt, now, w.Window.RotationInterval)
}

// DeriveKey derives the temporal key for keyID using this workspace's
// secret and rotation schedule.
func (w *Workspace) DeriveKey(keyID string) (*tkd.TemporalKey, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	_, validUntil, graceEnd, err := tkd.WindowFor(w.CreatedAt, keyID, w.Window.RotationInterval, w.Window.GracePeriod)
	if err != nil {
		return nil, err
	}
	return tkd.DeriveKey(w.Secret, w.CreatedAt, keyID, validUntil, graceEnd)
}

// IsKeyValid reports whether keyID is still usable at now, including grace.
func (w *Workspace) IsKeyValid(keyID string, now time.Time) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return tkd.IsValid(w.CreatedAt, now, keyID, w.Window.RotationInterval, w.Window.GracePeriod)
}
