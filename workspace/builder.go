package workspace

import (
	"crypto/rand"
	"time"

	"github.com/google/uuid"
)

// Builder constructs a Workspace with a fluent API, defaulting every field
// a relay's CreateWorkspace handler would otherwise have to fill in by
// hand: a random id, a fresh random secret, "now" as CreatedAt, and a
// 15-minute rotation with a 30-second grace period.
type Builder struct {
	id               string
	secret           []byte
	createdAt        time.Time
	window           TimeWindow
	maxParticipants  int
	extensionAllowed bool
}

// NewBuilder seeds a builder with sensible defaults.
func NewBuilder() *Builder {
	now := time.Now().UTC()
	return &Builder{
		id:        uuid.NewString(),
		createdAt: now,
		window: TimeWindow{
			Start:            now,
			End:              now.Add(30 * time.Minute),
			RotationInterval: 15 * time.Minute,
			GracePeriod:      30 * time.Second,
		},
		maxParticipants:  16,
		extensionAllowed: true,
	}
}

// WithID overrides the generated workspace id.
func (b *Builder) WithID(id string) *Builder {
	b.id = id
	return b
}

// WithSecret overrides the workspace secret. If never called, Build
// generates a random 32-byte secret.
func (b *Builder) WithSecret(secret []byte) *Builder {
	b.secret = secret
	return b
}

// WithCreatedAt sets the creation instant and the window start.
func (b *Builder) WithCreatedAt(t time.Time) *Builder {
	b.createdAt = t
	b.window.Start = t
	return b
}

// WithExpiresAfter sets the window end (and expires_at) to CreatedAt plus d.
func (b *Builder) WithExpiresAfter(d time.Duration) *Builder {
	b.window.End = b.createdAt.Add(d)
	return b
}

// WithRotationInterval sets the rotation interval.
func (b *Builder) WithRotationInterval(d time.Duration) *Builder {
	b.window.RotationInterval = d
	return b
}

// WithGracePeriod sets the clock-skew grace period.
func (b *Builder) WithGracePeriod(d time.Duration) *Builder {
	b.window.GracePeriod = d
	return b
}

// WithMaxParticipants sets the participant cap.
func (b *Builder) WithMaxParticipants(n int) *Builder {
	b.maxParticipants = n
	return b
}

// WithExtensionAllowed sets whether Extend is permitted later.
func (b *Builder) WithExtensionAllowed(allowed bool) *Builder {
	b.extensionAllowed = allowed
	return b
}

// Build validates the accumulated fields and constructs the Workspace.
func (b *Builder) Build() (*Workspace, error) {
	secret := b.secret
	if secret == nil {
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return nil, err
		}
	}
	return New(b.id, secret, b.createdAt, b.window, b.maxParticipants, b.extensionAllowed)
}
