// Package workspace implements the data model and lifecycle shared by the
// relay and the temporal key subsystem: the ephemeral collaborative
// context, its rotation schedule, and its participant roster.
package workspace

import "time"

// Status is a workspace's lifecycle state. Transitions are monotone:
// active may move to expired or revoked; both are terminal.
type Status string

const (
	StatusActive  Status = "active"
	StatusExpired Status = "expired"
	StatusRevoked Status = "revoked"
)

// validRotationIntervals are the only rotation intervals a workspace may
// declare, per §3.
var validRotationIntervals = map[time.Duration]bool{
	5 * time.Minute:  true,
	15 * time.Minute: true,
	30 * time.Minute: true,
	60 * time.Minute: true,
}

// TimeWindow is a workspace's overall validity window and rotation
// schedule. End always equals the workspace's expires_at.
type TimeWindow struct {
	Start             time.Time
	End               time.Time
	RotationInterval  time.Duration
	GracePeriod       time.Duration
}

// Role is a participant's permission level within a workspace.
type Role string

const (
	RoleCreator Role = "creator"
	RoleEditor  Role = "editor"
	RoleViewer  Role = "viewer"
)

// Participant is a workspace member's durable identity: a public key and a
// role. Sessions (the relay's live connection state) are transient and
// tracked separately in package relay.
type Participant struct {
	ID        string
	PublicKey []byte
	JoinedAt  time.Time
	Role      Role
}
