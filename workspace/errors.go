package workspace

import "errors"

var (
	// ErrInvalidRotationInterval is returned when the rotation interval is
	// not one of 5, 15, 30, or 60 minutes.
	ErrInvalidRotationInterval = errors.New("workspace: rotation interval must be 5, 15, 30, or 60 minutes")
	// ErrInvalidMaxParticipants is returned when max participants is not positive.
	ErrInvalidMaxParticipants = errors.New("workspace: max participants must be positive")
	// ErrInvalidExpiry is returned when expires_at is not after now.
	ErrInvalidExpiry = errors.New("workspace: expires_at must be after now")
	// ErrNotActive is returned when an operation requires an active
	// workspace but it is expired or revoked.
	ErrNotActive = errors.New("workspace: not active")
	// ErrExtensionNotAllowed is returned when Extend is called on a
	// workspace created with extension_allowed = false.
	ErrExtensionNotAllowed = errors.New("workspace: extension not allowed")
	// ErrParticipantCapExceeded is returned when AddParticipant would
	// exceed MaxParticipants.
	ErrParticipantCapExceeded = errors.New("workspace: participant cap exceeded")
	// ErrParticipantNotFound is returned when a participant id is unknown.
	ErrParticipantNotFound = errors.New("workspace: participant not found")
)
