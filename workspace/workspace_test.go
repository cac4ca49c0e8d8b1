package workspace

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBuilder_Defaults(t *testing.T) {
	ws, err := NewBuilder().Build()
	require.NoError(t, err)
	require.Equal(t, StatusActive, ws.Status)
	require.True(t, ws.IsActive())
}

func TestNew_RejectsInvalidRotationInterval(t *testing.T) {
	_, err := NewBuilder().WithRotationInterval(7 * time.Minute).Build()
	require.ErrorIs(t, err, ErrInvalidRotationInterval)
}

func TestNew_RejectsNonPositiveMaxParticipants(t *testing.T) {
	_, err := NewBuilder().WithMaxParticipants(0).Build()
	require.ErrorIs(t, err, ErrInvalidMaxParticipants)
}

func TestCheckExpiry_TransitionsOnce(t *testing.T) {
	now := time.Now()
	ws, err := NewBuilder().WithCreatedAt(now).WithExpiresAfter(time.Minute).Build()
	require.NoError(t, err)

	require.False(t, ws.CheckExpiry(now))
	require.True(t, ws.CheckExpiry(now.Add(2*time.Minute)))
	require.Equal(t, StatusExpired, ws.Status)
	require.False(t, ws.CheckExpiry(now.Add(3*time.Minute)))
}

func TestRevoke_Immediate(t *testing.T) {
	ws, err := NewBuilder().Build()
	require.NoError(t, err)
	now := time.Now()
	ws.Revoke(now)
	require.Equal(t, StatusRevoked, ws.Status)
	require.Equal(t, now, ws.ExpiresAt())
}

func TestExtend_RequiresActiveAndAllowed(t *testing.T) {
	ws, err := NewBuilder().WithExtensionAllowed(false).Build()
	require.NoError(t, err)
	require.ErrorIs(t, ws.Extend(time.Minute), ErrExtensionNotAllowed)

	ws2, err := NewBuilder().Build()
	require.NoError(t, err)
	before := ws2.ExpiresAt()
	require.NoError(t, ws2.Extend(5*time.Minute))
	require.Equal(t, before.Add(5*time.Minute), ws2.ExpiresAt())

	ws2.Revoke(time.Now())
	require.ErrorIs(t, ws2.Extend(time.Minute), ErrNotActive)
}

func TestAddParticipant_EnforcesCap(t *testing.T) {
	ws, err := NewBuilder().WithMaxParticipants(1).Build()
	require.NoError(t, err)

	require.NoError(t, ws.AddParticipant(&Participant{ID: "alice"}))
	require.ErrorIs(t, ws.AddParticipant(&Participant{ID: "bob"}), ErrParticipantCapExceeded)
	require.Equal(t, 1, ws.ParticipantCount())
}

func TestCurrentKeyID_MonotoneStepFunction(t *testing.T) {
	now := time.Now()
	ws, err := NewBuilder().WithCreatedAt(now).WithRotationInterval(15 * time.Minute).WithExpiresAfter(time.Hour).Build()
	require.NoError(t, err)

	require.Equal(t, "key-0", ws.CurrentKeyID(now))
	require.Equal(t, "key-0", ws.CurrentKeyID(now.Add(14*time.Minute)))
	require.Equal(t, "key-1", ws.CurrentKeyID(now.Add(15*time.Minute)))
	require.Equal(t, "key-2", ws.CurrentKeyID(now.Add(31*time.Minute)))
}

func TestDeriveKey_DeterministicPerWorkspace(t *testing.T) {
	ws, err := NewBuilder().Build()
	require.NoError(t, err)

	k1, err := ws.DeriveKey("key-0")
	require.NoError(t, err)
	k2, err := ws.DeriveKey("key-0")
	require.NoError(t, err)
	require.Equal(t, k1.Material, k2.Material)
}
