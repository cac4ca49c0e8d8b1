package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestReconnectDelay_ExponentialUntilCap(t *testing.T) {
	require.Equal(t, 1*time.Second, ReconnectDelay(0))
	require.Equal(t, 2*time.Second, ReconnectDelay(1))
	require.Equal(t, 4*time.Second, ReconnectDelay(2))
	require.Equal(t, 8*time.Second, ReconnectDelay(3))
	require.Equal(t, 16*time.Second, ReconnectDelay(4))
	require.Equal(t, 30*time.Second, ReconnectDelay(5))
}

func TestReconnectDelay_NegativeAttemptClampsToZero(t *testing.T) {
	require.Equal(t, ReconnectDelay(0), ReconnectDelay(-3))
}

func TestReconnectDelay_NeverExceedsCapBeyondMaxAttempts(t *testing.T) {
	require.Equal(t, 30*time.Second, ReconnectDelay(MaxReconnectAttempts))
	require.Equal(t, 30*time.Second, ReconnectDelay(MaxReconnectAttempts+20))
}
