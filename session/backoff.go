package session

import "time"

// MaxReconnectAttempts bounds consecutive reconnect attempts before the
// client abandons reconnecting and logs it, per §4.5.
const MaxReconnectAttempts = 5

// maxReconnectDelay caps the exponential backoff delay.
const maxReconnectDelay = 30 * time.Second

// ReconnectDelay computes the backoff delay before attempt, counting from
// 0 on the first retry and reset to 0 on any successful connect:
// min(2^attempt * 1000ms, 30s).
func ReconnectDelay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt >= 5 {
		return maxReconnectDelay
	}
	d := time.Duration(1000<<uint(attempt)) * time.Millisecond
	if d > maxReconnectDelay {
		return maxReconnectDelay
	}
	return d
}
