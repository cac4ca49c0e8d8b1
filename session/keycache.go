package session

import (
	"sync"
	"time"

	"github.com/digital-defiance/eecp/crypto/ae"
	"github.com/digital-defiance/eecp/crypto/tkd"
)

// keyCache derives and caches a workspace's temporal keys on demand
// (§4.6): a client never receives key material over the wire, it rederives
// it locally from the workspace secret, the rotation window, and a key id
// it already knows (either its own current slot or one named on an
// incoming envelope).
type keyCache struct {
	mu     sync.Mutex
	secret []byte
	window WindowParams
	keys   map[string]*ae.Key
}

func newKeyCache(secret []byte, window WindowParams) *keyCache {
	return &keyCache{secret: secret, window: window, keys: make(map[string]*ae.Key)}
}

// currentKeyID returns the rotation slot active at now.
func (c *keyCache) currentKeyID(now time.Time) string {
	return tkd.CurrentKeyID(c.window.CreatedAt, now, c.window.RotationInterval)
}

// resolve returns the cached key for keyID, deriving it first on a cache
// miss. Recovery fails if the key's grace period has already elapsed —
// §4.6's bounded-retry sync fallback is the caller's responsibility since
// it needs a live transport this cache does not hold.
func (c *keyCache) resolve(keyID string, now time.Time) (*ae.Key, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if k, ok := c.keys[keyID]; ok {
		return k, nil
	}

	_, validUntil, graceEnd, err := tkd.WindowFor(c.window.CreatedAt, keyID, c.window.RotationInterval, c.window.GracePeriod)
	if err != nil {
		return nil, ErrKeyRecoveryFailed
	}
	if !now.Before(graceEnd) {
		return nil, ErrKeyRecoveryFailed
	}

	tk, err := tkd.DeriveKey(c.secret, c.window.CreatedAt, keyID, validUntil, graceEnd)
	if err != nil {
		return nil, ErrKeyRecoveryFailed
	}
	key := ae.NewKey(tk.ID, tk.Material)
	c.keys[keyID] = key
	return key, nil
}

// inGracePeriod reports whether keyID has rotated out but remains within
// its clock-skew grace window.
func (c *keyCache) inGracePeriod(keyID string, now time.Time) bool {
	return tkd.InGracePeriod(c.window.CreatedAt, now, keyID, c.window.RotationInterval, c.window.GracePeriod)
}

// stillValid reports whether keyID is still usable at now, including its
// clock-skew grace window (tkd.IsValid).
func (c *keyCache) stillValid(keyID string, now time.Time) bool {
	return tkd.IsValid(c.window.CreatedAt, now, keyID, c.window.RotationInterval, c.window.GracePeriod)
}
