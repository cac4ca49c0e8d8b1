// Package tkd derives the short-lived symmetric keys that encrypt a
// workspace's operations. Keys are never transmitted: every participant who
// knows the workspace secret, the rotation window, and a key id can
// recompute the same 32 bytes independently. The relay records derived keys
// in its keystore (crypto/keystore) so Temporal Cleanup can commit and
// destroy them.
package tkd

import (
	"crypto/sha256"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"time"

	"golang.org/x/crypto/hkdf"
)

const hkdfInfo = "EECP-Temporal-Key-v1"

var keyIDPattern = regexp.MustCompile(`^key-(\d+)$`)

// TemporalKey is a single rotation slot's derived key material together with
// the window in which it is valid.
type TemporalKey struct {
	ID             string
	Material       [32]byte
	ValidFrom      time.Time
	ValidUntil     time.Time
	GracePeriodEnd time.Time
}

// ParseKeyID extracts the rotation slot number from a "key-<n>" id.
func ParseKeyID(keyID string) (int, error) {
	m := keyIDPattern.FindStringSubmatch(keyID)
	if m == nil {
		return 0, ErrInvalidKeyID
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, ErrInvalidKeyID
	}
	return n, nil
}

// FormatKeyID renders a rotation slot number as the canonical key id.
func FormatKeyID(slot int) string {
	return fmt.Sprintf("key-%d", slot)
}

// DeriveKey derives the 32-byte material for keyID within the rotation
// window starting at windowStart, given the workspace secret. The same
// (secret, windowStart, keyID) triple always yields identical material.
//
// salt = keyID || decimal(windowStart.Unix()); IKM = secret;
// info = "EECP-Temporal-Key-v1". A single HKDF-Expand block (32 bytes,
// counter 0x01) is taken, matching the one-iteration contract: Go's hkdf
// appends the block counter to info internally, so reading exactly 32
// bytes here is the "info || 0x01" expand step.
func DeriveKey(secret []byte, windowStart time.Time, keyID string, validUntil, gracePeriodEnd time.Time) (*TemporalKey, error) {
	if len(secret) == 0 {
		return nil, ErrInvalidSecret
	}
	if _, err := ParseKeyID(keyID); err != nil {
		return nil, err
	}

	salt := []byte(keyID)
	salt = append(salt, []byte(strconv.FormatInt(windowStart.Unix(), 10))...)

	r := hkdf.New(sha256.New, secret, salt, []byte(hkdfInfo))
	var material [32]byte
	if _, err := io.ReadFull(r, material[:]); err != nil {
		return nil, fmt.Errorf("derive key material: %w", err)
	}

	return &TemporalKey{
		ID:             keyID,
		Material:       material,
		ValidFrom:      windowStart,
		ValidUntil:     validUntil,
		GracePeriodEnd: gracePeriodEnd,
	}, nil
}

// CurrentKeyID computes which rotation slot is active at now, given a
// workspace's creation instant and its rotation interval.
func CurrentKeyID(createdAt, now time.Time, rotationInterval time.Duration) string {
	if rotationInterval <= 0 {
		return FormatKeyID(0)
	}
	if now.Before(createdAt) {
		return FormatKeyID(0)
	}
	slot := int64(now.Sub(createdAt) / rotationInterval)
	return FormatKeyID(int(slot))
}

// WindowFor returns the valid_from/valid_until/grace_period_end triple for a
// given key id, anchored at the workspace's creation instant.
func WindowFor(createdAt time.Time, keyID string, rotationInterval, gracePeriod time.Duration) (validFrom, validUntil, graceEnd time.Time, err error) {
	slot, err := ParseKeyID(keyID)
	if err != nil {
		return time.Time{}, time.Time{}, time.Time{}, err
	}
	validFrom = createdAt.Add(time.Duration(slot) * rotationInterval)
	validUntil = validFrom.Add(rotationInterval)
	graceEnd = validUntil.Add(gracePeriod)
	return validFrom, validUntil, graceEnd, nil
}

// IsValid reports whether keyID is usable at now: accepted while
// now < valid_until, and still accepted (clock-skew grace) while
// valid_until <= now < grace_period_end.
func IsValid(createdAt, now time.Time, keyID string, rotationInterval, gracePeriod time.Duration) bool {
	_, _, graceEnd, err := WindowFor(createdAt, keyID, rotationInterval, gracePeriod)
	if err != nil {
		return false
	}
	return now.Before(graceEnd)
}

// InGracePeriod reports whether keyID has rotated out but is still within
// its clock-skew grace window.
func InGracePeriod(createdAt, now time.Time, keyID string, rotationInterval, gracePeriod time.Duration) bool {
	_, validUntil, graceEnd, err := WindowFor(createdAt, keyID, rotationInterval, gracePeriod)
	if err != nil {
		return false
	}
	return !now.Before(validUntil) && now.Before(graceEnd)
}

