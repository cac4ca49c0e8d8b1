package participant

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ChallengeTTL is how long an issued challenge remains redeemable, per §4.7.
const ChallengeTTL = 60 * time.Second

// pendingChallenge is a single outstanding challenge: the nonce the relay
// sent and the instant it was issued.
type pendingChallenge struct {
	nonce    [32]byte
	issuedAt time.Time
}

// ChallengeStore tracks outstanding challenges across connections. Expired
// entries are purged explicitly by Temporal Cleanup (§4.8); the store runs
// no background ticker of its own.
type ChallengeStore struct {
	mu      sync.Mutex
	pending map[string]pendingChallenge
}

// NewChallengeStore creates an empty challenge store.
func NewChallengeStore() *ChallengeStore {
	return &ChallengeStore{pending: make(map[string]pendingChallenge)}
}

// Issue generates a fresh 32-byte nonce, records it under a new challenge
// id, and returns both.
func (s *ChallengeStore) Issue(now time.Time) (challengeID string, nonce [32]byte, err error) {
	if _, err = rand.Read(nonce[:]); err != nil {
		return "", nonce, err
	}
	challengeID = uuid.NewString()

	s.mu.Lock()
	s.pending[challengeID] = pendingChallenge{nonce: nonce, issuedAt: now}
	s.mu.Unlock()
	return challengeID, nonce, nil
}

// Consume looks up and removes a challenge. It fails if the challenge id
// is unknown or has exceeded ChallengeTTL as of now.
func (s *ChallengeStore) Consume(challengeID string, now time.Time) ([32]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pc, ok := s.pending[challengeID]
	if !ok {
		return [32]byte{}, ErrChallengeUnknown
	}
	delete(s.pending, challengeID)

	if now.Sub(pc.issuedAt) > ChallengeTTL {
		return [32]byte{}, ErrChallengeExpired
	}
	return pc.nonce, nil
}

// Purge drops every outstanding challenge older than ChallengeTTL,
// returning the number removed. Called by the Temporal Cleanup sweep.
func (s *ChallengeStore) Purge(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, pc := range s.pending {
		if now.Sub(pc.issuedAt) > ChallengeTTL {
			delete(s.pending, id)
			removed++
		}
	}
	return removed
}
