package revocation

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/geocoder89/authgate/internal/cache"
)

const pruneEvery = 64

type MemoryStore struct {
	entries *cache.TTL[string, struct{}]
	writes  atomic.Int64
}

// NewMemoryStore keeps revocations in process memory. defaultTTL applies
// when Revoke is called without an expiry.
func NewMemoryStore(defaultTTL time.Duration) *MemoryStore {
	return &MemoryStore{entries: cache.NewTTL[string, struct{}](defaultTTL)}
}

func (s *MemoryStore) Revoke(_ context.Context, jti string, until time.Time) error {
	if until.IsZero() {
		s.entries.Put(jti, struct{}{})
	} else {
		s.entries.PutUntil(jti, struct{}{}, until)
	}

	if s.writes.Add(1)%pruneEvery == 0 {
		s.entries.Prune()
	}

	return nil
}

func (s *MemoryStore) IsRevoked(_ context.Context, jti string) (bool, error) {
	_, ok := s.entries.Get(jti)
	return ok, nil
}
