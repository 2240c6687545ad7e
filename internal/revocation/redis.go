package revocation

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "authgate:revoked:"

// Observer times store calls; observability.Prom satisfies it.
type Observer interface {
	ObserveDB(op string, fn func() error) error
}

type noopObserver struct{}

func (noopObserver) ObserveDB(_ string, fn func() error) error { return fn() }

// RedisStore keeps one key per revoked jti, expiring with the token.
type RedisStore struct {
	rdb        *redis.Client
	defaultTTL time.Duration
	obs        Observer
	now        func() time.Time
}

func NewRedisStore(rdb *redis.Client, defaultTTL time.Duration, obs Observer) *RedisStore {
	if obs == nil {
		obs = noopObserver{}
	}

	return &RedisStore{rdb: rdb, defaultTTL: defaultTTL, obs: obs, now: time.Now}
}

func (s *RedisStore) Revoke(ctx context.Context, jti string, until time.Time) error {
	ttl := s.defaultTTL
	if !until.IsZero() {
		ttl = until.Sub(s.now())
	}

	// already expired, nothing to deny
	if ttl <= 0 {
		return nil
	}

	err := s.obs.ObserveDB("revocation.revoke", func() error {
		return s.rdb.Set(ctx, keyPrefix+jti, "1", ttl).Err()
	})
	if err != nil {
		return fmt.Errorf("revoke %s: %w", jti, err)
	}

	return nil
}

func (s *RedisStore) IsRevoked(ctx context.Context, jti string) (bool, error) {
	var n int64
	err := s.obs.ObserveDB("revocation.is_revoked", func() error {
		var err error
		n, err = s.rdb.Exists(ctx, keyPrefix+jti).Result()
		return err
	})
	if err != nil {
		return false, fmt.Errorf("check revocation %s: %w", jti, err)
	}

	return n > 0, nil
}
