// Package revocation keeps a denylist of signed-out token ids until the
// tokens would have expired on their own.
package revocation

import (
	"context"
	"time"
)

type Store interface {
	// Revoke denies jti until the given time. Revoking twice is not an error.
	Revoke(ctx context.Context, jti string, until time.Time) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}
