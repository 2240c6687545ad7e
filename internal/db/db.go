package db

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const connectAttempts = 5

// NewPool connects to postgres, retrying with backoff while the database
// comes up, and returns a pool that answered a ping.
func NewPool(ctx context.Context, dbURL string, log *slog.Logger) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dbURL)

	if err != nil {
		return nil, err
	}

	cfg.MaxConns = 5

	var lastErr error

	for attempt := 0; attempt < connectAttempts; attempt++ {
		pool, err := connect(ctx, cfg)
		if err == nil {
			return pool, nil
		}

		lastErr = err
		wait := ExponentialBackoff(attempt)
		log.Warn("db connect failed, retrying", "attempt", attempt+1, "wait_ms", wait.Milliseconds(), "err", err)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
	}

	return nil, fmt.Errorf("db connect after %d attempts: %w", connectAttempts, lastErr)
}

func connect(ctx context.Context, cfg *pgxpool.Config) (*pgxpool.Pool, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)

	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)

	if err != nil {
		return nil, err
	}

	err = pool.Ping(ctx)

	if err != nil {
		pool.Close()
		return nil, err
	}

	return pool, nil
}
