package observability

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/redis/go-redis/v9"
)

// ObserveDB times one logical store call. The postgres user repo and the
// redis revocation store both report through here; op is prefixed with the
// owning store ("users.create", "revocation.is_revoked").
func (p *Prom) ObserveDB(op string, fn func() error) error {
	start := time.Now()
	err := fn()
	elapsed := time.Since(start).Seconds()

	if err == nil {
		p.DbQueryDuration.WithLabelValues(op, "ok").Observe(elapsed)
		return nil
	}

	p.DbErrorsTotal.WithLabelValues(op, classifyDBErr(err)).Inc()
	p.DbQueryDuration.WithLabelValues(op, "error").Observe(elapsed)
	return err
}

var pgClasses = map[string]string{
	"23505": "unique_violation",
	"40001": "serialization_failure",
	"40P01": "deadlock",
	"57014": "query_canceled",
	"53300": "too_many_connections",
}

func classifyDBErr(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if class, known := pgClasses[pgErr.Code]; known {
			return class
		}
		return "pg_" + pgErr.Code
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, redis.ErrClosed):
		return "closed"
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return "timeout"
		}
		return "connection"
	}

	var redisErr redis.Error
	if errors.As(err, &redisErr) {
		return "redis_" + redisPrefix(redisErr.Error())
	}

	return "unknown"
}

// redisPrefix returns the error kind redis puts first in a reply, e.g.
// "READONLY" or "LOADING".
func redisPrefix(msg string) string {
	for i, r := range msg {
		if r == ' ' {
			return msg[:i]
		}
	}
	return msg
}
