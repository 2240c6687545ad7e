package middlewares

import (
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/geocoder89/authgate/internal/http/handlers"
	"github.com/gin-gonic/gin"
)

// RateLimiter is a fixed-window counter per client key.
type RateLimiter struct {
	mu        sync.Mutex
	window    time.Duration
	limit     int
	clients   map[string]*clientBucket
	now       func() time.Time
	onLimited func(route string)
	lastSweep time.Time
}

type clientBucket struct {
	count     int
	windowEnd time.Time
}

type RateLimiterOption func(*RateLimiter)

// WithLimitedHook is called with the route template of every rejected request.
func WithLimitedHook(fn func(route string)) RateLimiterOption {
	return func(rl *RateLimiter) { rl.onLimited = fn }
}

func WithRateClock(now func() time.Time) RateLimiterOption {
	return func(rl *RateLimiter) { rl.now = now }
}

func NewRateLimiter(limit int, window time.Duration, opts ...RateLimiterOption) *RateLimiter {
	rl := &RateLimiter{
		limit:   limit,
		window:  window,
		clients: make(map[string]*clientBucket),
		now:     time.Now,
	}

	for _, opt := range opts {
		opt(rl)
	}

	return rl
}

// RateLimiterMiddleware enforces the limit for the key keyFn derives.
func (rl *RateLimiter) RateLimiterMiddleware(keyFn func(*gin.Context) string) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := keyFn(c)

		if key == "" {
			// fallback to IP if key cannot be derived
			key = clientIP(c)
		}

		// buckets are per route so signup traffic doesn't starve signin
		key = c.FullPath() + "|" + key

		allowed, retryAfter := rl.take(key)
		if allowed {
			c.Next()
			return
		}

		if rl.onLimited != nil {
			rl.onLimited(c.FullPath())
		}

		c.Header("Retry-After", strconv.Itoa(retryAfter))
		handlers.RespondTooManyRequests(c, "Too many requests. Please try again shortly.")
	}
}

func (rl *RateLimiter) take(key string) (bool, int) {
	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.sweep(now)

	b, ok := rl.clients[key]

	if !ok || now.After(b.windowEnd) {
		rl.clients[key] = &clientBucket{
			count:     1,
			windowEnd: now.Add(rl.window),
		}
		return true, 0
	}

	if b.count >= rl.limit {
		retryAfter := int(b.windowEnd.Sub(now).Seconds())
		if retryAfter < 1 {
			retryAfter = 1
		}
		return false, retryAfter
	}

	b.count++
	return true, 0
}

// sweep drops expired buckets at most once per window. Caller holds mu.
func (rl *RateLimiter) sweep(now time.Time) {
	if now.Sub(rl.lastSweep) < rl.window {
		return
	}
	rl.lastSweep = now

	for k, b := range rl.clients {
		if now.After(b.windowEnd) {
			delete(rl.clients, k)
		}
	}
}

// for unauthenticated endpoints: rate limit by IP
func KeyByIP(c *gin.Context) string {
	return clientIP(c)
}

// For authenticated endpoints: rate limit by userID if available
func KeyByUserOrIP(c *gin.Context) string {
	id, ok := UserIDFromContext(c)

	if ok && id != "" {
		return "user:" + id
	}

	return clientIP(c)
}

func clientIP(c *gin.Context) string {
	// X-Forwarded-For only counts when the peer is a trusted proxy (see NewRouter).
	ip := c.ClientIP()

	host, _, err := net.SplitHostPort(ip)

	if err == nil && host != "" {
		return host
	}

	return ip
}
