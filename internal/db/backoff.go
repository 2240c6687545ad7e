package db

import (
	"math"
	"math/rand"
	"time"
)

const (
	backoffBase = 500 * time.Millisecond
	backoffCap  = 10 * time.Second
)

// ExponentialBackoff returns the wait before connect attempt n+1.
// attempt=0 => 500ms, attempt=1 => 1s, attempt=2 => 2s, capped at 10s, plus up to 250ms jitter.
func ExponentialBackoff(attempt int) time.Duration {
	multiple := math.Pow(2, float64(attempt))
	delay := time.Duration(float64(backoffBase) * multiple)

	if delay > backoffCap || delay <= 0 {
		delay = backoffCap
	}

	delay += time.Duration(rand.Intn(250)) * time.Millisecond
	return delay
}
