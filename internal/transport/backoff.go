package transport

import "time"

const (
	// DefaultBaseDelay is the delay before the first reconnect attempt.
	DefaultBaseDelay = time.Second
	// DefaultMaxAttempts is how many consecutive reconnects run before giving up.
	DefaultMaxAttempts = 5

	maxShift = 30
)

// Backoff returns the delay before reconnect attempt n (zero based):
// base * 2^n.
func Backoff(base time.Duration, n int) time.Duration {
	if n < 0 {
		n = 0
	}
	if n > maxShift {
		n = maxShift
	}
	return base << uint(n)
}
