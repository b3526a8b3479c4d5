package sync

import (
	"math/rand"
	"time"
)

// Backoff computes exponential retry delays with jitter. The same policy is
// shared by the upstream API client and the raw store's per-record retry
// scheduling so both sides age failures identically.
type Backoff struct {
	// Base is the delay before the first retry
	Base time.Duration
	// Max caps the computed delay
	Max time.Duration
	// Jitter is the maximum random addition to each delay
	Jitter time.Duration
}

// DefaultBackoff returns the policy used when a tenant does not override it.
func DefaultBackoff() Backoff {
	return Backoff{
		Base:   time.Second,
		Max:    30 * time.Minute,
		Jitter: 500 * time.Millisecond,
	}
}

// Delay returns min(Max, Base * 2^attempt + jitter). Attempt is zero-based:
// attempt 0 is the delay before the first retry.
func (b Backoff) Delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	// Guard the shift against overflow for large attempt counts.
	if attempt > 30 {
		attempt = 30
	}
	d := b.Base * time.Duration(1<<uint(attempt))
	if d > b.Max || d <= 0 {
		d = b.Max
	}
	if b.Jitter > 0 {
		d += time.Duration(rand.Int63n(int64(b.Jitter)))
	}
	if d > b.Max {
		d = b.Max
	}
	return d
}

// NextRetryAt returns the wall-clock time of the next retry for the given
// zero-based attempt number.
func (b Backoff) NextRetryAt(now time.Time, attempt int) time.Time {
	return now.Add(b.Delay(attempt))
}
