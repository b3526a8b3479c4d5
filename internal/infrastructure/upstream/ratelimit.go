package upstream

import (
	"context"
	gosync "sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopsync/backend/internal/domain/sync"
)

// bucket tracks one tenant's token bucket state.
type bucket struct {
	tokens float64
	last   time.Time
}

// RateLimiter enforces per-tenant request budgets against the upstream API.
// Each tenant gets an independent token bucket sized from its sync config,
// so one tenant's burst never starves another.
type RateLimiter struct {
	mu      gosync.Mutex
	buckets map[uuid.UUID]*bucket
	now     func() time.Time
	sleep   func(ctx context.Context, d time.Duration) error
}

// NewRateLimiter creates an empty rate limiter.
func NewRateLimiter() *RateLimiter {
	return &RateLimiter{
		buckets: make(map[uuid.UUID]*bucket),
		now:     time.Now,
		sleep:   sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Wait blocks until the tenant may issue one request. If the wait would
// exceed the tenant's configured bound it returns ErrUpstreamRateLimited
// without sleeping.
func (l *RateLimiter) Wait(ctx context.Context, tenantID uuid.UUID, limit sync.RateLimit) error {
	delay, err := l.reserve(tenantID, limit)
	if err != nil {
		return err
	}
	if delay <= 0 {
		return nil
	}
	return l.sleep(ctx, delay)
}

// reserve takes one token, returning how long the caller must sleep before
// using it. The token is committed immediately so concurrent callers queue
// behind each other instead of racing for the same refill.
func (l *RateLimiter) reserve(tenantID uuid.UUID, limit sync.RateLimit) (time.Duration, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	b, ok := l.buckets[tenantID]
	if !ok {
		b = &bucket{tokens: float64(limit.Burst), last: now}
		l.buckets[tenantID] = b
	}

	elapsed := now.Sub(b.last).Seconds()
	b.tokens += elapsed * limit.RefillPerSecond
	if max := float64(limit.Burst); b.tokens > max {
		b.tokens = max
	}
	b.last = now

	if b.tokens >= 1 {
		b.tokens--
		return 0, nil
	}

	if limit.RefillPerSecond <= 0 {
		return 0, sync.ErrUpstreamRateLimited
	}
	wait := time.Duration((1 - b.tokens) / limit.RefillPerSecond * float64(time.Second))
	if limit.MaxWait > 0 && wait > limit.MaxWait {
		return 0, sync.ErrUpstreamRateLimited
	}
	b.tokens--
	return wait, nil
}
