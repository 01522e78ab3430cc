package auth

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter provides rate limiting functionality
type RateLimiter interface {
	Allow(ctx context.Context, key string) (bool, error)
	Reset(ctx context.Context, key string) error
}

// TokenBucketLimiter keeps one token bucket per key. Buckets refill
// continuously and idle buckets are swept after idleTTL.
type TokenBucketLimiter struct {
	mu       sync.Mutex
	buckets  map[string]*bucket
	limit    rate.Limit
	burst    int
	idleTTL  time.Duration
	now      func() time.Time
	stop     chan struct{}
	stopOnce sync.Once
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewTokenBucketLimiter creates a limiter that allows perMinute requests
// per key per minute with bursts up to perMinute. A non-positive perMinute
// allows everything.
func NewTokenBucketLimiter(perMinute int, idleTTL time.Duration) *TokenBucketLimiter {
	limit := rate.Inf
	if perMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(perMinute))
	}

	l := &TokenBucketLimiter{
		buckets: make(map[string]*bucket),
		limit:   limit,
		burst:   perMinute,
		idleTTL: idleTTL,
		now:     time.Now,
		stop:    make(chan struct{}),
	}

	if idleTTL > 0 {
		go l.cleanup()
	}

	return l
}

// Allow checks if a request is allowed
func (l *TokenBucketLimiter) Allow(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	now := l.now()

	l.mu.Lock()
	b, exists := l.buckets[key]
	if !exists {
		b = &bucket{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.buckets[key] = b
	}
	b.lastSeen = now
	l.mu.Unlock()

	return b.limiter.AllowN(now, 1), nil
}

// Reset resets the rate limit for a key
func (l *TokenBucketLimiter) Reset(ctx context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.buckets, key)
	return nil
}

// Close stops the cleanup goroutine
func (l *TokenBucketLimiter) Close() {
	l.stopOnce.Do(func() { close(l.stop) })
}

// cleanup removes idle buckets periodically
func (l *TokenBucketLimiter) cleanup() {
	ticker := time.NewTicker(l.idleTTL)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.sweep()
		case <-l.stop:
			return
		}
	}
}

func (l *TokenBucketLimiter) sweep() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	for key, b := range l.buckets {
		if now.Sub(b.lastSeen) > l.idleTTL {
			delete(l.buckets, key)
		}
	}
}

// UserRateLimiter wraps a rate limiter for user-based limiting
type UserRateLimiter struct {
	limiter   RateLimiter
	perMinute int
}

// NewUserRateLimiter creates a new user-based rate limiter
func NewUserRateLimiter(requestsPerMinute int) *UserRateLimiter {
	return &UserRateLimiter{
		limiter:   NewTokenBucketLimiter(requestsPerMinute, 10*time.Minute),
		perMinute: requestsPerMinute,
	}
}

// Allow checks if a request from a user is allowed
func (l *UserRateLimiter) Allow(ctx context.Context, userID string) (bool, error) {
	return l.limiter.Allow(ctx, fmt.Sprintf("user:%s", userID))
}

// Reset clears the budget of one user
func (l *UserRateLimiter) Reset(ctx context.Context, userID string) error {
	return l.limiter.Reset(ctx, fmt.Sprintf("user:%s", userID))
}

// Limit returns the configured requests per minute
func (l *UserRateLimiter) Limit() int {
	return l.perMinute
}

// Close releases the underlying limiter
func (l *UserRateLimiter) Close() {
	if c, ok := l.limiter.(interface{ Close() }); ok {
		c.Close()
	}
}
