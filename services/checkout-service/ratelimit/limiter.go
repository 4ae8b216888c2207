// Package ratelimit implements a fixed-window request limiter over a
// pluggable counter store.
package ratelimit

import (
	"context"
	"time"
)

const (
	DefaultMax    = 10
	DefaultWindow = 15 * time.Minute
)

// Store keeps one counter per key. Incr adds one to the counter of the
// current window, opening a fresh window of the given length when the
// previous one has expired, and reports the new count and when the window ends.
type Store interface {
	Incr(ctx context.Context, key string, window time.Duration) (count int64, resetAt time.Time, err error)
}

// Decision is the outcome of one Allow call.
type Decision struct {
	Allowed   bool
	Count     int64
	Remaining int64
	ResetAt   time.Time
}

// RetryAfter is how long a rejected caller should wait.
func (d Decision) RetryAfter(now time.Time) time.Duration {
	if d.ResetAt.Before(now) {
		return 0
	}
	return d.ResetAt.Sub(now)
}

type Limiter struct {
	store  Store
	max    int64
	window time.Duration
}

func New(store Store, max int, window time.Duration) *Limiter {
	if max <= 0 {
		max = DefaultMax
	}
	if window <= 0 {
		window = DefaultWindow
	}
	return &Limiter{store: store, max: int64(max), window: window}
}

// Allow counts one request for key. When the store fails the request is
// allowed and the store error is returned alongside for logging.
func (l *Limiter) Allow(ctx context.Context, key string) (Decision, error) {
	count, resetAt, err := l.store.Incr(ctx, key, l.window)
	if err != nil {
		return Decision{Allowed: true}, err
	}
	remaining := l.max - count
	if remaining < 0 {
		remaining = 0
	}
	return Decision{
		Allowed:   count <= l.max,
		Count:     count,
		Remaining: remaining,
		ResetAt:   resetAt,
	}, nil
}

func (l *Limiter) Max() int64 { return l.max }
