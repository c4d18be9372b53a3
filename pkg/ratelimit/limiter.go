package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Limiter is an in-memory sliding-window limiter keyed by arbitrary strings.
type Limiter struct {
	attempts map[string][]time.Time
	mu       sync.Mutex
	now      func() time.Time
}

func NewLimiter() *Limiter {
	return &Limiter{
		attempts: make(map[string][]time.Time),
		now:      time.Now,
	}
}

// Key builds the limiter key for one action by one subscriber.
func Key(action string, subscriberID int) string {
	return fmt.Sprintf("%s:%d", action, subscriberID)
}

func (l *Limiter) Allow(key string, maxAttempts int, window time.Duration) bool {
	if maxAttempts <= 0 {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	valid := prune(l.attempts[key], now.Add(-window))

	if len(valid) >= maxAttempts {
		l.attempts[key] = valid
		return false
	}

	l.attempts[key] = append(valid, now)
	return true
}

func (l *Limiter) Reset(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.attempts, key)
}

// RunCleanup drops stale keys every interval until ctx is done.
func (l *Limiter) RunCleanup(ctx context.Context, interval, maxAge time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.cleanup(maxAge)
		}
	}
}

func (l *Limiter) cleanup(maxAge time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-maxAge)
	for key, attempts := range l.attempts {
		valid := prune(attempts, cutoff)
		if len(valid) == 0 {
			delete(l.attempts, key)
		} else {
			l.attempts[key] = valid
		}
	}
}

func prune(attempts []time.Time, cutoff time.Time) []time.Time {
	var valid []time.Time
	for _, ts := range attempts {
		if ts.After(cutoff) {
			valid = append(valid, ts)
		}
	}
	return valid
}
