package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLimiter_Allow(t *testing.T) {
	l := NewLimiter()
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	key := Key("follow", 1)
	assert.Equal(t, "follow:1", key)

	assert.True(t, l.Allow(key, 2, time.Minute))
	assert.True(t, l.Allow(key, 2, time.Minute))
	assert.False(t, l.Allow(key, 2, time.Minute))

	// other subscribers are unaffected
	assert.True(t, l.Allow(Key("follow", 2), 2, time.Minute))

	now = now.Add(61 * time.Second)
	assert.True(t, l.Allow(key, 2, time.Minute))
}

func TestLimiter_ResetAndDisabled(t *testing.T) {
	l := NewLimiter()

	assert.True(t, l.Allow("k", 1, time.Hour))
	assert.False(t, l.Allow("k", 1, time.Hour))
	l.Reset("k")
	assert.True(t, l.Allow("k", 1, time.Hour))

	for i := 0; i < 10; i++ {
		assert.True(t, l.Allow("unlimited", 0, time.Hour))
	}
}

func TestLimiter_Cleanup(t *testing.T) {
	l := NewLimiter()
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	l.Allow("old", 5, time.Hour)
	now = now.Add(2 * time.Hour)
	l.Allow("new", 5, time.Hour)

	l.cleanup(time.Hour)

	assert.NotContains(t, l.attempts, "old")
	assert.Contains(t, l.attempts, "new")
}
