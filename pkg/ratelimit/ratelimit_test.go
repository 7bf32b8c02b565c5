package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock lets tests march the limiter's notion of time forward.
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestLimiter(limit int) (*Limiter, *fakeClock) {
	clock := &fakeClock{t: time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)}
	l := NewLimiter(Config{PerMinute: limit})
	l.now = clock.now
	return l, clock
}

func TestAllow_WithinLimit(t *testing.T) {
	l, _ := newTestLimiter(3)

	for i := range 3 {
		assert.NoError(t, l.Allow("alice"), "request %d should be admitted", i+1)
	}
}

func TestAllow_FourthRejected(t *testing.T) {
	l, _ := newTestLimiter(3)

	for range 3 {
		require.NoError(t, l.Allow("alice"))
	}

	err := l.Allow("alice")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRateLimited)

	var limitErr *LimitError
	require.ErrorAs(t, err, &limitErr)
	assert.Equal(t, 3, limitErr.Limit)
	assert.Equal(t, Window, limitErr.Window)
}

func TestAllow_WindowSlides(t *testing.T) {
	l, clock := newTestLimiter(3)

	require.NoError(t, l.Allow("alice"))
	clock.advance(20 * time.Second)
	require.NoError(t, l.Allow("alice"))
	require.NoError(t, l.Allow("alice"))
	require.ErrorIs(t, l.Allow("alice"), ErrRateLimited)

	// 41s later the first request has aged out; the two at t+20s remain.
	clock.advance(41 * time.Second)
	assert.NoError(t, l.Allow("alice"))
	assert.ErrorIs(t, l.Allow("alice"), ErrRateLimited)
}

func TestAllow_KeysIndependent(t *testing.T) {
	l, _ := newTestLimiter(1)

	require.NoError(t, l.Allow("alice"))
	require.ErrorIs(t, l.Allow("alice"), ErrRateLimited)

	assert.NoError(t, l.Allow("bob"), "another key has its own window")
}

func TestAllow_RejectionDoesNotConsume(t *testing.T) {
	l, clock := newTestLimiter(2)

	require.NoError(t, l.Allow("alice"))
	require.NoError(t, l.Allow("alice"))

	// Hammering after rejection must not extend the lockout.
	for range 10 {
		require.ErrorIs(t, l.Allow("alice"), ErrRateLimited)
	}

	clock.advance(Window + time.Second)
	assert.NoError(t, l.Allow("alice"))
}

func TestAllow_UnlimitedWhenZero(t *testing.T) {
	l := NewLimiter(Config{PerMinute: 0})
	for range 100 {
		assert.NoError(t, l.Allow("alice"))
	}
}

func TestReset(t *testing.T) {
	l, _ := newTestLimiter(1)

	require.NoError(t, l.Allow("alice"))
	require.ErrorIs(t, l.Allow("alice"), ErrRateLimited)

	l.Reset("alice")
	assert.NoError(t, l.Allow("alice"))
}
