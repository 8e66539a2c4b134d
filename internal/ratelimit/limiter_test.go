package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func newTestLimiter(perMinute, perHour, perDay int) (*Limiter, *time.Time) {
	l := New(perMinute, perHour, perDay)
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	l.SetClock(func() time.Time { return now })
	return l, &now
}

func TestMinuteTierDeniesAboveLimit(t *testing.T) {
	l, _ := newTestLimiter(3, 100, 500)

	for i := 0; i < 3; i++ {
		d := l.CheckAndRecord("session_abc", "chat")
		assert.True(t, d.Allowed, "request %d should be allowed", i+1)
	}

	d := l.CheckAndRecord("session_abc", "chat")
	assert.False(t, d.Allowed)
	assert.Equal(t, "too many requests per minute", d.Reason)
	assert.Equal(t, 60, d.RetryAfterSeconds)
}

func TestAllowedAgainAfterWindowPasses(t *testing.T) {
	l, now := newTestLimiter(3, 100, 500)

	for i := 0; i < 3; i++ {
		l.CheckAndRecord("session_abc", "chat")
	}
	assert.False(t, l.CheckAndRecord("session_abc", "chat").Allowed)

	*now = now.Add(61 * time.Second)
	assert.True(t, l.CheckAndRecord("session_abc", "chat").Allowed)
}

func TestDeniedRequestDoesNotRecord(t *testing.T) {
	l, now := newTestLimiter(2, 100, 500)

	l.CheckAndRecord("ip_1.2.3.4", "chat")
	l.CheckAndRecord("ip_1.2.3.4", "chat")

	// Hammering while denied must not extend the lockout.
	for i := 0; i < 10; i++ {
		assert.False(t, l.CheckAndRecord("ip_1.2.3.4", "chat").Allowed)
	}

	*now = now.Add(61 * time.Second)
	assert.True(t, l.CheckAndRecord("ip_1.2.3.4", "chat").Allowed)
}

func TestHourTierDeniesIndependently(t *testing.T) {
	l, now := newTestLimiter(10, 20, 500)

	// Spread 20 requests over 40 minutes, never tripping the minute tier.
	for i := 0; i < 20; i++ {
		d := l.CheckAndRecord("session_abc", "chat")
		assert.True(t, d.Allowed, "request %d should be allowed", i+1)
		*now = now.Add(2 * time.Minute)
	}

	d := l.CheckAndRecord("session_abc", "chat")
	assert.False(t, d.Allowed)
	assert.Equal(t, "too many requests per hour", d.Reason)
	assert.Equal(t, 3600, d.RetryAfterSeconds)
}

func TestEndpointsAreIsolated(t *testing.T) {
	l, _ := newTestLimiter(1, 100, 500)

	assert.True(t, l.CheckAndRecord("session_abc", "chat").Allowed)
	assert.False(t, l.CheckAndRecord("session_abc", "chat").Allowed)

	// A different endpoint keeps its own list.
	assert.True(t, l.CheckAndRecord("session_abc", "feedback").Allowed)
}

func TestClientsAreIsolated(t *testing.T) {
	l, _ := newTestLimiter(1, 100, 500)

	assert.True(t, l.CheckAndRecord("session_abc", "chat").Allowed)
	assert.True(t, l.CheckAndRecord("session_def", "chat").Allowed)
	assert.True(t, l.CheckAndRecord("ip_1.2.3.4", "chat").Allowed)
}

func TestDisabledLimiterAllowsEverything(t *testing.T) {
	l, _ := newTestLimiter(1, 1, 1)
	l.SetEnabled(false)

	for i := 0; i < 50; i++ {
		assert.True(t, l.CheckAndRecord("session_abc", "chat").Allowed)
	}
}

func TestZeroLimitDisablesTier(t *testing.T) {
	l, _ := newTestLimiter(0, 2, 500)

	assert.True(t, l.CheckAndRecord("session_abc", "chat").Allowed)
	assert.True(t, l.CheckAndRecord("session_abc", "chat").Allowed)

	d := l.CheckAndRecord("session_abc", "chat")
	assert.False(t, d.Allowed)
	assert.Equal(t, "too many requests per hour", d.Reason)
}
