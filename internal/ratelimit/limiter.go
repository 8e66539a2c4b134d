// Package ratelimit implements sliding-window admission control per
// (client identity, endpoint) with minute, hour and day tiers.
package ratelimit

import (
	"sync"
	"time"
)

// Decision is the outcome of a single admission check. When Allowed is
// false, RetryAfterSeconds carries the window length of the tier that
// denied the request.
type Decision struct {
	Allowed           bool
	Reason            string
	RetryAfterSeconds int
}

type tier struct {
	name   string
	window time.Duration
	limit  int
}

// Limiter keeps one ordered timestamp list per (clientKey, endpoint) and
// filters that same list independently for every tier. A single purge to
// the largest window serves all tiers, since the day window is a superset
// of the hour and minute windows. The tiers are not disjoint resource
// pools; a client can be denied by the day tier while far under the
// minute tier.
//
// State is volatile. Counts reset on restart and refill as traffic
// arrives.
type Limiter struct {
	mu      sync.Mutex
	records map[string][]time.Time
	tiers   []tier
	enabled bool
	now     func() time.Time
}

// New builds a Limiter with the given per-tier limits. A limit of zero or
// below disables that tier.
func New(perMinute, perHour, perDay int) *Limiter {
	return &Limiter{
		records: make(map[string][]time.Time),
		tiers: []tier{
			{name: "minute", window: time.Minute, limit: perMinute},
			{name: "hour", window: time.Hour, limit: perHour},
			{name: "day", window: 24 * time.Hour, limit: perDay},
		},
		enabled: true,
		now:     time.Now,
	}
}

// SetEnabled toggles admission control. A disabled limiter allows
// everything and records nothing.
func (l *Limiter) SetEnabled(enabled bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.enabled = enabled
}

// SetClock overrides the limiter's time source. Used by tests.
func (l *Limiter) SetClock(now func() time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.now = now
}

// CheckAndRecord admits or denies one request. An admitted request's
// timestamp is recorded; a denied request leaves the list untouched.
func (l *Limiter) CheckAndRecord(clientKey, endpoint string) Decision {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.enabled {
		return Decision{Allowed: true}
	}

	now := l.now()
	key := clientKey + "_" + endpoint

	// One purge to the largest window bounds memory for all tiers.
	largest := l.tiers[len(l.tiers)-1].window
	kept := l.records[key][:0]
	for _, ts := range l.records[key] {
		if now.Sub(ts) < largest {
			kept = append(kept, ts)
		}
	}

	for _, t := range l.tiers {
		if t.limit <= 0 {
			continue
		}
		count := 0
		for _, ts := range kept {
			if now.Sub(ts) < t.window {
				count++
			}
		}
		if count >= t.limit {
			l.records[key] = kept
			return Decision{
				Allowed:           false,
				Reason:            "too many requests per " + t.name,
				RetryAfterSeconds: int(t.window / time.Second),
			}
		}
	}

	l.records[key] = append(kept, now)
	return Decision{Allowed: true}
}
