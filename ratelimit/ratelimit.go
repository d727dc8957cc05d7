// ABOUTME: Per-named-resource admission control over sliding minute and day windows.
// ABOUTME: Acquire blocks the caller in 1s sleep slices until both ceilings admit one more call.
package ratelimit

import (
	"sync"
	"time"
)

const (
	minuteWindow = time.Minute
	dayWindow    = 24 * time.Hour
	pollInterval = time.Second
)

// Limiter admits calls to a named paid resource subject to per-minute and
// per-day ceilings. A ceiling of zero (or negative) is unset. Limiter is safe
// for concurrent Acquire calls.
//
// Acquire takes no context: a caller that needs cancellable waiting must race
// the limiter against its cancellation signal at a higher layer.
type Limiter struct {
	name         string
	maxPerMinute int
	maxPerDay    int

	mu     sync.Mutex
	events []time.Time

	// Overridable for tests.
	now   func() time.Time
	sleep func(time.Duration)
}

// New creates a limiter for the named resource. perMinute and perDay of zero
// mean no ceiling on that window.
func New(name string, perMinute, perDay int) *Limiter {
	return &Limiter{
		name:         name,
		maxPerMinute: perMinute,
		maxPerDay:    perDay,
		now:          time.Now,
		sleep:        time.Sleep,
	}
}

// Name returns the resource name this limiter guards.
func (l *Limiter) Name() string {
	return l.name
}

// Acquire blocks until admitting one more call would not violate either
// ceiling, then records the call. Returns immediately when both ceilings are
// unset. Waiting is a cooperative 1s-slice sleep loop with a re-check after
// every wake, because concurrent acquirers may have taken the freed slot.
func (l *Limiter) Acquire() {
	if l.maxPerMinute <= 0 && l.maxPerDay <= 0 {
		return
	}

	for {
		l.mu.Lock()
		now := l.now()
		l.trim(now)
		if l.canProceed(now) {
			l.events = append(l.events, now)
			l.mu.Unlock()
			return
		}
		l.mu.Unlock()
		l.sleep(pollInterval)
	}
}

// trim drops events older than the longest configured window. With a day
// ceiling set, day-old events must be kept for counting; otherwise only the
// trailing minute matters.
func (l *Limiter) trim(now time.Time) {
	cutoff := now.Add(-minuteWindow)
	if l.maxPerDay > 0 {
		cutoff = now.Add(-dayWindow)
	}
	kept := l.events[:0]
	for _, t := range l.events {
		if !t.Before(cutoff) {
			kept = append(kept, t)
		}
	}
	l.events = kept
}

func (l *Limiter) canProceed(now time.Time) bool {
	if l.maxPerMinute > 0 && l.countSince(now.Add(-minuteWindow)) >= l.maxPerMinute {
		return false
	}
	if l.maxPerDay > 0 && l.countSince(now.Add(-dayWindow)) >= l.maxPerDay {
		return false
	}
	return true
}

func (l *Limiter) countSince(cutoff time.Time) int {
	n := 0
	for _, t := range l.events {
		if !t.Before(cutoff) {
			n++
		}
	}
	return n
}
