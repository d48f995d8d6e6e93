// Package timer tracks the remaining time of a test session against the
// fixed session ceiling. Remaining time is always derived from the session's
// immutable start timestamp and the clock, never accumulated, so a countdown
// rebuilt after a process restart reports the same value.
package timer

import (
	"sync"
	"time"
)

const (
	// SessionDuration is the fixed ceiling for a test session.
	SessionDuration = 30 * time.Minute
	// WarningThreshold is the remaining time at which the one-time warning fires.
	WarningThreshold = 5 * time.Minute

	defaultTickInterval = time.Second
)

// Expired reports whether a session anchored at startedAt has used up the
// full ceiling as of now. A session at exactly the ceiling is expired.
func Expired(startedAt, now time.Time) bool {
	return now.Sub(startedAt) >= SessionDuration
}

// RemainingAt computes the remaining time for a session anchored at
// startedAt as of now, clamped at zero.
func RemainingAt(startedAt, now time.Time) time.Duration {
	remaining := SessionDuration - now.Sub(startedAt)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Callbacks receive countdown transitions. OnTick fires on every tick with
// the remaining time. OnWarning fires once per started countdown when the
// remaining time first drops to the warning threshold. OnExpired fires once
// when the remaining time reaches zero, after which ticking stops. Callbacks
// run on the countdown's tick goroutine, outside its internal lock, so they
// may call back into the Countdown.
type Callbacks struct {
	OnTick    func(remaining time.Duration)
	OnWarning func()
	OnExpired func()
}

// Countdown ticks down the remaining time of one session. Any Start variant
// fully supersedes a previous countdown: the old tick source stops and never
// fires again.
type Countdown struct {
	mu        sync.Mutex
	cb        Callbacks
	now       func() time.Time
	interval  time.Duration
	startedAt time.Time
	running   bool
	warned    bool
	expired   bool
	stop      chan struct{}
}

// Option adjusts a Countdown at construction.
type Option func(*Countdown)

// WithClock substitutes the wall clock. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(c *Countdown) { c.now = now }
}

// WithTickInterval overrides the 1 Hz tick. Used by tests to compress time.
func WithTickInterval(d time.Duration) Option {
	return func(c *Countdown) { c.interval = d }
}

// New builds a stopped Countdown with the given callbacks.
func New(cb Callbacks, opts ...Option) *Countdown {
	c := &Countdown{
		cb:       cb,
		now:      time.Now,
		interval: defaultTickInterval,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// StartWithSessionTime anchors the countdown to an authoritative start
// timestamp. It returns false when the session window has already elapsed
// (the countdown does not run, remaining time reports zero, and the caller
// must treat the session as expired); true otherwise, with the countdown
// ticking down from whatever the window has left.
func (c *Countdown) StartWithSessionTime(startedAt time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stopLocked()
	c.startedAt = startedAt
	c.warned = false
	c.expired = false

	if Expired(startedAt, c.now()) {
		c.expired = true
		return false
	}

	c.startLocked()
	return true
}

// Start begins a full fresh countdown anchored to now. Fallback for local
// state that has no authoritative start timestamp.
func (c *Countdown) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stopLocked()
	c.startedAt = c.now()
	c.warned = false
	c.expired = false
	c.startLocked()
}

// Stop halts ticking. The anchored start timestamp and terminal flags keep
// their values.
func (c *Countdown) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
}

// Reset halts ticking and clears the terminal flags and anchor so the
// instance can serve a new session.
func (c *Countdown) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stopLocked()
	c.startedAt = time.Time{}
	c.warned = false
	c.expired = false
}

// Remaining reports the time left in the current session window, the full
// duration when the countdown was never started, and zero once expired.
func (c *Countdown) Remaining() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.startedAt.IsZero() {
		return SessionDuration
	}
	return RemainingAt(c.startedAt, c.now())
}

// Running reports whether the countdown is ticking.
func (c *Countdown) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// Warned reports whether the warning threshold has been crossed.
func (c *Countdown) Warned() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.warned
}

// Expired reports whether the countdown reached zero (or was anchored to an
// already-elapsed start timestamp).
func (c *Countdown) Expired() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.expired
}

// StartedAt returns the current anchor timestamp; zero when never started.
func (c *Countdown) StartedAt() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.startedAt
}

func (c *Countdown) startLocked() {
	stop := make(chan struct{})
	c.stop = stop
	c.running = true
	go c.run(stop)
}

func (c *Countdown) stopLocked() {
	if c.stop != nil {
		close(c.stop)
		c.stop = nil
	}
	c.running = false
}

func (c *Countdown) run(stop chan struct{}) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if c.tick(stop) {
				return
			}
		}
	}
}

// tick evaluates one tick and fires callbacks. Returns true when this tick
// source must stop, either because the countdown expired or because it was
// superseded while waiting for the lock.
func (c *Countdown) tick(stop chan struct{}) bool {
	c.mu.Lock()
	if c.stop != stop {
		c.mu.Unlock()
		return true
	}

	remaining := RemainingAt(c.startedAt, c.now())

	var fireWarning, fireExpired bool
	if !c.warned && remaining <= WarningThreshold {
		c.warned = true
		fireWarning = true
	}
	if !c.expired && remaining == 0 {
		c.expired = true
		fireExpired = true
		c.running = false
		c.stop = nil
	}
	cb := c.cb
	c.mu.Unlock()

	if cb.OnTick != nil {
		cb.OnTick(remaining)
	}
	if fireWarning && cb.OnWarning != nil {
		cb.OnWarning()
	}
	if fireExpired && cb.OnExpired != nil {
		cb.OnExpired()
	}
	return fireExpired
}
