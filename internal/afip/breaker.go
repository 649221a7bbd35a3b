package afip

import (
	"sync"
	"time"
)

// ── Circuit breaker ───────────────────────────────────────────────────────────
// Guards one AFIP endpoint family. When the authority is down, trips open and
// fast-fails instead of hammering the service (excessive calls are penalized).
//
// Closed → Open after consecutive failures; Open → HalfOpen after a cooldown;
// HalfOpen lets probes through and closes again after consecutive successes.

// BreakerState is the current state of a Breaker.
type BreakerState int

const (
	BreakerClosed BreakerState = iota
	BreakerOpen
	BreakerHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half-open"
	}
	return "unknown"
}

// Breaker is safe for concurrent use.
type Breaker struct {
	mu        sync.Mutex
	state     BreakerState
	failures  int
	successes int
	openedAt  time.Time

	failureLimit int
	successLimit int
	cooldown     time.Duration
}

// NewBreaker returns a closed breaker. Zero arguments get defaults
// (5 failures to trip, 2 successes to close, 60s cooldown).
func NewBreaker(failureLimit, successLimit int, cooldown time.Duration) *Breaker {
	if failureLimit <= 0 {
		failureLimit = 5
	}
	if successLimit <= 0 {
		successLimit = 2
	}
	if cooldown <= 0 {
		cooldown = 60 * time.Second
	}
	return &Breaker{failureLimit: failureLimit, successLimit: successLimit, cooldown: cooldown}
}

// State reports the current state, transitioning Open → HalfOpen when the
// cooldown has elapsed.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == BreakerOpen && time.Since(b.openedAt) >= b.cooldown {
		b.state = BreakerHalfOpen
		b.successes = 0
	}
	return b.state
}

// Allow reports whether a request may proceed right now.
func (b *Breaker) Allow() bool { return b.State() != BreakerOpen }

// RecordSuccess feeds a successful call into the state machine.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.state {
	case BreakerClosed:
		b.failures = 0
	case BreakerHalfOpen:
		b.successes++
		if b.successes >= b.successLimit {
			b.state = BreakerClosed
			b.failures, b.successes = 0, 0
		}
	}
}

// RecordFailure feeds a failed call into the state machine.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.state {
	case BreakerClosed:
		b.failures++
		if b.failures >= b.failureLimit {
			b.state = BreakerOpen
			b.openedAt = time.Now()
		}
	case BreakerHalfOpen:
		b.state = BreakerOpen
		b.openedAt = time.Now()
		b.failures = 0
	}
}
