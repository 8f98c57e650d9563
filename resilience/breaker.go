// Package resilience provides the fault-tolerance primitives used by the
// session core: a circuit breaker guarding activity tracking and a retry
// helper for remote calls.
package resilience

import (
	"errors"
	"sync"
	"time"
)

// BreakerState represents the circuit breaker state.
type BreakerState int

const (
	// BreakerClosed allows requests to pass through.
	BreakerClosed BreakerState = iota
	// BreakerOpen blocks all requests.
	BreakerOpen
	// BreakerHalfOpen allows a single probe to test recovery.
	BreakerHalfOpen
)

// String returns the state name.
func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrBreakerOpen is returned when the circuit is open and the call is
// rejected without being attempted.
var ErrBreakerOpen = errors.New("circuit breaker is open")

// BreakerConfig configures a circuit breaker.
type BreakerConfig struct {
	// Name identifies this breaker in logs.
	Name string
	// MaxFailures is the number of consecutive failures before opening.
	MaxFailures int
	// CoolDown is how long to stay open before allowing a probe call.
	// A CoolDown of 0 keeps the breaker open permanently once tripped,
	// which is how the scheduler disables activity tracking for the
	// remainder of a session.
	CoolDown time.Duration
	// OnStateChange is called when the state changes.
	OnStateChange func(name string, from, to BreakerState)
}

// Breaker implements the circuit breaker pattern: after MaxFailures
// consecutive failures the circuit opens and calls fail fast with
// ErrBreakerOpen until the cool-down elapses.
type Breaker struct {
	cfg BreakerConfig

	mu         sync.Mutex
	state      BreakerState
	failures   int
	openedAt   time.Time
	probeInUse bool
	now        func() time.Time
}

// NewBreaker creates a circuit breaker.
func NewBreaker(cfg BreakerConfig) *Breaker {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 3
	}
	return &Breaker{cfg: cfg, state: BreakerClosed, now: time.Now}
}

// Do runs fn through the breaker. It returns ErrBreakerOpen without calling
// fn when the circuit is open.
func (b *Breaker) Do(fn func() error) error {
	if !b.allow() {
		return ErrBreakerOpen
	}
	err := fn()
	b.record(err)
	return err
}

// State returns the current breaker state.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.currentState()
}

// Failures returns the current consecutive failure count.
func (b *Breaker) Failures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures
}

// Reset closes the breaker and clears counters.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.transition(BreakerClosed)
	b.failures = 0
}

func (b *Breaker) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.currentState() {
	case BreakerClosed:
		return true
	case BreakerHalfOpen:
		if b.probeInUse {
			return false
		}
		b.probeInUse = true
		return true
	default:
		return false
	}
}

func (b *Breaker) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err == nil {
		if b.currentState() == BreakerHalfOpen {
			b.transition(BreakerClosed)
		}
		b.failures = 0
		return
	}

	b.failures++
	switch b.currentState() {
	case BreakerClosed:
		if b.failures >= b.cfg.MaxFailures {
			b.openedAt = b.now()
			b.transition(BreakerOpen)
		}
	case BreakerHalfOpen:
		b.openedAt = b.now()
		b.transition(BreakerOpen)
	}
}

// currentState handles the open → half-open cool-down transition.
// Callers must hold b.mu.
func (b *Breaker) currentState() BreakerState {
	if b.state == BreakerOpen && b.cfg.CoolDown > 0 {
		if b.now().Sub(b.openedAt) >= b.cfg.CoolDown {
			b.transition(BreakerHalfOpen)
		}
	}
	return b.state
}

// transition moves to a new state. Callers must hold b.mu.
func (b *Breaker) transition(to BreakerState) {
	if b.state == to {
		return
	}
	from := b.state
	b.state = to
	b.probeInUse = false
	if to == BreakerClosed {
		b.failures = 0
	}
	if b.cfg.OnStateChange != nil {
		b.cfg.OnStateChange(b.cfg.Name, from, to)
	}
}
