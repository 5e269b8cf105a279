// Package resilience provides the retry, circuit breaker and provider
// failover primitives that keep the voice pipeline answering while
// individual speech providers misbehave.
//
// [Retry] handles transient faults on a single provider. [CircuitBreaker]
// is a three-state breaker (closed, open, half-open) that takes a
// persistently failing provider out of rotation. [FallbackGroup] composes
// several providers of one type with per-entry breakers so the chain walks
// to the next healthy entry.
//
// All types are safe for concurrent use.
package resilience

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrCircuitOpen is returned by [CircuitBreaker.Execute] while the breaker
// is open and the cooldown has not elapsed.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// State is the operating mode of a [CircuitBreaker].
type State int

const (
	// StateClosed forwards all calls.
	StateClosed State = iota

	// StateOpen rejects calls with [ErrCircuitOpen] until the cooldown
	// elapses.
	StateOpen

	// StateHalfOpen lets a bounded number of probe calls through; their
	// outcome decides between closing and re-opening.
	StateHalfOpen
)

// String returns the human-readable name of the state.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// BreakerConfig holds tuning knobs for a [CircuitBreaker].
type BreakerConfig struct {
	// Name labels the breaker in log messages, usually the provider name.
	Name string

	// MaxFailures is how many consecutive failures trip the breaker open.
	// Default: 5.
	MaxFailures int

	// Cooldown is how long the breaker stays open before probing.
	// Default: 30s.
	Cooldown time.Duration

	// ProbeMax is the number of half-open probe calls allowed before the
	// breaker decides. Default: 3.
	ProbeMax int
}

// CircuitBreaker implements the three-state circuit breaker pattern.
type CircuitBreaker struct {
	name        string
	maxFailures int
	cooldown    time.Duration
	probeMax    int

	mu          sync.Mutex
	state       State
	failStreak  int
	lastFailure time.Time
	probeCalls  int
	probeFails  int
}

// NewCircuitBreaker creates a breaker, filling zero config fields with
// defaults.
func NewCircuitBreaker(cfg BreakerConfig) *CircuitBreaker {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 5
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 30 * time.Second
	}
	if cfg.ProbeMax <= 0 {
		cfg.ProbeMax = 3
	}
	return &CircuitBreaker{
		name:        cfg.Name,
		maxFailures: cfg.MaxFailures,
		cooldown:    cfg.Cooldown,
		probeMax:    cfg.ProbeMax,
		state:       StateClosed,
	}
}

// Execute runs fn if the breaker allows it. Open breakers return
// [ErrCircuitOpen] without calling fn.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	cb.mu.Lock()
	switch cb.state {
	case StateOpen:
		if time.Since(cb.lastFailure) < cb.cooldown {
			cb.mu.Unlock()
			return ErrCircuitOpen
		}
		cb.state = StateHalfOpen
		cb.probeCalls = 0
		cb.probeFails = 0
		slog.Info("circuit breaker probing", "name", cb.name)

	case StateHalfOpen:
		if cb.probeCalls >= cb.probeMax {
			cb.mu.Unlock()
			return ErrCircuitOpen
		}
	}

	probing := cb.state == StateHalfOpen
	if probing {
		cb.probeCalls++
	}
	cb.mu.Unlock()

	err := fn()

	cb.mu.Lock()
	defer cb.mu.Unlock()
	if err != nil {
		cb.onFailure(probing)
	} else {
		cb.onSuccess(probing)
	}
	return err
}

// onFailure must be called with cb.mu held.
func (cb *CircuitBreaker) onFailure(probing bool) {
	cb.lastFailure = time.Now()

	if probing {
		cb.probeFails++
		// A single failed probe re-opens immediately.
		cb.state = StateOpen
		cb.failStreak = cb.maxFailures
		slog.Warn("circuit breaker re-opened", "name", cb.name)
		return
	}

	cb.failStreak++
	if cb.failStreak >= cb.maxFailures {
		cb.state = StateOpen
		slog.Warn("circuit breaker opened",
			"name", cb.name,
			"consecutive_failures", cb.failStreak)
	}
}

// onSuccess must be called with cb.mu held.
func (cb *CircuitBreaker) onSuccess(probing bool) {
	if probing {
		if cb.probeCalls-cb.probeFails >= cb.probeMax {
			cb.state = StateClosed
			cb.failStreak = 0
			cb.probeCalls = 0
			cb.probeFails = 0
			slog.Info("circuit breaker closed", "name", cb.name)
		}
		return
	}
	cb.failStreak = 0
}

// State returns the breaker's current state. An open breaker whose cooldown
// has elapsed reports half-open; the real transition happens on the next
// Execute.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state == StateOpen && time.Since(cb.lastFailure) >= cb.cooldown {
		return StateHalfOpen
	}
	return cb.state
}

// Reset forces the breaker back to closed, clearing all counters.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.state = StateClosed
	cb.failStreak = 0
	cb.probeCalls = 0
	cb.probeFails = 0
	slog.Info("circuit breaker manually reset", "name", cb.name)
}
