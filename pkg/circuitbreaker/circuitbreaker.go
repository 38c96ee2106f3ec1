// Package circuitbreaker fails fast when an external dependency is down.
// Notification delivery is best-effort, so once the email provider starts
// timing out the breaker opens and sends are rejected immediately instead of
// holding worker goroutines through full retry cycles.
package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"time"
)

// State is the breaker position.
type State int

const (
	// StateClosed admits every request.
	StateClosed State = iota
	// StateOpen rejects every request until the cooldown passes.
	StateOpen
	// StateHalfOpen admits a single probe to test recovery.
	StateHalfOpen
)

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

var (
	// ErrCircuitOpen is returned while the breaker is rejecting requests.
	ErrCircuitOpen = errors.New("circuit breaker is open")

	// ErrProbeInFlight is returned when the half-open probe slot is taken.
	ErrProbeInFlight = errors.New("circuit breaker probe already in flight")
)

// Settings tunes one breaker.
type Settings struct {
	// Name appears in state-change notifications and logs.
	Name string

	// FailureThreshold is how many consecutive failures open the breaker.
	FailureThreshold int

	// SuccessThreshold is how many consecutive probe successes close it.
	SuccessThreshold int

	// Cooldown is how long the breaker stays open before probing.
	Cooldown time.Duration

	// OnStateChange, when set, is called outside the hot path on every
	// transition.
	OnStateChange func(name string, from, to State)
}

// CircuitBreaker tracks consecutive outcomes and gates requests.
type CircuitBreaker struct {
	settings Settings

	mu            sync.Mutex
	state         State
	consecFails   int
	consecOKs     int
	openedAt      time.Time
	probeInFlight bool
}

// New creates a breaker, filling unset Settings with defaults.
func New(settings Settings) *CircuitBreaker {
	if settings.FailureThreshold <= 0 {
		settings.FailureThreshold = 5
	}
	if settings.SuccessThreshold <= 0 {
		settings.SuccessThreshold = 2
	}
	if settings.Cooldown <= 0 {
		settings.Cooldown = 30 * time.Second
	}
	return &CircuitBreaker{settings: settings, state: StateClosed}
}

// EmailBreaker is tuned for the email provider: open fast, recover slowly.
// A flapping provider is worse than a quiet one.
func EmailBreaker(onStateChange func(name string, from, to State)) *CircuitBreaker {
	return New(Settings{
		Name:             "email-provider",
		FailureThreshold: 3,
		SuccessThreshold: 2,
		Cooldown:         time.Minute,
		OnStateChange:    onStateChange,
	})
}

// Execute runs fn if the breaker admits the request and records the outcome.
// Returns ErrCircuitOpen without calling fn while the breaker is open.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	probe, err := cb.admit()
	if err != nil {
		return err
	}

	callErr := fn(ctx)
	cb.record(callErr == nil, probe)
	return callErr
}

// State returns the current breaker position.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Reset forces the breaker closed and clears its counters.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.transition(StateClosed)
}

// admit decides whether a request may proceed. The bool marks half-open
// probes so record can release the probe slot.
func (cb *CircuitBreaker) admit() (bool, error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		return false, nil

	case StateOpen:
		if time.Since(cb.openedAt) < cb.settings.Cooldown {
			return false, ErrCircuitOpen
		}
		cb.transition(StateHalfOpen)
		cb.probeInFlight = true
		return true, nil

	case StateHalfOpen:
		if cb.probeInFlight {
			return false, ErrProbeInFlight
		}
		cb.probeInFlight = true
		return true, nil

	default:
		return false, ErrCircuitOpen
	}
}

// record feeds one outcome back into the state machine.
func (cb *CircuitBreaker) record(ok, probe bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if probe {
		cb.probeInFlight = false
	}

	if ok {
		cb.consecOKs++
		cb.consecFails = 0
		if cb.state == StateHalfOpen && cb.consecOKs >= cb.settings.SuccessThreshold {
			cb.transition(StateClosed)
		}
		return
	}

	cb.consecFails++
	cb.consecOKs = 0

	switch cb.state {
	case StateClosed:
		if cb.consecFails >= cb.settings.FailureThreshold {
			cb.transition(StateOpen)
		}
	case StateHalfOpen:
		// A failed probe reopens immediately.
		cb.transition(StateOpen)
	}
}

// transition moves to a new state. Caller holds the lock.
func (cb *CircuitBreaker) transition(to State) {
	from := cb.state
	if from == to && to != StateClosed {
		return
	}

	cb.state = to
	cb.consecOKs = 0
	cb.consecFails = 0
	cb.probeInFlight = false
	if to == StateOpen {
		cb.openedAt = time.Now()
	}

	if from != to && cb.settings.OnStateChange != nil {
		go cb.settings.OnStateChange(cb.settings.Name, from, to)
	}
}
