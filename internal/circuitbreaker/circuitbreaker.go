package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"time"

	apperrors "github.com/glefebvre/housou/internal/errors"
)

var (
	// ErrOpenState is returned when the circuit breaker is open
	ErrOpenState = errors.New("circuit breaker is open")

	// ErrTooManyRequests is returned when the half-open probe slot is taken
	ErrTooManyRequests = errors.New("too many requests in half-open state")
)

// State represents the circuit breaker state
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

// String returns the string representation of the state
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

// Config holds circuit breaker configuration
type Config struct {
	// Name identifies the breaker in state change callbacks
	Name string

	// MaxFailures is the number of consecutive failures before opening
	MaxFailures uint

	// Cooldown is how long the breaker stays open before probing
	Cooldown time.Duration

	// MaxHalfOpenRequests is the number of probes allowed while half-open
	MaxHalfOpenRequests uint

	// Counts reports whether err should count against the breaker.
	// Defaults to any error except a cancellation.
	Counts func(err error) bool

	// OnStateChange is called outside the lock
	OnStateChange func(name string, from, to State)
}

// DefaultConfig returns the defaults used for metadata lookups
func DefaultConfig() Config {
	return Config{
		Name:                "metadata",
		MaxFailures:         5,
		Cooldown:            60 * time.Second,
		MaxHalfOpenRequests: 1,
	}
}

// CircuitBreaker stops calling a failing backend until it cools down
type CircuitBreaker struct {
	mu        sync.Mutex
	cfg       Config
	state     State
	failures  uint
	successes uint
	inFlight  uint
	changedAt time.Time
	now       func() time.Time
}

// New creates a new circuit breaker
func New(cfg Config) *CircuitBreaker {
	if cfg.Counts == nil {
		cfg.Counts = func(err error) bool {
			return err != nil && !apperrors.IsCancelled(err)
		}
	}
	if cfg.MaxHalfOpenRequests == 0 {
		cfg.MaxHalfOpenRequests = 1
	}

	return &CircuitBreaker{
		cfg:       cfg,
		state:     StateClosed,
		changedAt: time.Now(),
		now:       time.Now,
	}
}

// Execute runs fn unless the breaker is open
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := cb.allow(); err != nil {
		return err
	}

	err := fn(ctx)
	cb.record(err)
	return err
}

func (cb *CircuitBreaker) allow() error {
	cb.mu.Lock()
	var from State
	changed := false
	defer func() {
		cb.mu.Unlock()
		if changed {
			cb.notify(from, StateHalfOpen)
		}
	}()

	switch cb.state {
	case StateClosed:
		return nil
	case StateOpen:
		if cb.now().Sub(cb.changedAt) < cb.cfg.Cooldown {
			return ErrOpenState
		}
		from, changed = cb.state, true
		cb.transition(StateHalfOpen)
		cb.inFlight++
		return nil
	default:
		if cb.inFlight >= cb.cfg.MaxHalfOpenRequests {
			return ErrTooManyRequests
		}
		cb.inFlight++
		return nil
	}
}

func (cb *CircuitBreaker) record(err error) {
	cb.mu.Lock()
	from := cb.state

	if cb.cfg.Counts(err) {
		cb.failures++
		switch cb.state {
		case StateClosed:
			if cb.failures >= cb.cfg.MaxFailures {
				cb.transition(StateOpen)
			}
		case StateHalfOpen:
			cb.transition(StateOpen)
		}
	} else if err == nil {
		switch cb.state {
		case StateClosed:
			cb.failures = 0
		case StateHalfOpen:
			cb.successes++
			if cb.successes >= cb.cfg.MaxHalfOpenRequests {
				cb.transition(StateClosed)
			}
		}
	} else if cb.state == StateHalfOpen && cb.inFlight > 0 {
		// a cancelled probe frees its slot without deciding anything
		cb.inFlight--
	}

	to := cb.state
	cb.mu.Unlock()

	if from != to {
		cb.notify(from, to)
	}
}

func (cb *CircuitBreaker) transition(state State) {
	cb.state = state
	cb.changedAt = cb.now()
	cb.successes = 0
	cb.inFlight = 0
	if state == StateClosed {
		cb.failures = 0
	}
}

func (cb *CircuitBreaker) notify(from, to State) {
	if cb.cfg.OnStateChange != nil {
		cb.cfg.OnStateChange(cb.cfg.Name, from, to)
	}
}

// State returns the current state
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Failures returns the current failure count
func (cb *CircuitBreaker) Failures() uint {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.failures
}

// Reset closes the breaker
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	from := cb.state
	cb.transition(StateClosed)
	cb.mu.Unlock()

	if from != StateClosed {
		cb.notify(from, StateClosed)
	}
}
