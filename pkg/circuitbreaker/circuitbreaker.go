// Package circuitbreaker stops calling an upstream that keeps failing and
// probes it again after a cool-down.
package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"time"
)

// State of a Breaker.
type State int

const (
	StateClosed State = iota
	StateOpen
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

// ErrOpen is returned while the breaker rejects calls.
var ErrOpen = errors.New("circuit breaker is open")

// Settings for a Breaker.
type Settings struct {
	Name string
	// Trips after this many consecutive failures.
	FailureThreshold int
	// Time spent open before a single probe is let through.
	CoolDown time.Duration
	// Counts decides which errors are failures. Nil counts every error.
	Counts func(error) bool
	// OnChange fires after each transition, outside the lock.
	OnChange func(name string, from, to State)
}

// Breaker is safe for concurrent use.
type Breaker struct {
	settings Settings
	now      func() time.Time

	mu       sync.Mutex
	state    State
	failures int
	openedAt time.Time
	probing  bool
}

// New returns a closed breaker. Zero thresholds fall back to 5 failures / 30s.
func New(s Settings) *Breaker {
	if s.FailureThreshold <= 0 {
		s.FailureThreshold = 5
	}
	if s.CoolDown <= 0 {
		s.CoolDown = 30 * time.Second
	}
	return &Breaker{settings: s, now: time.Now}
}

// Allow asks for permission to make one call. Every nil return must be
// followed by exactly one Record.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	var changed func()
	defer func() {
		b.mu.Unlock()
		if changed != nil {
			changed()
		}
	}()

	switch b.state {
	case StateClosed:
		return nil
	case StateOpen:
		if b.now().Sub(b.openedAt) < b.settings.CoolDown {
			return ErrOpen
		}
		changed = b.transition(StateHalfOpen)
		b.probing = true
		return nil
	default:
		if b.probing {
			return ErrOpen
		}
		b.probing = true
		return nil
	}
}

// Record reports the result of a call admitted by Allow.
func (b *Breaker) Record(err error) {
	failed := err != nil
	if failed && b.settings.Counts != nil {
		failed = b.settings.Counts(err)
	}

	b.mu.Lock()
	var changed func()
	switch {
	case !failed:
		b.failures = 0
		if b.state == StateHalfOpen {
			changed = b.transition(StateClosed)
		}
	case b.state == StateHalfOpen:
		changed = b.trip()
	default:
		b.failures++
		if b.failures >= b.settings.FailureThreshold {
			changed = b.trip()
		}
	}
	b.probing = false
	b.mu.Unlock()

	if changed != nil {
		changed()
	}
}

// Execute wraps fn with Allow and Record.
func (b *Breaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	if err := b.Allow(); err != nil {
		return err
	}
	err := fn(ctx)
	b.Record(err)
	return err
}

// State returns the current state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Name of the guarded upstream.
func (b *Breaker) Name() string { return b.settings.Name }

func (b *Breaker) trip() func() {
	b.openedAt = b.now()
	b.failures = 0
	return b.transition(StateOpen)
}

// transition must be called with mu held; the returned hook runs after unlock.
func (b *Breaker) transition(to State) func() {
	from := b.state
	if from == to {
		return nil
	}
	b.state = to
	if b.settings.OnChange == nil {
		return nil
	}
	name, hook := b.settings.Name, b.settings.OnChange
	return func() { hook(name, from, to) }
}
