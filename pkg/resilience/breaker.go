package resilience

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ErrCircuitOpen is returned without calling the backend while the breaker
// is open.
var ErrCircuitOpen = errors.New("circuit breaker is open")

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

// BreakerConfig sets when the breaker trips and how long it stays open.
// OnStateChange runs with the breaker lock held and must not call back into
// the breaker.
type BreakerConfig struct {
	Threshold     int
	Cooldown      time.Duration
	OnStateChange func(name string, from, to State)
}

// Breaker opens after Threshold consecutive failures. Once Cooldown has
// passed it lets exactly one trial call through; its outcome closes or
// reopens the breaker.
type Breaker struct {
	name   string
	cfg    BreakerConfig
	logger *slog.Logger

	mu       sync.Mutex
	state    State
	failures int
	openedAt time.Time
	trial    bool
}

func NewBreaker(name string, cfg BreakerConfig) *Breaker {
	if cfg.Threshold <= 0 {
		cfg.Threshold = 5
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 10 * time.Second
	}
	return &Breaker{
		name:   name,
		cfg:    cfg,
		logger: slog.Default().With("component", "breaker", "name", name),
	}
}

// Do calls fn unless the breaker is open and records the outcome.
func (b *Breaker) Do(fn func() error) error {
	if err := b.admit(); err != nil {
		return err
	}
	err := fn()
	b.record(err)
	return err
}

func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Breaker) admit() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.state {
	case StateOpen:
		wait := b.cfg.Cooldown - time.Since(b.openedAt)
		if wait > 0 {
			return fmt.Errorf("%w: %s for another %v", ErrCircuitOpen, b.name, wait.Round(time.Millisecond))
		}
		b.transition(StateHalfOpen)
		b.trial = true
		return nil
	case StateHalfOpen:
		if b.trial {
			return fmt.Errorf("%w: %s trial in flight", ErrCircuitOpen, b.name)
		}
		b.trial = true
	}
	return nil
}

func (b *Breaker) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err == nil {
		switch b.state {
		case StateClosed:
			b.failures = 0
		case StateHalfOpen:
			b.failures = 0
			b.trial = false
			b.transition(StateClosed)
			b.logger.Info("breaker closed")
		}
		return
	}

	b.failures++
	switch {
	case b.state == StateHalfOpen:
		b.trip()
		b.logger.Warn("trial call failed, breaker reopened", "error", err)
	case b.state == StateClosed && b.failures >= b.cfg.Threshold:
		b.trip()
		b.logger.Warn("breaker opened", "consecutive_failures", b.failures, "error", err)
	}
}

func (b *Breaker) trip() {
	b.openedAt = time.Now()
	b.trial = false
	b.transition(StateOpen)
}

func (b *Breaker) transition(to State) {
	from := b.state
	b.state = to
	if from != to && b.cfg.OnStateChange != nil {
		b.cfg.OnStateChange(b.name, from, to)
	}
}
