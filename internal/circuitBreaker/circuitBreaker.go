package circuitBreaker

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

type Status int

const (
	StatusClosed Status = iota
	StatusOpen
	StatusHalfOpen
)

func (s Status) String() string {
	switch s {
	case StatusClosed:
		return "CLOSED"
	case StatusOpen:
		return "OPEN"
	case StatusHalfOpen:
		return "HALF_OPEN"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

type State struct {
	Status              Status
	ConsecutiveFailures int
	LastTransitionAt    time.Time
}

// Breaker guards one upstream dependency. It holds no I/O, only state,
// and is safe for concurrent use.
type Breaker struct {
	name      string
	threshold int
	timeout   time.Duration
	clock     clockwork.Clock

	mu            sync.Mutex
	state         State
	trialInFlight bool
}

func New(name string, threshold int, timeout time.Duration, clock clockwork.Clock) *Breaker {
	if threshold < 1 {
		threshold = 1
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Breaker{
		name:      name,
		threshold: threshold,
		timeout:   timeout,
		clock:     clock,
		state:     State{Status: StatusClosed, LastTransitionAt: clock.Now()},
	}
}

// Allow reports whether a call may proceed now. In HALF_OPEN only one caller
// gets true until that trial is recorded.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state.Status {
	case StatusClosed:
		return true
	case StatusOpen:
		if b.clock.Since(b.state.LastTransitionAt) < b.timeout {
			return false
		}
		b.transition(StatusHalfOpen)
		b.trialInFlight = true
		return true
	case StatusHalfOpen:
		if b.trialInFlight {
			return false
		}
		b.trialInFlight = true
		return true
	}
	return false
}

func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.state.ConsecutiveFailures = 0
	b.trialInFlight = false
	if b.state.Status != StatusClosed {
		b.transition(StatusClosed)
	}
}

func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.state.ConsecutiveFailures++

	switch b.state.Status {
	case StatusHalfOpen:
		b.trialInFlight = false
		b.transition(StatusOpen)
	case StatusClosed:
		if b.state.ConsecutiveFailures >= b.threshold {
			b.transition(StatusOpen)
		}
	}
}

func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// transition must be called with mu held.
func (b *Breaker) transition(to Status) {
	from := b.state.Status
	b.state.Status = to
	b.state.LastTransitionAt = b.clock.Now()

	logFn := slog.Info
	if to == StatusOpen {
		logFn = slog.Warn
	}
	logFn(
		"circuit breaker state changed",
		slog.String("breaker", b.name),
		slog.String("from", from.String()),
		slog.String("to", to.String()),
		slog.Int("consecutiveFailures", b.state.ConsecutiveFailures),
	)
}
