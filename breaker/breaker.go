// Package breaker implements a three-state circuit breaker keyed by service
// name. It tracks service-wide health across all workflow runs, independent
// of any per-step retry counters.
package breaker

import (
	"sync"
	"time"

	"github.com/deepnoodle-ai/undertow/slogger"
)

// State of one service's circuit.
type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half_open"
)

// Status is a snapshot of one service's circuit.
type Status struct {
	State        State `json:"state"`
	FailureCount int   `json:"failure_count"`
	SuccessCount int   `json:"success_count"`
}

// Options configures a Breaker.
type Options struct {
	// FailureThreshold is the number of consecutive failures that opens the
	// circuit. Default 5.
	FailureThreshold int

	// SuccessThreshold is the number of consecutive half-open successes that
	// closes the circuit. Default 2.
	SuccessThreshold int

	// Timeout is how long an open circuit waits before allowing a probe.
	// Default 30s.
	Timeout time.Duration

	// TTL is how long an untouched service entry is kept before its counters
	// are discarded. Default 10m.
	TTL time.Duration

	Logger slogger.Logger

	// Clock overrides time.Now in tests.
	Clock func() time.Time
}

type entry struct {
	state       State
	failures    int
	successes   int
	lastFailure time.Time
	touched     time.Time
	probing     bool
}

// Breaker is a concurrency-safe, service-keyed circuit breaker.
type Breaker struct {
	mu               sync.Mutex
	services         map[string]*entry
	failureThreshold int
	successThreshold int
	timeout          time.Duration
	ttl              time.Duration
	logger           slogger.Logger
	now              func() time.Time
}

// New creates a Breaker with the given options.
func New(opts Options) *Breaker {
	if opts.FailureThreshold <= 0 {
		opts.FailureThreshold = 5
	}
	if opts.SuccessThreshold <= 0 {
		opts.SuccessThreshold = 2
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.TTL <= 0 {
		opts.TTL = 10 * time.Minute
	}
	if opts.Logger == nil {
		opts.Logger = slogger.DefaultLogger
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &Breaker{
		services:         map[string]*entry{},
		failureThreshold: opts.FailureThreshold,
		successThreshold: opts.SuccessThreshold,
		timeout:          opts.Timeout,
		ttl:              opts.TTL,
		logger:           opts.Logger,
		now:              opts.Clock,
	}
}

// service returns the entry for the name, resetting it if it has been
// untouched longer than the TTL. Callers must hold b.mu.
func (b *Breaker) service(name string) *entry {
	now := b.now()
	e, ok := b.services[name]
	if !ok || now.Sub(e.touched) > b.ttl {
		e = &entry{state: StateClosed}
		b.services[name] = e
	}
	e.touched = now
	return e
}

// Allow reports whether a request to the service may proceed. An open
// circuit transitions to half-open once the timeout has elapsed since the
// last failure, and a half-open circuit admits one probe at a time.
func (b *Breaker) Allow(name string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	e := b.service(name)
	switch e.state {
	case StateClosed:
		return true
	case StateOpen:
		if b.now().Sub(e.lastFailure) >= b.timeout {
			e.state = StateHalfOpen
			e.successes = 0
			e.probing = true
			b.logger.Info("circuit half-open", "service", name)
			return true
		}
		return false
	case StateHalfOpen:
		if e.probing {
			return false
		}
		e.probing = true
		return true
	}
	return false
}

// RecordSuccess records a successful call to the service.
func (b *Breaker) RecordSuccess(name string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	e := b.service(name)
	switch e.state {
	case StateClosed:
		e.failures = 0
	case StateHalfOpen:
		e.probing = false
		e.successes++
		if e.successes >= b.successThreshold {
			e.state = StateClosed
			e.failures = 0
			e.successes = 0
			b.logger.Info("circuit closed", "service", name)
		}
	}
}

// RecordFailure records a failed call to the service.
func (b *Breaker) RecordFailure(name string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	e := b.service(name)
	e.lastFailure = b.now()
	switch e.state {
	case StateClosed:
		e.failures++
		if e.failures >= b.failureThreshold {
			e.state = StateOpen
			b.logger.Warn("circuit opened", "service", name, "failures", e.failures)
		}
	case StateHalfOpen:
		e.state = StateOpen
		e.probing = false
		e.successes = 0
		e.failures++
		b.logger.Warn("circuit reopened", "service", name)
	case StateOpen:
		e.failures++
	}
}

// Status returns a snapshot of the service's circuit.
func (b *Breaker) Status(name string) Status {
	b.mu.Lock()
	defer b.mu.Unlock()

	e := b.service(name)
	return Status{
		State:        e.state,
		FailureCount: e.failures,
		SuccessCount: e.successes,
	}
}
