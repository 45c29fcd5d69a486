package executor

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/deepnoodle-ai/undertow"
	"github.com/deepnoodle-ai/undertow/llm/providers"
)

// CircuitOpenError indicates a step was blocked because the circuit breaker
// for its service is open. The condition is transient: the breaker admits a
// probe once its timeout elapses.
type CircuitOpenError struct {
	Service string
}

func (e *CircuitOpenError) Error() string {
	return fmt.Sprintf("circuit breaker open for service %q", e.Service)
}

var transientFragments = []string{
	"rate limit",
	"rate_limit",
	"too many requests",
	"timeout",
	"timed out",
	"connection reset",
	"connection refused",
	"temporarily unavailable",
	"overloaded",
	"service unavailable",
	"empty response",
}

// isTransient reports whether retrying the failed operation could succeed.
// Unresolvable references and other structural errors never become true on
// retry and fail immediately.
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	var unresolved *undertow.UnresolvedReferenceError
	if errors.As(err, &unresolved) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var circuitOpen *CircuitOpenError
	if errors.As(err, &circuitOpen) {
		return true
	}
	var providerErr *providers.ProviderError
	if errors.As(err, &providerErr) {
		return providers.ShouldRetry(providerErr.StatusCode())
	}
	message := strings.ToLower(err.Error())
	for _, fragment := range transientFragments {
		if strings.Contains(message, fragment) {
			return true
		}
	}
	return false
}

// backoffDelay returns a full-jitter wait for the given attempt: uniform in
// [0, min(base*2^(attempt-1), max)].
func backoffDelay(attempt int, base, max time.Duration) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	window := base
	for i := 1; i < attempt; i++ {
		window *= 2
		if window >= max {
			window = max
			break
		}
	}
	if window > max {
		window = max
	}
	if window <= 0 {
		return 0
	}
	return time.Duration(rand.Int64N(int64(window) + 1))
}
