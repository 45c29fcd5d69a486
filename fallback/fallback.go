// Package fallback provides a completion provider that wraps a primary and a
// secondary llm.LLM. Rate-limited primary calls fall through to the
// secondary, and repeated rate limiting places the primary into a fixed
// cooldown during which all traffic is routed to the secondary.
package fallback

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/deepnoodle-ai/undertow/llm"
	"github.com/deepnoodle-ai/undertow/llm/providers"
	"github.com/deepnoodle-ai/undertow/slogger"
)

// Options configures a Selector.
type Options struct {
	Primary   llm.LLM
	Secondary llm.LLM

	// FailureThreshold is the number of consecutive rate-limited primary
	// calls that triggers a cooldown. Default 3.
	FailureThreshold int

	// Cooldown is how long the primary is benched after the threshold is
	// reached. Default 5m.
	Cooldown time.Duration

	Logger slogger.Logger

	// Clock overrides time.Now in tests.
	Clock func() time.Time
}

// Selector implements llm.LLM over a primary/secondary provider pair.
// Counters are updated atomically; a Selector is safe for use from many
// concurrent workflow runs.
type Selector struct {
	primary       llm.LLM
	secondary     llm.LLM
	threshold     int64
	cooldown      time.Duration
	failures      atomic.Int64
	cooldownUntil atomic.Int64 // unix nanos, 0 = not cooling down
	logger        slogger.Logger
	now           func() time.Time
}

var _ llm.LLM = &Selector{}

// New creates a Selector. Both providers are required.
func New(opts Options) (*Selector, error) {
	if opts.Primary == nil {
		return nil, fmt.Errorf("primary provider is required")
	}
	if opts.Secondary == nil {
		return nil, fmt.Errorf("secondary provider is required")
	}
	if opts.FailureThreshold <= 0 {
		opts.FailureThreshold = 3
	}
	if opts.Cooldown <= 0 {
		opts.Cooldown = 5 * time.Minute
	}
	if opts.Logger == nil {
		opts.Logger = slogger.DefaultLogger
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &Selector{
		primary:   opts.Primary,
		secondary: opts.Secondary,
		threshold: int64(opts.FailureThreshold),
		cooldown:  opts.Cooldown,
		logger:    opts.Logger,
		now:       opts.Clock,
	}, nil
}

func (s *Selector) Name() string {
	return "fallback"
}

// Generate routes the request to the primary provider unless it is cooling
// down. A rate-limited primary response falls through to the secondary for
// that call; other primary errors are returned as-is.
func (s *Selector) Generate(ctx context.Context, opts ...llm.Option) (*llm.Response, error) {
	if s.primaryAvailable() {
		response, err := s.primary.Generate(ctx, opts...)
		if err == nil {
			s.failures.Store(0)
			return response, nil
		}
		if !isRateLimited(err) {
			return nil, err
		}
		failures := s.failures.Add(1)
		if failures >= s.threshold {
			until := s.now().Add(s.cooldown)
			s.cooldownUntil.Store(until.UnixNano())
			s.failures.Store(0)
			s.logger.Warn("primary provider cooling down",
				"provider", s.primary.Name(),
				"until", until.Format(time.RFC3339))
		}
		s.logger.Info("falling back to secondary provider",
			"provider", s.secondary.Name(), "cause", err.Error())
	}
	return s.secondary.Generate(ctx, opts...)
}

// primaryAvailable reports whether the primary provider should receive the
// next call, ending an elapsed cooldown as a side effect.
func (s *Selector) primaryAvailable() bool {
	until := s.cooldownUntil.Load()
	if until == 0 {
		return true
	}
	if s.now().UnixNano() < until {
		return false
	}
	// Cooldown elapsed: the next call probes the primary again.
	if s.cooldownUntil.CompareAndSwap(until, 0) {
		s.logger.Info("primary provider cooldown elapsed",
			"provider", s.primary.Name())
	}
	return true
}

// isRateLimited classifies rate/quota errors. Providers surface status codes
// through providers.ProviderError; message matching covers transports that
// do not.
func isRateLimited(err error) bool {
	if providers.IsRateLimited(err) {
		return true
	}
	message := strings.ToLower(err.Error())
	return strings.Contains(message, "rate limit") ||
		strings.Contains(message, "rate_limit") ||
		strings.Contains(message, "quota") ||
		strings.Contains(message, "too many requests")
}
