package fallback

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/deepnoodle-ai/undertow/llm"
	"github.com/deepnoodle-ai/undertow/llm/providers"
	"github.com/stretchr/testify/require"
)

type scriptedProvider struct {
	name      string
	responses []any // *llm.Response or error
	calls     int
}

func (p *scriptedProvider) Name() string { return p.name }

func (p *scriptedProvider) Generate(ctx context.Context, opts ...llm.Option) (*llm.Response, error) {
	p.calls++
	if len(p.responses) == 0 {
		return &llm.Response{Content: p.name}, nil
	}
	next := p.responses[0]
	p.responses = p.responses[1:]
	if err, ok := next.(error); ok {
		return nil, err
	}
	return next.(*llm.Response), nil
}

func rateLimitError() error {
	return providers.NewError(429, `{"error":"rate limited"}`)
}

func TestPrimaryPreferred(t *testing.T) {
	primary := &scriptedProvider{name: "primary"}
	secondary := &scriptedProvider{name: "secondary"}
	s, err := New(Options{Primary: primary, Secondary: secondary})
	require.NoError(t, err)

	response, err := s.Generate(context.Background(), llm.WithUserTextMessage("hi"))
	require.NoError(t, err)
	require.Equal(t, "primary", response.Text())
	require.Equal(t, 0, secondary.calls)
}

func TestRateLimitFallsThrough(t *testing.T) {
	primary := &scriptedProvider{name: "primary", responses: []any{rateLimitError()}}
	secondary := &scriptedProvider{name: "secondary"}
	s, err := New(Options{Primary: primary, Secondary: secondary, FailureThreshold: 3})
	require.NoError(t, err)

	response, err := s.Generate(context.Background())
	require.NoError(t, err)
	require.Equal(t, "secondary", response.Text())
	require.Equal(t, 1, primary.calls)
}

func TestNonRateErrorsPassThrough(t *testing.T) {
	primary := &scriptedProvider{name: "primary", responses: []any{errors.New("invalid request")}}
	secondary := &scriptedProvider{name: "secondary"}
	s, err := New(Options{Primary: primary, Secondary: secondary})
	require.NoError(t, err)

	_, err = s.Generate(context.Background())
	require.Error(t, err)
	require.Equal(t, 0, secondary.calls)
}

func TestCooldownAfterThreshold(t *testing.T) {
	now := time.Now()
	primary := &scriptedProvider{name: "primary", responses: []any{
		rateLimitError(), rateLimitError(), rateLimitError(),
	}}
	secondary := &scriptedProvider{name: "secondary"}
	s, err := New(Options{
		Primary:          primary,
		Secondary:        secondary,
		FailureThreshold: 3,
		Cooldown:         time.Minute,
		Clock:            func() time.Time { return now },
	})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := s.Generate(context.Background())
		require.NoError(t, err)
	}
	require.Equal(t, 3, primary.calls)
	require.Equal(t, 3, secondary.calls)

	// Cooling down: primary is not consulted at all
	_, err = s.Generate(context.Background())
	require.NoError(t, err)
	require.Equal(t, 3, primary.calls)
	require.Equal(t, 4, secondary.calls)

	// After the cooldown elapses the primary is probed again
	now = now.Add(2 * time.Minute)
	response, err := s.Generate(context.Background())
	require.NoError(t, err)
	require.Equal(t, "primary", response.Text())
	require.Equal(t, 4, primary.calls)
}

func TestSuccessResetsFailures(t *testing.T) {
	primary := &scriptedProvider{name: "primary", responses: []any{
		rateLimitError(), rateLimitError(), nil,
	}}
	primary.responses[2] = &llm.Response{Content: "primary"}
	secondary := &scriptedProvider{name: "secondary"}
	s, err := New(Options{Primary: primary, Secondary: secondary, FailureThreshold: 3, Cooldown: time.Minute})
	require.NoError(t, err)

	s.Generate(context.Background())
	s.Generate(context.Background())
	s.Generate(context.Background())
	require.Equal(t, int64(0), s.failures.Load())
	require.Equal(t, int64(0), s.cooldownUntil.Load())
}

func TestRequiresBothProviders(t *testing.T) {
	_, err := New(Options{Primary: &scriptedProvider{name: "p"}})
	require.Error(t, err)
	_, err = New(Options{Secondary: &scriptedProvider{name: "s"}})
	require.Error(t, err)
}
