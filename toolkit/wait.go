package toolkit

import (
	"context"
	"fmt"
	"time"

	"github.com/deepnoodle-ai/undertow"
)

const DefaultWaitMaxDuration = 5 * time.Minute

var _ undertow.Tool = &WaitTool{}

// WaitTool pauses execution for a bounded duration. Useful between polling
// steps.
type WaitTool struct {
	maxDuration time.Duration
}

type WaitToolOptions struct {
	MaxDuration time.Duration
}

func NewWaitTool(options WaitToolOptions) *WaitTool {
	if options.MaxDuration <= 0 {
		options.MaxDuration = DefaultWaitMaxDuration
	}
	return &WaitTool{maxDuration: options.MaxDuration}
}

func (t *WaitTool) Definition() *undertow.ToolDefinition {
	return &undertow.ToolDefinition{
		Name:        "wait",
		Description: "Waits for the given number of seconds before continuing.",
		Parameters: map[string]string{
			"seconds": "How long to wait, in seconds",
		},
	}
}

func (t *WaitTool) Call(ctx context.Context, params map[string]any) (any, error) {
	seconds, ok := numberParam(params["seconds"])
	if !ok || seconds <= 0 {
		return nil, fmt.Errorf("seconds parameter must be a positive number")
	}
	duration := time.Duration(seconds * float64(time.Second))
	if duration > t.maxDuration {
		return nil, fmt.Errorf("wait duration %s exceeds the maximum of %s",
			duration, t.maxDuration)
	}
	timer := time.NewTimer(duration)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
	}
	return map[string]any{"waited_seconds": seconds}, nil
}

func numberParam(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}
