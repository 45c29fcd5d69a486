package executor

import (
	"context"
	"fmt"

	"github.com/deepnoodle-ai/undertow"
	"github.com/deepnoodle-ai/undertow/resolver"
)

// stepOutcome is the result of one step attempt: either a value to commit or
// a payload to hold while the workflow waits for confirmation.
type stepOutcome struct {
	result  any
	paused  bool
	payload any
}

// runStepWithRetries dispatches the step, retrying transient failures with
// randomized backoff. Permanent failures and exhausted retries return the
// last error.
func (e *Executor) runStepWithRetries(ctx context.Context, workflow *undertow.Workflow, step *undertow.Step, results map[string]any) (*stepOutcome, error) {
	var lastErr error
	for attempt := 1; attempt <= e.maxAttempts; attempt++ {
		outcome, err := e.runStep(ctx, workflow, step, results)
		if err == nil {
			return outcome, nil
		}
		lastErr = err
		if !isTransient(err) {
			e.logger.Warn("step failed permanently",
				"workflow_id", workflow.ID, "step", step.StepNumber, "error", err)
			return nil, err
		}
		if attempt == e.maxAttempts {
			break
		}
		wait := backoffDelay(attempt, e.baseWait, e.maxWait)
		e.logger.Warn("step failed, retrying",
			"workflow_id", workflow.ID, "step", step.StepNumber,
			"attempt", attempt, "wait", wait, "error", err)
		e.report(ctx, workflow.SessionID,
			fmt.Sprintf("Step %d hit a temporary error, retrying (attempt %d of %d)",
				step.StepNumber, attempt+1, e.maxAttempts))
		if err := e.sleep(ctx, wait); err != nil {
			return nil, err
		}
	}
	return nil, fmt.Errorf("exhausted %d attempts: %w", e.maxAttempts, lastErr)
}

func (e *Executor) runStep(ctx context.Context, workflow *undertow.Workflow, step *undertow.Step, results map[string]any) (*stepOutcome, error) {
	switch step.Type {
	case undertow.StepTypeToolCall:
		return e.runToolStep(ctx, step, results)
	case undertow.StepTypeAnalysis, undertow.StepTypeDecision:
		return e.runAnalysisStep(ctx, workflow, step, results)
	case undertow.StepTypeNotification:
		return e.runNotificationStep(ctx, workflow, step, results)
	default:
		return nil, fmt.Errorf("unknown step type %q", step.Type)
	}
}

func (e *Executor) runToolStep(ctx context.Context, step *undertow.Step, results map[string]any) (*stepOutcome, error) {
	params, err := resolveParameters(step.ToolParameters, results)
	if err != nil {
		return nil, err
	}
	tool, ok := e.tools.Get(step.ToolName)
	if !ok {
		return nil, fmt.Errorf("tool %q is not registered", step.ToolName)
	}
	if !e.allow(step.ToolName) {
		return nil, &CircuitOpenError{Service: step.ToolName}
	}

	// Irreversible tools stage their payload and wait for approval instead
	// of executing.
	if deferred, ok := tool.(undertow.DeferredTool); ok {
		payload, err := deferred.Prepare(ctx, params)
		if err != nil {
			e.recordFailure(step.ToolName)
			return nil, err
		}
		e.recordSuccess(step.ToolName)
		return &stepOutcome{paused: true, payload: payload}, nil
	}
	if step.RequiresConfirmation {
		return &stepOutcome{paused: true, payload: params}, nil
	}

	result, err := tool.Call(ctx, params)
	if err != nil {
		e.recordFailure(step.ToolName)
		return nil, err
	}
	e.recordSuccess(step.ToolName)
	return &stepOutcome{result: result}, nil
}

func (e *Executor) runAnalysisStep(ctx context.Context, workflow *undertow.Workflow, step *undertow.Step, results map[string]any) (*stepOutcome, error) {
	if e.provider == nil {
		return nil, fmt.Errorf("completion provider is required for %s steps", step.Type)
	}
	description, err := resolveText(step.Description, results)
	if err != nil {
		return nil, err
	}
	if !e.allow(completionService) {
		return nil, &CircuitOpenError{Service: completionService}
	}
	result, err := e.complete(ctx, workflow, step, description, results)
	if err != nil {
		e.recordFailure(completionService)
		return nil, err
	}
	e.recordSuccess(completionService)

	// Confirmation-gated analysis computes its result first and holds it
	// until approval.
	if step.RequiresConfirmation {
		return &stepOutcome{paused: true, payload: result}, nil
	}
	return &stepOutcome{result: result}, nil
}

func (e *Executor) runNotificationStep(ctx context.Context, workflow *undertow.Workflow, step *undertow.Step, results map[string]any) (*stepOutcome, error) {
	// Notifications resolve best-effort: a missing reference renders as-is
	// rather than failing the workflow.
	text := fmt.Sprintf("%v", resolver.Resolve(step.Description, results))
	if step.RequiresConfirmation {
		return &stepOutcome{paused: true, payload: map[string]any{"message": text}}, nil
	}
	e.report(ctx, workflow.SessionID, text)
	return &stepOutcome{result: map[string]any{"delivered": true, "message": text}}, nil
}

// commitConfirmedStep executes the held side of an approved step.
func (e *Executor) commitConfirmedStep(ctx context.Context, workflow *undertow.Workflow, step *undertow.Step) (any, error) {
	switch step.Type {
	case undertow.StepTypeToolCall:
		payload, ok := step.Result.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("step %d has no staged tool payload", step.StepNumber)
		}
		tool, found := e.tools.Get(step.ToolName)
		if !found {
			return nil, fmt.Errorf("tool %q is not registered", step.ToolName)
		}
		var result any
		err := e.withRetries(ctx, workflow, step, func() error {
			var callErr error
			result, callErr = tool.Call(ctx, payload)
			if callErr != nil {
				e.recordFailure(step.ToolName)
				return callErr
			}
			e.recordSuccess(step.ToolName)
			return nil
		})
		return result, err
	case undertow.StepTypeNotification:
		text := step.Description
		if payload, ok := step.Result.(map[string]any); ok {
			if message, ok := payload["message"].(string); ok {
				text = message
			}
		}
		e.report(ctx, workflow.SessionID, text)
		return map[string]any{"delivered": true, "message": text}, nil
	default:
		// Analysis and decision results were computed before the pause.
		return step.Result, nil
	}
}

// withRetries applies the executor's transient retry policy to fn.
func (e *Executor) withRetries(ctx context.Context, workflow *undertow.Workflow, step *undertow.Step, fn func() error) error {
	var lastErr error
	for attempt := 1; attempt <= e.maxAttempts; attempt++ {
		if err := fn(); err != nil {
			lastErr = err
			if !isTransient(err) {
				return err
			}
			if attempt == e.maxAttempts {
				break
			}
			if err := e.sleep(ctx, backoffDelay(attempt, e.baseWait, e.maxWait)); err != nil {
				return err
			}
			continue
		}
		return nil
	}
	return fmt.Errorf("exhausted %d attempts: %w", e.maxAttempts, lastErr)
}

func (e *Executor) allow(service string) bool {
	if e.breaker == nil {
		return true
	}
	return e.breaker.Allow(service)
}

func (e *Executor) recordSuccess(service string) {
	if e.breaker != nil {
		e.breaker.RecordSuccess(service)
	}
}

func (e *Executor) recordFailure(service string) {
	if e.breaker != nil {
		e.breaker.RecordFailure(service)
	}
}

// resolveParameters substitutes step references in tool parameters. Any
// reference that cannot be resolved is a hard failure: calling a tool with a
// literal placeholder is never correct.
func resolveParameters(params map[string]any, results map[string]any) (map[string]any, error) {
	if params == nil {
		return map[string]any{}, nil
	}
	resolved := resolver.Resolve(params, results)
	if leftover := resolver.Unresolved(resolved); len(leftover) > 0 {
		return nil, &undertow.UnresolvedReferenceError{References: leftover}
	}
	out, ok := resolved.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("resolved parameters are not an object")
	}
	return out, nil
}

func resolveText(text string, results map[string]any) (string, error) {
	resolved := resolver.Resolve(text, results)
	if leftover := resolver.Unresolved(resolved); len(leftover) > 0 {
		return "", &undertow.UnresolvedReferenceError{References: leftover}
	}
	return fmt.Sprintf("%v", resolved), nil
}
