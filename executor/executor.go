// Package executor runs workflows step by step: resolving references to
// prior results, dispatching each step by type, retrying transient failures,
// and pausing for human confirmation where a step requires it. All state
// lives in the workflow repository, so any executor instance can resume any
// workflow at any time.
package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/deepnoodle-ai/undertow"
	"github.com/deepnoodle-ai/undertow/breaker"
	"github.com/deepnoodle-ai/undertow/llm"
	"github.com/deepnoodle-ai/undertow/slogger"
)

const (
	DefaultStepDelay     = 500 * time.Millisecond
	DefaultMaxAttempts   = 3
	DefaultRetryBaseWait = 1 * time.Second
	DefaultRetryMaxWait  = 30 * time.Second
)

// completionService is the circuit breaker service name shared by all
// analysis and decision steps.
const completionService = "completion"

// Options configures an Executor.
type Options struct {
	Repository  undertow.WorkflowRepository
	Provider    llm.LLM
	Tools       *undertow.ToolRegistry
	Reporter    undertow.StatusReporter
	Breaker     *breaker.Breaker
	Logger      slogger.Logger
	Model       string
	StepDelay   time.Duration
	MaxAttempts int

	// RetryBaseWait and RetryMaxWait bound the randomized backoff between
	// retries of a transient step failure.
	RetryBaseWait time.Duration
	RetryMaxWait  time.Duration

	// Clock and Sleep are overridable for tests.
	Clock func() time.Time
	Sleep func(ctx context.Context, d time.Duration) error
}

// Executor advances workflows. It holds no per-workflow state.
type Executor struct {
	repository  undertow.WorkflowRepository
	provider    llm.LLM
	tools       *undertow.ToolRegistry
	reporter    undertow.StatusReporter
	breaker     *breaker.Breaker
	logger      slogger.Logger
	model       string
	stepDelay   time.Duration
	maxAttempts int
	baseWait    time.Duration
	maxWait     time.Duration
	now         func() time.Time
	sleep       func(ctx context.Context, d time.Duration) error
}

// New creates an Executor with the given options.
func New(opts Options) (*Executor, error) {
	if opts.Repository == nil {
		return nil, fmt.Errorf("workflow repository is required")
	}
	if opts.Tools == nil {
		opts.Tools = undertow.NewToolRegistry()
	}
	if opts.Logger == nil {
		opts.Logger = slogger.DefaultLogger
	}
	if opts.StepDelay == 0 {
		opts.StepDelay = DefaultStepDelay
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.RetryBaseWait <= 0 {
		opts.RetryBaseWait = DefaultRetryBaseWait
	}
	if opts.RetryMaxWait <= 0 {
		opts.RetryMaxWait = DefaultRetryMaxWait
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Sleep == nil {
		opts.Sleep = sleepContext
	}
	return &Executor{
		repository:  opts.Repository,
		provider:    opts.Provider,
		tools:       opts.Tools,
		reporter:    opts.Reporter,
		breaker:     opts.Breaker,
		logger:      opts.Logger,
		model:       opts.Model,
		stepDelay:   opts.StepDelay,
		maxAttempts: opts.MaxAttempts,
		baseWait:    opts.RetryBaseWait,
		maxWait:     opts.RetryMaxWait,
		now:         opts.Clock,
		sleep:       opts.Sleep,
	}, nil
}

// Run advances the workflow until it completes, fails, or pauses for
// confirmation. Running a workflow that is already terminal or waiting for
// confirmation is a no-op, so Run is safe to call again after a crash or a
// duplicate trigger.
func (e *Executor) Run(ctx context.Context, workflowID string) error {
	workflow, err := e.repository.GetWorkflow(ctx, workflowID)
	if err != nil {
		return err
	}
	if workflow.Status.Terminal() {
		e.logger.Debug("workflow already finished",
			"workflow_id", workflowID, "status", workflow.Status)
		return nil
	}
	if workflow.Status == undertow.WorkflowStatusWaitingConfirmation {
		e.logger.Debug("workflow waiting for confirmation",
			"workflow_id", workflowID)
		return nil
	}
	if workflow.Status == undertow.WorkflowStatusCreated {
		workflow.Status = undertow.WorkflowStatusRunning
		if err := e.repository.UpdateWorkflow(ctx, workflow); err != nil {
			return err
		}
	}
	return e.advance(ctx, workflow)
}

// advance executes the remaining steps of a running workflow in order. The
// workflow aggregate is reloaded from the repository after every completed
// step, so the stored state is always authoritative.
func (e *Executor) advance(ctx context.Context, workflow *undertow.Workflow) error {
	started := false
	for {
		step := workflow.NextPendingStep()
		if step == nil {
			return e.completeWorkflow(ctx, workflow)
		}
		if started {
			if err := e.sleep(ctx, e.stepDelay); err != nil {
				return err
			}
		}
		started = true

		stepNumber := step.StepNumber
		workflow.CurrentStep = &stepNumber
		step.Status = undertow.StepStatusRunning
		if err := e.repository.UpdateWorkflow(ctx, workflow); err != nil {
			return err
		}
		e.report(ctx, workflow.SessionID,
			fmt.Sprintf("Step %d started: %s", stepNumber, step.Description))

		results := completedResults(workflow)
		outcome, err := e.runStepWithRetries(ctx, workflow, step, results)
		if err != nil {
			return e.failWorkflow(ctx, workflow, step, err)
		}
		if outcome.paused {
			return e.pauseWorkflow(ctx, workflow, step, outcome.payload)
		}
		if err := e.repository.CompleteStep(ctx, workflow.ID, stepNumber, outcome.result); err != nil {
			return err
		}
		e.report(ctx, workflow.SessionID,
			fmt.Sprintf("Step %d completed", stepNumber))

		workflow, err = e.repository.GetWorkflow(ctx, workflow.ID)
		if err != nil {
			return err
		}
	}
}

// Confirm resolves a pending confirmation. Approving commits the held step
// and resumes the workflow; rejecting cancels the workflow.
func (e *Executor) Confirm(ctx context.Context, workflowID string, approved bool) error {
	workflow, err := e.repository.GetWorkflow(ctx, workflowID)
	if err != nil {
		return err
	}
	if workflow.Status != undertow.WorkflowStatusWaitingConfirmation {
		return fmt.Errorf("workflow %q is not waiting for confirmation (status %q)",
			workflowID, workflow.Status)
	}
	if workflow.CurrentStep == nil {
		return fmt.Errorf("workflow %q has no current step", workflowID)
	}
	step, found := workflow.StepByNumber(*workflow.CurrentStep)
	if !found || step.Status != undertow.StepStatusPendingConfirmation {
		return fmt.Errorf("workflow %q has no step pending confirmation", workflowID)
	}

	if !approved {
		now := e.now()
		step.Status = undertow.StepStatusRejected
		step.CompletedAt = &now
		workflow.Status = undertow.WorkflowStatusCancelled
		workflow.CompletedAt = &now
		workflow.CurrentStep = nil
		if err := e.repository.UpdateWorkflow(ctx, workflow); err != nil {
			return err
		}
		e.report(ctx, workflow.SessionID,
			fmt.Sprintf("Step %d rejected, workflow cancelled", step.StepNumber))
		e.logger.Info("workflow cancelled by rejection",
			"workflow_id", workflowID, "step", step.StepNumber)
		return nil
	}

	result, err := e.commitConfirmedStep(ctx, workflow, step)
	if err != nil {
		return e.failWorkflow(ctx, workflow, step, err)
	}
	if err := e.repository.CompleteStep(ctx, workflow.ID, step.StepNumber, result); err != nil {
		return err
	}
	// Reload so the completion just persisted is not clobbered by the
	// status update.
	workflow, err = e.repository.GetWorkflow(ctx, workflowID)
	if err != nil {
		return err
	}
	workflow.Status = undertow.WorkflowStatusRunning
	workflow.CurrentStep = nil
	if err := e.repository.UpdateWorkflow(ctx, workflow); err != nil {
		return err
	}
	e.report(ctx, workflow.SessionID,
		fmt.Sprintf("Step %d confirmed and completed", step.StepNumber))
	return e.Run(ctx, workflowID)
}

// Cancel stops a workflow that has not yet finished. The in-flight step, if
// any, is marked cancelled.
func (e *Executor) Cancel(ctx context.Context, workflowID string) error {
	workflow, err := e.repository.GetWorkflow(ctx, workflowID)
	if err != nil {
		return err
	}
	if workflow.Status.Terminal() {
		return fmt.Errorf("workflow %q is already finished (status %q)",
			workflowID, workflow.Status)
	}
	now := e.now()
	if workflow.CurrentStep != nil {
		if step, found := workflow.StepByNumber(*workflow.CurrentStep); found &&
			step.Status != undertow.StepStatusCompleted {
			step.Status = undertow.StepStatusCancelled
			step.CompletedAt = &now
		}
	}
	workflow.Status = undertow.WorkflowStatusCancelled
	workflow.CompletedAt = &now
	workflow.CurrentStep = nil
	if err := e.repository.UpdateWorkflow(ctx, workflow); err != nil {
		return err
	}
	e.report(ctx, workflow.SessionID, "Workflow cancelled")
	return nil
}

// StepSnapshot summarizes one step for status queries.
type StepSnapshot struct {
	StepNumber   int                    `json:"step_number"`
	Type         undertow.StepType      `json:"type"`
	Description  string                 `json:"description"`
	Status       undertow.StepStatus    `json:"status"`
	ErrorMessage string                 `json:"error_message,omitempty"`
}

// Snapshot is a read-only view of the latest workflow for a session.
type Snapshot struct {
	WorkflowID   string                  `json:"workflow_id"`
	SessionID    string                  `json:"session_id"`
	Status       undertow.WorkflowStatus `json:"status"`
	CurrentStep  *int                    `json:"current_step,omitempty"`
	Steps        []StepSnapshot          `json:"steps"`
	LatestUpdate string                  `json:"latest_update,omitempty"`
}

// Status returns a snapshot of the most recent workflow for the session.
func (e *Executor) Status(ctx context.Context, sessionID string) (*Snapshot, error) {
	workflow, err := e.repository.GetWorkflowBySession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	snapshot := &Snapshot{
		WorkflowID:  workflow.ID,
		SessionID:   workflow.SessionID,
		Status:      workflow.Status,
		CurrentStep: workflow.CurrentStep,
	}
	for _, step := range workflow.Steps {
		snapshot.Steps = append(snapshot.Steps, StepSnapshot{
			StepNumber:   step.StepNumber,
			Type:         step.Type,
			Description:  step.Description,
			Status:       step.Status,
			ErrorMessage: step.ErrorMessage,
		})
	}
	if e.reporter != nil {
		if latest, err := e.reporter.Latest(ctx, sessionID); err == nil && latest != nil {
			snapshot.LatestUpdate = latest.Message
		}
	}
	return snapshot, nil
}

func (e *Executor) pauseWorkflow(ctx context.Context, workflow *undertow.Workflow, step *undertow.Step, payload any) error {
	step.Status = undertow.StepStatusPendingConfirmation
	step.Result = payload
	stepNumber := step.StepNumber
	workflow.Status = undertow.WorkflowStatusWaitingConfirmation
	workflow.CurrentStep = &stepNumber
	if err := e.repository.UpdateWorkflow(ctx, workflow); err != nil {
		return err
	}
	e.report(ctx, workflow.SessionID,
		fmt.Sprintf("Waiting for confirmation before step %d: %s",
			stepNumber, step.Description))
	e.logger.Info("workflow paused for confirmation",
		"workflow_id", workflow.ID, "step", stepNumber)
	return nil
}

func (e *Executor) failWorkflow(ctx context.Context, workflow *undertow.Workflow, step *undertow.Step, stepErr error) error {
	now := e.now()
	step.Status = undertow.StepStatusFailed
	step.ErrorMessage = stepErr.Error()
	step.CompletedAt = &now
	workflow.Status = undertow.WorkflowStatusFailed
	workflow.CompletedAt = &now
	workflow.CurrentStep = nil
	if err := e.repository.UpdateWorkflow(ctx, workflow); err != nil {
		return err
	}
	e.report(ctx, workflow.SessionID,
		fmt.Sprintf("Step %d failed: %s", step.StepNumber, stepErr.Error()))
	e.logger.Error("workflow failed",
		"workflow_id", workflow.ID, "step", step.StepNumber, "error", stepErr)
	return fmt.Errorf("step %d failed: %w", step.StepNumber, stepErr)
}

func (e *Executor) completeWorkflow(ctx context.Context, workflow *undertow.Workflow) error {
	now := e.now()
	workflow.Status = undertow.WorkflowStatusCompleted
	workflow.CompletedAt = &now
	workflow.CurrentStep = nil
	if err := e.repository.UpdateWorkflow(ctx, workflow); err != nil {
		return err
	}
	e.report(ctx, workflow.SessionID, "Workflow completed")
	e.logger.Info("workflow completed", "workflow_id", workflow.ID)
	return nil
}

func (e *Executor) report(ctx context.Context, sessionID, message string) {
	if e.reporter == nil {
		return
	}
	if err := e.reporter.Append(ctx, sessionID, message); err != nil {
		e.logger.Warn("failed to record status update",
			"session_id", sessionID, "error", err)
	}
}

// completedResults builds the reference context from completed steps only,
// so a step can never see the output of a later step.
func completedResults(workflow *undertow.Workflow) map[string]any {
	results := map[string]any{}
	for _, step := range workflow.Steps {
		if step.Status == undertow.StepStatusCompleted {
			results[stepKey(step.StepNumber)] = map[string]any{"result": step.Result}
		}
	}
	return results
}

func stepKey(n int) string {
	return fmt.Sprintf("step_%d", n)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
