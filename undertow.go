package undertow

import (
	"fmt"
	"time"
)

// WorkflowStatus indicates where a Workflow is in its lifecycle.
type WorkflowStatus string

const (
	WorkflowStatusCreated             WorkflowStatus = "created"
	WorkflowStatusRunning             WorkflowStatus = "running"
	WorkflowStatusWaitingConfirmation WorkflowStatus = "waiting_confirmation"
	WorkflowStatusCompleted           WorkflowStatus = "completed"
	WorkflowStatusFailed              WorkflowStatus = "failed"
	WorkflowStatusCancelled           WorkflowStatus = "cancelled"
)

// Terminal returns true if no further mutation of the workflow is allowed.
func (s WorkflowStatus) Terminal() bool {
	switch s {
	case WorkflowStatusCompleted, WorkflowStatusFailed, WorkflowStatusCancelled:
		return true
	}
	return false
}

// StepStatus indicates a Step's execution status.
type StepStatus string

const (
	StepStatusPending             StepStatus = "pending"
	StepStatusRunning             StepStatus = "running"
	StepStatusCompleted           StepStatus = "completed"
	StepStatusFailed              StepStatus = "failed"
	StepStatusCancelled           StepStatus = "cancelled"
	StepStatusPendingConfirmation StepStatus = "pending_confirmation"
	StepStatusRejected            StepStatus = "rejected"
)

// StepType is the closed set of step kinds the executor knows how to run.
type StepType string

const (
	StepTypeToolCall     StepType = "tool_call"
	StepTypeAnalysis     StepType = "analysis"
	StepTypeDecision     StepType = "decision"
	StepTypeNotification StepType = "notification"
)

// Valid returns true if the step type is one of the known kinds.
func (t StepType) Valid() bool {
	switch t {
	case StepTypeToolCall, StepTypeAnalysis, StepTypeDecision, StepTypeNotification:
		return true
	}
	return false
}

// OutputFormat describes the fields an analysis or decision step is expected
// to produce. Field values are type hints ("string", "number", ...).
type OutputFormat struct {
	Fields map[string]string `json:"fields"`
}

// Attachment is a typed reference carried in tool parameters, e.g. a document
// id or a URL. Planner normalization coerces the various shapes providers
// emit into this form.
type Attachment struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

const (
	AttachmentTypeURL       = "url"
	AttachmentTypeReference = "reference"
)

// Step is one unit of work within a Workflow. Step order is fixed at planning
// time and steps execute strictly sequentially.
type Step struct {
	StepNumber           int            `json:"step_number"`
	Type                 StepType       `json:"type"`
	Description          string         `json:"description"`
	ToolName             string         `json:"tool_name,omitempty"`
	ToolParameters       map[string]any `json:"tool_parameters,omitempty"`
	RequiresConfirmation bool           `json:"requires_confirmation,omitempty"`
	ExpectedOutput       *OutputFormat  `json:"expected_output,omitempty"`
	Status               StepStatus     `json:"status"`
	Result               any            `json:"result,omitempty"`
	ErrorMessage         string         `json:"error_message,omitempty"`
	CompletedAt          *time.Time     `json:"completed_at,omitempty"`
}

// Workflow is one end-to-end execution of a decomposed user intent. It is
// created by the planner with all steps pending and mutated only by the
// executor. The repository copy is the single source of truth.
type Workflow struct {
	ID          string         `json:"id"`
	SessionID   string         `json:"session_id"`
	UserIntent  string         `json:"user_intent"`
	Status      WorkflowStatus `json:"status"`
	CurrentStep *int           `json:"current_step,omitempty"`
	Steps       []*Step        `json:"steps"`
	CreatedAt   time.Time      `json:"created_at"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
}

// StepByNumber returns the step with the given 1-based number, if present.
func (w *Workflow) StepByNumber(n int) (*Step, bool) {
	for _, step := range w.Steps {
		if step.StepNumber == n {
			return step, true
		}
	}
	return nil, false
}

// NextPendingStep returns the lowest-numbered step that has not completed,
// or nil if all steps are done.
func (w *Workflow) NextPendingStep() *Step {
	for _, step := range w.Steps {
		if step.Status != StepStatusCompleted {
			return step
		}
	}
	return nil
}

// Validate checks the structural invariants of a planned workflow: non-empty
// contiguous 1-based step numbering and valid step types.
func (w *Workflow) Validate() error {
	if w.ID == "" {
		return fmt.Errorf("workflow id required")
	}
	if w.SessionID == "" {
		return fmt.Errorf("workflow session id required")
	}
	if len(w.Steps) == 0 {
		return fmt.Errorf("workflow steps required")
	}
	for i, step := range w.Steps {
		if step.StepNumber != i+1 {
			return fmt.Errorf("step numbers must be contiguous: position %d has number %d", i+1, step.StepNumber)
		}
		if !step.Type.Valid() {
			return fmt.Errorf("step %d has invalid type %q", step.StepNumber, step.Type)
		}
		if step.Type == StepTypeToolCall && step.ToolName == "" {
			return fmt.Errorf("step %d is a tool call without a tool name", step.StepNumber)
		}
	}
	return nil
}
