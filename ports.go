package undertow

import (
	"context"
	"time"
)

// StatusUpdate is one entry in a session's progress log.
type StatusUpdate struct {
	SessionID string    `json:"session_id"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// StatusReporter is an append-only progress log keyed by session id,
// ordered by time and queryable incrementally.
type StatusReporter interface {

	// Append adds a message to the session's log.
	Append(ctx context.Context, sessionID, message string) error

	// Latest returns the most recent update for the session, or nil if the
	// session has no updates.
	Latest(ctx context.Context, sessionID string) (*StatusUpdate, error)

	// Since returns all updates recorded strictly after the given time,
	// in order.
	Since(ctx context.Context, sessionID string, t time.Time) ([]*StatusUpdate, error)

	// Clear removes all updates for the session.
	Clear(ctx context.Context, sessionID string) error
}

// WorkflowRepository persists Workflow aggregates. Implementations are the
// single source of truth for workflow and step state: the executor's
// in-memory view is always reconstructed from here on resume.
type WorkflowRepository interface {

	// CreateWorkflow persists a new workflow together with all of its steps.
	CreateWorkflow(ctx context.Context, workflow *Workflow) error

	// GetWorkflow returns the workflow with the given id, or
	// ErrWorkflowNotFound.
	GetWorkflow(ctx context.Context, id string) (*Workflow, error)

	// GetWorkflowBySession returns the most recently created workflow for the
	// session, or ErrWorkflowNotFound.
	GetWorkflowBySession(ctx context.Context, sessionID string) (*Workflow, error)

	// UpdateWorkflow replaces the stored workflow state.
	UpdateWorkflow(ctx context.Context, workflow *Workflow) error

	// CompleteStep atomically marks step n of the workflow completed with the
	// given result.
	CompleteStep(ctx context.Context, workflowID string, stepNumber int, result any) error
}

// EmailMessage is an outbound email payload.
type EmailMessage struct {
	To          []string     `json:"to"`
	Subject     string       `json:"subject"`
	Body        string       `json:"body"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// Mailer abstracts outbound email delivery. Delivery technology is external
// to the engine.
type Mailer interface {
	Send(ctx context.Context, message *EmailMessage) error
}
