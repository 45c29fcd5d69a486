// Package store provides WorkflowRepository implementations. The repository
// is the single source of truth for workflow state: callers always receive
// copies, never aliases of stored data.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/deepnoodle-ai/undertow"
)

var _ undertow.WorkflowRepository = &MemoryRepository{}

// MemoryRepository is an in-memory WorkflowRepository, suitable for tests
// and single-process runs without durability requirements.
type MemoryRepository struct {
	mu        sync.RWMutex
	workflows map[string]*undertow.Workflow
}

// NewMemoryRepository creates an empty MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{workflows: map[string]*undertow.Workflow{}}
}

func (r *MemoryRepository) CreateWorkflow(ctx context.Context, workflow *undertow.Workflow) error {
	if workflow.ID == "" {
		return fmt.Errorf("workflow id is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.workflows[workflow.ID]; exists {
		return fmt.Errorf("workflow %q already exists", workflow.ID)
	}
	copied, err := cloneWorkflow(workflow)
	if err != nil {
		return err
	}
	r.workflows[workflow.ID] = copied
	return nil
}

func (r *MemoryRepository) GetWorkflow(ctx context.Context, id string) (*undertow.Workflow, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	workflow, ok := r.workflows[id]
	if !ok {
		return nil, undertow.ErrWorkflowNotFound
	}
	return cloneWorkflow(workflow)
}

func (r *MemoryRepository) GetWorkflowBySession(ctx context.Context, sessionID string) (*undertow.Workflow, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var latest *undertow.Workflow
	for _, workflow := range r.workflows {
		if workflow.SessionID != sessionID {
			continue
		}
		if latest == nil || workflow.CreatedAt.After(latest.CreatedAt) {
			latest = workflow
		}
	}
	if latest == nil {
		return nil, undertow.ErrWorkflowNotFound
	}
	return cloneWorkflow(latest)
}

func (r *MemoryRepository) UpdateWorkflow(ctx context.Context, workflow *undertow.Workflow) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.workflows[workflow.ID]; !exists {
		return undertow.ErrWorkflowNotFound
	}
	copied, err := cloneWorkflow(workflow)
	if err != nil {
		return err
	}
	r.workflows[workflow.ID] = copied
	return nil
}

func (r *MemoryRepository) CompleteStep(ctx context.Context, workflowID string, stepNumber int, result any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	workflow, ok := r.workflows[workflowID]
	if !ok {
		return undertow.ErrWorkflowNotFound
	}
	return completeStep(workflow, stepNumber, result)
}

// completeStep applies the atomic "mark step N completed with result R"
// mutation to a stored workflow.
func completeStep(workflow *undertow.Workflow, stepNumber int, result any) error {
	step, ok := workflow.StepByNumber(stepNumber)
	if !ok {
		return fmt.Errorf("workflow %q has no step %d", workflow.ID, stepNumber)
	}
	now := nowFunc()
	step.Status = undertow.StepStatusCompleted
	step.Result = result
	step.ErrorMessage = ""
	step.CompletedAt = &now
	return nil
}

// cloneWorkflow deep-copies a workflow through JSON so stored state can
// never be mutated through a returned pointer.
func cloneWorkflow(workflow *undertow.Workflow) (*undertow.Workflow, error) {
	data, err := json.Marshal(workflow)
	if err != nil {
		return nil, fmt.Errorf("error copying workflow: %w", err)
	}
	var copied undertow.Workflow
	if err := json.Unmarshal(data, &copied); err != nil {
		return nil, fmt.Errorf("error copying workflow: %w", err)
	}
	return &copied, nil
}
