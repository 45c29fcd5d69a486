package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/deepnoodle-ai/undertow"
)

var _ undertow.WorkflowRepository = &FileRepository{}

// FileRepository is a file-based WorkflowRepository that persists all
// workflows to a single JSON file. Writes go through a temp file and rename
// so a crash mid-write never corrupts the store. A workflow can pause in one
// process and resume in another as long as both point at the same file.
type FileRepository struct {
	mu        sync.Mutex
	filePath  string
	workflows map[string]*undertow.Workflow
	loaded    bool
}

// NewFileRepository creates a FileRepository backed by the given file.
func NewFileRepository(filePath string) *FileRepository {
	return &FileRepository{
		filePath:  filePath,
		workflows: map[string]*undertow.Workflow{},
	}
}

// load reads the file into memory on first use. Callers must hold r.mu.
func (r *FileRepository) load() error {
	if r.loaded {
		return nil
	}
	dir := filepath.Dir(r.filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating directory %s: %w", dir, err)
	}
	data, err := os.ReadFile(r.filePath)
	if os.IsNotExist(err) {
		r.loaded = true
		return nil
	}
	if err != nil {
		return fmt.Errorf("error reading workflow store %s: %w", r.filePath, err)
	}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &r.workflows); err != nil {
			return fmt.Errorf("error parsing workflow store %s: %w", r.filePath, err)
		}
	}
	r.loaded = true
	return nil
}

// save writes the store atomically. Callers must hold r.mu.
func (r *FileRepository) save() error {
	data, err := json.MarshalIndent(r.workflows, "", "  ")
	if err != nil {
		return fmt.Errorf("error serializing workflow store: %w", err)
	}
	tmpPath := r.filePath + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("error writing workflow store: %w", err)
	}
	if err := os.Rename(tmpPath, r.filePath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("error replacing workflow store: %w", err)
	}
	return nil
}

func (r *FileRepository) CreateWorkflow(ctx context.Context, workflow *undertow.Workflow) error {
	if workflow.ID == "" {
		return fmt.Errorf("workflow id is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.load(); err != nil {
		return err
	}
	if _, exists := r.workflows[workflow.ID]; exists {
		return fmt.Errorf("workflow %q already exists", workflow.ID)
	}
	copied, err := cloneWorkflow(workflow)
	if err != nil {
		return err
	}
	r.workflows[workflow.ID] = copied
	return r.save()
}

func (r *FileRepository) GetWorkflow(ctx context.Context, id string) (*undertow.Workflow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.load(); err != nil {
		return nil, err
	}
	workflow, ok := r.workflows[id]
	if !ok {
		return nil, undertow.ErrWorkflowNotFound
	}
	return cloneWorkflow(workflow)
}

func (r *FileRepository) GetWorkflowBySession(ctx context.Context, sessionID string) (*undertow.Workflow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.load(); err != nil {
		return nil, err
	}
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

func (r *FileRepository) UpdateWorkflow(ctx context.Context, workflow *undertow.Workflow) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.load(); err != nil {
		return err
	}
	if _, exists := r.workflows[workflow.ID]; !exists {
		return undertow.ErrWorkflowNotFound
	}
	copied, err := cloneWorkflow(workflow)
	if err != nil {
		return err
	}
	r.workflows[workflow.ID] = copied
	return r.save()
}

func (r *FileRepository) CompleteStep(ctx context.Context, workflowID string, stepNumber int, result any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.load(); err != nil {
		return err
	}
	workflow, ok := r.workflows[workflowID]
	if !ok {
		return undertow.ErrWorkflowNotFound
	}
	if err := completeStep(workflow, stepNumber, result); err != nil {
		return err
	}
	return r.save()
}
