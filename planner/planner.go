// Package planner turns free-text user intent into a validated, persisted
// workflow. The completion provider proposes a plan; the planner extracts,
// validates, and normalizes it. Nothing is persisted unless the whole plan
// is valid.
package planner

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/deepnoodle-ai/undertow"
	"github.com/deepnoodle-ai/undertow/extract"
	"github.com/deepnoodle-ai/undertow/llm"
	"github.com/deepnoodle-ai/undertow/slogger"
)

// Options configures a Planner.
type Options struct {
	Provider   llm.LLM
	Repository undertow.WorkflowRepository
	Tools      *undertow.ToolRegistry
	Logger     slogger.Logger
	Model      string

	// MaxSteps bounds plan size. Default 20.
	MaxSteps int

	// Clock overrides time.Now in tests.
	Clock func() time.Time
}

// Planner creates workflows from user intent.
type Planner struct {
	provider   llm.LLM
	repository undertow.WorkflowRepository
	tools      *undertow.ToolRegistry
	logger     slogger.Logger
	model      string
	maxSteps   int
	now        func() time.Time
}

// New creates a Planner.
func New(opts Options) (*Planner, error) {
	if opts.Provider == nil {
		return nil, fmt.Errorf("completion provider is required")
	}
	if opts.Repository == nil {
		return nil, fmt.Errorf("workflow repository is required")
	}
	if opts.Tools == nil {
		opts.Tools = undertow.NewToolRegistry()
	}
	if opts.Logger == nil {
		opts.Logger = slogger.DefaultLogger
	}
	if opts.MaxSteps <= 0 {
		opts.MaxSteps = 20
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &Planner{
		provider:   opts.Provider,
		repository: opts.Repository,
		tools:      opts.Tools,
		logger:     opts.Logger,
		model:      opts.Model,
		maxSteps:   opts.MaxSteps,
		now:        opts.Clock,
	}, nil
}

// CreateWorkflow plans the given intent and persists the resulting workflow
// with all steps pending. It returns a PlanParseError if no plan could be
// extracted from the provider response and an InvalidPlanError if the
// extracted plan fails validation.
func (p *Planner) CreateWorkflow(ctx context.Context, intent, sessionID string) (*undertow.Workflow, error) {
	if strings.TrimSpace(intent) == "" {
		return nil, undertow.NewInvalidPlanError("user intent is empty")
	}
	if sessionID == "" {
		return nil, fmt.Errorf("session id is required")
	}

	prompt, err := p.buildPrompt(intent)
	if err != nil {
		return nil, fmt.Errorf("error building planning prompt: %w", err)
	}

	genOpts := []llm.Option{
		llm.WithSystemPrompt(plannerSystemPrompt),
		llm.WithUserTextMessage(prompt),
	}
	if p.model != "" {
		genOpts = append(genOpts, llm.WithModel(p.model))
	}
	response, err := p.provider.Generate(ctx, genOpts...)
	if err != nil {
		return nil, fmt.Errorf("error generating plan: %w", err)
	}

	plan, err := extract.ParseObjectWithKey(response.Text(), "steps")
	if err != nil {
		return nil, undertow.NewPlanParseError("no steps object found in provider response")
	}

	steps, err := p.stepsFromPlan(plan)
	if err != nil {
		return nil, err
	}

	workflow := &undertow.Workflow{
		ID:         undertow.NewWorkflowID(),
		SessionID:  sessionID,
		UserIntent: intent,
		Status:     undertow.WorkflowStatusCreated,
		Steps:      steps,
		CreatedAt:  p.now(),
	}
	if err := workflow.Validate(); err != nil {
		return nil, undertow.NewInvalidPlanError("%s", err.Error())
	}
	if err := p.repository.CreateWorkflow(ctx, workflow); err != nil {
		return nil, fmt.Errorf("error persisting workflow: %w", err)
	}
	p.logger.Info("workflow created",
		"workflow_id", workflow.ID,
		"session_id", sessionID,
		"steps", len(steps))
	return workflow, nil
}
