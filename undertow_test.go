package undertow

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWorkflowValidate(t *testing.T) {
	wf := &Workflow{
		ID:        NewWorkflowID(),
		SessionID: NewSessionID(),
		Status:    WorkflowStatusCreated,
		Steps: []*Step{
			{StepNumber: 1, Type: StepTypeToolCall, ToolName: "web_fetch", Status: StepStatusPending},
			{StepNumber: 2, Type: StepTypeAnalysis, Status: StepStatusPending},
		},
	}
	require.NoError(t, wf.Validate())

	wf.Steps[1].StepNumber = 3
	err := wf.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "contiguous")

	wf.Steps[1].StepNumber = 2
	wf.Steps[0].ToolName = ""
	err = wf.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "without a tool name")
}

func TestWorkflowValidateStepType(t *testing.T) {
	wf := &Workflow{
		ID:        "wf_1",
		SessionID: "sess_1",
		Steps: []*Step{
			{StepNumber: 1, Type: StepType("parallel"), Status: StepStatusPending},
		},
	}
	err := wf.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "invalid type")
}

func TestNextPendingStep(t *testing.T) {
	wf := &Workflow{
		Steps: []*Step{
			{StepNumber: 1, Status: StepStatusCompleted},
			{StepNumber: 2, Status: StepStatusPendingConfirmation},
			{StepNumber: 3, Status: StepStatusPending},
		},
	}
	next := wf.NextPendingStep()
	require.NotNil(t, next)
	require.Equal(t, 2, next.StepNumber)

	wf.Steps[1].Status = StepStatusCompleted
	wf.Steps[2].Status = StepStatusCompleted
	require.Nil(t, wf.NextPendingStep())
}

func TestStatusTerminal(t *testing.T) {
	require.True(t, WorkflowStatusCompleted.Terminal())
	require.True(t, WorkflowStatusFailed.Terminal())
	require.True(t, WorkflowStatusCancelled.Terminal())
	require.False(t, WorkflowStatusRunning.Terminal())
	require.False(t, WorkflowStatusWaitingConfirmation.Terminal())
}

func TestNewWorkflowID(t *testing.T) {
	id := NewWorkflowID()
	require.True(t, strings.HasPrefix(id, "wf_"))
	require.NotEqual(t, id, NewWorkflowID())
}

type staticTool struct {
	name string
}

func (t *staticTool) Definition() *ToolDefinition {
	return &ToolDefinition{Name: t.name, Description: "static"}
}

func (t *staticTool) Call(ctx context.Context, params map[string]any) (any, error) {
	return map[string]any{"ok": true}, nil
}

func TestToolRegistry(t *testing.T) {
	registry := NewToolRegistry()
	require.NoError(t, registry.Register(&staticTool{name: "beta"}))
	require.NoError(t, registry.Register(&staticTool{name: "alpha"}))
	require.Error(t, registry.Register(&staticTool{name: "alpha"}))

	_, ok := registry.Get("alpha")
	require.True(t, ok)
	_, ok = registry.Get("gamma")
	require.False(t, ok)

	defs := registry.Definitions()
	require.Len(t, defs, 2)
	require.Equal(t, "alpha", defs[0].Name)
	require.Equal(t, "beta", defs[1].Name)

	_, err := registry.Invoke(context.Background(), "gamma", nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown tool")
}
