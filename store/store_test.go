package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/deepnoodle-ai/undertow"
	"github.com/stretchr/testify/require"
)

func testWorkflow(id, sessionID string, createdAt time.Time) *undertow.Workflow {
	return &undertow.Workflow{
		ID:         id,
		SessionID:  sessionID,
		UserIntent: "find an apartment",
		Status:     undertow.WorkflowStatusCreated,
		CreatedAt:  createdAt,
		Steps: []*undertow.Step{
			{StepNumber: 1, Type: undertow.StepTypeToolCall, ToolName: "search", Status: undertow.StepStatusPending},
			{StepNumber: 2, Type: undertow.StepTypeAnalysis, Status: undertow.StepStatusPending},
		},
	}
}

func repositories(t *testing.T) map[string]undertow.WorkflowRepository {
	t.Helper()
	return map[string]undertow.WorkflowRepository{
		"memory": NewMemoryRepository(),
		"file":   NewFileRepository(filepath.Join(t.TempDir(), "workflows.json")),
	}
}

func TestCreateAndGet(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			wf := testWorkflow("wf_1", "sess_1", time.Now())
			require.NoError(t, repo.CreateWorkflow(ctx, wf))
			require.Error(t, repo.CreateWorkflow(ctx, wf))

			loaded, err := repo.GetWorkflow(ctx, "wf_1")
			require.NoError(t, err)
			require.Equal(t, "find an apartment", loaded.UserIntent)
			require.Len(t, loaded.Steps, 2)

			_, err = repo.GetWorkflow(ctx, "wf_missing")
			require.ErrorIs(t, err, undertow.ErrWorkflowNotFound)
		})
	}
}

func TestReturnedWorkflowIsACopy(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, repo.CreateWorkflow(ctx, testWorkflow("wf_1", "sess_1", time.Now())))

			loaded, err := repo.GetWorkflow(ctx, "wf_1")
			require.NoError(t, err)
			loaded.Steps[0].Status = undertow.StepStatusFailed

			reloaded, err := repo.GetWorkflow(ctx, "wf_1")
			require.NoError(t, err)
			require.Equal(t, undertow.StepStatusPending, reloaded.Steps[0].Status)
		})
	}
}

func TestGetWorkflowBySession(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			base := time.Now()
			require.NoError(t, repo.CreateWorkflow(ctx, testWorkflow("wf_1", "sess_1", base)))
			require.NoError(t, repo.CreateWorkflow(ctx, testWorkflow("wf_2", "sess_1", base.Add(time.Minute))))
			require.NoError(t, repo.CreateWorkflow(ctx, testWorkflow("wf_3", "sess_2", base.Add(2*time.Minute))))

			latest, err := repo.GetWorkflowBySession(ctx, "sess_1")
			require.NoError(t, err)
			require.Equal(t, "wf_2", latest.ID)

			_, err = repo.GetWorkflowBySession(ctx, "sess_9")
			require.ErrorIs(t, err, undertow.ErrWorkflowNotFound)
		})
	}
}

func TestUpdateWorkflow(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			wf := testWorkflow("wf_1", "sess_1", time.Now())
			require.NoError(t, repo.CreateWorkflow(ctx, wf))

			wf.Status = undertow.WorkflowStatusRunning
			require.NoError(t, repo.UpdateWorkflow(ctx, wf))

			loaded, err := repo.GetWorkflow(ctx, "wf_1")
			require.NoError(t, err)
			require.Equal(t, undertow.WorkflowStatusRunning, loaded.Status)

			missing := testWorkflow("wf_x", "sess_x", time.Now())
			require.ErrorIs(t, repo.UpdateWorkflow(ctx, missing), undertow.ErrWorkflowNotFound)
		})
	}
}

func TestCompleteStep(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, repo.CreateWorkflow(ctx, testWorkflow("wf_1", "sess_1", time.Now())))

			result := map[string]any{"listings": []any{"a", "b"}}
			require.NoError(t, repo.CompleteStep(ctx, "wf_1", 1, result))

			loaded, err := repo.GetWorkflow(ctx, "wf_1")
			require.NoError(t, err)
			step := loaded.Steps[0]
			require.Equal(t, undertow.StepStatusCompleted, step.Status)
			require.NotNil(t, step.CompletedAt)
			require.Equal(t, result, step.Result)

			require.Error(t, repo.CompleteStep(ctx, "wf_1", 99, nil))
			require.ErrorIs(t, repo.CompleteStep(ctx, "wf_x", 1, nil), undertow.ErrWorkflowNotFound)
		})
	}
}

func TestFileRepositorySurvivesRestart(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "workflows.json")

	first := NewFileRepository(path)
	wf := testWorkflow("wf_1", "sess_1", time.Now())
	require.NoError(t, first.CreateWorkflow(ctx, wf))
	wf.Status = undertow.WorkflowStatusWaitingConfirmation
	require.NoError(t, first.UpdateWorkflow(ctx, wf))

	// A fresh repository instance sees the persisted state.
	second := NewFileRepository(path)
	loaded, err := second.GetWorkflow(ctx, "wf_1")
	require.NoError(t, err)
	require.Equal(t, undertow.WorkflowStatusWaitingConfirmation, loaded.Status)
}
