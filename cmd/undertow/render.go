package main

import (
	"fmt"

	"github.com/fatih/color"

	"github.com/deepnoodle-ai/undertow"
	"github.com/deepnoodle-ai/undertow/executor"
)

var (
	boldStyle    = color.New(color.Bold)
	successStyle = color.New(color.FgGreen)
	warnStyle    = color.New(color.FgYellow)
	errorStyle   = color.New(color.FgRed)
	dimStyle     = color.New(color.Faint)
)

func workflowStatusStyle(status undertow.WorkflowStatus) *color.Color {
	switch status {
	case undertow.WorkflowStatusCompleted:
		return successStyle
	case undertow.WorkflowStatusFailed, undertow.WorkflowStatusCancelled:
		return errorStyle
	case undertow.WorkflowStatusWaitingConfirmation:
		return warnStyle
	default:
		return dimStyle
	}
}

func stepStatusStyle(status undertow.StepStatus) *color.Color {
	switch status {
	case undertow.StepStatusCompleted:
		return successStyle
	case undertow.StepStatusFailed, undertow.StepStatusRejected:
		return errorStyle
	case undertow.StepStatusPendingConfirmation:
		return warnStyle
	default:
		return dimStyle
	}
}

func printWorkflow(workflow *undertow.Workflow) {
	boldStyle.Printf("%s", workflow.ID)
	fmt.Print("  ")
	workflowStatusStyle(workflow.Status).Printf("[%s]\n", workflow.Status)
	dimStyle.Printf("%s\n\n", workflow.UserIntent)
	for _, step := range workflow.Steps {
		stepStatusStyle(step.Status).Printf("  %d. [%s]", step.StepNumber, step.Status)
		fmt.Printf(" %s", stepLabel(step.Description, step.ToolName, step.Type))
		if step.RequiresConfirmation {
			warnStyle.Print("  (requires confirmation)")
		}
		fmt.Println()
		if step.ErrorMessage != "" {
			errorStyle.Printf("     error: %s\n", step.ErrorMessage)
		}
	}
}

func printSnapshot(snapshot *executor.Snapshot) {
	boldStyle.Printf("%s", snapshot.WorkflowID)
	fmt.Print("  ")
	workflowStatusStyle(snapshot.Status).Printf("[%s]\n", snapshot.Status)
	for _, step := range snapshot.Steps {
		stepStatusStyle(step.Status).Printf("  %d. [%s]", step.StepNumber, step.Status)
		fmt.Printf(" %s\n", stepLabel(step.Description, "", step.Type))
		if step.ErrorMessage != "" {
			errorStyle.Printf("     error: %s\n", step.ErrorMessage)
		}
	}
	if snapshot.LatestUpdate != "" {
		dimStyle.Printf("\n%s\n", snapshot.LatestUpdate)
	}
}

func stepLabel(description, toolName string, stepType undertow.StepType) string {
	if description != "" {
		return description
	}
	if toolName != "" {
		return fmt.Sprintf("%s (%s)", toolName, stepType)
	}
	return string(stepType)
}
