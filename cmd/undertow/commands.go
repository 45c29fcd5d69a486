package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/deepnoodle-ai/undertow"
)

var planCmd = &cobra.Command{
	Use:   "plan <intent...>",
	Short: "Create a workflow from a natural-language request",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp()
		if err != nil {
			return err
		}
		intent := strings.Join(args, " ")
		workflow, err := app.Planner.CreateWorkflow(cmd.Context(), intent, sessionID)
		if err != nil {
			return err
		}
		printWorkflow(workflow)
		fmt.Printf("\nRun it with: undertow run %s\n", workflow.ID)
		return nil
	},
}

var runWorkflowID string

var runCmd = &cobra.Command{
	Use:   "run [workflow-id]",
	Short: "Execute a workflow until it completes or pauses for confirmation",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp()
		if err != nil {
			return err
		}
		id, err := resolveWorkflowID(cmd, app, args)
		if err != nil {
			return err
		}
		if err := app.Executor.Run(cmd.Context(), id); err != nil {
			return err
		}
		workflow, err := app.Repository.GetWorkflow(cmd.Context(), id)
		if err != nil {
			return err
		}
		printWorkflow(workflow)
		if workflow.Status == undertow.WorkflowStatusWaitingConfirmation {
			fmt.Printf("\nApprove with:  undertow confirm %s --approve\n", workflow.ID)
			fmt.Printf("Reject with:   undertow confirm %s --reject\n", workflow.ID)
		}
		return nil
	},
}

var (
	confirmApprove bool
	confirmReject  bool
)

var confirmCmd = &cobra.Command{
	Use:   "confirm <workflow-id>",
	Short: "Approve or reject a workflow step that is waiting for confirmation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if confirmApprove == confirmReject {
			return fmt.Errorf("pass exactly one of --approve or --reject")
		}
		app, err := newApp()
		if err != nil {
			return err
		}
		if err := app.Executor.Confirm(cmd.Context(), args[0], confirmApprove); err != nil {
			return err
		}
		workflow, err := app.Repository.GetWorkflow(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		printWorkflow(workflow)
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the latest workflow for the session",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp()
		if err != nil {
			return err
		}
		snapshot, err := app.Executor.Status(cmd.Context(), sessionID)
		if err != nil {
			return err
		}
		printSnapshot(snapshot)
		return nil
	},
}

var cancelCmd = &cobra.Command{
	Use:   "cancel [workflow-id]",
	Short: "Cancel a workflow that has not finished",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp()
		if err != nil {
			return err
		}
		id, err := resolveWorkflowID(cmd, app, args)
		if err != nil {
			return err
		}
		if err := app.Executor.Cancel(cmd.Context(), id); err != nil {
			return err
		}
		fmt.Printf("Workflow %s cancelled\n", id)
		return nil
	},
}

func init() {
	confirmCmd.Flags().BoolVar(&confirmApprove, "approve", false, "Approve the pending step")
	confirmCmd.Flags().BoolVar(&confirmReject, "reject", false, "Reject the pending step and cancel the workflow")
}

// resolveWorkflowID uses the explicit argument when given, otherwise the
// session's most recent workflow.
func resolveWorkflowID(cmd *cobra.Command, app *App, args []string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	workflow, err := app.Repository.GetWorkflowBySession(cmd.Context(), sessionID)
	if err != nil {
		return "", fmt.Errorf("no workflow found for session %q: %w", sessionID, err)
	}
	return workflow.ID, nil
}
