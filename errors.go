package undertow

import (
	"errors"
	"fmt"
	"strings"
)

// ErrWorkflowNotFound is returned by repositories when no workflow matches.
var ErrWorkflowNotFound = errors.New("workflow not found")

// PlanParseError indicates the completion provider's response did not contain
// an extractable plan. No workflow is persisted.
type PlanParseError struct {
	Reason string
}

func (e *PlanParseError) Error() string {
	return fmt.Sprintf("plan parse error: %s", e.Reason)
}

func NewPlanParseError(format string, args ...any) *PlanParseError {
	return &PlanParseError{Reason: fmt.Sprintf(format, args...)}
}

// InvalidPlanError indicates an extracted plan failed validation. No workflow
// is persisted.
type InvalidPlanError struct {
	Reason string
}

func (e *InvalidPlanError) Error() string {
	return fmt.Sprintf("invalid plan: %s", e.Reason)
}

func NewInvalidPlanError(format string, args ...any) *InvalidPlanError {
	return &InvalidPlanError{Reason: fmt.Sprintf(format, args...)}
}

// UnresolvedReferenceError indicates a step's parameters still contained
// template placeholders after resolution. This is a planning defect, never a
// transient fault: the step fails immediately and is not retried, and no tool
// is invoked with the literal placeholder text.
type UnresolvedReferenceError struct {
	References []string
}

func (e *UnresolvedReferenceError) Error() string {
	return fmt.Sprintf("unresolved references: %s", strings.Join(e.References, ", "))
}
