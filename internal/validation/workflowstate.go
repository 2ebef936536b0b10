package validation

import (
	"context"
	"fmt"

	"github.com/specdriven/specd/internal/constants"
	"github.com/specdriven/specd/internal/domain"
)

// WorkflowStateRule checks the workflow state against its own
// invariants: every phase before the current one must have passed its
// approval gate, and the overall status must fit the phase.
type WorkflowStateRule struct{}

// ID implements Rule.
func (WorkflowStateRule) ID() string { return "workflow-state" }

// AppliesTo implements Rule.
func (WorkflowStateRule) AppliesTo(constants.Phase) bool { return true }

// Check implements Rule.
func (WorkflowStateRule) Check(_ context.Context, in *Input) []domain.ValidationIssue {
	state := in.State
	if state == nil {
		return nil
	}

	var issues []domain.ValidationIssue
	currentIdx := constants.PhaseIndex(state.CurrentPhase)
	for _, phase := range constants.OrderedPhases() {
		if constants.PhaseIndex(phase) >= currentIdx {
			break
		}
		if state.Approvals[phase] != constants.ApprovalApproved {
			issues = append(issues, domain.ValidationIssue{
				RuleID:   "workflow-state",
				Severity: domain.SeverityError,
				Message: fmt.Sprintf("workflow is in %s but the %s phase is %s, not approved",
					state.CurrentPhase, phase, state.Approvals[phase]),
				Location:   constants.StateFileName,
				Suggestion: "approve the earlier phase or move the workflow back to it",
			})
		}
	}

	if state.CurrentPhase != constants.PhaseExecution {
		switch state.Status {
		case constants.WorkflowStatusInProgress, constants.WorkflowStatusCompleted:
			issues = append(issues, domain.ValidationIssue{
				RuleID:   "workflow-state",
				Severity: domain.SeverityWarning,
				Message: fmt.Sprintf("status %s only applies to the execution phase, workflow is in %s",
					state.Status, state.CurrentPhase),
				Location: constants.StateFileName,
			})
		}
	}

	if state.Recovered() {
		issues = append(issues, domain.ValidationIssue{
			RuleID:   "workflow-state",
			Severity: domain.SeverityWarning,
			Message:  "workflow state was reconstructed by recovery; review phase and approvals",
			Location: constants.StateFileName,
		})
	}
	return issues
}
