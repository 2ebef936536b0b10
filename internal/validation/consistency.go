package validation

import (
	"context"
	"strings"

	"github.com/specdriven/specd/internal/constants"
	"github.com/specdriven/specd/internal/domain"
)

// ConsistencyRule checks that the documents agree with each other at a
// coarse level: later documents should not exist while earlier ones are
// blank, and a design should acknowledge the requirements it serves.
type ConsistencyRule struct{}

// ID implements Rule.
func (ConsistencyRule) ID() string { return "consistency" }

// AppliesTo implements Rule.
func (ConsistencyRule) AppliesTo(phase constants.Phase) bool {
	return constants.PhaseIndex(phase) >= constants.PhaseIndex(constants.PhaseDesign)
}

// Check implements Rule.
func (ConsistencyRule) Check(_ context.Context, in *Input) []domain.ValidationIssue {
	var issues []domain.ValidationIssue

	requirements, haveReqs := in.Doc(constants.DocRequirements)
	design, haveDesign := in.Doc(constants.DocDesign)
	tasks, haveTasks := in.Doc(constants.DocTasks)

	if haveDesign && strings.TrimSpace(design) != "" {
		if !haveReqs || strings.TrimSpace(requirements) == "" {
			issues = append(issues, domain.ValidationIssue{
				RuleID:     "consistency",
				Severity:   domain.SeverityWarning,
				Message:    "design exists but the requirements document is empty",
				Location:   constants.DesignFileName,
				Suggestion: "author requirements before or alongside the design",
			})
		} else if !strings.Contains(strings.ToLower(design), "requirement") {
			issues = append(issues, domain.ValidationIssue{
				RuleID:   "consistency",
				Severity: domain.SeverityInfo,
				Message:  "design never mentions the requirements it addresses",
				Location: constants.DesignFileName,
			})
		}
	}

	if haveTasks && strings.TrimSpace(tasks) != "" {
		if !haveDesign || strings.TrimSpace(design) == "" {
			issues = append(issues, domain.ValidationIssue{
				RuleID:     "consistency",
				Severity:   domain.SeverityWarning,
				Message:    "tasks exist but the design document is empty",
				Location:   constants.TasksFileName,
				Suggestion: "derive tasks from an authored design",
			})
		}
	}
	return issues
}
