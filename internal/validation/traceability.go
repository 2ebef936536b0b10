package validation

import (
	"context"
	"fmt"
	"sort"

	"github.com/specdriven/specd/internal/constants"
	"github.com/specdriven/specd/internal/domain"
	"github.com/specdriven/specd/internal/task"
)

// TraceabilityRule cross-checks task requirement references against the
// acceptance criteria declared in the requirements document. Both
// directions are warnings: a dangling reference suggests a typo, an
// uncovered criterion suggests missing work.
type TraceabilityRule struct{}

// ID implements Rule.
func (TraceabilityRule) ID() string { return "traceability" }

// AppliesTo implements Rule.
func (TraceabilityRule) AppliesTo(phase constants.Phase) bool {
	return constants.PhaseIndex(phase) >= constants.PhaseIndex(constants.PhaseTasks)
}

// Check implements Rule.
func (TraceabilityRule) Check(_ context.Context, in *Input) []domain.ValidationIssue {
	reqContent, haveReqs := in.Doc(constants.DocRequirements)
	tasksContent, haveTasks := in.Doc(constants.DocTasks)
	if !haveReqs || !haveTasks {
		return nil
	}

	declared := acceptanceIDs(reqContent)
	list, err := task.Parse(tasksContent)
	if err != nil {
		return nil // tasks-structure reports parse failures
	}

	var issues []domain.ValidationIssue
	covered := make(map[string]bool)
	for _, t := range list.Tasks {
		for _, ref := range t.Requirements {
			covered[ref] = true
			if !declared[ref] {
				issues = append(issues, domain.ValidationIssue{
					RuleID:     "traceability",
					Severity:   domain.SeverityWarning,
					Message:    fmt.Sprintf("task %s references unknown acceptance criterion %q", t.ID, ref),
					Location:   fmt.Sprintf("%s:%d", constants.TasksFileName, t.Line+1),
					Suggestion: "fix the reference or add the criterion to the requirements document",
				})
			}
		}
	}

	uncovered := make([]string, 0, len(declared))
	for id := range declared {
		if !covered[id] {
			uncovered = append(uncovered, id)
		}
	}
	sort.Strings(uncovered)
	for _, id := range uncovered {
		issues = append(issues, domain.ValidationIssue{
			RuleID:     "traceability",
			Severity:   domain.SeverityWarning,
			Message:    fmt.Sprintf("acceptance criterion %s is not referenced by any task", id),
			Location:   constants.RequirementsFileName,
			Suggestion: "add a task covering it or remove the criterion",
		})
	}
	return issues
}

// acceptanceIDs extracts the set of declared acceptance-criterion IDs.
func acceptanceIDs(requirements string) map[string]bool {
	ids := make(map[string]bool)
	for _, match := range acceptanceIDRegex.FindAllStringSubmatch(requirements, -1) {
		ids[match[1]] = true
	}
	return ids
}
