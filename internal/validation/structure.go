package validation

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/specdriven/specd/internal/constants"
	"github.com/specdriven/specd/internal/domain"
	"github.com/specdriven/specd/internal/task"
)

var (
	headingRegex   = regexp.MustCompile(`(?m)^#{1,3}\s+\S`)
	userStoryRegex = regexp.MustCompile(`(?i)\bas an?\b.+\bI want\b`)

	// acceptanceIDRegex matches acceptance-criterion identifiers of the
	// form "<requirement>.<criterion>", e.g. "1.2" at the start of a
	// list item.
	acceptanceIDRegex = regexp.MustCompile(`(?m)^\s*(?:-\s*)?(\d+\.\d+)[.:)\s]`)
)

// RequirementsStructureRule checks the requirements document's shape:
// it must exist, have headings, and contain numbered acceptance
// criteria. User stories are recommended, not required.
type RequirementsStructureRule struct{}

// ID implements Rule.
func (RequirementsStructureRule) ID() string { return "requirements-structure" }

// AppliesTo implements Rule. The requirements document matters in every
// phase once it exists.
func (RequirementsStructureRule) AppliesTo(constants.Phase) bool { return true }

// Check implements Rule.
func (RequirementsStructureRule) Check(_ context.Context, in *Input) []domain.ValidationIssue {
	content, ok := in.Doc(constants.DocRequirements)
	if !ok {
		return nil
	}

	var issues []domain.ValidationIssue
	if strings.TrimSpace(content) == "" {
		return append(issues, domain.ValidationIssue{
			RuleID:   "requirements-structure",
			Severity: domain.SeverityError,
			Message:  "requirements document is empty",
			Location: constants.RequirementsFileName,
		})
	}
	if !headingRegex.MatchString(content) {
		issues = append(issues, domain.ValidationIssue{
			RuleID:     "requirements-structure",
			Severity:   domain.SeverityWarning,
			Message:    "requirements document has no headings",
			Location:   constants.RequirementsFileName,
			Suggestion: "structure requirements under numbered headings",
		})
	}
	if len(acceptanceIDRegex.FindAllString(content, -1)) == 0 {
		issues = append(issues, domain.ValidationIssue{
			RuleID:     "requirements-structure",
			Severity:   domain.SeverityWarning,
			Message:    "no numbered acceptance criteria found",
			Location:   constants.RequirementsFileName,
			Suggestion: "list acceptance criteria as numbered items like '1.1'",
		})
	}
	if !userStoryRegex.MatchString(content) {
		issues = append(issues, domain.ValidationIssue{
			RuleID:   "requirements-structure",
			Severity: domain.SeverityInfo,
			Message:  "no user stories found",
			Location: constants.RequirementsFileName,
		})
	}
	return issues
}

// DesignStructureRule checks the design document's shape once the
// workflow has reached the design phase.
type DesignStructureRule struct{}

// ID implements Rule.
func (DesignStructureRule) ID() string { return "design-structure" }

// AppliesTo implements Rule.
func (DesignStructureRule) AppliesTo(phase constants.Phase) bool {
	return constants.PhaseIndex(phase) >= constants.PhaseIndex(constants.PhaseDesign)
}

// Check implements Rule.
func (DesignStructureRule) Check(_ context.Context, in *Input) []domain.ValidationIssue {
	content, ok := in.Doc(constants.DocDesign)
	if !ok {
		return nil
	}

	var issues []domain.ValidationIssue
	if strings.TrimSpace(content) == "" {
		return append(issues, domain.ValidationIssue{
			RuleID:   "design-structure",
			Severity: domain.SeverityError,
			Message:  "design document is empty",
			Location: constants.DesignFileName,
		})
	}
	if !headingRegex.MatchString(content) {
		issues = append(issues, domain.ValidationIssue{
			RuleID:     "design-structure",
			Severity:   domain.SeverityWarning,
			Message:    "design document has no headings",
			Location:   constants.DesignFileName,
			Suggestion: "organize the design into sections (architecture, components, data)",
		})
	}
	return issues
}

// TasksStructureRule checks that the tasks document parses and contains
// work.
type TasksStructureRule struct{}

// ID implements Rule.
func (TasksStructureRule) ID() string { return "tasks-structure" }

// AppliesTo implements Rule.
func (TasksStructureRule) AppliesTo(phase constants.Phase) bool {
	return constants.PhaseIndex(phase) >= constants.PhaseIndex(constants.PhaseTasks)
}

// Check implements Rule.
func (TasksStructureRule) Check(_ context.Context, in *Input) []domain.ValidationIssue {
	content, ok := in.Doc(constants.DocTasks)
	if !ok {
		return nil
	}

	list, err := task.Parse(content)
	if err != nil {
		return []domain.ValidationIssue{{
			RuleID:   "tasks-structure",
			Severity: domain.SeverityError,
			Message:  fmt.Sprintf("tasks document does not parse: %v", err),
			Location: constants.TasksFileName,
		}}
	}

	var issues []domain.ValidationIssue
	if len(list.Tasks) == 0 {
		issues = append(issues, domain.ValidationIssue{
			RuleID:     "tasks-structure",
			Severity:   domain.SeverityWarning,
			Message:    "tasks document contains no checkbox tasks",
			Location:   constants.TasksFileName,
			Suggestion: "add tasks as '- [ ] 1. Description' list items",
		})
	}
	for _, t := range list.Tasks {
		if len(t.Requirements) == 0 && len(t.Subtasks) == 0 {
			issues = append(issues, domain.ValidationIssue{
				RuleID:     "tasks-structure",
				Severity:   domain.SeverityInfo,
				Message:    fmt.Sprintf("task %s has no requirement references", t.ID),
				Location:   fmt.Sprintf("%s:%d", constants.TasksFileName, t.Line+1),
				Suggestion: "add a '_Requirements: ..._' line under the task",
			})
		}
	}
	return issues
}
