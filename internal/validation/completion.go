package validation

import (
	"context"
	"fmt"

	"github.com/specdriven/specd/internal/clock"
	"github.com/specdriven/specd/internal/domain"
	"github.com/specdriven/specd/internal/task"
)

// CompletionChecker validates a finished task before the engine marks
// it completed. It satisfies the engine's CompletionValidator interface.
type CompletionChecker struct {
	clock clock.Clock
}

// NewCompletionChecker creates a completion checker.
func NewCompletionChecker(clk clock.Clock) *CompletionChecker {
	return &CompletionChecker{clock: clk}
}

// ValidateCompletion checks the implementation result against the
// task's requirement references. An error-severity finding blocks the
// task; softer findings are attached to the result for display.
func (c *CompletionChecker) ValidateCompletion(_ context.Context, specID string, t *domain.Task, result *domain.TaskResult, execCtx *domain.ExecutionContext) (*domain.ValidationReport, error) {
	report := &domain.ValidationReport{
		SpecID:      specID,
		GeneratedAt: c.clock.Now().UTC(),
	}

	if result == nil || !resultReportsWork(result) {
		report.Add(domain.ValidationIssue{
			RuleID:   "completion",
			Severity: domain.SeverityWarning,
			Message:  fmt.Sprintf("task %s reported no files changed and no tests run", t.ID),
			Location: t.ID,
		})
	}
	if result != nil && result.Error != "" {
		report.Add(domain.ValidationIssue{
			RuleID:   "completion",
			Severity: domain.SeverityError,
			Message:  fmt.Sprintf("task %s result carries an error: %s", t.ID, result.Error),
			Location: t.ID,
		})
	}

	// Every requirement reference the task claims to satisfy must exist.
	declared := acceptanceIDs(execCtx.Requirements)
	for _, ref := range t.Requirements {
		if !declared[ref] {
			report.Add(domain.ValidationIssue{
				RuleID:     "completion",
				Severity:   domain.SeverityWarning,
				Message:    fmt.Sprintf("task %s references acceptance criterion %q which is not in the requirements document", t.ID, ref),
				Location:   t.ID,
				Suggestion: "fix the reference in the tasks document",
			})
		}
	}
	return report, nil
}

// resultReportsWork reports whether the result shows any evidence of
// implementation activity.
func resultReportsWork(result *domain.TaskResult) bool {
	return len(result.FilesCreated) > 0 || len(result.FilesModified) > 0 || result.TestsRun > 0
}

// Interface guard against the engine's expectation.
var _ task.CompletionValidator = (*CompletionChecker)(nil)
