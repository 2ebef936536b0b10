package domain

import (
	"time"

	"github.com/specdriven/specd/internal/constants"
)

// Task represents a single unit of implementation work parsed from the
// tasks document. Tasks are not separately persisted: the tasks document
// text is the source of truth, and status round-trips through its
// checkbox markers.
//
// Tasks form an arena: parent/subtask relationships are expressed with
// IDs rather than embedded object graphs, so repeated parses of the same
// document never alias each other.
type Task struct {
	// ID is the hierarchical task identifier, e.g. "3" or "3.2".
	// The dot count is the nesting level (max depth 2).
	ID string `json:"id"`

	// Description is the human-readable task summary from the document.
	Description string `json:"description"`

	// Status is the current task state, derived from the checkbox marker.
	Status constants.TaskStatus `json:"status"`

	// Requirements holds traceability references to acceptance-criterion
	// IDs from the requirements document (from a "_Requirements: ..._" line).
	Requirements []string `json:"requirements,omitempty"`

	// Dependencies lists task IDs that must be completed before this task.
	Dependencies []string `json:"dependencies,omitempty"`

	// Subtasks lists the IDs of direct child tasks, in document order.
	// Only level-0 tasks have subtasks.
	Subtasks []string `json:"subtasks,omitempty"`

	// Parent is the ID of the enclosing task, empty for top-level tasks.
	Parent string `json:"parent,omitempty"`

	// Level is the nesting level (0 for top-level).
	Level int `json:"level"`

	// Line is the zero-based line number of the task in the document,
	// used for marker rewrites and issue locations.
	Line int `json:"line"`
}

// IsTerminal reports whether the task is in a state that will not be
// picked up by the scheduler.
func (t *Task) IsTerminal() bool {
	return t.Status == constants.TaskCompleted || t.Status == constants.TaskBlocked
}

// TaskResult captures the outcome of one task execution attempt.
//
// Example JSON representation:
//
//	{
//	    "task_id": "2.1",
//	    "success": true,
//	    "message": "implemented session store",
//	    "files_created": ["internal/session/store.go"],
//	    "tests_run": 4,
//	    "duration_ms": 45000
//	}
type TaskResult struct {
	// TaskID identifies which task produced this result.
	TaskID string `json:"task_id"`

	// Success indicates whether the attempt completed without errors.
	Success bool `json:"success"`

	// Message contains a human-readable outcome summary.
	Message string `json:"message,omitempty"`

	// FilesCreated lists paths of files created by the implementation step.
	FilesCreated []string `json:"files_created,omitempty"`

	// FilesModified lists paths of files modified by the implementation step.
	FilesModified []string `json:"files_modified,omitempty"`

	// TestsRun counts tests executed during the attempt.
	TestsRun int `json:"tests_run,omitempty"`

	// Validation holds completion-validation issues found for the task.
	Validation []ValidationIssue `json:"validation,omitempty"`

	// Duration is how long the attempt took.
	Duration time.Duration `json:"duration"`

	// Error contains the failure detail if Success is false.
	Error string `json:"error,omitempty"`

	// RecoveryAttempts records the retry/recovery history when the task
	// was executed through the recovery loop.
	RecoveryAttempts []RecoveryAttempt `json:"recovery_attempts,omitempty"`
}

// RecoveryAttempt is one entry of the retry history attached to a final
// TaskResult by the recovery loop.
type RecoveryAttempt struct {
	// Attempt is the 1-based attempt number.
	Attempt int `json:"attempt"`

	// Kind is the classified error kind that triggered recovery.
	Kind string `json:"kind"`

	// Action is the recovery action applied before the retry.
	Action string `json:"action"`

	// Error is the failure message of this attempt.
	Error string `json:"error"`

	// At is when the attempt failed.
	At time.Time `json:"at"`
}
