// Package errors provides centralized error handling for specd.
//
// This package defines sentinel errors used for programmatic error
// categorization throughout the application. All error types can be
// checked using errors.Is().
//
// IMPORTANT: This package MUST NOT import any other internal packages.
// Only standard library imports are allowed.
package errors

import "errors"

// Sentinel errors for error categorization.
// These allow callers to check error types with errors.Is().
// All errors use lowercase descriptions per Go conventions.
var (
	// ErrInvalidTransition indicates a phase transition that is not an
	// edge of the workflow graph. Never auto-recovered.
	ErrInvalidTransition = errors.New("invalid phase transition")

	// ErrApprovalRequired indicates a forward transition was attempted
	// without the source phase's approval.
	ErrApprovalRequired = errors.New("phase approval required")

	// ErrPermissionDenied indicates the authorization collaborator denied
	// the operation. Always fails closed; never auto-recovered.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrActorMissing indicates a mutating operation was requested without
	// an actor identity.
	ErrActorMissing = errors.New("actor identity missing")

	// ErrSpecNotFound indicates the requested spec does not exist.
	ErrSpecNotFound = errors.New("spec not found")

	// ErrSpecExists indicates an attempt to create a spec that already exists.
	ErrSpecExists = errors.New("spec already exists")

	// ErrDocumentMissing indicates a required spec document does not exist.
	ErrDocumentMissing = errors.New("document not found")

	// ErrDocumentEmpty indicates a required spec document exists but has
	// no content.
	ErrDocumentEmpty = errors.New("document is empty")

	// ErrTaskNotFound indicates the requested task ID is not present in
	// the tasks document.
	ErrTaskNotFound = errors.New("task not found")

	// ErrTaskBlocked indicates the task is in the blocked state and cannot
	// be executed.
	ErrTaskBlocked = errors.New("task is blocked")

	// ErrUnmetDependencies indicates a task has dependencies that are not
	// yet completed.
	ErrUnmetDependencies = errors.New("unmet task dependencies")

	// ErrSubtasksIncomplete indicates a parent task cannot complete while
	// subtasks remain incomplete.
	ErrSubtasksIncomplete = errors.New("subtasks incomplete")

	// ErrStateCorrupted indicates the persisted workflow state failed
	// structural validation. Triggers the recovery cascade on load.
	ErrStateCorrupted = errors.New("workflow state corrupted")

	// ErrChecksumMismatch indicates the stored checksum does not match the
	// canonical serialized state. Triggers the recovery cascade on load.
	ErrChecksumMismatch = errors.New("state checksum mismatch")

	// ErrVersionNotFound indicates the requested version snapshot does
	// not exist.
	ErrVersionNotFound = errors.New("version not found")

	// ErrImplementerUnconfigured indicates no implementation collaborator
	// was wired into the execution engine.
	ErrImplementerUnconfigured = errors.New("no task implementer configured")

	// ErrExecutionTimeout indicates the implementation step exceeded its
	// configured timeout.
	ErrExecutionTimeout = errors.New("task execution timeout")

	// ErrMaxRetriesExceeded indicates the recovery loop exhausted its
	// bounded retry attempts.
	ErrMaxRetriesExceeded = errors.New("maximum retry attempts exceeded")

	// ErrRetryBudgetExhausted indicates the recovery loop hit its
	// wall-clock cap before exhausting attempt counts.
	ErrRetryBudgetExhausted = errors.New("retry time budget exhausted")

	// ErrEmptyValue indicates that a required value was empty.
	ErrEmptyValue = errors.New("value cannot be empty")

	// ErrInvalidArgument indicates that an invalid argument was provided.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrValueOutOfRange indicates that a value is outside the allowed range.
	ErrValueOutOfRange = errors.New("value out of range")

	// ErrInvalidStatus indicates an unknown or inapplicable status value.
	ErrInvalidStatus = errors.New("invalid status")

	// ErrInvalidPhase indicates an unknown phase value.
	ErrInvalidPhase = errors.New("invalid phase")

	// ErrInvalidDocumentType indicates an unknown document type.
	ErrInvalidDocumentType = errors.New("invalid document type")

	// ErrPathTraversal indicates an attempt to use path traversal in a
	// spec ID or filename.
	ErrPathTraversal = errors.New("path traversal detected")

	// ErrTaskDepthExceeded indicates a task ID nests deeper than the
	// supported two levels.
	ErrTaskDepthExceeded = errors.New("task nesting too deep")

	// ErrDuplicateTaskID indicates the tasks document declares the same
	// task ID twice.
	ErrDuplicateTaskID = errors.New("duplicate task id")

	// ErrConfigInvalid indicates an invalid configuration value.
	ErrConfigInvalid = errors.New("invalid configuration")

	// ErrValidationFailed indicates error-severity validation issues were
	// found for a document or spec.
	ErrValidationFailed = errors.New("validation failed")
)
