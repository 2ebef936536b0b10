// Package domain provides shared domain types for the specd workflow engine.
// These types are used across all internal packages to ensure consistent
// data structures.
//
// This package follows strict import rules:
//   - CAN import: internal/constants, internal/errors, standard library
//   - MUST NOT import: any other internal packages
//
// All JSON field names use snake_case per architecture requirements.
package domain

import (
	"fmt"
	"time"

	"github.com/specdriven/specd/internal/constants"
	specderrors "github.com/specdriven/specd/internal/errors"
)

// WorkflowState is the authoritative state of one spec's workflow.
// It is owned exclusively by the orchestrator and mutated only through
// transition and approval operations; every mutation is persisted.
//
// Example JSON representation:
//
//	{
//	    "spec_id": "user-auth",
//	    "current_phase": "design",
//	    "status": "approved",
//	    "approvals": {"requirements": "approved", "design": "pending", ...},
//	    "metadata": {"transitions": [...]},
//	    "created_at": "2026-08-23T10:00:00Z",
//	    "updated_at": "2026-08-23T10:05:00Z",
//	    "schema_version": 1
//	}
type WorkflowState struct {
	// SpecID is the unique identifier for the spec. Immutable after creation.
	SpecID string `json:"spec_id"`

	// CurrentPhase is the workflow's current stage.
	CurrentPhase constants.Phase `json:"current_phase"`

	// Status is the overall workflow status.
	Status constants.WorkflowStatus `json:"status"`

	// Approvals maps each phase to its review gate state.
	Approvals map[constants.Phase]constants.ApprovalStatus `json:"approvals"`

	// Metadata stores arbitrary key-value data associated with the
	// workflow, including the transition history under "transitions"
	// and the "recovered" marker set by lossy recovery.
	Metadata map[string]any `json:"metadata,omitempty"`

	// CreatedAt is when the workflow was created.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is when the workflow was last modified. Always >= CreatedAt.
	UpdatedAt time.Time `json:"updated_at"`

	// SchemaVersion indicates the version of the WorkflowState schema.
	// This enables forward-compatible schema migrations.
	SchemaVersion int `json:"schema_version"`
}

// TransitionRecord is one entry of the transition audit trail kept in
// workflow metadata.
type TransitionRecord struct {
	// FromPhase is the phase the workflow left.
	FromPhase constants.Phase `json:"from_phase"`

	// ToPhase is the phase the workflow entered.
	ToPhase constants.Phase `json:"to_phase"`

	// Timestamp is when the transition happened.
	Timestamp time.Time `json:"timestamp"`

	// Actor is the identity that requested the transition.
	Actor string `json:"actor"`

	// Feedback is optional reviewer feedback attached to the transition.
	Feedback string `json:"feedback,omitempty"`
}

// WorkflowSummary is a lightweight listing entry for one workflow.
type WorkflowSummary struct {
	SpecID       string                   `json:"spec_id"`
	CurrentPhase constants.Phase          `json:"current_phase"`
	Status       constants.WorkflowStatus `json:"status"`
	UpdatedAt    time.Time                `json:"updated_at"`

	// Recovered is true when the state was rebuilt by the recovery
	// cascade rather than loaded cleanly.
	Recovered bool `json:"recovered,omitempty"`
}

// NewWorkflowState creates a workflow state in the initial phase with
// every approval pending.
func NewWorkflowState(specID string, now time.Time) *WorkflowState {
	approvals := make(map[constants.Phase]constants.ApprovalStatus, len(constants.OrderedPhases()))
	for _, phase := range constants.OrderedPhases() {
		approvals[phase] = constants.ApprovalPending
	}
	return &WorkflowState{
		SpecID:        specID,
		CurrentPhase:  constants.PhaseRequirements,
		Status:        constants.WorkflowStatusDraft,
		Approvals:     approvals,
		Metadata:      make(map[string]any),
		CreatedAt:     now,
		UpdatedAt:     now,
		SchemaVersion: constants.StateSchemaVersion,
	}
}

// Validate checks required fields and enum values. A failure here on the
// load path is a structural error and triggers the recovery cascade.
func (s *WorkflowState) Validate() error {
	if s.SpecID == "" {
		return fmt.Errorf("%w: spec_id is required", specderrors.ErrStateCorrupted)
	}
	if !s.CurrentPhase.IsValid() {
		return fmt.Errorf("%w: unknown phase %q", specderrors.ErrStateCorrupted, s.CurrentPhase)
	}
	if !s.Status.IsValid() {
		return fmt.Errorf("%w: unknown status %q", specderrors.ErrStateCorrupted, s.Status)
	}
	if s.Approvals == nil {
		return fmt.Errorf("%w: approvals map is required", specderrors.ErrStateCorrupted)
	}
	for phase, approval := range s.Approvals {
		if !phase.IsValid() {
			return fmt.Errorf("%w: unknown approval phase %q", specderrors.ErrStateCorrupted, phase)
		}
		if !approval.IsValid() {
			return fmt.Errorf("%w: unknown approval status %q for phase %s", specderrors.ErrStateCorrupted, approval, phase)
		}
	}
	if s.CreatedAt.IsZero() {
		return fmt.Errorf("%w: created_at is required", specderrors.ErrStateCorrupted)
	}
	if s.UpdatedAt.Before(s.CreatedAt) {
		return fmt.Errorf("%w: updated_at precedes created_at", specderrors.ErrStateCorrupted)
	}
	return nil
}

// Clone returns a deep copy of the state so callers can mutate a working
// copy and only commit it after a successful persist (revert-on-failure).
func (s *WorkflowState) Clone() *WorkflowState {
	clone := *s
	clone.Approvals = make(map[constants.Phase]constants.ApprovalStatus, len(s.Approvals))
	for phase, approval := range s.Approvals {
		clone.Approvals[phase] = approval
	}
	clone.Metadata = cloneAnyMap(s.Metadata)
	return &clone
}

// Recovered reports whether this state was produced by lossy recovery.
func (s *WorkflowState) Recovered() bool {
	if s.Metadata == nil {
		return false
	}
	recovered, ok := s.Metadata["recovered"].(bool)
	return ok && recovered
}

// cloneAnyMap shallow-copies a metadata map. Values that are themselves
// slices (the transition history) are copied one level deep, which is
// sufficient because records are appended, never mutated in place.
func cloneAnyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		if s, ok := v.([]any); ok {
			cp := make([]any, len(s))
			copy(cp, s)
			out[k] = cp
			continue
		}
		out[k] = v
	}
	return out
}
