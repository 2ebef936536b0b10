package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/specdriven/specd/internal/constants"
	specderrors "github.com/specdriven/specd/internal/errors"
)

func TestNewWorkflowState(t *testing.T) {
	now := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
	state := NewWorkflowState("demo", now)

	assert.Equal(t, "demo", state.SpecID)
	assert.Equal(t, constants.PhaseRequirements, state.CurrentPhase)
	assert.Equal(t, constants.WorkflowStatusDraft, state.Status)
	assert.Equal(t, constants.StateSchemaVersion, state.SchemaVersion)
	assert.Equal(t, now, state.CreatedAt)
	assert.Equal(t, now, state.UpdatedAt)
	for _, phase := range constants.OrderedPhases() {
		assert.Equal(t, constants.ApprovalPending, state.Approvals[phase])
	}
	require.NoError(t, state.Validate())
}

func TestWorkflowStateValidate(t *testing.T) {
	now := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		mutate func(*WorkflowState)
	}{
		{"MissingSpecID", func(s *WorkflowState) { s.SpecID = "" }},
		{"UnknownPhase", func(s *WorkflowState) { s.CurrentPhase = "review" }},
		{"UnknownStatus", func(s *WorkflowState) { s.Status = "paused" }},
		{"NilApprovals", func(s *WorkflowState) { s.Approvals = nil }},
		{"UnknownApprovalPhase", func(s *WorkflowState) { s.Approvals["review"] = constants.ApprovalPending }},
		{"UnknownApprovalStatus", func(s *WorkflowState) { s.Approvals[constants.PhaseDesign] = "maybe" }},
		{"ZeroCreatedAt", func(s *WorkflowState) { s.CreatedAt = time.Time{} }},
		{"UpdatedBeforeCreated", func(s *WorkflowState) { s.UpdatedAt = s.CreatedAt.Add(-time.Hour) }},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			state := NewWorkflowState("demo", now)
			tc.mutate(state)
			require.ErrorIs(t, state.Validate(), specderrors.ErrStateCorrupted)
		})
	}
}

func TestWorkflowStateClone(t *testing.T) {
	now := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
	state := NewWorkflowState("demo", now)
	state.Metadata["transitions"] = []any{"first"}

	clone := state.Clone()

	// Mutating the clone leaves the original untouched.
	clone.Approvals[constants.PhaseRequirements] = constants.ApprovalApproved
	clone.Metadata["transitions"] = append(clone.Metadata["transitions"].([]any), "second")
	clone.CurrentPhase = constants.PhaseDesign

	assert.Equal(t, constants.ApprovalPending, state.Approvals[constants.PhaseRequirements])
	assert.Len(t, state.Metadata["transitions"], 1)
	assert.Equal(t, constants.PhaseRequirements, state.CurrentPhase)
}

func TestWorkflowStateRecovered(t *testing.T) {
	now := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)

	state := NewWorkflowState("demo", now)
	assert.False(t, state.Recovered())

	state.Metadata["recovered"] = true
	assert.True(t, state.Recovered())

	state.Metadata["recovered"] = "yes" // wrong type does not count
	assert.False(t, state.Recovered())

	state.Metadata = nil
	assert.False(t, state.Recovered())
}
