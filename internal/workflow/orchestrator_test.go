package workflow

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/specdriven/specd/internal/authz"
	"github.com/specdriven/specd/internal/clock"
	"github.com/specdriven/specd/internal/constants"
	"github.com/specdriven/specd/internal/document"
	specderrors "github.com/specdriven/specd/internal/errors"
	"github.com/specdriven/specd/internal/persist"
)

const testActor = "reviewer"

func newTestOrchestrator(t *testing.T) (*Orchestrator, *document.FileStore, *clock.FakeClock) {
	t.Helper()
	root := t.TempDir()
	clk := clock.NewFakeClock(time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC))

	docs := document.NewFileStore(root)
	store := persist.NewManager(root, clk, zerolog.Nop(), persist.DefaultOptions())
	return NewOrchestrator(store, docs, WithClock(clk)), docs, clk
}

func seedDocument(t *testing.T, docs *document.FileStore, specID string, docType constants.DocumentType) {
	t.Helper()
	content := "# " + docType.String() + "\n\nEnough content to pass the gate.\n"
	require.NoError(t, docs.Save(context.Background(), specID, docType, content))
}

// advanceTo walks a workflow forward through approvals until it reaches
// the target phase.
func advanceTo(t *testing.T, o *Orchestrator, docs *document.FileStore, specID string, target constants.Phase) {
	t.Helper()
	ctx := context.Background()

	for {
		result, err := o.GetState(ctx, specID)
		require.NoError(t, err)
		current := result.State.CurrentPhase
		if current == target {
			return
		}

		if docType, ok := constants.RequiredDocument(current); ok {
			seedDocument(t, docs, specID, docType)
		}
		_, err = o.ApprovePhase(ctx, testActor, specID, current, constants.ApprovalApproved, "")
		require.NoError(t, err)

		next, ok := NextPhase(current)
		require.True(t, ok)
		outcome, err := o.Transition(ctx, testActor, specID, next, "", "")
		require.NoError(t, err)
		require.True(t, outcome.Moved)
	}
}

func TestCreateWorkflow(t *testing.T) {
	ctx := context.Background()
	o, _, _ := newTestOrchestrator(t)

	state, err := o.CreateWorkflow(ctx, testActor, "User Auth: Sessions!")
	require.NoError(t, err)
	assert.Equal(t, "user-auth-sessions", state.SpecID)
	assert.Equal(t, constants.PhaseRequirements, state.CurrentPhase)
	assert.Equal(t, constants.WorkflowStatusDraft, state.Status)
	for _, phase := range constants.OrderedPhases() {
		assert.Equal(t, constants.ApprovalPending, state.Approvals[phase])
	}

	t.Run("DuplicateRejected", func(t *testing.T) {
		_, err := o.CreateWorkflow(ctx, testActor, "user auth sessions")
		require.ErrorIs(t, err, specderrors.ErrSpecExists)
	})

	t.Run("EmptyName", func(t *testing.T) {
		_, err := o.CreateWorkflow(ctx, testActor, "  !!!  ")
		require.ErrorIs(t, err, specderrors.ErrEmptyValue)
	})

	t.Run("MissingActorDenied", func(t *testing.T) {
		_, err := o.CreateWorkflow(ctx, "", "another spec")
		require.ErrorIs(t, err, specderrors.ErrPermissionDenied)
	})
}

func TestTransitionForward(t *testing.T) {
	ctx := context.Background()

	t.Run("UnapprovedPhaseDemandsRevision", func(t *testing.T) {
		o, _, _ := newTestOrchestrator(t)
		state, err := o.CreateWorkflow(ctx, testActor, "demo")
		require.NoError(t, err)

		outcome, err := o.Transition(ctx, testActor, state.SpecID, constants.PhaseDesign, "", "")
		require.NoError(t, err)
		assert.False(t, outcome.Moved)
		assert.NotEmpty(t, outcome.Warnings)
		assert.Equal(t, constants.PhaseRequirements, outcome.State.CurrentPhase)
		assert.Equal(t, constants.ApprovalNeedsRevision, outcome.State.Approvals[constants.PhaseRequirements])
		assert.Equal(t, constants.WorkflowStatusInReview, outcome.State.Status)

		// The revision demand persists.
		result, err := o.GetState(ctx, state.SpecID)
		require.NoError(t, err)
		assert.Equal(t, constants.ApprovalNeedsRevision, result.State.Approvals[constants.PhaseRequirements])
	})

	t.Run("ApprovedPhaseWithDocumentMoves", func(t *testing.T) {
		o, docs, _ := newTestOrchestrator(t)
		state, err := o.CreateWorkflow(ctx, testActor, "demo")
		require.NoError(t, err)
		seedDocument(t, docs, state.SpecID, constants.DocRequirements)

		_, err = o.ApprovePhase(ctx, testActor, state.SpecID, constants.PhaseRequirements, constants.ApprovalApproved, "")
		require.NoError(t, err)

		outcome, err := o.Transition(ctx, testActor, state.SpecID, constants.PhaseDesign, "", "")
		require.NoError(t, err)
		assert.True(t, outcome.Moved)
		assert.Equal(t, constants.PhaseDesign, outcome.State.CurrentPhase)
		assert.Equal(t, constants.WorkflowStatusDraft, outcome.State.Status)
	})

	t.Run("ApprovalRidesTheTransition", func(t *testing.T) {
		o, docs, _ := newTestOrchestrator(t)
		state, err := o.CreateWorkflow(ctx, testActor, "demo")
		require.NoError(t, err)
		seedDocument(t, docs, state.SpecID, constants.DocRequirements)

		outcome, err := o.Transition(ctx, testActor, state.SpecID, constants.PhaseDesign, constants.ApprovalApproved, "")
		require.NoError(t, err)
		assert.True(t, outcome.Moved)
		assert.Equal(t, constants.PhaseDesign, outcome.State.CurrentPhase)
		assert.Equal(t, constants.ApprovalApproved, outcome.State.Approvals[constants.PhaseRequirements])
	})

	t.Run("RejectionRidingStaysRejected", func(t *testing.T) {
		o, docs, _ := newTestOrchestrator(t)
		state, err := o.CreateWorkflow(ctx, testActor, "demo")
		require.NoError(t, err)
		seedDocument(t, docs, state.SpecID, constants.DocRequirements)

		outcome, err := o.Transition(ctx, testActor, state.SpecID, constants.PhaseDesign, constants.ApprovalRejected, "not ready")
		require.NoError(t, err)
		assert.False(t, outcome.Moved)
		assert.Equal(t, constants.ApprovalRejected, outcome.State.Approvals[constants.PhaseRequirements])
		assert.Equal(t, constants.WorkflowStatusInReview, outcome.State.Status)
	})

	t.Run("BogusApprovalRejected", func(t *testing.T) {
		o, _, _ := newTestOrchestrator(t)
		state, err := o.CreateWorkflow(ctx, testActor, "demo")
		require.NoError(t, err)

		_, err = o.Transition(ctx, testActor, state.SpecID, constants.PhaseDesign, constants.ApprovalStatus("maybe"), "")
		require.ErrorIs(t, err, specderrors.ErrInvalidStatus)
	})

	t.Run("MissingDocumentBlocks", func(t *testing.T) {
		o, _, _ := newTestOrchestrator(t)
		state, err := o.CreateWorkflow(ctx, testActor, "demo")
		require.NoError(t, err)

		_, err = o.ApprovePhase(ctx, testActor, state.SpecID, constants.PhaseRequirements, constants.ApprovalApproved, "")
		require.NoError(t, err)

		_, err = o.Transition(ctx, testActor, state.SpecID, constants.PhaseDesign, "", "")
		require.ErrorIs(t, err, specderrors.ErrDocumentMissing)
	})

	t.Run("BlankDocumentBlocks", func(t *testing.T) {
		o, docs, _ := newTestOrchestrator(t)
		state, err := o.CreateWorkflow(ctx, testActor, "demo")
		require.NoError(t, err)
		require.NoError(t, docs.Save(ctx, state.SpecID, constants.DocRequirements, "   \n\n  "))

		_, err = o.ApprovePhase(ctx, testActor, state.SpecID, constants.PhaseRequirements, constants.ApprovalApproved, "")
		require.NoError(t, err)

		_, err = o.Transition(ctx, testActor, state.SpecID, constants.PhaseDesign, "", "")
		require.ErrorIs(t, err, specderrors.ErrDocumentEmpty)
	})

	t.Run("EnteringExecutionStartsProgress", func(t *testing.T) {
		o, docs, _ := newTestOrchestrator(t)
		state, err := o.CreateWorkflow(ctx, testActor, "demo")
		require.NoError(t, err)

		advanceTo(t, o, docs, state.SpecID, constants.PhaseExecution)

		result, err := o.GetState(ctx, state.SpecID)
		require.NoError(t, err)
		assert.Equal(t, constants.PhaseExecution, result.State.CurrentPhase)
		assert.Equal(t, constants.WorkflowStatusInProgress, result.State.Status)
	})

	t.Run("InvalidEdge", func(t *testing.T) {
		o, docs, _ := newTestOrchestrator(t)
		state, err := o.CreateWorkflow(ctx, testActor, "demo")
		require.NoError(t, err)
		advanceTo(t, o, docs, state.SpecID, constants.PhaseDesign)

		_, err = o.Transition(ctx, testActor, state.SpecID, constants.PhaseExecution, "", "")
		require.ErrorIs(t, err, specderrors.ErrInvalidTransition)
	})
}

func TestTransitionBackward(t *testing.T) {
	ctx := context.Background()
	o, docs, _ := newTestOrchestrator(t)

	state, err := o.CreateWorkflow(ctx, testActor, "demo")
	require.NoError(t, err)
	advanceTo(t, o, docs, state.SpecID, constants.PhaseTasks)

	outcome, err := o.Transition(ctx, testActor, state.SpecID, constants.PhaseRequirements, "", "needs a rework")
	require.NoError(t, err)
	require.True(t, outcome.Moved)
	assert.Equal(t, constants.PhaseRequirements, outcome.State.CurrentPhase)
	assert.Equal(t, constants.WorkflowStatusDraft, outcome.State.Status)

	// Rework invalidates the approval of every phase from the
	// destination onward.
	for _, phase := range constants.OrderedPhases() {
		assert.Equal(t, constants.ApprovalPending, outcome.State.Approvals[phase],
			"phase %s should be pending again", phase)
	}
}

func TestTransitionLateral(t *testing.T) {
	ctx := context.Background()
	o, docs, _ := newTestOrchestrator(t)

	state, err := o.CreateWorkflow(ctx, testActor, "demo")
	require.NoError(t, err)
	advanceTo(t, o, docs, state.SpecID, constants.PhaseExecution)

	before, err := o.ListVersions(ctx, state.SpecID)
	require.NoError(t, err)

	outcome, err := o.Transition(ctx, testActor, state.SpecID, constants.PhaseExecution, "", "")
	require.NoError(t, err)
	assert.True(t, outcome.Moved)
	assert.Equal(t, constants.PhaseExecution, outcome.State.CurrentPhase)

	// The self-edge is recorded in the audit trail but not versioned.
	after, err := o.ListVersions(ctx, state.SpecID)
	require.NoError(t, err)
	assert.Len(t, after, len(before))

	history := TransitionHistory(outcome.State)
	require.NotEmpty(t, history)
	last := history[len(history)-1]
	assert.Equal(t, constants.PhaseExecution, last.FromPhase)
	assert.Equal(t, constants.PhaseExecution, last.ToPhase)
}

func TestApprovePhase(t *testing.T) {
	ctx := context.Background()

	t.Run("RejectionMovesToReview", func(t *testing.T) {
		o, _, _ := newTestOrchestrator(t)
		state, err := o.CreateWorkflow(ctx, testActor, "demo")
		require.NoError(t, err)

		updated, err := o.ApprovePhase(ctx, testActor, state.SpecID, constants.PhaseRequirements, constants.ApprovalRejected, "missing error cases")
		require.NoError(t, err)
		assert.Equal(t, constants.ApprovalRejected, updated.Approvals[constants.PhaseRequirements])
		assert.Equal(t, constants.WorkflowStatusInReview, updated.Status)
	})

	t.Run("ApprovalOfOtherPhaseKeepsStatus", func(t *testing.T) {
		o, _, _ := newTestOrchestrator(t)
		state, err := o.CreateWorkflow(ctx, testActor, "demo")
		require.NoError(t, err)

		updated, err := o.ApprovePhase(ctx, testActor, state.SpecID, constants.PhaseDesign, constants.ApprovalApproved, "")
		require.NoError(t, err)
		assert.Equal(t, constants.ApprovalApproved, updated.Approvals[constants.PhaseDesign])
		assert.Equal(t, constants.WorkflowStatusDraft, updated.Status)
	})

	t.Run("PendingIsNotADecision", func(t *testing.T) {
		o, _, _ := newTestOrchestrator(t)
		state, err := o.CreateWorkflow(ctx, testActor, "demo")
		require.NoError(t, err)

		_, err = o.ApprovePhase(ctx, testActor, state.SpecID, constants.PhaseRequirements, constants.ApprovalPending, "")
		require.ErrorIs(t, err, specderrors.ErrInvalidStatus)
	})

	t.Run("InvalidPhase", func(t *testing.T) {
		o, _, _ := newTestOrchestrator(t)
		state, err := o.CreateWorkflow(ctx, testActor, "demo")
		require.NoError(t, err)

		_, err = o.ApprovePhase(ctx, testActor, state.SpecID, constants.Phase("review"), constants.ApprovalApproved, "")
		require.ErrorIs(t, err, specderrors.ErrInvalidPhase)
	})
}

func TestSetExecutionStatus(t *testing.T) {
	ctx := context.Background()
	o, docs, _ := newTestOrchestrator(t)

	state, err := o.CreateWorkflow(ctx, testActor, "demo")
	require.NoError(t, err)
	advanceTo(t, o, docs, state.SpecID, constants.PhaseExecution)

	require.NoError(t, o.SetExecutionStatus(ctx, state.SpecID, constants.WorkflowStatusCompleted))
	result, err := o.GetState(ctx, state.SpecID)
	require.NoError(t, err)
	assert.Equal(t, constants.WorkflowStatusCompleted, result.State.Status)

	t.Run("NonExecutionStatusRejected", func(t *testing.T) {
		err := o.SetExecutionStatus(ctx, state.SpecID, constants.WorkflowStatusDraft)
		require.ErrorIs(t, err, specderrors.ErrInvalidStatus)
	})
}

func TestListWorkflows(t *testing.T) {
	ctx := context.Background()
	o, _, clk := newTestOrchestrator(t)

	_, err := o.CreateWorkflow(ctx, testActor, "first spec")
	require.NoError(t, err)
	clk.Advance(time.Hour)
	_, err = o.CreateWorkflow(ctx, testActor, "second spec")
	require.NoError(t, err)

	summaries, err := o.ListWorkflows(ctx)
	require.NoError(t, err)
	require.Len(t, summaries, 2)

	// Most recently updated first.
	assert.Equal(t, "second-spec", summaries[0].SpecID)
	assert.Equal(t, "first-spec", summaries[1].SpecID)
	assert.Equal(t, constants.PhaseRequirements, summaries[0].CurrentPhase)
}

func TestRestoreVersion(t *testing.T) {
	ctx := context.Background()
	o, docs, _ := newTestOrchestrator(t)

	state, err := o.CreateWorkflow(ctx, testActor, "demo")
	require.NoError(t, err)
	advanceTo(t, o, docs, state.SpecID, constants.PhaseDesign)

	versions, err := o.ListVersions(ctx, state.SpecID)
	require.NoError(t, err)
	require.NotEmpty(t, versions)

	// The oldest version is the freshly created workflow.
	created := versions[len(versions)-1]
	restored, err := o.RestoreVersion(ctx, testActor, state.SpecID, created.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.PhaseRequirements, restored.CurrentPhase)

	result, err := o.GetState(ctx, state.SpecID)
	require.NoError(t, err)
	assert.Equal(t, constants.PhaseRequirements, result.State.CurrentPhase)
}

func TestTransitionHistorySurvivesReload(t *testing.T) {
	ctx := context.Background()
	o, docs, _ := newTestOrchestrator(t)

	state, err := o.CreateWorkflow(ctx, testActor, "demo")
	require.NoError(t, err)
	seedDocument(t, docs, state.SpecID, constants.DocRequirements)
	_, err = o.ApprovePhase(ctx, testActor, state.SpecID, constants.PhaseRequirements, constants.ApprovalApproved, "")
	require.NoError(t, err)
	_, err = o.Transition(ctx, testActor, state.SpecID, constants.PhaseDesign, "", "looks complete")
	require.NoError(t, err)

	result, err := o.GetState(ctx, state.SpecID)
	require.NoError(t, err)

	history := TransitionHistory(result.State)
	require.Len(t, history, 1)
	assert.Equal(t, constants.PhaseRequirements, history[0].FromPhase)
	assert.Equal(t, constants.PhaseDesign, history[0].ToPhase)
	assert.Equal(t, testActor, history[0].Actor)
	assert.Equal(t, "looks complete", history[0].Feedback)
	assert.False(t, history[0].Timestamp.IsZero())
}

// Concurrent mutations on one spec must serialize through the keyed
// lock so no audit record is lost to a stale read-modify-write.
func TestConcurrentTransitionsSerialized(t *testing.T) {
	ctx := context.Background()
	o, docs, _ := newTestOrchestrator(t)

	state, err := o.CreateWorkflow(ctx, testActor, "demo")
	require.NoError(t, err)
	advanceTo(t, o, docs, state.SpecID, constants.PhaseExecution)

	result, err := o.GetState(ctx, state.SpecID)
	require.NoError(t, err)
	baseline := len(TransitionHistory(result.State))

	const writers = 10
	var g errgroup.Group
	for i := 0; i < writers; i++ {
		g.Go(func() error {
			_, err := o.Transition(ctx, testActor, state.SpecID, constants.PhaseExecution, "", "")
			return err
		})
	}
	require.NoError(t, g.Wait())

	result, err = o.GetState(ctx, state.SpecID)
	require.NoError(t, err)
	assert.Len(t, TransitionHistory(result.State), baseline+writers)
}

// Static authorization denies actors outside the allow list.
func TestStaticAuthorization(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	clk := clock.NewFakeClock(time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC))
	docs := document.NewFileStore(root)
	store := persist.NewManager(root, clk, zerolog.Nop(), persist.DefaultOptions())
	o := NewOrchestrator(store, docs, WithClock(clk), WithAuthorizer(authz.NewStatic(testActor)))

	_, err := o.CreateWorkflow(ctx, "stranger", "demo")
	require.ErrorIs(t, err, specderrors.ErrPermissionDenied)

	_, err = o.CreateWorkflow(ctx, testActor, "demo")
	require.NoError(t, err)
}
