package task

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/specdriven/specd/internal/authz"
	"github.com/specdriven/specd/internal/clock"
	"github.com/specdriven/specd/internal/constants"
	"github.com/specdriven/specd/internal/document"
	"github.com/specdriven/specd/internal/domain"
	specderrors "github.com/specdriven/specd/internal/errors"
	"github.com/specdriven/specd/internal/implement"
	"github.com/specdriven/specd/internal/testutil"
)

const (
	testSpecID    = "demo-spec"
	testTaskActor = "dev"
)

// okImplementer reports plausible work so completion checks pass.
func okImplementer() implement.Func {
	return func(_ context.Context, t *domain.Task, _ *domain.ExecutionContext) (*domain.TaskResult, error) {
		return &domain.TaskResult{
			TaskID:       t.ID,
			Success:      true,
			FilesCreated: []string{"internal/demo/" + t.ID + ".go"},
			TestsRun:     1,
		}, nil
	}
}

// recordingUpdater captures status reflections from the engine.
type recordingUpdater struct {
	statuses []constants.WorkflowStatus
}

func (r *recordingUpdater) SetExecutionStatus(_ context.Context, _ string, status constants.WorkflowStatus) error {
	r.statuses = append(r.statuses, status)
	return nil
}

// newTestEngine builds an engine over a temp document store seeded with
// the given tasks document.
func newTestEngine(t *testing.T, tasksDoc string, opts ...EngineOption) (*Engine, *document.FileStore) {
	t.Helper()
	ctx := context.Background()

	docs := document.NewFileStore(t.TempDir())
	require.NoError(t, docs.Save(ctx, testSpecID, constants.DocRequirements, "# Requirements\n\n- 1.1 does a thing\n- 2.1 does another\n"))
	require.NoError(t, docs.Save(ctx, testSpecID, constants.DocDesign, "# Design\n\nCovers the requirements.\n"))
	require.NoError(t, docs.Save(ctx, testSpecID, constants.DocTasks, tasksDoc))

	loader := NewContextLoader(docs, clock.RealClock{}, zerolog.Nop(), "")
	docs.OnSave(loader.Invalidate)

	defaults := []EngineOption{WithImplementer(okImplementer())}
	engine := NewEngine(docs, loader, append(defaults, opts...)...)
	return engine, docs
}

func taskStatus(t *testing.T, engine *Engine, taskID string) constants.TaskStatus {
	t.Helper()
	list, err := engine.Load(context.Background(), testSpecID)
	require.NoError(t, err)
	task := list.Get(taskID)
	require.NotNil(t, task)
	return task.Status
}

func TestNextTask(t *testing.T) {
	ctx := context.Background()

	t.Run("PicksFirstInDocumentOrder", func(t *testing.T) {
		engine, _ := newTestEngine(t, "- [ ] 1. Setup\n- [ ] 2. Implement\n")

		next, info, err := engine.NextTask(ctx, testSpecID)
		require.NoError(t, err)
		require.NotNil(t, next)
		assert.Equal(t, "1", next.ID)
		assert.Empty(t, info)
	})

	t.Run("RespectsDependencies", func(t *testing.T) {
		engine, _ := newTestEngine(t, "- [x] 1. Setup\n- [ ] 2. Implement\n")

		next, _, err := engine.NextTask(ctx, testSpecID)
		require.NoError(t, err)
		require.NotNil(t, next)
		assert.Equal(t, "2", next.ID)
	})

	t.Run("ResumesInProgress", func(t *testing.T) {
		engine, _ := newTestEngine(t, "- [-] 1. Setup\n- [ ] 2. Implement\n")

		next, info, err := engine.NextTask(ctx, testSpecID)
		require.NoError(t, err)
		require.NotNil(t, next)
		assert.Equal(t, "1", next.ID)
		assert.Contains(t, info, "in progress")
	})

	t.Run("AllCompleted", func(t *testing.T) {
		engine, _ := newTestEngine(t, "- [x] 1. Setup\n- [x] 2. Implement\n")

		next, info, err := engine.NextTask(ctx, testSpecID)
		require.NoError(t, err)
		assert.Nil(t, next)
		assert.Equal(t, "all tasks are completed", info)
	})

	t.Run("BlockedGate", func(t *testing.T) {
		engine, _ := newTestEngine(t, "- [!] 1. Setup\n- [ ] 2. Implement\n")

		next, info, err := engine.NextTask(ctx, testSpecID)
		require.NoError(t, err)
		assert.Nil(t, next)
		assert.Contains(t, info, "blocked")
	})

	t.Run("SubtasksBeforeParent", func(t *testing.T) {
		engine, _ := newTestEngine(t, "- [ ] 1. Setup\n  - [ ] 1.1 First\n  - [ ] 1.2 Second\n")

		next, _, err := engine.NextTask(ctx, testSpecID)
		require.NoError(t, err)
		require.NotNil(t, next)
		assert.Equal(t, "1.1", next.ID)
	})
}

func TestExecute(t *testing.T) {
	ctx := context.Background()

	t.Run("LeafSuccess", func(t *testing.T) {
		engine, _ := newTestEngine(t, "- [ ] 1. Setup\n- [ ] 2. Implement\n")

		result, err := engine.Execute(ctx, testTaskActor, testSpecID, "1")
		require.NoError(t, err)
		require.NotNil(t, result)
		assert.True(t, result.Success)
		assert.Equal(t, constants.TaskCompleted, taskStatus(t, engine, "1"))
		assert.Equal(t, constants.TaskNotStarted, taskStatus(t, engine, "2"))
	})

	t.Run("FailureReverts", func(t *testing.T) {
		failing := implement.Func(func(_ context.Context, _ *domain.Task, _ *domain.ExecutionContext) (*domain.TaskResult, error) {
			return nil, testutil.ErrMockImplementFailed
		})
		engine, _ := newTestEngine(t, "- [ ] 1. Setup\n", WithImplementer(failing))

		_, err := engine.Execute(ctx, testTaskActor, testSpecID, "1")
		require.ErrorIs(t, err, testutil.ErrMockImplementFailed)
		assert.Equal(t, constants.TaskNotStarted, taskStatus(t, engine, "1"))
	})

	t.Run("TimeoutReverts", func(t *testing.T) {
		slow := implement.Func(func(ctx context.Context, _ *domain.Task, _ *domain.ExecutionContext) (*domain.TaskResult, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		})
		engine, _ := newTestEngine(t, "- [ ] 1. Setup\n",
			WithImplementer(slow), WithImplementTimeout(10*time.Millisecond))

		_, err := engine.Execute(ctx, testTaskActor, testSpecID, "1")
		require.ErrorIs(t, err, specderrors.ErrExecutionTimeout)
		assert.Equal(t, constants.TaskNotStarted, taskStatus(t, engine, "1"))
	})

	t.Run("MissingActorDenied", func(t *testing.T) {
		engine, _ := newTestEngine(t, "- [ ] 1. Setup\n")

		_, err := engine.Execute(ctx, "", testSpecID, "1")
		require.ErrorIs(t, err, specderrors.ErrPermissionDenied)
		assert.Equal(t, constants.TaskNotStarted, taskStatus(t, engine, "1"))
	})

	t.Run("UnlistedActorDenied", func(t *testing.T) {
		engine, _ := newTestEngine(t, "- [ ] 1. Setup\n",
			WithEngineAuthorizer(authz.NewStatic(testTaskActor)))

		_, err := engine.Execute(ctx, "stranger", testSpecID, "1")
		require.ErrorIs(t, err, specderrors.ErrPermissionDenied)

		_, err = engine.Execute(ctx, testTaskActor, testSpecID, "1")
		require.NoError(t, err)
	})

	t.Run("UnmetDependencies", func(t *testing.T) {
		engine, _ := newTestEngine(t, "- [ ] 1. Setup\n- [ ] 2. Implement\n")

		_, err := engine.Execute(ctx, testTaskActor, testSpecID, "2")
		require.ErrorIs(t, err, specderrors.ErrUnmetDependencies)
	})

	t.Run("BlockedTask", func(t *testing.T) {
		engine, _ := newTestEngine(t, "- [!] 1. Setup\n")

		_, err := engine.Execute(ctx, testTaskActor, testSpecID, "1")
		require.ErrorIs(t, err, specderrors.ErrTaskBlocked)
	})

	t.Run("UnknownTask", func(t *testing.T) {
		engine, _ := newTestEngine(t, "- [ ] 1. Setup\n")

		_, err := engine.Execute(ctx, testTaskActor, testSpecID, "9")
		require.ErrorIs(t, err, specderrors.ErrTaskNotFound)
	})

	t.Run("UnconfiguredImplementer", func(t *testing.T) {
		engine, _ := newTestEngine(t, "- [ ] 1. Setup\n", WithImplementer(implement.Unconfigured{}))

		_, err := engine.Execute(ctx, testTaskActor, testSpecID, "1")
		require.ErrorIs(t, err, specderrors.ErrImplementerUnconfigured)
	})

	t.Run("ParentRunsSubtasksInOrder", func(t *testing.T) {
		var order []string
		recording := implement.Func(func(_ context.Context, task *domain.Task, _ *domain.ExecutionContext) (*domain.TaskResult, error) {
			order = append(order, task.ID)
			return &domain.TaskResult{TaskID: task.ID, Success: true, TestsRun: 1}, nil
		})
		engine, _ := newTestEngine(t, "- [ ] 1. Setup\n  - [ ] 1.1 First\n  - [ ] 1.2 Second\n",
			WithImplementer(recording))

		result, err := engine.Execute(ctx, testTaskActor, testSpecID, "1")
		require.NoError(t, err)
		assert.True(t, result.Success)
		assert.Equal(t, []string{"1.1", "1.2"}, order)
		assert.Equal(t, constants.TaskCompleted, taskStatus(t, engine, "1"))
		assert.Equal(t, constants.TaskCompleted, taskStatus(t, engine, "1.1"))
		assert.Equal(t, constants.TaskCompleted, taskStatus(t, engine, "1.2"))
	})

	t.Run("SubtaskFailureAbortsParent", func(t *testing.T) {
		flaky := implement.Func(func(_ context.Context, task *domain.Task, _ *domain.ExecutionContext) (*domain.TaskResult, error) {
			if task.ID == "1.2" {
				return nil, testutil.ErrMockImplementFailed
			}
			return &domain.TaskResult{TaskID: task.ID, Success: true, TestsRun: 1}, nil
		})
		engine, _ := newTestEngine(t, "- [ ] 1. Setup\n  - [ ] 1.1 First\n  - [ ] 1.2 Second\n  - [ ] 1.3 Third\n",
			WithImplementer(flaky))

		_, err := engine.Execute(ctx, testTaskActor, testSpecID, "1")
		require.Error(t, err)
		assert.Equal(t, constants.TaskCompleted, taskStatus(t, engine, "1.1"))
		assert.Equal(t, constants.TaskNotStarted, taskStatus(t, engine, "1.2"))
		assert.Equal(t, constants.TaskNotStarted, taskStatus(t, engine, "1.3"))
		assert.Equal(t, constants.TaskNotStarted, taskStatus(t, engine, "1"))
	})

	t.Run("CompletingLastTaskReflectsWorkflow", func(t *testing.T) {
		updater := &recordingUpdater{}
		engine, _ := newTestEngine(t, "- [x] 1. Setup\n- [ ] 2. Implement\n", WithStateUpdater(updater))

		_, err := engine.Execute(ctx, testTaskActor, testSpecID, "2")
		require.NoError(t, err)
		require.NotEmpty(t, updater.statuses)
		assert.Equal(t, constants.WorkflowStatusInProgress, updater.statuses[0])
		assert.Equal(t, constants.WorkflowStatusCompleted, updater.statuses[len(updater.statuses)-1])
	})
}

func TestCompletionValidationBlocks(t *testing.T) {
	ctx := context.Background()

	failAll := completionFunc(func(_ context.Context, specID string, task *domain.Task, _ *domain.TaskResult, _ *domain.ExecutionContext) (*domain.ValidationReport, error) {
		report := &domain.ValidationReport{SpecID: specID}
		report.Add(domain.ValidationIssue{
			RuleID:   "completion",
			Severity: domain.SeverityError,
			Message:  "task " + task.ID + " failed verification",
		})
		return report, nil
	})
	engine, _ := newTestEngine(t, "- [ ] 1. Setup\n", WithCompletionValidator(failAll))

	result, err := engine.Execute(ctx, testTaskActor, testSpecID, "1")
	require.ErrorIs(t, err, specderrors.ErrValidationFailed)
	require.NotNil(t, result)
	assert.False(t, result.Success)
	assert.Equal(t, constants.TaskBlocked, taskStatus(t, engine, "1"))
}

// completionFunc adapts a function to CompletionValidator for tests.
type completionFunc func(ctx context.Context, specID string, task *domain.Task, result *domain.TaskResult, execCtx *domain.ExecutionContext) (*domain.ValidationReport, error)

func (f completionFunc) ValidateCompletion(ctx context.Context, specID string, task *domain.Task, result *domain.TaskResult, execCtx *domain.ExecutionContext) (*domain.ValidationReport, error) {
	return f(ctx, specID, task, result, execCtx)
}

func TestValidateReadiness(t *testing.T) {
	ctx := context.Background()

	t.Run("ReadyLeaf", func(t *testing.T) {
		engine, _ := newTestEngine(t, "- [ ] 1. Setup\n")

		warnings, err := engine.ValidateReadiness(ctx, testSpecID, "1")
		require.NoError(t, err)
		assert.Empty(t, warnings)
	})

	t.Run("CompletedTaskWarns", func(t *testing.T) {
		engine, _ := newTestEngine(t, "- [x] 1. Setup\n")

		warnings, err := engine.ValidateReadiness(ctx, testSpecID, "1")
		require.NoError(t, err)
		require.Len(t, warnings, 1)
		assert.Contains(t, warnings[0], "already completed")
	})

	t.Run("IncompleteSubtasksWarn", func(t *testing.T) {
		engine, _ := newTestEngine(t, "- [ ] 1. Setup\n  - [x] 1.1 First\n  - [ ] 1.2 Second\n")

		warnings, err := engine.ValidateReadiness(ctx, testSpecID, "1")
		require.NoError(t, err)
		require.Len(t, warnings, 1)
		assert.Contains(t, warnings[0], "incomplete subtask 1.2")
	})

	t.Run("BlockedTaskErrs", func(t *testing.T) {
		engine, _ := newTestEngine(t, "- [!] 1. Setup\n")

		_, err := engine.ValidateReadiness(ctx, testSpecID, "1")
		require.ErrorIs(t, err, specderrors.ErrTaskBlocked)
	})

	t.Run("UnknownTask", func(t *testing.T) {
		engine, _ := newTestEngine(t, "- [ ] 1. Setup\n")

		_, err := engine.ValidateReadiness(ctx, testSpecID, "9")
		require.ErrorIs(t, err, specderrors.ErrTaskNotFound)
	})
}

func TestUpdateStatus(t *testing.T) {
	ctx := context.Background()

	t.Run("ParentNeedsCompleteSubtasks", func(t *testing.T) {
		engine, _ := newTestEngine(t, "- [ ] 1. Setup\n  - [x] 1.1 First\n  - [ ] 1.2 Second\n")

		err := engine.UpdateStatus(ctx, testSpecID, "1", constants.TaskCompleted)
		require.ErrorIs(t, err, specderrors.ErrSubtasksIncomplete)
	})

	t.Run("LastSubtaskCascades", func(t *testing.T) {
		engine, _ := newTestEngine(t, "- [ ] 1. Setup\n  - [x] 1.1 First\n  - [ ] 1.2 Second\n")

		require.NoError(t, engine.UpdateStatus(ctx, testSpecID, "1.2", constants.TaskCompleted))
		assert.Equal(t, constants.TaskCompleted, taskStatus(t, engine, "1"))
	})

	t.Run("InvalidStatus", func(t *testing.T) {
		engine, _ := newTestEngine(t, "- [ ] 1. Setup\n")

		err := engine.UpdateStatus(ctx, testSpecID, "1", constants.TaskStatus("bogus"))
		require.ErrorIs(t, err, specderrors.ErrInvalidStatus)
	})
}
