package task

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/specdriven/specd/internal/authz"
	"github.com/specdriven/specd/internal/clock"
	"github.com/specdriven/specd/internal/constants"
	"github.com/specdriven/specd/internal/document"
	"github.com/specdriven/specd/internal/domain"
	specderrors "github.com/specdriven/specd/internal/errors"
	"github.com/specdriven/specd/internal/implement"
)

// StateUpdater is the engine's narrow view of the workflow service: it
// reflects execution milestones into the workflow status.
type StateUpdater interface {
	SetExecutionStatus(ctx context.Context, specID string, status constants.WorkflowStatus) error
}

// CompletionValidator checks a finished task against the documents
// before it is marked completed. An error-severity issue blocks the task.
type CompletionValidator interface {
	ValidateCompletion(ctx context.Context, specID string, task *domain.Task, result *domain.TaskResult, execCtx *domain.ExecutionContext) (*domain.ValidationReport, error)
}

// Engine selects and executes tasks from a spec's tasks document.
// All status changes are written back to the document before and after
// the implementation call, so a crash mid-task leaves an in_progress
// marker rather than silent loss.
type Engine struct {
	docs      document.Store
	loader    *ContextLoader
	impl      implement.Implementer
	validator CompletionValidator
	state     StateUpdater
	auth      authz.Authorizer
	clock     clock.Clock
	logger    zerolog.Logger
	timeout   time.Duration
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithImplementer sets the implementation backend. Default is
// implement.Unconfigured.
func WithImplementer(impl implement.Implementer) EngineOption {
	return func(e *Engine) { e.impl = impl }
}

// WithCompletionValidator sets the completion validator. Without one,
// tasks complete on implementer success alone.
func WithCompletionValidator(v CompletionValidator) EngineOption {
	return func(e *Engine) { e.validator = v }
}

// WithStateUpdater wires workflow status reflection.
func WithStateUpdater(s StateUpdater) EngineOption {
	return func(e *Engine) { e.state = s }
}

// WithEngineAuthorizer sets the authorization policy checked before a
// task executes. Default is AllowAll.
func WithEngineAuthorizer(a authz.Authorizer) EngineOption {
	return func(e *Engine) { e.auth = a }
}

// WithEngineClock sets the time source.
func WithEngineClock(c clock.Clock) EngineOption {
	return func(e *Engine) { e.clock = c }
}

// WithEngineLogger sets the logger.
func WithEngineLogger(l zerolog.Logger) EngineOption {
	return func(e *Engine) { e.logger = l }
}

// WithImplementTimeout bounds a single implementation call.
func WithImplementTimeout(d time.Duration) EngineOption {
	return func(e *Engine) { e.timeout = d }
}

// NewEngine creates a task engine over a document store and context
// loader.
func NewEngine(docs document.Store, loader *ContextLoader, opts ...EngineOption) *Engine {
	e := &Engine{
		docs:    docs,
		loader:  loader,
		impl:    implement.Unconfigured{},
		auth:    authz.AllowAll{},
		clock:   clock.RealClock{},
		logger:  zerolog.Nop(),
		timeout: 10 * time.Minute,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With().Str("component", "task_engine").Logger()
	return e
}

// Load parses the spec's tasks document.
func (e *Engine) Load(ctx context.Context, specID string) (*TaskList, error) {
	content, _, err := e.docs.Load(ctx, specID, constants.DocTasks)
	if err != nil {
		return nil, err
	}
	return Parse(content)
}

// save writes the task list back to the tasks document.
func (e *Engine) save(ctx context.Context, specID string, list *TaskList) error {
	return e.docs.Save(ctx, specID, constants.DocTasks, list.Render())
}

// NextTask returns the next runnable task in document order: the first
// leaf task that is not started and whose dependencies (including its
// parent's) are completed. When nothing is runnable it falls back to the
// first in-progress leaf so an interrupted run resumes where it stopped.
// A nil task with a non-empty info string means there is nothing to do.
func (e *Engine) NextTask(ctx context.Context, specID string) (*domain.Task, string, error) {
	list, err := e.Load(ctx, specID)
	if err != nil {
		return nil, "", err
	}
	return nextRunnable(list)
}

// nextRunnable implements the selection policy on a parsed list.
func nextRunnable(list *TaskList) (*domain.Task, string, error) {
	allDone := true
	var blocked int
	for _, t := range list.Tasks {
		if t.Status != constants.TaskCompleted {
			allDone = false
		}
		if t.Status == constants.TaskBlocked {
			blocked++
		}
	}
	if len(list.Tasks) == 0 {
		return nil, "the tasks document contains no tasks", nil
	}
	if allDone {
		return nil, "all tasks are completed", nil
	}

	for _, t := range list.Tasks {
		if len(t.Subtasks) > 0 || t.Status != constants.TaskNotStarted {
			continue
		}
		if depsSatisfied(list, t) {
			return t, "", nil
		}
	}
	for _, t := range list.Tasks {
		if len(t.Subtasks) == 0 && t.Status == constants.TaskInProgress {
			return t, "resuming a task that was already in progress", nil
		}
	}

	if blocked > 0 {
		return nil, fmt.Sprintf("no runnable tasks: %d blocked task(s) need attention", blocked), nil
	}
	return nil, "no runnable tasks: remaining tasks have unmet dependencies", nil
}

// depsSatisfied reports whether every dependency of the task, and of its
// parent, is completed. Unknown dependency IDs count as unmet.
func depsSatisfied(list *TaskList, t *domain.Task) bool {
	for _, depID := range t.Dependencies {
		dep := list.Get(depID)
		if dep == nil || dep.Status != constants.TaskCompleted {
			return false
		}
	}
	if t.Parent != "" {
		if parent := list.Get(t.Parent); parent != nil {
			for _, depID := range parent.Dependencies {
				dep := list.Get(depID)
				if dep == nil || dep.Status != constants.TaskCompleted {
					return false
				}
			}
		}
	}
	return true
}

// ValidateReadiness checks that a task may be executed now. Conditions
// that do not forbid execution, like a task that is already completed
// or a parent with incomplete subtasks, come back as warnings.
func (e *Engine) ValidateReadiness(ctx context.Context, specID, taskID string) ([]string, error) {
	list, err := e.Load(ctx, specID)
	if err != nil {
		return nil, err
	}
	t := list.Get(taskID)
	if t == nil {
		return nil, fmt.Errorf("task '%s': %w", taskID, specderrors.ErrTaskNotFound)
	}
	return readinessWarnings(list, t), readiness(list, t)
}

// readinessWarnings collects advisory conditions for a task.
func readinessWarnings(list *TaskList, t *domain.Task) []string {
	var warnings []string
	if t.Status == constants.TaskCompleted {
		warnings = append(warnings, fmt.Sprintf("task '%s' is already completed", t.ID))
	}
	for _, subID := range t.Subtasks {
		if sub := list.Get(subID); sub != nil && sub.Status != constants.TaskCompleted {
			warnings = append(warnings, fmt.Sprintf("task '%s' has incomplete subtask %s", t.ID, subID))
		}
	}
	return warnings
}

func readiness(list *TaskList, t *domain.Task) error {
	if t.Status == constants.TaskBlocked {
		return fmt.Errorf("task '%s': %w", t.ID, specderrors.ErrTaskBlocked)
	}
	if t.Status == constants.TaskCompleted {
		return nil
	}
	if !depsSatisfied(list, t) {
		return fmt.Errorf("task '%s': %w", t.ID, specderrors.ErrUnmetDependencies)
	}
	return nil
}

// Execute runs a task to completion. Execution is a mutating operation
// and is authorization-checked first, fail-closed. A task with subtasks
// runs them in order and completes when they all do; the run aborts on
// the first subtask failure. A leaf task is marked in_progress in the
// document before the implementation call (the crash checkpoint), then
// completed or reverted depending on the outcome.
func (e *Engine) Execute(ctx context.Context, actor, specID, taskID string) (*domain.TaskResult, error) {
	if err := e.auth.Check(ctx, actor, authz.OpExecute, specID); err != nil {
		return nil, err
	}

	list, err := e.Load(ctx, specID)
	if err != nil {
		return nil, err
	}
	t := list.Get(taskID)
	if t == nil {
		return nil, fmt.Errorf("task '%s': %w", taskID, specderrors.ErrTaskNotFound)
	}
	if t.Status == constants.TaskCompleted {
		return &domain.TaskResult{TaskID: taskID, Success: true, Message: "task already completed"}, nil
	}
	if err := readiness(list, t); err != nil {
		return nil, err
	}

	e.reflectStatus(ctx, specID, constants.WorkflowStatusInProgress)

	var result *domain.TaskResult
	if len(t.Subtasks) > 0 {
		result, err = e.executeParent(ctx, specID, list, t)
	} else {
		result, err = e.executeLeaf(ctx, specID, list, t)
	}
	if err != nil {
		return result, err
	}

	if allCompleted(list) {
		e.reflectStatus(ctx, specID, constants.WorkflowStatusCompleted)
	}
	return result, nil
}

// executeParent runs each subtask in order, aborting on the first
// failure. The parent's marker tracks the aggregate: in_progress while
// running, completed when every subtask completed, reverted to the
// aggregate of its children on abort.
func (e *Engine) executeParent(ctx context.Context, specID string, list *TaskList, parent *domain.Task) (*domain.TaskResult, error) {
	if err := list.SetStatus(parent.ID, constants.TaskInProgress); err != nil {
		return nil, err
	}
	if err := e.save(ctx, specID, list); err != nil {
		return nil, err
	}

	start := e.clock.Now()
	aggregate := &domain.TaskResult{TaskID: parent.ID}

	for _, subID := range parent.Subtasks {
		sub := list.Get(subID)
		if sub == nil || sub.Status == constants.TaskCompleted {
			continue
		}
		subResult, err := e.executeLeaf(ctx, specID, list, sub)
		if subResult != nil {
			aggregate.FilesCreated = append(aggregate.FilesCreated, subResult.FilesCreated...)
			aggregate.FilesModified = append(aggregate.FilesModified, subResult.FilesModified...)
			aggregate.TestsRun += subResult.TestsRun
			aggregate.Validation = append(aggregate.Validation, subResult.Validation...)
		}
		if err != nil {
			// Abort: the parent goes back to not_started so the failed
			// subtask is retried on the next run.
			_ = list.SetStatus(parent.ID, constants.TaskNotStarted)
			if saveErr := e.save(ctx, specID, list); saveErr != nil {
				e.logger.Error().Err(saveErr).Str("spec_id", specID).Msg("failed to checkpoint aborted parent task")
			}
			aggregate.Success = false
			aggregate.Error = err.Error()
			aggregate.Duration = e.clock.Now().Sub(start)
			return aggregate, specderrors.Wrapf(err, "subtask %s failed", subID)
		}
	}

	if err := list.SetStatus(parent.ID, constants.TaskCompleted); err != nil {
		return nil, err
	}
	if err := e.save(ctx, specID, list); err != nil {
		return nil, err
	}

	aggregate.Success = true
	aggregate.Message = fmt.Sprintf("completed %d subtask(s)", len(parent.Subtasks))
	aggregate.Duration = e.clock.Now().Sub(start)
	return aggregate, nil
}

// executeLeaf runs a single leaf task through the implementer.
func (e *Engine) executeLeaf(ctx context.Context, specID string, list *TaskList, t *domain.Task) (*domain.TaskResult, error) {
	if err := readiness(list, t); err != nil {
		return nil, err
	}

	if err := list.SetStatus(t.ID, constants.TaskInProgress); err != nil {
		return nil, err
	}
	if err := e.save(ctx, specID, list); err != nil {
		return nil, err
	}

	execCtx, err := e.loader.Load(ctx, specID)
	if err != nil {
		e.revert(ctx, specID, list, t.ID)
		return nil, err
	}

	timeout := e.timeout
	if override, ok := timeoutOverride(ctx); ok {
		timeout = override
	}

	start := e.clock.Now()
	implCtx, cancel := context.WithTimeout(ctx, timeout)
	result, implErr := e.impl.ImplementTask(implCtx, t, execCtx)
	cancel()

	if implErr != nil {
		e.revert(ctx, specID, list, t.ID)
		if stderrors.Is(implErr, context.DeadlineExceeded) {
			return nil, fmt.Errorf("task '%s' exceeded %s: %w", t.ID, timeout, specderrors.ErrExecutionTimeout)
		}
		return nil, specderrors.Wrapf(implErr, "task '%s' implementation failed", t.ID)
	}
	if result == nil {
		result = &domain.TaskResult{TaskID: t.ID, Success: true}
	}
	result.TaskID = t.ID
	result.Duration = e.clock.Now().Sub(start)

	if e.validator != nil {
		report, err := e.validator.ValidateCompletion(ctx, specID, t, result, execCtx)
		if err != nil {
			e.revert(ctx, specID, list, t.ID)
			return nil, specderrors.Wrapf(err, "completion validation for task '%s' failed to run", t.ID)
		}
		result.Validation = append(result.Validation, report.Issues...)
		if report.HasErrors() {
			// Validation failure is a hard stop: the task is blocked
			// until someone addresses the findings.
			if err := list.SetStatus(t.ID, constants.TaskBlocked); err != nil {
				return result, err
			}
			if err := e.save(ctx, specID, list); err != nil {
				return result, err
			}
			result.Success = false
			result.Error = "completion validation found errors"
			return result, fmt.Errorf("task '%s' blocked by completion validation: %w", t.ID, specderrors.ErrValidationFailed)
		}
	}

	if err := list.SetStatus(t.ID, constants.TaskCompleted); err != nil {
		return result, err
	}
	e.cascadeParent(list, t)
	if err := e.save(ctx, specID, list); err != nil {
		return result, err
	}

	result.Success = true
	e.logger.Info().
		Str("spec_id", specID).
		Str("task_id", t.ID).
		Dur("duration", result.Duration).
		Msg("task completed")
	return result, nil
}

// UpdateStatus applies a manual status change, honoring the completion
// invariant: a parent cannot be completed while subtasks are incomplete.
func (e *Engine) UpdateStatus(ctx context.Context, specID, taskID string, status constants.TaskStatus) error {
	if !status.IsValid() {
		return fmt.Errorf("%w: %q", specderrors.ErrInvalidStatus, status)
	}

	list, err := e.Load(ctx, specID)
	if err != nil {
		return err
	}
	t := list.Get(taskID)
	if t == nil {
		return fmt.Errorf("task '%s': %w", taskID, specderrors.ErrTaskNotFound)
	}

	if status == constants.TaskCompleted {
		for _, subID := range t.Subtasks {
			if sub := list.Get(subID); sub != nil && sub.Status != constants.TaskCompleted {
				return fmt.Errorf("task '%s' has incomplete subtask %s: %w", taskID, subID, specderrors.ErrSubtasksIncomplete)
			}
		}
	}

	if err := list.SetStatus(taskID, status); err != nil {
		return err
	}
	if status == constants.TaskCompleted {
		e.cascadeParent(list, t)
	}
	if err := e.save(ctx, specID, list); err != nil {
		return err
	}

	if allCompleted(list) {
		e.reflectStatus(ctx, specID, constants.WorkflowStatusCompleted)
	}
	return nil
}

// revert returns a task to not_started after a failed attempt and
// checkpoints the document. Best effort on an already-failing path.
func (e *Engine) revert(ctx context.Context, specID string, list *TaskList, taskID string) {
	if err := list.SetStatus(taskID, constants.TaskNotStarted); err != nil {
		e.logger.Error().Err(err).Str("task_id", taskID).Msg("failed to revert task status")
		return
	}
	if err := e.save(ctx, specID, list); err != nil {
		e.logger.Error().Err(err).Str("spec_id", specID).Str("task_id", taskID).
			Msg("failed to checkpoint reverted task")
	}
}

// cascadeParent completes the parent when its last subtask completes.
func (e *Engine) cascadeParent(list *TaskList, t *domain.Task) {
	if t.Parent == "" {
		return
	}
	parent := list.Get(t.Parent)
	if parent == nil {
		return
	}
	for _, subID := range parent.Subtasks {
		if sub := list.Get(subID); sub == nil || sub.Status != constants.TaskCompleted {
			return
		}
	}
	_ = list.SetStatus(parent.ID, constants.TaskCompleted)
}

// allCompleted reports whether every task in the list is completed.
func allCompleted(list *TaskList) bool {
	if len(list.Tasks) == 0 {
		return false
	}
	for _, t := range list.Tasks {
		if t.Status != constants.TaskCompleted {
			return false
		}
	}
	return true
}

// reflectStatus pushes an execution milestone to the workflow service.
// Reflection failures are logged, not propagated: the tasks document is
// the source of truth and was already updated.
func (e *Engine) reflectStatus(ctx context.Context, specID string, status constants.WorkflowStatus) {
	if e.state == nil {
		return
	}
	if err := e.state.SetExecutionStatus(ctx, specID, status); err != nil {
		e.logger.Warn().Err(err).Str("spec_id", specID).Str("status", status.String()).
			Msg("failed to reflect execution status")
	}
}
