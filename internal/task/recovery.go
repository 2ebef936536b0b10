package task

import (
	"context"
	"fmt"
	"time"

	"github.com/specdriven/specd/internal/authz"
	"github.com/specdriven/specd/internal/domain"
	specderrors "github.com/specdriven/specd/internal/errors"
)

// Recovery actions applied between attempts.
const (
	ActionPermissionFix   = "permission_fix"
	ActionDependencyCheck = "dependency_check"
	ActionCodeFix         = "code_fix"
	ActionExtendTimeout   = "extend_timeout"
	ActionInvalidateCache = "invalidate_cache"
)

// timeoutOverrideKey carries a per-attempt implementation timeout, set
// by the extend_timeout recovery action.
type timeoutOverrideKey struct{}

// withTimeoutOverride returns a context whose implementation timeout
// overrides the engine default.
func withTimeoutOverride(ctx context.Context, d time.Duration) context.Context {
	return context.WithValue(ctx, timeoutOverrideKey{}, d)
}

// timeoutOverride extracts the per-attempt timeout, if any.
func timeoutOverride(ctx context.Context) (time.Duration, bool) {
	d, ok := ctx.Value(timeoutOverrideKey{}).(time.Duration)
	return d, ok
}

// RecoveryPolicy bounds the retry loop.
type RecoveryPolicy struct {
	// MaxRetries is the maximum number of attempts per task.
	MaxRetries int

	// Budget is the wall-clock ceiling for the whole loop. Attempts stop
	// once it is spent even if retries remain.
	Budget time.Duration
}

// ExecuteWithRecovery runs a task through Execute with classified,
// bounded retries.
//
// The error kind picks the action applied before the next attempt:
//
//	dependency  -> dependency_check: re-check readiness, retry
//	transient   -> extend_timeout: double the implementation timeout, retry
//	unknown     -> invalidate_cache: drop the execution context, retry
//
// Authorization, workflow, structural and integrity failures are never
// retried; structural failures report code_fix as the manual action.
// The recovery history is attached to the returned result either way.
func (e *Engine) ExecuteWithRecovery(ctx context.Context, actor, specID, taskID string, policy RecoveryPolicy) (*domain.TaskResult, error) {
	// A denied actor is a gate failure, not a task failure; it never
	// enters the retry history.
	if err := e.auth.Check(ctx, actor, authz.OpExecute, specID); err != nil {
		return nil, err
	}

	if policy.MaxRetries < 1 {
		policy.MaxRetries = 1
	}
	deadline := e.clock.Now().Add(policy.Budget)
	attemptTimeout := e.timeout

	var history []domain.RecoveryAttempt
	var lastErr error

	for attempt := 1; attempt <= policy.MaxRetries; attempt++ {
		if policy.Budget > 0 && !e.clock.Now().Before(deadline) {
			return failedResult(taskID, history, lastErr),
				fmt.Errorf("task '%s' after %d attempt(s): %w", taskID, attempt-1, specderrors.ErrRetryBudgetExhausted)
		}

		attemptCtx := ctx
		if attemptTimeout != e.timeout {
			attemptCtx = withTimeoutOverride(ctx, attemptTimeout)
		}

		result, err := e.Execute(attemptCtx, actor, specID, taskID)
		if err == nil {
			if result != nil {
				result.RecoveryAttempts = history
			}
			return result, nil
		}
		lastErr = err

		kind := specderrors.Classify(err)
		action, retryable := recoveryAction(kind)
		history = append(history, domain.RecoveryAttempt{
			Attempt: attempt,
			Kind:    kind.String(),
			Action:  action,
			Error:   err.Error(),
			At:      e.clock.Now().UTC(),
		})

		e.logger.Warn().
			Str("spec_id", specID).
			Str("task_id", taskID).
			Int("attempt", attempt).
			Str("kind", kind.String()).
			Str("action", action).
			Err(err).
			Msg("task attempt failed")

		if !retryable {
			return failedResult(taskID, history, err), err
		}

		switch action {
		case ActionExtendTimeout:
			attemptTimeout *= 2
		case ActionInvalidateCache:
			e.loader.Invalidate(specID)
		case ActionDependencyCheck:
			// Re-parse on the next Execute is the check; nothing to do here.
		}
	}

	return failedResult(taskID, history, lastErr),
		fmt.Errorf("task '%s' after %d attempt(s): %w", taskID, policy.MaxRetries, specderrors.ErrMaxRetriesExceeded)
}

// recoveryAction maps an error kind to its action and retryability.
func recoveryAction(kind specderrors.Kind) (string, bool) {
	switch kind {
	case specderrors.KindAuthorization:
		return ActionPermissionFix, false
	case specderrors.KindDependency:
		return ActionDependencyCheck, true
	case specderrors.KindStructural:
		return ActionCodeFix, false
	case specderrors.KindTransient:
		return ActionExtendTimeout, true
	case specderrors.KindWorkflow, specderrors.KindIntegrity:
		return "", false
	default:
		return ActionInvalidateCache, true
	}
}

// failedResult wraps the retry history for a failed run.
func failedResult(taskID string, history []domain.RecoveryAttempt, err error) *domain.TaskResult {
	result := &domain.TaskResult{
		TaskID:           taskID,
		Success:          false,
		RecoveryAttempts: history,
	}
	if err != nil {
		result.Error = err.Error()
	}
	return result
}
