// Package implement defines the pluggable boundary the task engine calls
// to actually carry out a task. The engine owns status bookkeeping,
// retries and validation; implementers own the work itself.
package implement

import (
	"context"
	"fmt"

	"github.com/specdriven/specd/internal/domain"
	specderrors "github.com/specdriven/specd/internal/errors"
)

// Implementer carries out a single task using the loaded execution
// context. Implementations must honor ctx cancellation; the engine
// enforces a per-task deadline through it.
type Implementer interface {
	ImplementTask(ctx context.Context, task *domain.Task, execCtx *domain.ExecutionContext) (*domain.TaskResult, error)
}

// Func adapts a plain function to the Implementer interface.
type Func func(ctx context.Context, task *domain.Task, execCtx *domain.ExecutionContext) (*domain.TaskResult, error)

// ImplementTask implements Implementer.
func (f Func) ImplementTask(ctx context.Context, task *domain.Task, execCtx *domain.ExecutionContext) (*domain.TaskResult, error) {
	return f(ctx, task, execCtx)
}

// Unconfigured is the default implementer. It fails every task with
// ErrImplementerUnconfigured so `task run` surfaces a clear message when
// no backend has been wired.
type Unconfigured struct{}

// ImplementTask implements Implementer.
func (Unconfigured) ImplementTask(_ context.Context, task *domain.Task, _ *domain.ExecutionContext) (*domain.TaskResult, error) {
	return nil, fmt.Errorf("cannot run task %s: %w", task.ID, specderrors.ErrImplementerUnconfigured)
}

// Interface guards.
var (
	_ Implementer = Func(nil)
	_ Implementer = Unconfigured{}
)
