package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/specdriven/specd/internal/constants"
	"github.com/specdriven/specd/internal/domain"
	specderrors "github.com/specdriven/specd/internal/errors"
	"github.com/specdriven/specd/internal/task"
)

// AddTaskCommand adds the task command group to the root command.
func AddTaskCommand(root *cobra.Command, flags *GlobalFlags) {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Inspect and execute implementation tasks",
		Long: `Inspect and execute the implementation tasks of a spec.

Tasks live in the spec's tasks.md as checkbox list items; the document
is the source of truth and every status change is written back to it.`,
	}

	cmd.AddCommand(newTaskNextCmd(flags))
	cmd.AddCommand(newTaskRunCmd(flags))
	cmd.AddCommand(newTaskStatusCmd(flags))
	root.AddCommand(cmd)
}

// taskResponse is the JSON output for task subcommands.
type taskResponse struct {
	Success bool               `json:"success"`
	Task    *domain.Task       `json:"task,omitempty"`
	Result  *domain.TaskResult `json:"result,omitempty"`
	Info    string             `json:"info,omitempty"`
	Error   string             `json:"error,omitempty"`
}

func newTaskNextCmd(flags *GlobalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "next <spec-id>",
		Short: "Show the next runnable task",
		Long: `Show the next task the engine would execute: the first not-started
task whose dependencies are completed, or an interrupted in-progress
task to resume.

Examples:
  specd task next user-auth`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTaskNext(cmd.Context(), os.Stdout, flags, args[0])
		},
	}
}

func runTaskNext(ctx context.Context, w io.Writer, flags *GlobalFlags, specID string) error {
	svc, err := newServices(ctx, flags.Actor)
	if err != nil {
		return emitError(flags.Output, w, err)
	}

	next, info, err := svc.engine.NextTask(ctx, specID)
	if err != nil {
		return emitError(flags.Output, w, err)
	}

	if flags.Output == OutputJSON {
		return writeJSON(w, taskResponse{Success: true, Task: next, Info: info})
	}

	if next == nil {
		printf(w, "%s", info)
		return nil
	}
	if info != "" {
		printf(w, "%s", info)
	}
	printf(w, "Next task: %s. %s", next.ID, next.Description)
	if len(next.Requirements) > 0 {
		printf(w, "Covers:    %v", next.Requirements)
	}
	return nil
}

func newTaskRunCmd(flags *GlobalFlags) *cobra.Command {
	var taskID string
	var noRecovery bool

	cmd := &cobra.Command{
		Use:   "run <spec-id>",
		Short: "Execute the next task (or a named one)",
		Long: `Execute a task through the configured implementation backend.

Without --task the next runnable task is selected. Failures are
classified and retried with bounded attempts inside a wall-clock budget;
the retry history is attached to the result. Use --no-recovery for a
single attempt.

Examples:
  specd task run user-auth
  specd task run user-auth --task 2.1
  specd task run user-auth --no-recovery`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTaskRun(cmd.Context(), os.Stdout, flags, args[0], taskID, noRecovery)
		},
	}

	cmd.Flags().StringVar(&taskID, "task", "", "Task ID to run (default: next runnable)")
	cmd.Flags().BoolVar(&noRecovery, "no-recovery", false, "Run a single attempt without retry recovery")
	return cmd
}

func runTaskRun(ctx context.Context, w io.Writer, flags *GlobalFlags, specID, taskID string, noRecovery bool) error {
	svc, err := newServices(ctx, flags.Actor)
	if err != nil {
		return emitError(flags.Output, w, err)
	}

	if taskID == "" {
		next, info, nextErr := svc.engine.NextTask(ctx, specID)
		if nextErr != nil {
			return emitError(flags.Output, w, nextErr)
		}
		if next == nil {
			if flags.Output == OutputJSON {
				return writeJSON(w, taskResponse{Success: true, Info: info})
			}
			printf(w, "%s", info)
			return nil
		}
		taskID = next.ID
	}

	var result *domain.TaskResult
	if noRecovery {
		result, err = svc.engine.Execute(ctx, svc.actor, specID, taskID)
	} else {
		result, err = svc.engine.ExecuteWithRecovery(ctx, svc.actor, specID, taskID, task.RecoveryPolicy{
			MaxRetries: svc.cfg.Execution.MaxRetries,
			Budget:     svc.cfg.Execution.RetryBudget,
		})
	}
	if err != nil {
		if flags.Output == OutputJSON {
			_ = writeJSON(w, taskResponse{Success: false, Result: result, Error: err.Error()})
			return err
		}
		printTaskResult(w, result)
		return err
	}

	if flags.Output == OutputJSON {
		return writeJSON(w, taskResponse{Success: true, Result: result})
	}

	printf(w, "Task %s completed in %s.", result.TaskID, result.Duration.Round(1e6))
	printTaskResult(w, result)
	return nil
}

// printTaskResult renders result details for text output.
func printTaskResult(w io.Writer, result *domain.TaskResult) {
	if result == nil {
		return
	}
	if len(result.FilesCreated) > 0 {
		printf(w, "Files created:  %v", result.FilesCreated)
	}
	if len(result.FilesModified) > 0 {
		printf(w, "Files modified: %v", result.FilesModified)
	}
	if result.TestsRun > 0 {
		printf(w, "Tests run:      %d", result.TestsRun)
	}
	for _, issue := range result.Validation {
		printf(w, "%s [%s]: %s", issue.Severity, issue.RuleID, issue.Message)
	}
	for _, attempt := range result.RecoveryAttempts {
		printf(w, "attempt %d failed (%s, action %s): %s",
			attempt.Attempt, attempt.Kind, attempt.Action, attempt.Error)
	}
}

func newTaskStatusCmd(flags *GlobalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "status <spec-id> <task-id> <status>",
		Short: "Manually set a task's status",
		Long: fmt.Sprintf(`Manually set a task's status in the tasks document.

Valid statuses: %s. A parent task cannot be completed while its subtasks
are incomplete.

Examples:
  specd task status user-auth 2.1 completed
  specd task status user-auth 3 blocked`, joinOr(taskStatusNames())),
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTaskStatus(cmd.Context(), os.Stdout, flags, args[0], args[1], args[2])
		},
	}
}

func runTaskStatus(ctx context.Context, w io.Writer, flags *GlobalFlags, specID, taskID, statusArg string) error {
	status := constants.TaskStatus(statusArg)
	if !status.IsValid() {
		err := fmt.Errorf("%w: %q, expected %s", specderrors.ErrInvalidStatus, statusArg,
			joinOr(taskStatusNames()))
		return emitError(flags.Output, w, err)
	}

	svc, err := newServices(ctx, flags.Actor)
	if err != nil {
		return emitError(flags.Output, w, err)
	}

	if err := svc.engine.UpdateStatus(ctx, specID, taskID, status); err != nil {
		return emitError(flags.Output, w, err)
	}

	if flags.Output == OutputJSON {
		return writeJSON(w, taskResponse{Success: true, Info: fmt.Sprintf("task %s set to %s", taskID, status)})
	}
	printf(w, "Task %s set to %s.", taskID, status)
	return nil
}

func taskStatusNames() []string {
	return []string{
		constants.TaskNotStarted.String(),
		constants.TaskInProgress.String(),
		constants.TaskCompleted.String(),
		constants.TaskBlocked.String(),
	}
}
