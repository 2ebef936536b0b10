package cli

import (
	"context"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/specdriven/specd/internal/task"
)

// AddProgressCommand adds the progress command to the root command.
func AddProgressCommand(root *cobra.Command, flags *GlobalFlags) {
	root.AddCommand(newProgressCmd(flags))
}

func newProgressCmd(flags *GlobalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "progress <spec-id>",
		Short: "Show task execution progress",
		Long: `Show execution progress for a spec: task counts by status, percent
complete, the next runnable task and any blocked tasks.

Examples:
  specd progress user-auth
  specd progress user-auth -o json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProgress(cmd.Context(), os.Stdout, flags, args[0])
		},
	}
}

// progressResponse is the JSON output for progress.
type progressResponse struct {
	Success bool `json:"success"`
	*task.Progress
	Error string `json:"error,omitempty"`
}

func runProgress(ctx context.Context, w io.Writer, flags *GlobalFlags, specID string) error {
	svc, err := newServices(ctx, flags.Actor)
	if err != nil {
		return emitError(flags.Output, w, err)
	}

	progress, err := svc.engine.Progress(ctx, specID)
	if err != nil {
		return emitError(flags.Output, w, err)
	}

	if flags.Output == OutputJSON {
		return writeJSON(w, progressResponse{Success: true, Progress: progress})
	}

	printf(w, "Spec '%s': %d/%d tasks completed (%.0f%%, weighted %.0f%%)",
		progress.SpecID, progress.Completed, progress.Total,
		progress.Percent, progress.WeightedPercent)
	printf(w, "  in progress: %d, not started: %d, blocked: %d",
		progress.InProgress, progress.NotStarted, progress.Blocked)
	if progress.Remaining > 0 {
		printf(w, "  remaining: %d task(s), about %.0f%% of the work",
			progress.Remaining, progress.RemainingEffort)
	}
	if progress.NextTaskID != "" {
		printf(w, "  next: %s", progress.NextTaskID)
	}
	for _, blocked := range progress.BlockedTasks {
		line := "  blocked: " + blocked.ID + ". " + blocked.Description
		if len(blocked.Dependencies) > 0 {
			printf(w, "%s (waiting on %v)", line, blocked.Dependencies)
		} else {
			printf(w, "%s", line)
		}
	}
	return nil
}
