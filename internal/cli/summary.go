package cli

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/specdriven/specd/internal/task"
)

// AddSummaryCommand adds the summary command to the root command.
func AddSummaryCommand(root *cobra.Command, flags *GlobalFlags) {
	root.AddCommand(newSummaryCmd(flags))
}

func newSummaryCmd(flags *GlobalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "summary <spec-id>",
		Short: "Show the execution overview",
		Long: `Show the execution overview for a spec: progress plus the critical
path through the remaining tasks and any bottleneck tasks gating
downstream work.

Examples:
  specd summary user-auth
  specd summary user-auth -o json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSummary(cmd.Context(), os.Stdout, flags, args[0])
		},
	}
}

// summaryResponse is the JSON output for summary.
type summaryResponse struct {
	Success bool `json:"success"`
	*task.Summary
	Error string `json:"error,omitempty"`
}

func runSummary(ctx context.Context, w io.Writer, flags *GlobalFlags, specID string) error {
	svc, err := newServices(ctx, flags.Actor)
	if err != nil {
		return emitError(flags.Output, w, err)
	}

	summary, err := svc.engine.Summarize(ctx, specID)
	if err != nil {
		return emitError(flags.Output, w, err)
	}

	if flags.Output == OutputJSON {
		return writeJSON(w, summaryResponse{Success: true, Summary: summary})
	}

	progress := summary.Progress
	printf(w, "Spec '%s': %d/%d tasks completed (%.0f%%)",
		progress.SpecID, progress.Completed, progress.Total, progress.Percent)
	if len(summary.CriticalPath) > 0 {
		printf(w, "Critical path: %s", strings.Join(summary.CriticalPath, " -> "))
	}
	for _, b := range summary.Bottlenecks {
		printf(w, "Bottleneck: %s. %s (%d dependents, %s)",
			b.ID, b.Description, b.Dependents, b.Reason)
	}
	if len(summary.Bottlenecks) == 0 && len(summary.CriticalPath) == 0 {
		printf(w, "Nothing left to plan.")
	}
	return nil
}
