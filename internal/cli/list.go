package cli

import (
	"context"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/specdriven/specd/internal/domain"
)

// AddListCommand adds the list command to the root command.
func AddListCommand(root *cobra.Command, flags *GlobalFlags) {
	root.AddCommand(newListCmd(flags))
}

func newListCmd(flags *GlobalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all spec workflows",
		Long: `List every known spec workflow with its phase and status, most
recently updated first. Workflows whose state was rebuilt by recovery
are flagged.

Examples:
  specd list
  specd list -o json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runList(cmd.Context(), os.Stdout, flags)
		},
	}
}

// listResponse is the JSON output for list.
type listResponse struct {
	Success   bool                     `json:"success"`
	Workflows []domain.WorkflowSummary `json:"workflows"`
	Error     string                   `json:"error,omitempty"`
}

func runList(ctx context.Context, w io.Writer, flags *GlobalFlags) error {
	svc, err := newServices(ctx, flags.Actor)
	if err != nil {
		return emitError(flags.Output, w, err)
	}

	summaries, err := svc.orchestrator.ListWorkflows(ctx)
	if err != nil {
		return emitError(flags.Output, w, err)
	}

	if flags.Output == OutputJSON {
		return writeJSON(w, listResponse{Success: true, Workflows: summaries})
	}

	if len(summaries) == 0 {
		printf(w, "No specs found. Run 'specd create <name>' to start one.")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	printf(tw, "SPEC\tPHASE\tSTATUS\tUPDATED")
	for _, s := range summaries {
		flag := ""
		if s.Recovered {
			flag = " (recovered)"
		}
		printf(tw, "%s\t%s\t%s%s\t%s", s.SpecID, s.CurrentPhase, s.Status, flag,
			s.UpdatedAt.Format("2006-01-02 15:04"))
	}
	return tw.Flush()
}
