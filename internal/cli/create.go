package cli

import (
	"context"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/specdriven/specd/internal/domain"
	"github.com/specdriven/specd/internal/workflow"
)

// AddCreateCommand adds the create command to the root command.
func AddCreateCommand(root *cobra.Command, flags *GlobalFlags) {
	root.AddCommand(newCreateCmd(flags))
}

func newCreateCmd(flags *GlobalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "create <name>",
		Short: "Create a new spec workflow",
		Long: `Create a new spec workflow in the requirements phase.

The spec ID is derived from the name (lowercased, non-alphanumerics
replaced with dashes). The spec directory is created under
~/.specd/specs/<spec-id>/ with an initial versioned state.

Examples:
  specd create "User Auth"        # creates spec 'user-auth'
  specd create payments -o json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCreate(cmd.Context(), os.Stdout, flags, args[0])
		},
	}
}

// createResponse is the JSON output for create.
type createResponse struct {
	Success bool                  `json:"success"`
	State   *domain.WorkflowState `json:"state,omitempty"`
	Error   string                `json:"error,omitempty"`
}

func runCreate(ctx context.Context, w io.Writer, flags *GlobalFlags, name string) error {
	svc, err := newServices(ctx, flags.Actor)
	if err != nil {
		return emitError(flags.Output, w, err)
	}

	state, err := svc.orchestrator.CreateWorkflow(ctx, svc.actor, name)
	if err != nil {
		return emitError(flags.Output, w, err)
	}

	if flags.Output == OutputJSON {
		return writeJSON(w, createResponse{Success: true, State: state})
	}

	printf(w, "Created spec '%s' in the %s phase.", state.SpecID, state.CurrentPhase)
	printf(w, "Author %s and then run 'specd approve %s %s' when it is ready.",
		"requirements.md", state.SpecID, state.CurrentPhase)
	return nil
}

// slugPreview is used by tests to assert ID derivation without creating
// anything.
func slugPreview(name string) string {
	return workflow.Slugify(name)
}
