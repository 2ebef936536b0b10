package cli

import (
	"context"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/specdriven/specd/internal/constants"
	"github.com/specdriven/specd/internal/domain"
	"github.com/specdriven/specd/internal/workflow"
)

// AddStatusCommand adds the status command to the root command.
func AddStatusCommand(root *cobra.Command, flags *GlobalFlags) {
	root.AddCommand(newStatusCmd(flags))
}

func newStatusCmd(flags *GlobalFlags) *cobra.Command {
	var showHistory bool

	cmd := &cobra.Command{
		Use:   "status <spec-id>",
		Short: "Show a spec workflow's state",
		Long: `Show the current phase, status and per-phase approvals for a spec.
If the state file was corrupt, the recovered state is shown along with
what the recovery lost.

Examples:
  specd status user-auth
  specd status user-auth --history
  specd status user-auth -o json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd.Context(), os.Stdout, flags, args[0], showHistory)
		},
	}

	cmd.Flags().BoolVar(&showHistory, "history", false, "Show the phase transition history")
	return cmd
}

// statusResponse is the JSON output for status.
type statusResponse struct {
	Success     bool                      `json:"success"`
	State       *domain.WorkflowState     `json:"state,omitempty"`
	Recovered   bool                      `json:"recovered,omitempty"`
	Warnings    []string                  `json:"warnings,omitempty"`
	Transitions []domain.TransitionRecord `json:"transitions,omitempty"`
	Error       string                    `json:"error,omitempty"`
}

func runStatus(ctx context.Context, w io.Writer, flags *GlobalFlags, specID string, showHistory bool) error {
	svc, err := newServices(ctx, flags.Actor)
	if err != nil {
		return emitError(flags.Output, w, err)
	}

	result, err := svc.orchestrator.GetState(ctx, specID)
	if err != nil {
		return emitError(flags.Output, w, err)
	}
	state := result.State

	var history []domain.TransitionRecord
	if showHistory {
		history = workflow.TransitionHistory(state)
	}

	if flags.Output == OutputJSON {
		return writeJSON(w, statusResponse{
			Success:     true,
			State:       state,
			Recovered:   result.Recovered,
			Warnings:    result.Warnings,
			Transitions: history,
		})
	}

	printWarnings(w, result.Warnings)
	printf(w, "Spec:    %s", state.SpecID)
	printf(w, "Phase:   %s", state.CurrentPhase)
	printf(w, "Status:  %s", state.Status)
	printf(w, "Updated: %s", state.UpdatedAt.Format("2006-01-02 15:04:05"))
	if result.Recovered || state.Recovered() {
		printf(w, "Note:    state was rebuilt by recovery")
	}

	printf(w, "Approvals:")
	for _, phase := range constants.OrderedPhases() {
		marker := " "
		if phase == state.CurrentPhase {
			marker = ">"
		}
		printf(w, "  %s %-13s %s", marker, phase, state.Approvals[phase])
	}

	if showHistory {
		printf(w, "Transitions:")
		if len(history) == 0 {
			printf(w, "  (none)")
		}
		for _, record := range history {
			line := record.Timestamp.Format("2006-01-02 15:04") + "  " +
				record.FromPhase.String() + " -> " + record.ToPhase.String() + "  by " + record.Actor
			if record.Feedback != "" {
				line += "  (" + record.Feedback + ")"
			}
			printf(w, "  %s", line)
		}
	}
	return nil
}
