package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/specdriven/specd/internal/constants"
	specderrors "github.com/specdriven/specd/internal/errors"
	"github.com/specdriven/specd/internal/workflow"
)

// AddTransitionCommand adds the transition command to the root command.
func AddTransitionCommand(root *cobra.Command, flags *GlobalFlags) {
	root.AddCommand(newTransitionCmd(flags))
}

func newTransitionCmd(flags *GlobalFlags) *cobra.Command {
	var feedback string
	var approve bool

	cmd := &cobra.Command{
		Use:   "transition <spec-id> <phase>",
		Short: "Move a spec workflow to another phase",
		Long: `Move a spec workflow to the named phase.

Forward moves (requirements -> design -> tasks -> execution) require the
current phase to be approved and to have a non-empty document. Asking to
move forward without approval does not fail: the phase is marked
needs_revision and the workflow waits for review. Pass --approve to
record approval of the current phase and move in one step. Backward
moves are always permitted and reset downstream approvals.

Examples:
  specd transition user-auth design
  specd transition user-auth design --approve
  specd transition user-auth requirements --feedback "rework section 2"`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTransition(cmd.Context(), os.Stdout, flags, args[0], args[1], approve, feedback)
		},
	}

	cmd.Flags().StringVar(&feedback, "feedback", "", "Reviewer feedback recorded with the transition")
	cmd.Flags().BoolVar(&approve, "approve", false, "Approve the current phase as part of the transition")
	return cmd
}

// transitionResponse is the JSON output for transition.
type transitionResponse struct {
	Success bool `json:"success"`
	*workflow.TransitionOutcome
	Error string `json:"error,omitempty"`
}

func runTransition(ctx context.Context, w io.Writer, flags *GlobalFlags, specID, phaseArg string, approve bool, feedback string) error {
	target := constants.Phase(phaseArg)
	if !target.IsValid() {
		err := fmt.Errorf("%w: %q, expected %s", specderrors.ErrInvalidPhase, phaseArg,
			joinOr(phaseNames()))
		return emitError(flags.Output, w, err)
	}

	var approval constants.ApprovalStatus
	if approve {
		approval = constants.ApprovalApproved
	}

	svc, err := newServices(ctx, flags.Actor)
	if err != nil {
		return emitError(flags.Output, w, err)
	}

	outcome, err := svc.orchestrator.Transition(ctx, svc.actor, specID, target, approval, feedback)
	if err != nil {
		return emitError(flags.Output, w, err)
	}

	if flags.Output == OutputJSON {
		return writeJSON(w, transitionResponse{Success: true, TransitionOutcome: outcome})
	}

	printWarnings(w, outcome.Warnings)
	if outcome.Moved {
		printf(w, "Spec '%s' is now in the %s phase (%s).",
			specID, outcome.State.CurrentPhase, outcome.State.Status)
	} else {
		printf(w, "Spec '%s' stays in the %s phase.", specID, outcome.State.CurrentPhase)
	}
	return nil
}

func phaseNames() []string {
	phases := constants.OrderedPhases()
	names := make([]string, len(phases))
	for i, p := range phases {
		names[i] = p.String()
	}
	return names
}
