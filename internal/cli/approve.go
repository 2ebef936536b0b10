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
)

// AddApproveCommand adds the approve command to the root command.
func AddApproveCommand(root *cobra.Command, flags *GlobalFlags) {
	root.AddCommand(newApproveCmd(flags))
}

func newApproveCmd(flags *GlobalFlags) *cobra.Command {
	var reject bool
	var needsRevision bool
	var feedback string

	cmd := &cobra.Command{
		Use:   "approve <spec-id> <phase>",
		Short: "Record a review decision for a phase",
		Long: `Record a review decision for a phase of a spec workflow.

By default the phase is approved, which permits the forward transition
out of it. Use --reject or --needs-revision to record the other
decisions; both put the workflow into review when they target the
current phase.

Examples:
  specd approve user-auth requirements
  specd approve user-auth design --reject --feedback "missing error paths"
  specd approve user-auth design --needs-revision`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			decision := constants.ApprovalApproved
			switch {
			case reject:
				decision = constants.ApprovalRejected
			case needsRevision:
				decision = constants.ApprovalNeedsRevision
			}
			return runApprove(cmd.Context(), os.Stdout, flags, args[0], args[1], decision, feedback)
		},
	}

	cmd.Flags().BoolVar(&reject, "reject", false, "Reject the phase instead of approving it")
	cmd.Flags().BoolVar(&needsRevision, "needs-revision", false, "Mark the phase as needing revision")
	cmd.Flags().StringVar(&feedback, "feedback", "", "Reviewer feedback recorded with the decision")
	cmd.MarkFlagsMutuallyExclusive("reject", "needs-revision")
	return cmd
}

// approveResponse is the JSON output for approve.
type approveResponse struct {
	Success bool                  `json:"success"`
	State   *domain.WorkflowState `json:"state,omitempty"`
	Error   string                `json:"error,omitempty"`
}

func runApprove(ctx context.Context, w io.Writer, flags *GlobalFlags, specID, phaseArg string, decision constants.ApprovalStatus, feedback string) error {
	phase := constants.Phase(phaseArg)
	if !phase.IsValid() {
		err := fmt.Errorf("%w: %q, expected %s", specderrors.ErrInvalidPhase, phaseArg,
			joinOr(phaseNames()))
		return emitError(flags.Output, w, err)
	}

	svc, err := newServices(ctx, flags.Actor)
	if err != nil {
		return emitError(flags.Output, w, err)
	}

	state, err := svc.orchestrator.ApprovePhase(ctx, svc.actor, specID, phase, decision, feedback)
	if err != nil {
		return emitError(flags.Output, w, err)
	}

	if flags.Output == OutputJSON {
		return writeJSON(w, approveResponse{Success: true, State: state})
	}

	printf(w, "Recorded %s for the %s phase of spec '%s'.", decision, phase, specID)
	if decision == constants.ApprovalApproved && phase == state.CurrentPhase {
		printf(w, "The workflow may now move forward with 'specd transition'.")
	}
	return nil
}
