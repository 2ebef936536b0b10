package cli

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/specdriven/specd/internal/constants"
	"github.com/specdriven/specd/internal/domain"
	specderrors "github.com/specdriven/specd/internal/errors"
	"github.com/specdriven/specd/internal/validation"
)

// AddValidateCommand adds the validate command to the root command.
func AddValidateCommand(root *cobra.Command, flags *GlobalFlags) {
	root.AddCommand(newValidateCmd(flags))
}

func newValidateCmd(flags *GlobalFlags) *cobra.Command {
	var failOnWarnings bool

	cmd := &cobra.Command{
		Use:   "validate <spec-id>",
		Short: "Validate a spec's documents and state",
		Long: `Run the validation rules against a spec's documents and workflow
state: document structure, requirement traceability, cross-document
consistency and workflow-state invariants.

The command exits non-zero when error-severity issues are found, or when
--fail-on-warnings is set and any warnings are found.

Examples:
  specd validate user-auth
  specd validate user-auth --fail-on-warnings
  specd validate user-auth -o json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd.Context(), os.Stdout, flags, args[0], failOnWarnings)
		},
	}

	cmd.Flags().BoolVar(&failOnWarnings, "fail-on-warnings", false, "Treat warnings as failures")
	return cmd
}

// validateResponse is the JSON output for validate.
type validateResponse struct {
	Success bool                     `json:"success"`
	Status  domain.ReportStatus      `json:"status,omitempty"`
	Report  *domain.ValidationReport `json:"report,omitempty"`
	Error   string                   `json:"error,omitempty"`
}

func runValidate(ctx context.Context, w io.Writer, flags *GlobalFlags, specID string, failOnWarnings bool) error {
	svc, err := newServices(ctx, flags.Actor)
	if err != nil {
		return emitError(flags.Output, w, err)
	}

	result, err := svc.orchestrator.GetState(ctx, specID)
	if err != nil {
		return emitError(flags.Output, w, err)
	}
	state := result.State

	input := &validation.Input{
		SpecID: specID,
		Phase:  state.CurrentPhase,
		Docs:   make(map[constants.DocumentType]string, 3),
		State:  state,
	}
	for _, docType := range []constants.DocumentType{constants.DocRequirements, constants.DocDesign, constants.DocTasks} {
		content, _, loadErr := svc.docs.Load(ctx, specID, docType)
		if loadErr != nil {
			if stderrors.Is(loadErr, specderrors.ErrDocumentMissing) {
				continue
			}
			return emitError(flags.Output, w, loadErr)
		}
		input.Docs[docType] = content
	}

	report, err := svc.framework.Run(ctx, input)
	if err != nil {
		return emitError(flags.Output, w, err)
	}

	status := report.Status()
	failed := status == domain.ReportErrors || (failOnWarnings && status == domain.ReportWarnings)

	if flags.Output == OutputJSON {
		if writeErr := writeJSON(w, validateResponse{Success: !failed, Status: status, Report: report}); writeErr != nil {
			return writeErr
		}
	} else {
		printValidationReport(w, report, status)
	}

	if failed {
		return fmt.Errorf("spec '%s' is %s: %w", specID, status, specderrors.ErrValidationFailed)
	}
	return nil
}

// printValidationReport renders a report for text output.
func printValidationReport(w io.Writer, report *domain.ValidationReport, status domain.ReportStatus) {
	if len(report.Issues) == 0 {
		printf(w, "Spec '%s' is valid.", report.SpecID)
		return
	}

	for _, issue := range report.Issues {
		line := fmt.Sprintf("%-7s [%s] %s", issue.Severity, issue.RuleID, issue.Message)
		if issue.Location != "" {
			line += " (" + issue.Location + ")"
		}
		printf(w, "%s", line)
		if issue.Suggestion != "" {
			printf(w, "        suggestion: %s", issue.Suggestion)
		}
	}
	printf(w, "Result: %s (%d issue(s))", status, len(report.Issues))
}
