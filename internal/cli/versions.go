package cli

import (
	"context"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/specdriven/specd/internal/domain"
)

// AddVersionsCommand adds the versions command to the root command.
func AddVersionsCommand(root *cobra.Command, flags *GlobalFlags) {
	root.AddCommand(newVersionsCmd(flags))
}

func newVersionsCmd(flags *GlobalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "versions <spec-id>",
		Short: "List a spec's state version history",
		Long: `List the version snapshots of a spec's workflow state, newest first.
Snapshots are taken on every meaningful state change and pruned to a
bounded history.

Examples:
  specd versions user-auth
  specd versions user-auth -o json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVersions(cmd.Context(), os.Stdout, flags, args[0])
		},
	}
}

// versionsResponse is the JSON output for versions.
type versionsResponse struct {
	Success  bool                 `json:"success"`
	Versions []domain.VersionInfo `json:"versions"`
	Error    string               `json:"error,omitempty"`
}

func runVersions(ctx context.Context, w io.Writer, flags *GlobalFlags, specID string) error {
	svc, err := newServices(ctx, flags.Actor)
	if err != nil {
		return emitError(flags.Output, w, err)
	}

	versions, err := svc.orchestrator.ListVersions(ctx, specID)
	if err != nil {
		return emitError(flags.Output, w, err)
	}

	if flags.Output == OutputJSON {
		return writeJSON(w, versionsResponse{Success: true, Versions: versions})
	}

	if len(versions) == 0 {
		printf(w, "No versions recorded for spec '%s'.", specID)
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	printf(tw, "VERSION\tCREATED\tDESCRIPTION")
	for _, v := range versions {
		printf(tw, "%s\t%s\t%s", v.ID, v.CreatedAt.Format("2006-01-02 15:04:05"), v.Description)
	}
	return tw.Flush()
}

// AddRestoreCommand adds the restore command to the root command.
func AddRestoreCommand(root *cobra.Command, flags *GlobalFlags) {
	root.AddCommand(newRestoreCmd(flags))
}

func newRestoreCmd(flags *GlobalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "restore <spec-id> <version-id>",
		Short: "Restore workflow state from a version snapshot",
		Long: `Replace a spec's current workflow state with a version snapshot.
The current state is backed up and the restore itself is versioned, so
a restore can be undone by restoring again.

Examples:
  specd versions user-auth        # find the version ID
  specd restore user-auth 4f1c...`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRestore(cmd.Context(), os.Stdout, flags, args[0], args[1])
		},
	}
}

// restoreResponse is the JSON output for restore.
type restoreResponse struct {
	Success bool                  `json:"success"`
	State   *domain.WorkflowState `json:"state,omitempty"`
	Error   string                `json:"error,omitempty"`
}

func runRestore(ctx context.Context, w io.Writer, flags *GlobalFlags, specID, versionID string) error {
	svc, err := newServices(ctx, flags.Actor)
	if err != nil {
		return emitError(flags.Output, w, err)
	}

	state, err := svc.orchestrator.RestoreVersion(ctx, svc.actor, specID, versionID)
	if err != nil {
		return emitError(flags.Output, w, err)
	}

	if flags.Output == OutputJSON {
		return writeJSON(w, restoreResponse{Success: true, State: state})
	}

	printf(w, "Restored spec '%s' to version %s.", specID, versionID)
	printf(w, "Phase: %s, status: %s.", state.CurrentPhase, state.Status)
	return nil
}
