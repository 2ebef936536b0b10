package cli

import (
	"context"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/specdriven/specd/internal/config"
)

// AddConfigCommand adds the config command group to the root command.
func AddConfigCommand(root *cobra.Command, flags *GlobalFlags) {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage specd configuration",
		Long: `Manage specd configuration.

Configuration is layered: built-in defaults, then the global file
(~/.specd/config.yaml), then the project file (.specd/config.yaml),
then SPECD_* environment variables.`,
	}

	cmd.AddCommand(newConfigInitCmd(flags))
	cmd.AddCommand(newConfigShowCmd(flags))
	root.AddCommand(cmd)
}

func newConfigInitCmd(flags *GlobalFlags) *cobra.Command {
	var global bool
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default configuration file",
		Long: `Write the default configuration to the project config file
(.specd/config.yaml), or to the global file with --global. Refuses to
overwrite an existing file unless --force is set.

Examples:
  specd config init
  specd config init --global
  specd config init --force`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConfigInit(os.Stdout, flags, global, force)
		},
	}

	cmd.Flags().BoolVar(&global, "global", false, "Write the global config instead of the project config")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing config file")
	return cmd
}

func runConfigInit(w io.Writer, flags *GlobalFlags, global, force bool) error {
	path := config.ProjectConfigPath()
	if global {
		globalPath, err := config.GlobalConfigPath()
		if err != nil {
			return emitError(flags.Output, w, err)
		}
		path = globalPath
	}

	if err := config.WriteDefault(path, force); err != nil {
		return emitError(flags.Output, w, err)
	}

	if flags.Output == OutputJSON {
		return writeJSON(w, map[string]any{"success": true, "path": path})
	}
	printf(w, "Wrote default configuration to %s.", path)
	return nil
}

func newConfigShowCmd(flags *GlobalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		Long: `Show the configuration after merging defaults, config files and
environment variables.

Examples:
  specd config show
  specd config show -o json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConfigShow(cmd.Context(), os.Stdout, flags)
		},
	}
}

func runConfigShow(ctx context.Context, w io.Writer, flags *GlobalFlags) error {
	cfg, err := config.Load(ctx)
	if err != nil {
		return emitError(flags.Output, w, err)
	}

	if flags.Output == OutputJSON {
		return writeJSON(w, map[string]any{"success": true, "config": cfg})
	}

	printf(w, "workflow.actor:              %s", cfg.Workflow.Actor)
	printf(w, "execution.implement_timeout: %s", cfg.Execution.ImplementTimeout)
	printf(w, "execution.max_retries:       %d", cfg.Execution.MaxRetries)
	printf(w, "execution.retry_budget:      %s", cfg.Execution.RetryBudget)
	printf(w, "execution.scan_root:         %s", cfg.Execution.ScanRoot)
	printf(w, "persistence.max_versions:    %d", cfg.Persistence.MaxVersions)
	printf(w, "persistence.max_backups:     %d", cfg.Persistence.MaxBackups)
	printf(w, "validation.disabled_rules:   %v", cfg.Validation.DisabledRules)
	return nil
}
