package config

import (
	"context"
	stderrors "errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/specdriven/specd/internal/constants"
	"github.com/specdriven/specd/internal/errors"
)

// Load resolves the effective configuration. Later sources win:
// built-in defaults, then ~/.specd/config.yaml, then the project's
// .specd/config.yaml, then SPECD_* environment variables. Missing
// config files are the normal case and are skipped, not errors.
func Load(ctx context.Context) (*Config, error) {
	v := newResolver()

	if global, err := GlobalConfigPath(); err == nil {
		if err := mergeFile(v, global); err != nil {
			return nil, err
		}
	}
	if err := mergeFile(v, ProjectConfigPath()); err != nil {
		return nil, err
	}

	cfg, err := decode(v)
	if err != nil {
		return nil, err
	}

	zerolog.Ctx(ctx).Debug().
		Str("component", "config").
		Dur("execution.implement_timeout", cfg.Execution.ImplementTimeout).
		Int("execution.max_retries", cfg.Execution.MaxRetries).
		Int("persistence.max_versions", cfg.Persistence.MaxVersions).
		Msg("configuration loaded")
	return cfg, nil
}

// LoadFromPaths resolves configuration from explicit file paths, with
// projectPath winning over globalPath. Either may be empty. Used by
// tests and by tooling that should not touch the real home directory.
func LoadFromPaths(_ context.Context, projectPath, globalPath string) (*Config, error) {
	v := newResolver()
	if err := mergeFile(v, globalPath); err != nil {
		return nil, err
	}
	if err := mergeFile(v, projectPath); err != nil {
		return nil, err
	}
	return decode(v)
}

// WriteDefault writes the default configuration as YAML to path,
// creating parent directories. Refuses to clobber an existing file
// unless overwrite is set; `specd config init --force` passes true.
func WriteDefault(path string, overwrite bool) error {
	if _, err := os.Stat(path); err == nil && !overwrite {
		return errors.Wrapf(errors.ErrInvalidArgument, "config file already exists: %s", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return errors.Wrap(err, "failed to create config directory")
	}

	data, err := yaml.Marshal(DefaultConfig())
	if err != nil {
		return errors.Wrap(err, "failed to marshal default config")
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return errors.Wrap(err, "failed to write config file")
	}
	return nil
}

// newResolver builds the viper instance every load starts from:
// defaults seeded, SPECD_ env overrides active.
func newResolver() *viper.Viper {
	v := viper.New()

	// Defaults keyed by the YAML tag names so file values map onto them.
	v.SetDefault("workflow.actor", "")
	v.SetDefault("execution.implement_timeout", "10m")
	v.SetDefault("execution.max_retries", constants.DefaultMaxRetries)
	v.SetDefault("execution.retry_budget", "30m")
	v.SetDefault("execution.scan_root", "")
	v.SetDefault("persistence.max_versions", constants.MaxVersionHistory)
	v.SetDefault("persistence.max_backups", constants.MaxBackupHistory)
	v.SetDefault("validation.disabled_rules", []string{})

	v.SetEnvPrefix("SPECD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// mergeFile layers one config file over what v already holds. A missing
// or empty path is skipped; a present but unreadable file is an error.
func mergeFile(v *viper.Viper, path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); err != nil {
		return nil
	}

	v.SetConfigFile(path)
	if err := v.MergeInConfig(); err != nil && !isNotFound(err) {
		return errors.Wrapf(err, "failed to read config file: %s", path)
	}
	return nil
}

func isNotFound(err error) bool {
	var notFound viper.ConfigFileNotFoundError
	return stderrors.As(err, &notFound) || os.IsNotExist(err)
}

// decode unmarshals the resolved tree into Config and validates it.
// The actor falls back to $USER when no source names one.
func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
	))
	if err := v.Unmarshal(&cfg, hook); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}

	if cfg.Workflow.Actor == "" {
		cfg.Workflow.Actor = os.Getenv("USER")
	}
	if err := Validate(&cfg); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}
	return &cfg, nil
}
