package config

import (
	specderrors "github.com/specdriven/specd/internal/errors"
)

// Validation bounds.
const (
	minRetries = 1
	maxRetries = 10
)

// Validate checks that the configuration values are usable.
// Returns a sentinel-wrapped error naming the offending field.
func Validate(cfg *Config) error {
	if cfg == nil {
		return specderrors.Wrap(specderrors.ErrConfigInvalid, "config is nil")
	}
	if cfg.Execution.ImplementTimeout <= 0 {
		return specderrors.Wrapf(specderrors.ErrConfigInvalid,
			"execution.implement_timeout must be positive, got %s", cfg.Execution.ImplementTimeout)
	}
	if cfg.Execution.MaxRetries < minRetries || cfg.Execution.MaxRetries > maxRetries {
		return specderrors.Wrapf(specderrors.ErrConfigInvalid,
			"execution.max_retries must be in [%d,%d], got %d", minRetries, maxRetries, cfg.Execution.MaxRetries)
	}
	if cfg.Execution.RetryBudget <= 0 {
		return specderrors.Wrapf(specderrors.ErrConfigInvalid,
			"execution.retry_budget must be positive, got %s", cfg.Execution.RetryBudget)
	}
	if cfg.Persistence.MaxVersions < 1 {
		return specderrors.Wrapf(specderrors.ErrConfigInvalid,
			"persistence.max_versions must be at least 1, got %d", cfg.Persistence.MaxVersions)
	}
	if cfg.Persistence.MaxBackups < 1 {
		return specderrors.Wrapf(specderrors.ErrConfigInvalid,
			"persistence.max_backups must be at least 1, got %d", cfg.Persistence.MaxBackups)
	}
	return nil
}
