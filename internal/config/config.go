// Package config provides configuration management for specd with
// layered precedence.
//
// Configuration sources are loaded in the following order (highest
// precedence first):
//  1. CLI flags (passed via LoadWithOverrides)
//  2. Environment variables (SPECD_* prefix)
//  3. Project config (.specd/config.yaml)
//  4. Global config (~/.specd/config.yaml)
//  5. Built-in defaults
//
// Each higher level completely overrides the lower level for the same key.
//
// IMPORTANT: This package may import internal/constants and
// internal/errors, but MUST NOT import internal/domain or other internal
// packages.
package config

import "time"

// Config is the root configuration structure for specd.
type Config struct {
	// Workflow contains settings for the workflow orchestrator.
	Workflow WorkflowConfig `yaml:"workflow" mapstructure:"workflow"`

	// Execution contains settings for the task execution engine.
	Execution ExecutionConfig `yaml:"execution" mapstructure:"execution"`

	// Persistence contains settings for state persistence and history.
	Persistence PersistenceConfig `yaml:"persistence" mapstructure:"persistence"`

	// Validation contains settings for the validation framework.
	Validation ValidationConfig `yaml:"validation" mapstructure:"validation"`
}

// WorkflowConfig contains settings for the workflow orchestrator.
type WorkflowConfig struct {
	// Actor is the identity attached to mutating operations. Defaults to
	// $USER at load time; an empty actor is denied fail-closed.
	Actor string `yaml:"actor" mapstructure:"actor"`
}

// ExecutionConfig contains settings for the task execution engine.
type ExecutionConfig struct {
	// ImplementTimeout bounds a single implementation-collaborator call.
	// On timeout the task reverts to not_started.
	// Default: 10 minutes.
	ImplementTimeout time.Duration `yaml:"implement_timeout" mapstructure:"implement_timeout"`

	// MaxRetries is the default attempt count for execution with recovery.
	// Default: 3, valid range 1-10.
	MaxRetries int `yaml:"max_retries" mapstructure:"max_retries"`

	// RetryBudget caps total wall-clock time spent in the recovery loop.
	// Default: 30 minutes.
	RetryBudget time.Duration `yaml:"retry_budget" mapstructure:"retry_budget"`

	// ScanRoot is the directory scanned for the execution context's
	// project snapshot. Default: current working directory.
	ScanRoot string `yaml:"scan_root" mapstructure:"scan_root"`
}

// PersistenceConfig contains settings for state persistence and history.
type PersistenceConfig struct {
	// MaxVersions bounds the version snapshot history per spec.
	// Default: 10.
	MaxVersions int `yaml:"max_versions" mapstructure:"max_versions"`

	// MaxBackups bounds the pre-write backup history per spec.
	// Default: 5.
	MaxBackups int `yaml:"max_backups" mapstructure:"max_backups"`
}

// ValidationConfig contains settings for the validation framework.
type ValidationConfig struct {
	// DisabledRules lists rule IDs to skip during evaluation.
	DisabledRules []string `yaml:"disabled_rules" mapstructure:"disabled_rules"`
}
