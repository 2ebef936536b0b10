package config

import (
	"os"
	"time"

	"github.com/specdriven/specd/internal/constants"
)

// DefaultConfig returns the built-in configuration defaults.
// These values match the viper defaults seeded in newResolver.
func DefaultConfig() *Config {
	return &Config{
		Workflow: WorkflowConfig{
			Actor: os.Getenv("USER"),
		},
		Execution: ExecutionConfig{
			ImplementTimeout: 10 * time.Minute,
			MaxRetries:       constants.DefaultMaxRetries,
			RetryBudget:      30 * time.Minute,
			ScanRoot:         "",
		},
		Persistence: PersistenceConfig{
			MaxVersions: constants.MaxVersionHistory,
			MaxBackups:  constants.MaxBackupHistory,
		},
		Validation: ValidationConfig{
			DisabledRules: nil,
		},
	}
}
