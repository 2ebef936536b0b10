package config

import (
	"os"
	"path/filepath"

	"github.com/specdriven/specd/internal/constants"
	specderrors "github.com/specdriven/specd/internal/errors"
)

// Home returns the specd home directory path.
// If the SPECD_HOME environment variable is set, it is used directly.
// Otherwise the default is ~/.specd.
func Home() (string, error) {
	if home := os.Getenv(constants.SpecdHomeEnv); home != "" {
		return home, nil
	}
	userHome, err := os.UserHomeDir()
	if err != nil {
		return "", specderrors.Wrap(err, "failed to get user home directory")
	}
	return filepath.Join(userHome, constants.SpecdHome), nil
}

// GlobalConfigPath returns the path to the global config file
// (~/.specd/config.yaml).
func GlobalConfigPath() (string, error) {
	home, err := Home()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, constants.ConfigFileName), nil
}

// ProjectConfigPath returns the path to the project config file
// (.specd/config.yaml) relative to the current working directory.
func ProjectConfigPath() string {
	return filepath.Join(constants.ProjectConfigDir, constants.ConfigFileName)
}

// SpecsRoot returns the directory holding all spec subdirectories.
func SpecsRoot() (string, error) {
	home, err := Home()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, constants.SpecsDir), nil
}

// LogsDir returns the directory holding the rotating CLI log.
func LogsDir() (string, error) {
	home, err := Home()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, constants.LogsDir), nil
}
