// Package constants provides shared constants for the specd workflow engine.
//
// This package follows strict import rules:
//   - CAN import: standard library only
//   - MUST NOT import: any other internal packages
package constants

// StateSchemaVersion is the current schema version for persisted
// workflow state files. Bumped on incompatible changes to enable
// forward-compatible migrations.
const StateSchemaVersion = 1

// History bounds for the persistence layer. Version and backup stores
// are pruned to these counts after every save.
const (
	// MaxVersionHistory is the maximum number of version snapshots
	// retained per spec.
	MaxVersionHistory = 10

	// MaxBackupHistory is the maximum number of pre-write backups
	// retained per spec.
	MaxBackupHistory = 5
)

// Task execution limits.
const (
	// DefaultMaxRetries is the default retry count for task execution
	// with recovery.
	DefaultMaxRetries = 3

	// MaxTaskDepth is the maximum number of nesting levels in a task
	// ID: "3" is level 0 and "3.2" is level 1; "3.2.1" is rejected.
	MaxTaskDepth = 2
)

// Project scan limits for execution context loading.
const (
	// ScanMaxDepth is how many directory levels the shallow source-tree
	// scan descends.
	ScanMaxDepth = 2

	// ScanMaxEntries caps the number of filesystem entries visited
	// during a scan so context loading stays cheap.
	ScanMaxEntries = 2000
)

// Log rotation settings for the global CLI log file.
const (
	// LogMaxSizeMB is the maximum size of the log file before rotation.
	LogMaxSizeMB = 10

	// LogMaxBackups is the number of rotated log files to retain.
	LogMaxBackups = 3

	// LogMaxAgeDays is the maximum age of rotated log files.
	LogMaxAgeDays = 30

	// LogCompress controls gzip compression of rotated log files.
	LogCompress = true
)
