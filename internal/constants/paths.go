package constants

// SpecdHome is the default home directory name under $HOME.
const SpecdHome = ".specd"

// SpecdHomeEnv is the environment variable that overrides the home directory.
const SpecdHomeEnv = "SPECD_HOME"

// Directory names under the specd home.
const (
	// SpecsDir holds one subdirectory per spec.
	SpecsDir = "specs"

	// LogsDir holds the rotating CLI log.
	LogsDir = "logs"
)

// Per-spec directory entries. Each spec directory contains the canonical
// state file, a checksum sidecar, history directories, and the three
// markdown documents.
const (
	// StateFileName is the canonical serialized WorkflowState.
	StateFileName = "workflow-state.json"

	// StateMetadataFileName is the sidecar holding the schema version and
	// a checksum of the canonical state.
	StateMetadataFileName = "workflow-metadata.json"

	// VersionsDirName holds immutable version snapshots, one JSON file each.
	VersionsDirName = "workflow-versions"

	// BackupsDirName holds pre-write backups, one JSON file each.
	BackupsDirName = "workflow-backups"

	// RequirementsFileName is the requirements document.
	RequirementsFileName = "requirements.md"

	// DesignFileName is the design document.
	DesignFileName = "design.md"

	// TasksFileName is the tasks document.
	TasksFileName = "tasks.md"
)

// CLILogFileName is the name of the global rotating log file.
const CLILogFileName = "specd.log"

// ProjectConfigDir is the per-project configuration directory name.
const ProjectConfigDir = ".specd"

// ConfigFileName is the configuration file name at both global and
// project levels.
const ConfigFileName = "config.yaml"
