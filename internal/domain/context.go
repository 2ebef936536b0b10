package domain

import "time"

// ExecutionContext is a read-only snapshot of everything the
// implementation collaborator needs to act on a task. Snapshots are
// cached per spec ID and invalidated synchronously when any document of
// the spec is written.
type ExecutionContext struct {
	// SpecID identifies the spec this context was loaded for.
	SpecID string `json:"spec_id"`

	// Requirements is the full requirements document text.
	Requirements string `json:"requirements"`

	// Design is the full design document text.
	Design string `json:"design"`

	// Tasks is the full tasks document text.
	Tasks string `json:"tasks"`

	// Project is a shallow scan of the source tree the tasks act on.
	Project ProjectScan `json:"project"`

	// Metadata carries spec metadata relevant to implementation.
	Metadata map[string]any `json:"metadata,omitempty"`

	// LoadedAt is when the snapshot was taken.
	LoadedAt time.Time `json:"loaded_at"`
}

// ProjectScan summarizes a shallow source-tree walk. It is deliberately
// lightweight: top-level structure and extension counts, capped by the
// scan limits in internal/constants.
type ProjectScan struct {
	// Root is the scanned directory.
	Root string `json:"root"`

	// Dirs lists top-level directory names.
	Dirs []string `json:"dirs,omitempty"`

	// FileCounts maps file extension (including the dot) to file count.
	FileCounts map[string]int `json:"file_counts,omitempty"`

	// TotalFiles is the number of files visited before any cap was hit.
	TotalFiles int `json:"total_files"`

	// Truncated is true when the entry cap stopped the walk early.
	Truncated bool `json:"truncated,omitempty"`
}
