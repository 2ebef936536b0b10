package domain

import (
	"encoding/json"
	"time"
)

// WorkflowVersion is an immutable snapshot of a serialized WorkflowState.
// Versions form an append-only, size-bounded history pruned after every
// save; each snapshot file is independently loadable.
type WorkflowVersion struct {
	// ID is the unique version identifier (UUID).
	ID string `json:"id"`

	// SpecID identifies the spec the snapshot belongs to.
	SpecID string `json:"spec_id"`

	// CreatedAt is when the snapshot was taken.
	CreatedAt time.Time `json:"created_at"`

	// Description explains what mutation produced the snapshot.
	Description string `json:"description,omitempty"`

	// Checksum is the SHA-256 hex digest of the canonical state payload.
	Checksum string `json:"checksum"`

	// State is the canonical serialized WorkflowState at snapshot time.
	State json.RawMessage `json:"state"`
}

// BackupMetadata describes one pre-write backup of the state file.
type BackupMetadata struct {
	// SpecID identifies the spec the backup belongs to.
	SpecID string `json:"spec_id"`

	// CreatedAt is when the backup was written.
	CreatedAt time.Time `json:"created_at"`

	// Checksum is the SHA-256 hex digest of the backed-up payload.
	Checksum string `json:"checksum"`
}

// StateMetadata is the sidecar written next to the canonical state file.
// Its checksum is compared against the state on every load; a mismatch
// triggers the recovery cascade. It also carries enough identity to
// reconstruct a minimal fresh state when everything else is lost.
type StateMetadata struct {
	// SchemaVersion is the schema version of the state file.
	SchemaVersion int `json:"schema_version"`

	// SpecID identifies the spec, enabling last-resort reconstruction.
	SpecID string `json:"spec_id"`

	// CreatedAt mirrors the state's creation time.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is when the sidecar was last written.
	UpdatedAt time.Time `json:"updated_at"`

	// Checksum is the SHA-256 hex digest of the canonical state payload.
	Checksum string `json:"checksum"`
}

// VersionInfo is a listing entry for one version snapshot, without the
// state payload.
type VersionInfo struct {
	ID          string    `json:"id"`
	CreatedAt   time.Time `json:"created_at"`
	Description string    `json:"description,omitempty"`
	Checksum    string    `json:"checksum"`
}
