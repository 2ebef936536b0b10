// Package persist implements crash-safe storage for workflow state.
//
// Each spec directory holds the canonical state file, a checksum sidecar,
// a bounded version history and a bounded set of pre-write backups:
//
//	<root>/<spec-id>/workflow-state.json
//	<root>/<spec-id>/workflow-metadata.json
//	<root>/<spec-id>/workflow-versions/<ts>-<uuid>.json
//	<root>/<spec-id>/workflow-backups/<ts>.json
//
// Every save is atomic (write-temp, fsync, rename) and backs up the
// previous state first, so the load path always has something to fall
// back on. Corruption on load triggers the recovery cascade in
// recover.go.
package persist

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/specdriven/specd/internal/clock"
	"github.com/specdriven/specd/internal/constants"
	"github.com/specdriven/specd/internal/document"
	"github.com/specdriven/specd/internal/domain"
	specderrors "github.com/specdriven/specd/internal/errors"
)

// Directory and file permission constants.
const (
	dirPerm = 0o750 // Secure directory permissions

	// timestampLayout sorts lexicographically, so pruning can order
	// snapshot files by name alone.
	timestampLayout = "20060102T150405.000000000Z"
)

// Options tunes the history bounds kept by a Manager.
type Options struct {
	// MaxVersions bounds the version snapshot history per spec.
	MaxVersions int

	// MaxBackups bounds the pre-write backup history per spec.
	MaxBackups int
}

// DefaultOptions returns the standard history bounds.
func DefaultOptions() Options {
	return Options{
		MaxVersions: constants.MaxVersionHistory,
		MaxBackups:  constants.MaxBackupHistory,
	}
}

// Manager stores workflow state under a specs root directory.
type Manager struct {
	root   string
	clock  clock.Clock
	logger zerolog.Logger
	opts   Options
}

// NewManager creates a persistence manager rooted at the given specs
// directory.
func NewManager(root string, clk clock.Clock, logger zerolog.Logger, opts Options) *Manager {
	if opts.MaxVersions < 1 {
		opts.MaxVersions = constants.MaxVersionHistory
	}
	if opts.MaxBackups < 1 {
		opts.MaxBackups = constants.MaxBackupHistory
	}
	return &Manager{
		root:   root,
		clock:  clk,
		logger: logger.With().Str("component", "persist").Logger(),
		opts:   opts,
	}
}

// Result carries a loaded state plus how it was obtained. Warnings are
// non-fatal findings surfaced to the caller (for CLI display); Recovered
// is true when the state did not load cleanly from the canonical file.
type Result struct {
	State *domain.WorkflowState

	Warnings []string

	// Recovered is true when the recovery cascade produced the state.
	Recovered bool

	// RecoveredFrom names the cascade stage that succeeded: "backup",
	// "version" or "reconstruction". Empty on a clean load.
	RecoveredFrom string
}

// Save persists the workflow state atomically. The previous state file
// is backed up first; when createVersion is set a version snapshot is
// written as well. History pruning failures are logged, never fatal.
func (m *Manager) Save(ctx context.Context, state *domain.WorkflowState, createVersion bool, description string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if state == nil {
		return fmt.Errorf("state %w", specderrors.ErrEmptyValue)
	}
	if err := state.Validate(); err != nil {
		return specderrors.Wrap(err, "refusing to persist invalid state")
	}
	if !document.ValidSpecID(state.SpecID) {
		return fmt.Errorf("spec ID '%s': %w", state.SpecID, specderrors.ErrPathTraversal)
	}

	specDir := m.specDir(state.SpecID)
	if err := os.MkdirAll(specDir, dirPerm); err != nil {
		return specderrors.Wrap(err, "failed to create spec directory")
	}

	payload, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return specderrors.Wrap(err, "failed to marshal state")
	}
	checksum := document.Checksum(payload)

	// Back up the previous canonical file before it is replaced. The
	// backup is the first rung of the recovery cascade.
	if err := m.backupCurrent(state.SpecID); err != nil {
		return err
	}

	if createVersion {
		if err := m.writeVersion(state.SpecID, payload, checksum, description); err != nil {
			return err
		}
	}

	statePath := filepath.Join(specDir, constants.StateFileName)
	if err := document.AtomicWrite(statePath, payload); err != nil {
		return specderrors.Wrap(err, "failed to write state file")
	}

	if err := m.writeSidecar(state, checksum); err != nil {
		return err
	}

	m.pruneHistory(state.SpecID)

	m.logger.Debug().
		Str("spec_id", state.SpecID).
		Bool("version_created", createVersion).
		Msg("state persisted")
	return nil
}

// Load reads and verifies the workflow state for a spec. Any corruption
// (unreadable file, invalid JSON, failed validation, checksum mismatch)
// hands off to the recovery cascade instead of failing the load.
func (m *Manager) Load(ctx context.Context, specID string) (*Result, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	if !document.ValidSpecID(specID) {
		return nil, fmt.Errorf("spec ID '%s': %w", specID, specderrors.ErrPathTraversal)
	}
	if !m.Exists(specID) {
		return nil, fmt.Errorf("spec '%s': %w", specID, specderrors.ErrSpecNotFound)
	}

	statePath := filepath.Join(m.specDir(specID), constants.StateFileName)
	payload, err := os.ReadFile(statePath) //#nosec G304 -- path is validated and constructed from trusted base
	if err != nil {
		m.logger.Warn().Err(err).Str("spec_id", specID).Msg("state file unreadable, recovering")
		return m.Recover(ctx, specID)
	}

	state, err := decodeState(payload)
	if err != nil {
		m.logger.Warn().Err(err).Str("spec_id", specID).Msg("state file corrupted, recovering")
		return m.Recover(ctx, specID)
	}

	if err := m.verifyChecksum(specID, payload); err != nil {
		m.logger.Warn().Err(err).Str("spec_id", specID).Msg("checksum mismatch, recovering")
		return m.Recover(ctx, specID)
	}

	return &Result{State: state}, nil
}

// Exists reports whether a spec directory with a state file or sidecar
// is present under the root.
func (m *Manager) Exists(specID string) bool {
	if !document.ValidSpecID(specID) {
		return false
	}
	dir := m.specDir(specID)
	for _, name := range []string{constants.StateFileName, constants.StateMetadataFileName} {
		if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
			return true
		}
	}
	return false
}

// ListSpecIDs returns the IDs of all specs under the root, sorted.
func (m *Manager) ListSpecIDs(ctx context.Context) ([]string, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	entries, err := os.ReadDir(m.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, specderrors.Wrap(err, "failed to read specs root")
	}

	ids := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() || !document.ValidSpecID(entry.Name()) {
			continue
		}
		if m.Exists(entry.Name()) {
			ids = append(ids, entry.Name())
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// ListVersions returns the version history for a spec, newest first.
func (m *Manager) ListVersions(ctx context.Context, specID string) ([]domain.VersionInfo, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	if !document.ValidSpecID(specID) {
		return nil, fmt.Errorf("spec ID '%s': %w", specID, specderrors.ErrPathTraversal)
	}

	files, err := m.snapshotFiles(m.versionsDir(specID))
	if err != nil {
		return nil, err
	}

	infos := make([]domain.VersionInfo, 0, len(files))
	for i := len(files) - 1; i >= 0; i-- { // newest first
		version, err := m.readVersion(files[i])
		if err != nil {
			m.logger.Warn().Err(err).Str("file", files[i]).Msg("skipping unreadable version snapshot")
			continue
		}
		infos = append(infos, domain.VersionInfo{
			ID:          version.ID,
			CreatedAt:   version.CreatedAt,
			Description: version.Description,
			Checksum:    version.Checksum,
		})
	}
	return infos, nil
}

// RestoreVersion replaces the current state with the named snapshot.
// The current state is backed up first, so a restore is itself
// recoverable. Returns the restored state.
func (m *Manager) RestoreVersion(ctx context.Context, specID, versionID string) (*domain.WorkflowState, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	if !document.ValidSpecID(specID) {
		return nil, fmt.Errorf("spec ID '%s': %w", specID, specderrors.ErrPathTraversal)
	}

	version, err := m.findVersion(specID, versionID)
	if err != nil {
		return nil, err
	}

	state, err := decodeState(version.State)
	if err != nil {
		return nil, specderrors.Wrapf(err, "version '%s' holds an unusable state", versionID)
	}

	state.UpdatedAt = m.clock.Now().UTC()
	if err := m.Save(ctx, state, true, fmt.Sprintf("restored from version %s", versionID)); err != nil {
		return nil, err
	}

	m.logger.Info().
		Str("spec_id", specID).
		Str("version_id", versionID).
		Msg("state restored from version")
	return state, nil
}

// specDir returns the directory for one spec.
func (m *Manager) specDir(specID string) string {
	return filepath.Join(m.root, specID)
}

// versionsDir returns the version history directory for one spec.
func (m *Manager) versionsDir(specID string) string {
	return filepath.Join(m.specDir(specID), constants.VersionsDirName)
}

// backupsDir returns the backup directory for one spec.
func (m *Manager) backupsDir(specID string) string {
	return filepath.Join(m.specDir(specID), constants.BackupsDirName)
}

// backupCurrent copies the current state file into the backups directory
// with a sortable timestamped name. A missing state file (first save) is
// not an error.
func (m *Manager) backupCurrent(specID string) error {
	statePath := filepath.Join(m.specDir(specID), constants.StateFileName)
	payload, err := os.ReadFile(statePath) //#nosec G304 -- path is constructed internally
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return specderrors.Wrap(err, "failed to read state for backup")
	}

	dir := m.backupsDir(specID)
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return specderrors.Wrap(err, "failed to create backups directory")
	}

	name := m.clock.Now().UTC().Format(timestampLayout) + ".json"
	if err := document.AtomicWrite(filepath.Join(dir, name), payload); err != nil {
		return specderrors.Wrap(err, "failed to write backup")
	}
	return nil
}

// writeVersion persists a version snapshot envelope.
func (m *Manager) writeVersion(specID string, payload []byte, checksum, description string) error {
	dir := m.versionsDir(specID)
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return specderrors.Wrap(err, "failed to create versions directory")
	}

	now := m.clock.Now().UTC()
	version := domain.WorkflowVersion{
		ID:          uuid.New().String(),
		SpecID:      specID,
		CreatedAt:   now,
		Description: description,
		Checksum:    checksum,
		State:       json.RawMessage(payload),
	}

	data, err := json.MarshalIndent(version, "", "  ")
	if err != nil {
		return specderrors.Wrap(err, "failed to marshal version snapshot")
	}

	name := now.Format(timestampLayout) + "-" + version.ID + ".json"
	if err := document.AtomicWrite(filepath.Join(dir, name), data); err != nil {
		return specderrors.Wrap(err, "failed to write version snapshot")
	}
	return nil
}

// writeSidecar writes the checksum sidecar next to the state file.
func (m *Manager) writeSidecar(state *domain.WorkflowState, checksum string) error {
	meta := domain.StateMetadata{
		SchemaVersion: state.SchemaVersion,
		SpecID:        state.SpecID,
		CreatedAt:     state.CreatedAt,
		UpdatedAt:     m.clock.Now().UTC(),
		Checksum:      checksum,
	}
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return specderrors.Wrap(err, "failed to marshal state metadata")
	}
	path := filepath.Join(m.specDir(state.SpecID), constants.StateMetadataFileName)
	if err := document.AtomicWrite(path, data); err != nil {
		return specderrors.Wrap(err, "failed to write state metadata")
	}
	return nil
}

// verifyChecksum compares the payload digest against the sidecar. A
// missing sidecar is tolerated (older layout); an unreadable or
// mismatching one is corruption.
func (m *Manager) verifyChecksum(specID string, payload []byte) error {
	path := filepath.Join(m.specDir(specID), constants.StateMetadataFileName)
	data, err := os.ReadFile(path) //#nosec G304 -- path is constructed internally
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return specderrors.Wrap(err, "failed to read state metadata")
	}

	var meta domain.StateMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return fmt.Errorf("%w: unreadable state metadata", specderrors.ErrStateCorrupted)
	}
	if meta.Checksum != document.Checksum(payload) {
		return fmt.Errorf("spec '%s': %w", specID, specderrors.ErrChecksumMismatch)
	}
	return nil
}

// pruneHistory drops the oldest snapshots beyond the configured bounds.
// Pruning failures must never fail a save, so they are only logged.
func (m *Manager) pruneHistory(specID string) {
	if err := m.pruneDir(m.versionsDir(specID), m.opts.MaxVersions); err != nil {
		m.logger.Warn().Err(err).Str("spec_id", specID).Msg("failed to prune version history")
	}
	if err := m.pruneDir(m.backupsDir(specID), m.opts.MaxBackups); err != nil {
		m.logger.Warn().Err(err).Str("spec_id", specID).Msg("failed to prune backup history")
	}
}

// pruneDir removes the oldest files in dir until at most keep remain.
func (m *Manager) pruneDir(dir string, keep int) error {
	files, err := m.snapshotFiles(dir)
	if err != nil {
		return err
	}
	if len(files) <= keep {
		return nil
	}
	for _, path := range files[:len(files)-keep] {
		if err := os.Remove(path); err != nil {
			return specderrors.Wrapf(err, "failed to remove %s", path)
		}
	}
	return nil
}

// snapshotFiles lists the .json files in dir sorted oldest first.
// Timestamped names make lexicographic order chronological.
func (m *Manager) snapshotFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, specderrors.Wrapf(err, "failed to read %s", dir)
	}

	files := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		files = append(files, filepath.Join(dir, entry.Name()))
	}
	sort.Strings(files)
	return files, nil
}

// readVersion loads one version snapshot envelope.
func (m *Manager) readVersion(path string) (*domain.WorkflowVersion, error) {
	data, err := os.ReadFile(path) //#nosec G304 -- path is constructed internally
	if err != nil {
		return nil, specderrors.Wrap(err, "failed to read version snapshot")
	}
	var version domain.WorkflowVersion
	if err := json.Unmarshal(data, &version); err != nil {
		return nil, specderrors.Wrap(err, "failed to parse version snapshot")
	}
	return &version, nil
}

// findVersion locates a snapshot by its version ID.
func (m *Manager) findVersion(specID, versionID string) (*domain.WorkflowVersion, error) {
	files, err := m.snapshotFiles(m.versionsDir(specID))
	if err != nil {
		return nil, err
	}
	for _, path := range files {
		version, err := m.readVersion(path)
		if err != nil {
			continue
		}
		if version.ID == versionID {
			return version, nil
		}
	}
	return nil, fmt.Errorf("version '%s' for spec '%s': %w", versionID, specID, specderrors.ErrVersionNotFound)
}

// decodeState unmarshals and validates a canonical state payload.
func decodeState(payload []byte) (*domain.WorkflowState, error) {
	var state domain.WorkflowState
	if err := json.Unmarshal(payload, &state); err != nil {
		return nil, fmt.Errorf("%w: %s", specderrors.ErrStateCorrupted, err)
	}
	if err := state.Validate(); err != nil {
		return nil, err
	}
	return &state, nil
}
