package persist

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/specdriven/specd/internal/constants"
	"github.com/specdriven/specd/internal/document"
	"github.com/specdriven/specd/internal/domain"
	specderrors "github.com/specdriven/specd/internal/errors"
)

// Recover rebuilds a usable state after the canonical file failed to
// load. The cascade tries progressively lossier sources and stops at
// the first that yields a valid state:
//
//  1. backups, newest first (loses at most the last write)
//  2. version snapshots, newest first (loses recent history)
//  3. minimal reconstruction from the sidecar (loses everything but
//     identity; the result carries metadata recovered=true)
//
// The rebuilt state is persisted immediately so the next load is clean.
func (m *Manager) Recover(ctx context.Context, specID string) (*Result, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	if state, warning := m.recoverFromBackups(specID); state != nil {
		return m.commitRecovered(ctx, state, "backup", warning)
	}
	if state, warning := m.recoverFromVersions(specID); state != nil {
		return m.commitRecovered(ctx, state, "version", warning)
	}
	if state, warning := m.reconstruct(specID); state != nil {
		return m.commitRecovered(ctx, state, "reconstruction", warning)
	}

	return nil, fmt.Errorf("spec '%s': no recoverable state: %w", specID, specderrors.ErrStateCorrupted)
}

// recoverFromBackups tries each backup newest first.
func (m *Manager) recoverFromBackups(specID string) (*domain.WorkflowState, string) {
	files, err := m.snapshotFiles(m.backupsDir(specID))
	if err != nil {
		m.logger.Warn().Err(err).Str("spec_id", specID).Msg("backups unavailable")
		return nil, ""
	}

	for i := len(files) - 1; i >= 0; i-- {
		payload, err := os.ReadFile(files[i]) //#nosec G304 -- path is constructed internally
		if err != nil {
			continue
		}
		state, err := decodeState(payload)
		if err != nil {
			m.logger.Warn().Err(err).Str("file", files[i]).Msg("skipping corrupt backup")
			continue
		}
		return state, fmt.Sprintf("state restored from backup %s; changes after it were lost", filepath.Base(files[i]))
	}
	return nil, ""
}

// recoverFromVersions tries each version snapshot newest first.
func (m *Manager) recoverFromVersions(specID string) (*domain.WorkflowState, string) {
	files, err := m.snapshotFiles(m.versionsDir(specID))
	if err != nil {
		m.logger.Warn().Err(err).Str("spec_id", specID).Msg("versions unavailable")
		return nil, ""
	}

	for i := len(files) - 1; i >= 0; i-- {
		version, err := m.readVersion(files[i])
		if err != nil {
			continue
		}
		if version.Checksum != "" && version.Checksum != document.Checksum(version.State) {
			m.logger.Warn().Str("file", files[i]).Msg("skipping version with checksum mismatch")
			continue
		}
		state, err := decodeState(version.State)
		if err != nil {
			m.logger.Warn().Err(err).Str("file", files[i]).Msg("skipping corrupt version")
			continue
		}
		return state, fmt.Sprintf("state restored from version %s; later changes were lost", version.ID)
	}
	return nil, ""
}

// reconstruct builds a minimal fresh state from the sidecar's identity
// fields. This is the last rung: all workflow progress is lost and the
// state is marked recovered so downstream surfaces can flag it.
func (m *Manager) reconstruct(specID string) (*domain.WorkflowState, string) {
	now := m.clock.Now().UTC()
	state := domain.NewWorkflowState(specID, now)

	path := filepath.Join(m.specDir(specID), constants.StateMetadataFileName)
	if data, err := os.ReadFile(path); err == nil { //#nosec G304 -- path is constructed internally
		var meta domain.StateMetadata
		if json.Unmarshal(data, &meta) == nil && meta.SpecID == specID && !meta.CreatedAt.IsZero() {
			state.CreatedAt = meta.CreatedAt
		}
	}

	state.Metadata["recovered"] = true
	return state, "state could not be recovered from backups or versions; a fresh state was reconstructed and all workflow progress was lost"
}

// commitRecovered persists the recovered state and wraps it in a Result.
func (m *Manager) commitRecovered(ctx context.Context, state *domain.WorkflowState, source, warning string) (*Result, error) {
	state.UpdatedAt = m.clock.Now().UTC()
	if state.UpdatedAt.Before(state.CreatedAt) {
		state.CreatedAt = state.UpdatedAt
	}
	if err := m.Save(ctx, state, true, "recovered from "+source); err != nil {
		return nil, specderrors.Wrap(err, "failed to persist recovered state")
	}

	m.logger.Warn().
		Str("spec_id", state.SpecID).
		Str("source", source).
		Msg("workflow state recovered")

	result := &Result{
		State:         state,
		Recovered:     true,
		RecoveredFrom: source,
	}
	if warning != "" {
		result.Warnings = append(result.Warnings, warning)
	}
	return result, nil
}
