// Package document provides storage for the markdown documents owned by
// a spec (requirements.md, design.md, tasks.md), with checksum-backed
// integrity on load and atomic writes.
//
// The Store interface is the boundary the orchestrator and task engine
// consume; FileStore is the filesystem implementation used in production
// and tests.
package document

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"

	"github.com/specdriven/specd/internal/constants"
	specderrors "github.com/specdriven/specd/internal/errors"
)

// Directory and file permission constants.
const (
	dirPerm  = 0o750 // Secure directory permissions
	filePerm = 0o600 // Secure file permissions
)

// validSpecIDRegex matches valid spec IDs (kebab-case slugs).
var validSpecIDRegex = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{0,63}$`)

// ValidSpecID reports whether the given spec ID is a well-formed slug.
// Enforced before any path construction to rule out traversal.
func ValidSpecID(specID string) bool {
	return validSpecIDRegex.MatchString(specID)
}

// Store defines the document storage boundary.
type Store interface {
	// Load returns the document content and the SHA-256 hex checksum of
	// that content. Returns ErrDocumentMissing if the document does not
	// exist.
	Load(ctx context.Context, specID string, docType constants.DocumentType) (content, checksum string, err error)

	// Save writes the document atomically and notifies registered
	// invalidation hooks.
	Save(ctx context.Context, specID string, docType constants.DocumentType, content string) error
}

// InvalidateFunc is called with the spec ID after every successful save
// so caches derived from document content can drop their snapshots
// synchronously on the write path.
type InvalidateFunc func(specID string)

// FileStore implements Store using the local filesystem. Documents live
// inside each spec's directory under the specs root.
type FileStore struct {
	root string

	mu    sync.RWMutex
	hooks []InvalidateFunc
}

// NewFileStore creates a FileStore rooted at the given specs directory.
func NewFileStore(root string) *FileStore {
	return &FileStore{root: root}
}

// OnSave registers an invalidation hook invoked after every successful
// save with the affected spec ID.
func (s *FileStore) OnSave(fn InvalidateFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks = append(s.hooks, fn)
}

// Load returns the document content and its checksum.
func (s *FileStore) Load(ctx context.Context, specID string, docType constants.DocumentType) (string, string, error) {
	select {
	case <-ctx.Done():
		return "", "", ctx.Err()
	default:
	}

	path, err := s.documentPath(specID, docType)
	if err != nil {
		return "", "", err
	}

	data, err := os.ReadFile(path) //#nosec G304 -- path is validated and constructed from trusted base
	if err != nil {
		if os.IsNotExist(err) {
			return "", "", fmt.Errorf("%s for spec '%s': %w", docType, specID, specderrors.ErrDocumentMissing)
		}
		return "", "", specderrors.Wrapf(err, "failed to read %s for spec '%s'", docType, specID)
	}

	return string(data), Checksum(data), nil
}

// Save writes the document atomically and fires invalidation hooks.
func (s *FileStore) Save(ctx context.Context, specID string, docType constants.DocumentType, content string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	path, err := s.documentPath(specID, docType)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), dirPerm); err != nil {
		return specderrors.Wrap(err, "failed to create spec directory")
	}
	if err := AtomicWrite(path, []byte(content)); err != nil {
		return specderrors.Wrapf(err, "failed to save %s for spec '%s'", docType, specID)
	}

	s.mu.RLock()
	hooks := s.hooks
	s.mu.RUnlock()
	for _, fn := range hooks {
		fn(specID)
	}
	return nil
}

// documentPath validates inputs and returns the path of the document file.
func (s *FileStore) documentPath(specID string, docType constants.DocumentType) (string, error) {
	if specID == "" {
		return "", fmt.Errorf("spec ID %w", specderrors.ErrEmptyValue)
	}
	if !ValidSpecID(specID) {
		return "", fmt.Errorf("spec ID '%s': %w", specID, specderrors.ErrPathTraversal)
	}
	name, err := FileName(docType)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.root, specID, name), nil
}

// FileName maps a document type to its on-disk file name.
func FileName(docType constants.DocumentType) (string, error) {
	switch docType {
	case constants.DocRequirements:
		return constants.RequirementsFileName, nil
	case constants.DocDesign:
		return constants.DesignFileName, nil
	case constants.DocTasks:
		return constants.TasksFileName, nil
	default:
		return "", fmt.Errorf("%w: %q", specderrors.ErrInvalidDocumentType, docType)
	}
}

// Checksum returns the SHA-256 hex digest of the given payload.
// The same digest is used for state integrity in the persistence layer.
func Checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// AtomicWrite writes data to a file atomically using write-then-rename
// with an fsync before the rename, so a crash never leaves a partially
// written file at the final path.
func AtomicWrite(path string, data []byte) error {
	tmpPath := path + ".tmp"
	f, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, filePerm) //#nosec G304 -- path is constructed internally
	if err != nil {
		return specderrors.Wrap(err, "failed to create temp file")
	}

	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(tmpPath)
		return specderrors.Wrap(err, "failed to write data")
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmpPath)
		return specderrors.Wrap(err, "failed to sync file")
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return specderrors.Wrap(err, "failed to close file")
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return specderrors.Wrap(err, "failed to rename file")
	}
	return nil
}

// Ensure FileStore implements Store.
var _ Store = (*FileStore)(nil)
