package document

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/specdriven/specd/internal/constants"
	specderrors "github.com/specdriven/specd/internal/errors"
)

func TestValidSpecID(t *testing.T) {
	valid := []string{"a", "user-auth", "spec-2", "0-day-fixes"}
	for _, id := range valid {
		assert.True(t, ValidSpecID(id), "%q should be valid", id)
	}

	invalid := []string{"", "-leading-dash", "UPPER", "has space", "dots.are.out", "../escape", "a/b"}
	for _, id := range invalid {
		assert.False(t, ValidSpecID(id), "%q should be invalid", id)
	}
}

func TestFileStoreSaveAndLoad(t *testing.T) {
	ctx := context.Background()
	store := NewFileStore(t.TempDir())

	content := "# Requirements\n\n- 1.1 the system stores sessions\n"
	require.NoError(t, store.Save(ctx, "demo", constants.DocRequirements, content))

	loaded, checksum, err := store.Load(ctx, "demo", constants.DocRequirements)
	require.NoError(t, err)
	assert.Equal(t, content, loaded)
	assert.Equal(t, Checksum([]byte(content)), checksum)

	t.Run("OverwriteReplaces", func(t *testing.T) {
		updated := content + "- 1.2 sessions expire\n"
		require.NoError(t, store.Save(ctx, "demo", constants.DocRequirements, updated))

		loaded, _, err := store.Load(ctx, "demo", constants.DocRequirements)
		require.NoError(t, err)
		assert.Equal(t, updated, loaded)
	})

	t.Run("DocumentTypesAreSeparateFiles", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, "demo", constants.DocDesign, "# Design\n"))
		loaded, _, err := store.Load(ctx, "demo", constants.DocDesign)
		require.NoError(t, err)
		assert.Equal(t, "# Design\n", loaded)
	})
}

func TestFileStoreErrors(t *testing.T) {
	ctx := context.Background()
	store := NewFileStore(t.TempDir())

	t.Run("MissingDocument", func(t *testing.T) {
		_, _, err := store.Load(ctx, "demo", constants.DocRequirements)
		require.ErrorIs(t, err, specderrors.ErrDocumentMissing)
	})

	t.Run("EmptySpecID", func(t *testing.T) {
		err := store.Save(ctx, "", constants.DocRequirements, "content")
		require.ErrorIs(t, err, specderrors.ErrEmptyValue)
	})

	t.Run("PathTraversal", func(t *testing.T) {
		_, _, err := store.Load(ctx, "../etc", constants.DocRequirements)
		require.ErrorIs(t, err, specderrors.ErrPathTraversal)
	})

	t.Run("UnknownDocumentType", func(t *testing.T) {
		err := store.Save(ctx, "demo", constants.DocumentType("notes"), "content")
		require.ErrorIs(t, err, specderrors.ErrInvalidDocumentType)
	})

	t.Run("CanceledContext", func(t *testing.T) {
		canceled, cancel := context.WithCancel(context.Background())
		cancel()
		_, _, err := store.Load(canceled, "demo", constants.DocRequirements)
		require.ErrorIs(t, err, context.Canceled)
	})
}

func TestOnSaveHooks(t *testing.T) {
	ctx := context.Background()
	store := NewFileStore(t.TempDir())

	var invalidated []string
	store.OnSave(func(specID string) { invalidated = append(invalidated, specID) })

	require.NoError(t, store.Save(ctx, "demo", constants.DocTasks, "- [ ] 1. Task"))
	require.NoError(t, store.Save(ctx, "other", constants.DocTasks, "- [ ] 1. Task"))
	assert.Equal(t, []string{"demo", "other"}, invalidated)

	// A failed save fires no hooks.
	invalidated = nil
	require.Error(t, store.Save(ctx, "../bad", constants.DocTasks, "content"))
	assert.Empty(t, invalidated)
}

func TestAtomicWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.md")

	require.NoError(t, AtomicWrite(path, []byte("first")))
	require.NoError(t, AtomicWrite(path, []byte("second")))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))

	// No temp file left behind.
	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestChecksum(t *testing.T) {
	a := Checksum([]byte("payload"))
	b := Checksum([]byte("payload"))
	c := Checksum([]byte("different"))

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 64)
}
