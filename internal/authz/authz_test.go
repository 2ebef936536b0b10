package authz

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	specderrors "github.com/specdriven/specd/internal/errors"
)

func TestAllowAll(t *testing.T) {
	ctx := context.Background()
	policy := AllowAll{}

	require.NoError(t, policy.Check(ctx, "alice", OpCreate, "demo"))
	require.NoError(t, policy.Check(ctx, "anyone-at-all", OpRestore, "demo"))

	t.Run("MissingActorDenied", func(t *testing.T) {
		err := policy.Check(ctx, "", OpTransition, "demo")
		require.ErrorIs(t, err, specderrors.ErrPermissionDenied)
		require.ErrorIs(t, err, specderrors.ErrActorMissing)
	})
}

func TestStatic(t *testing.T) {
	ctx := context.Background()
	policy := NewStatic("alice", "bob")

	for _, op := range []Operation{OpCreate, OpTransition, OpApprove, OpExecute, OpRestore} {
		require.NoError(t, policy.Check(ctx, "alice", op, "demo"))
		require.NoError(t, policy.Check(ctx, "bob", op, "demo"))
	}

	t.Run("UnknownActorDenied", func(t *testing.T) {
		err := policy.Check(ctx, "mallory", OpApprove, "demo")
		require.ErrorIs(t, err, specderrors.ErrPermissionDenied)
		assert.NotErrorIs(t, err, specderrors.ErrActorMissing)
	})

	t.Run("MissingActorDenied", func(t *testing.T) {
		err := policy.Check(ctx, "", OpApprove, "demo")
		require.ErrorIs(t, err, specderrors.ErrActorMissing)
	})

	t.Run("EmptyListDeniesEveryone", func(t *testing.T) {
		empty := NewStatic()
		err := empty.Check(ctx, "alice", OpCreate, "demo")
		require.ErrorIs(t, err, specderrors.ErrPermissionDenied)
	})

	t.Run("EmptyStringNeverAllowed", func(t *testing.T) {
		sneaky := NewStatic("")
		err := sneaky.Check(ctx, "", OpCreate, "demo")
		require.ErrorIs(t, err, specderrors.ErrPermissionDenied)
	})
}
