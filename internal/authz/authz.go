// Package authz defines the authorization boundary checked before every
// workflow mutation. Checks are fail-closed: a missing actor or an
// undecidable policy denies the operation.
package authz

import (
	"context"
	"fmt"

	specderrors "github.com/specdriven/specd/internal/errors"
)

// Operation names a guarded workflow mutation.
type Operation string

// Guarded operations.
const (
	OpCreate     Operation = "create"
	OpTransition Operation = "transition"
	OpApprove    Operation = "approve"
	OpExecute    Operation = "execute"
	OpRestore    Operation = "restore"
)

// Authorizer decides whether an actor may perform an operation on a
// resource (a spec ID). Implementations return nil to allow; any error
// denies and should wrap ErrPermissionDenied.
type Authorizer interface {
	Check(ctx context.Context, actor string, op Operation, resource string) error
}

// AllowAll permits every operation from any non-empty actor. It is the
// default policy for single-user local use.
type AllowAll struct{}

// Check implements Authorizer.
func (AllowAll) Check(_ context.Context, actor string, op Operation, resource string) error {
	if actor == "" {
		return denyMissingActor(op, resource)
	}
	return nil
}

// Static permits only the listed actors. An empty allow list denies
// everyone.
type Static struct {
	allowed map[string]struct{}
}

// NewStatic creates a Static authorizer for the given actors.
func NewStatic(actors ...string) *Static {
	allowed := make(map[string]struct{}, len(actors))
	for _, actor := range actors {
		if actor != "" {
			allowed[actor] = struct{}{}
		}
	}
	return &Static{allowed: allowed}
}

// Check implements Authorizer.
func (s *Static) Check(_ context.Context, actor string, op Operation, resource string) error {
	if actor == "" {
		return denyMissingActor(op, resource)
	}
	if _, ok := s.allowed[actor]; !ok {
		return fmt.Errorf("actor '%s' may not %s spec '%s': %w", actor, op, resource, specderrors.ErrPermissionDenied)
	}
	return nil
}

func denyMissingActor(op Operation, resource string) error {
	return fmt.Errorf("%s on spec '%s': %w: %w", op, resource,
		specderrors.ErrPermissionDenied, specderrors.ErrActorMissing)
}

// Interface guards.
var (
	_ Authorizer = AllowAll{}
	_ Authorizer = (*Static)(nil)
)
