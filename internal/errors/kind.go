package errors

import (
	"context"
	"errors"
	"strings"
)

// Kind is a coarse error classification used by the task recovery loop
// to pick a recovery action. Collaborators should return errors that map
// to a Kind through the sentinel errors in this package; message
// sniffing (ClassifyMessage) exists only as a fallback for opaque errors
// from external collaborators.
type Kind string

// Kind constants cover the error taxonomy.
const (
	// KindStructural covers malformed documents or state and missing
	// required fields. Not retryable; load-path structural errors trigger
	// recovery instead.
	KindStructural Kind = "structural"

	// KindAuthorization covers denied access. Always fails closed and is
	// never retried.
	KindAuthorization Kind = "authorization"

	// KindDependency covers unmet task prerequisites and missing resources.
	KindDependency Kind = "dependency"

	// KindIntegrity covers checksum mismatches and corrupted state.
	KindIntegrity Kind = "integrity"

	// KindTransient covers I/O failures, timeouts, and external-service
	// errors. Retryable with bounded attempts.
	KindTransient Kind = "transient"

	// KindWorkflow covers invalid phase transitions and missing approvals.
	// Never auto-recovered.
	KindWorkflow Kind = "workflow"

	// KindUnknown is returned when no classification applies.
	KindUnknown Kind = "unknown"
)

// String returns the string representation of the Kind.
func (k Kind) String() string {
	return string(k)
}

// KindOf classifies an error by walking its chain against the sentinel
// errors. This is the authoritative classification path; prefer it over
// ClassifyMessage wherever the error originated inside this module.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindUnknown
	case errors.Is(err, ErrPermissionDenied), errors.Is(err, ErrActorMissing):
		return KindAuthorization
	case errors.Is(err, ErrInvalidTransition), errors.Is(err, ErrApprovalRequired):
		return KindWorkflow
	case errors.Is(err, ErrUnmetDependencies), errors.Is(err, ErrTaskBlocked),
		errors.Is(err, ErrTaskNotFound), errors.Is(err, ErrSpecNotFound),
		errors.Is(err, ErrDocumentMissing), errors.Is(err, ErrSubtasksIncomplete):
		return KindDependency
	case errors.Is(err, ErrChecksumMismatch), errors.Is(err, ErrStateCorrupted):
		return KindIntegrity
	case errors.Is(err, ErrExecutionTimeout), errors.Is(err, context.DeadlineExceeded):
		return KindTransient
	case errors.Is(err, ErrDocumentEmpty), errors.Is(err, ErrValidationFailed),
		errors.Is(err, ErrTaskDepthExceeded), errors.Is(err, ErrDuplicateTaskID),
		errors.Is(err, ErrInvalidStatus), errors.Is(err, ErrInvalidPhase):
		return KindStructural
	default:
		return KindUnknown
	}
}

// messageClasses maps message substrings to kinds, checked in order.
// Earlier entries win so the more specific classes are listed first.
var messageClasses = []struct {
	substrings []string
	kind       Kind
}{
	{[]string{"permission", "access denied", "unauthorized", "forbidden"}, KindAuthorization},
	{[]string{"timeout", "timed out", "deadline exceeded"}, KindTransient},
	{[]string{"not found", "missing", "no such file"}, KindDependency},
	{[]string{"syntax", "compilation", "compile", "parse error"}, KindStructural},
	{[]string{"checksum", "corrupt"}, KindIntegrity},
	{[]string{"connection", "network", "i/o", "temporarily unavailable"}, KindTransient},
}

// ClassifyMessage classifies an error by substring-matching its message.
//
// This is a known heuristic limitation inherited from the original
// recovery design: messages are not a stable contract, so this function
// must only be consulted after KindOf returns KindUnknown, and its
// results should be treated as a best-effort hint.
func ClassifyMessage(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	msg := strings.ToLower(err.Error())
	for _, class := range messageClasses {
		for _, sub := range class.substrings {
			if strings.Contains(msg, sub) {
				return class.kind
			}
		}
	}
	return KindUnknown
}

// Classify returns the Kind for an error, consulting the sentinel chain
// first and falling back to message sniffing for opaque errors.
func Classify(err error) Kind {
	if kind := KindOf(err); kind != KindUnknown {
		return kind
	}
	return ClassifyMessage(err)
}
