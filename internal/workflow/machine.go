// Package workflow implements the phase-gated authoring workflow: the
// transition state machine, the approval gates and the orchestrator
// service that owns all workflow state mutations.
package workflow

import (
	"fmt"

	"github.com/specdriven/specd/internal/constants"
	specderrors "github.com/specdriven/specd/internal/errors"
)

// TransitionKind classifies a phase transition.
type TransitionKind int

// Transition kinds.
const (
	// TransitionForward moves to the next phase and requires the source
	// phase to be approved with a non-empty document.
	TransitionForward TransitionKind = iota

	// TransitionBackward returns to an earlier phase for rework and is
	// always permitted.
	TransitionBackward

	// TransitionLateral stays in the execution phase (re-entry during
	// task runs). Recorded in the audit trail but never gated.
	TransitionLateral
)

// validTransitions maps each phase to the phases it may move to.
// Forward edges advance one phase at a time; backward edges may skip
// phases. Execution permits a lateral self-edge and no backward edges
// (a spec that reached execution reworks documents via restore).
var validTransitions = map[constants.Phase][]constants.Phase{
	constants.PhaseRequirements: {constants.PhaseDesign},
	constants.PhaseDesign:       {constants.PhaseTasks, constants.PhaseRequirements},
	constants.PhaseTasks:        {constants.PhaseExecution, constants.PhaseDesign, constants.PhaseRequirements},
	constants.PhaseExecution:    {constants.PhaseExecution},
}

// CanTransition reports whether an edge exists from one phase to another.
func CanTransition(from, to constants.Phase) bool {
	for _, candidate := range validTransitions[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

// ClassifyTransition returns the kind of a valid transition. Returns an
// error wrapping ErrInvalidTransition when no edge exists.
func ClassifyTransition(from, to constants.Phase) (TransitionKind, error) {
	if !from.IsValid() {
		return 0, fmt.Errorf("%w: %q", specderrors.ErrInvalidPhase, from)
	}
	if !to.IsValid() {
		return 0, fmt.Errorf("%w: %q", specderrors.ErrInvalidPhase, to)
	}
	if !CanTransition(from, to) {
		return 0, fmt.Errorf("%w: %s -> %s", specderrors.ErrInvalidTransition, from, to)
	}

	fromIdx, toIdx := constants.PhaseIndex(from), constants.PhaseIndex(to)
	switch {
	case fromIdx == toIdx:
		return TransitionLateral, nil
	case toIdx > fromIdx:
		return TransitionForward, nil
	default:
		return TransitionBackward, nil
	}
}

// NextPhase returns the forward neighbor of a phase, or ok=false for
// the terminal phase.
func NextPhase(p constants.Phase) (constants.Phase, bool) {
	idx := constants.PhaseIndex(p)
	ordered := constants.OrderedPhases()
	if idx < 0 || idx == len(ordered)-1 {
		return "", false
	}
	return ordered[idx+1], true
}
