package constants

// Phase represents a stage in the spec authoring workflow.
// Phase values use snake_case for JSON serialization compatibility.
type Phase string

// Phase constants define the ordered stages of a spec workflow.
// Forward movement requires the source phase's approval; backward
// movement is unconditional:
//
//	Requirements → Design → Tasks → Execution
const (
	// PhaseRequirements is the initial phase where the requirements
	// document is authored and refined.
	PhaseRequirements Phase = "requirements"

	// PhaseDesign is the phase where the design document is authored
	// against approved requirements.
	PhaseDesign Phase = "design"

	// PhaseTasks is the phase where the tasks document is derived
	// from the approved design.
	PhaseTasks Phase = "tasks"

	// PhaseExecution is the phase where implementation tasks are executed.
	PhaseExecution Phase = "execution"
)

// String returns the string representation of the Phase.
// This implements fmt.Stringer for convenient logging and debugging.
func (p Phase) String() string {
	return string(p)
}

// IsValid checks if the phase is a known value.
func (p Phase) IsValid() bool {
	switch p {
	case PhaseRequirements, PhaseDesign, PhaseTasks, PhaseExecution:
		return true
	default:
		return false
	}
}

// OrderedPhases returns all phases in workflow order.
func OrderedPhases() []Phase {
	return []Phase{PhaseRequirements, PhaseDesign, PhaseTasks, PhaseExecution}
}

// PhaseIndex returns the position of the phase in workflow order,
// or -1 for unknown phases.
func PhaseIndex(p Phase) int {
	for i, phase := range OrderedPhases() {
		if phase == p {
			return i
		}
	}
	return -1
}

// WorkflowStatus represents the overall state of a spec workflow.
// Status values use snake_case for JSON serialization compatibility.
type WorkflowStatus string

// Workflow status constants define the valid states a workflow can be in.
const (
	// WorkflowStatusDraft indicates documents are being authored and no
	// approval has been requested yet.
	WorkflowStatusDraft WorkflowStatus = "draft"

	// WorkflowStatusInReview indicates the current phase's document is
	// under review (an approval was requested or revision was demanded).
	WorkflowStatusInReview WorkflowStatus = "in_review"

	// WorkflowStatusApproved indicates the current phase has been approved
	// and the workflow may move forward.
	WorkflowStatusApproved WorkflowStatus = "approved"

	// WorkflowStatusInProgress indicates the workflow is in the execution
	// phase with incomplete tasks.
	WorkflowStatusInProgress WorkflowStatus = "in_progress"

	// WorkflowStatusCompleted indicates every task in the tasks document
	// has been completed.
	WorkflowStatusCompleted WorkflowStatus = "completed"

	// WorkflowStatusError indicates the workflow is in an error state
	// requiring manual attention.
	WorkflowStatusError WorkflowStatus = "error"
)

// String returns the string representation of the WorkflowStatus.
func (s WorkflowStatus) String() string {
	return string(s)
}

// IsValid checks if the status is a known value.
func (s WorkflowStatus) IsValid() bool {
	switch s {
	case WorkflowStatusDraft, WorkflowStatusInReview, WorkflowStatusApproved,
		WorkflowStatusInProgress, WorkflowStatusCompleted, WorkflowStatusError:
		return true
	default:
		return false
	}
}

// ApprovalStatus represents the review gate state of a single phase.
// Status values use snake_case for JSON serialization compatibility.
type ApprovalStatus string

// Approval status constants define the per-phase review gate states.
const (
	// ApprovalPending indicates the phase has not been reviewed.
	ApprovalPending ApprovalStatus = "pending"

	// ApprovalApproved indicates the phase passed review and permits
	// a forward transition out of it.
	ApprovalApproved ApprovalStatus = "approved"

	// ApprovalRejected indicates the phase was explicitly rejected.
	ApprovalRejected ApprovalStatus = "rejected"

	// ApprovalNeedsRevision indicates a forward transition was requested
	// without approval; the phase document needs another pass.
	ApprovalNeedsRevision ApprovalStatus = "needs_revision"
)

// String returns the string representation of the ApprovalStatus.
func (s ApprovalStatus) String() string {
	return string(s)
}

// IsValid checks if the approval status is a known value.
func (s ApprovalStatus) IsValid() bool {
	switch s {
	case ApprovalPending, ApprovalApproved, ApprovalRejected, ApprovalNeedsRevision:
		return true
	default:
		return false
	}
}

// TaskStatus represents the state of a single implementation task.
// Task status is round-tripped through checkbox markers in the tasks
// document, which is the source of truth.
type TaskStatus string

// Task status constants and their checkbox markers:
//
//	NotStarted "- [ ]", InProgress "- [-]", Completed "- [x]", Blocked "- [!]"
const (
	// TaskNotStarted indicates the task has not been started.
	TaskNotStarted TaskStatus = "not_started"

	// TaskInProgress indicates the task is being executed.
	TaskInProgress TaskStatus = "in_progress"

	// TaskCompleted indicates the task finished and passed completion
	// validation against its referenced requirements.
	TaskCompleted TaskStatus = "completed"

	// TaskBlocked indicates the task failed completion validation or was
	// explicitly marked blocked; it will not be selected for execution.
	TaskBlocked TaskStatus = "blocked"
)

// String returns the string representation of the TaskStatus.
func (s TaskStatus) String() string {
	return string(s)
}

// IsValid checks if the task status is a known value.
func (s TaskStatus) IsValid() bool {
	switch s {
	case TaskNotStarted, TaskInProgress, TaskCompleted, TaskBlocked:
		return true
	default:
		return false
	}
}

// DocumentType identifies one of the three spec documents.
type DocumentType string

// Document type constants name the markdown documents owned by a spec.
const (
	// DocRequirements is the requirements document (requirements.md).
	DocRequirements DocumentType = "requirements"

	// DocDesign is the design document (design.md).
	DocDesign DocumentType = "design"

	// DocTasks is the tasks document (tasks.md).
	DocTasks DocumentType = "tasks"
)

// String returns the string representation of the DocumentType.
func (d DocumentType) String() string {
	return string(d)
}

// IsValid checks if the document type is a known value.
func (d DocumentType) IsValid() bool {
	switch d {
	case DocRequirements, DocDesign, DocTasks:
		return true
	default:
		return false
	}
}

// RequiredDocument returns the document a phase produces, which must be
// non-empty before a forward transition out of that phase is permitted.
// The execution phase produces no document and returns ok=false.
func RequiredDocument(p Phase) (DocumentType, bool) {
	switch p {
	case PhaseRequirements:
		return DocRequirements, true
	case PhaseDesign:
		return DocDesign, true
	case PhaseTasks:
		return DocTasks, true
	case PhaseExecution:
		return "", false
	default:
		return "", false
	}
}
