// Package task implements the task execution engine: parsing the tasks
// document, loading execution context, selecting and running tasks with
// retry recovery, and reporting progress.
package task

import (
	"fmt"
	"strings"

	"github.com/specdriven/specd/internal/constants"
	"github.com/specdriven/specd/internal/domain"
	specderrors "github.com/specdriven/specd/internal/errors"
)

// Checkbox markers and their task statuses. The tasks document is the
// source of truth for status; everything round-trips through these.
var markerToStatus = map[byte]constants.TaskStatus{
	' ': constants.TaskNotStarted,
	'-': constants.TaskInProgress,
	'x': constants.TaskCompleted,
	'!': constants.TaskBlocked,
}

var statusToMarker = map[constants.TaskStatus]byte{
	constants.TaskNotStarted: ' ',
	constants.TaskInProgress: '-',
	constants.TaskCompleted:  'x',
	constants.TaskBlocked:    '!',
}

// TaskList is the parsed form of a tasks document. It is an arena:
// tasks reference each other by ID, and the byID index provides O(1)
// lookup. Lines holds the original document lines so status changes can
// be rewritten in place without disturbing surrounding prose.
type TaskList struct {
	// Tasks holds every parsed task in document order.
	Tasks []*domain.Task

	// Lines is the source document split into lines.
	Lines []string

	byID map[string]*domain.Task
}

// Get returns the task with the given ID, or nil.
func (l *TaskList) Get(id string) *domain.Task {
	return l.byID[id]
}

// TopLevel returns the level-0 tasks in document order.
func (l *TaskList) TopLevel() []*domain.Task {
	var top []*domain.Task
	for _, t := range l.Tasks {
		if t.Level == 0 {
			top = append(top, t)
		}
	}
	return top
}

// Render reassembles the document text, reflecting any status changes
// made through SetStatus.
func (l *TaskList) Render() string {
	return strings.Join(l.Lines, "\n")
}

// SetStatus updates a task's status and rewrites its checkbox marker in
// the document lines.
func (l *TaskList) SetStatus(id string, status constants.TaskStatus) error {
	t := l.Get(id)
	if t == nil {
		return fmt.Errorf("task '%s': %w", id, specderrors.ErrTaskNotFound)
	}
	marker, ok := statusToMarker[status]
	if !ok {
		return fmt.Errorf("%w: %q", specderrors.ErrInvalidStatus, status)
	}

	line := l.Lines[t.Line]
	open := strings.Index(line, "- [")
	if open < 0 || open+3 >= len(line) {
		return fmt.Errorf("%w: task line %d lost its checkbox", specderrors.ErrStateCorrupted, t.Line+1)
	}
	l.Lines[t.Line] = line[:open+3] + string(marker) + line[open+4:]
	t.Status = status
	return nil
}

// Parse parses a tasks document into a TaskList.
//
// Task lines have the shape
//
//	- [ ] 1. Set up project structure
//	  - [x] 1.1 Create module layout
//
// where the marker is one of space, '-', 'x' or '!' and the ID is a
// dotted number whose dot count is the nesting level. A trailing
// italicized "_Requirements: 1.1, 2.3_" line attaches acceptance
// references to the preceding task. Non-task lines are kept verbatim.
func Parse(content string) (*TaskList, error) {
	lines := strings.Split(content, "\n")
	list := &TaskList{
		Lines: lines,
		byID:  make(map[string]*domain.Task),
	}

	var last *domain.Task
	for i, line := range lines {
		if task, ok := parseTaskLine(line, i); ok {
			if task.Level > constants.MaxTaskDepth-1 {
				return nil, fmt.Errorf("%w: task %s at line %d nests deeper than %d levels",
					specderrors.ErrTaskDepthExceeded, task.ID, i+1, constants.MaxTaskDepth)
			}
			if list.byID[task.ID] != nil {
				return nil, fmt.Errorf("%w: %s at line %d", specderrors.ErrDuplicateTaskID, task.ID, i+1)
			}
			list.Tasks = append(list.Tasks, task)
			list.byID[task.ID] = task
			last = task
			continue
		}
		if refs, ok := parseRequirementsLine(line); ok && last != nil {
			last.Requirements = append(last.Requirements, refs...)
		}
	}

	linkHierarchy(list)
	linkStructuralDependencies(list)
	return list, nil
}

// parseTaskLine parses one candidate task line.
func parseTaskLine(line string, lineNo int) (*domain.Task, bool) {
	match := taskLineRegex.FindStringSubmatch(line)
	if match == nil {
		return nil, false
	}

	status, ok := markerToStatus[match[2][0]]
	if !ok {
		return nil, false
	}

	id := match[3]
	return &domain.Task{
		ID:          id,
		Description: strings.TrimSpace(match[4]),
		Status:      status,
		Level:       strings.Count(id, "."),
		Line:        lineNo,
	}, true
}

// parseRequirementsLine extracts acceptance references from a trailing
// "_Requirements: 1.1, 2.3_" line.
func parseRequirementsLine(line string) ([]string, bool) {
	match := requirementsLineRegex.FindStringSubmatch(line)
	if match == nil {
		return nil, false
	}
	parts := strings.Split(match[1], ",")
	refs := make([]string, 0, len(parts))
	for _, part := range parts {
		if ref := strings.TrimSpace(part); ref != "" {
			refs = append(refs, ref)
		}
	}
	return refs, len(refs) > 0
}

// linkHierarchy wires parent and subtask references. A subtask's parent
// is the task whose ID is its own ID with the last segment removed.
func linkHierarchy(list *TaskList) {
	for _, t := range list.Tasks {
		if t.Level == 0 {
			continue
		}
		parentID := t.ID[:strings.LastIndex(t.ID, ".")]
		parent := list.byID[parentID]
		if parent == nil {
			continue
		}
		t.Parent = parent.ID
		parent.Subtasks = append(parent.Subtasks, t.ID)
	}
}

// linkStructuralDependencies infers execution order from document
// structure: each top-level task depends on the top-level task before
// it, and each subtask depends on its preceding sibling. This assumes
// the document lists tasks in intended order; tasks that could run in
// parallel are still serialized.
func linkStructuralDependencies(list *TaskList) {
	var prevTop *domain.Task
	prevSibling := make(map[string]*domain.Task)

	for _, t := range list.Tasks {
		if t.Level == 0 {
			if prevTop != nil {
				t.Dependencies = append(t.Dependencies, prevTop.ID)
			}
			prevTop = t
			continue
		}
		if prev := prevSibling[t.Parent]; prev != nil {
			t.Dependencies = append(t.Dependencies, prev.ID)
		}
		prevSibling[t.Parent] = t
	}
}
