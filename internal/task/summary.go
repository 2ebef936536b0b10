package task

import (
	"context"
	"fmt"

	"github.com/specdriven/specd/internal/constants"
	"github.com/specdriven/specd/internal/domain"
)

// Summary is the execution overview: progress plus the dependency-aware
// analysis used to plan the remaining work.
type Summary struct {
	Progress *Progress `json:"progress"`

	// CriticalPath is the longest chain of incomplete tasks linked by
	// dependencies, in execution order. Shortening it shortens the run.
	CriticalPath []string `json:"critical_path,omitempty"`

	// Bottlenecks lists tasks whose state is holding up the most other
	// work.
	Bottlenecks []Bottleneck `json:"bottlenecks,omitempty"`
}

// Bottleneck names one task that is gating downstream work.
type Bottleneck struct {
	ID          string `json:"id"`
	Description string `json:"description"`

	// Dependents counts incomplete tasks waiting on this one,
	// directly or transitively.
	Dependents int `json:"dependents"`

	// Reason explains why the task was flagged.
	Reason string `json:"reason"`
}

// Summarize builds the execution overview for a spec.
func (e *Engine) Summarize(ctx context.Context, specID string) (*Summary, error) {
	list, err := e.Load(ctx, specID)
	if err != nil {
		return nil, err
	}
	return &Summary{
		Progress:     computeProgress(specID, list),
		CriticalPath: criticalPath(list),
		Bottlenecks:  bottlenecks(list),
	}, nil
}

// criticalPath finds the longest dependency chain among incomplete
// tasks with a greedy longest-tail walk. Dependency chains are acyclic
// because dependencies only point backward in document order.
func criticalPath(list *TaskList) []string {
	memo := make(map[string][]string)

	var chain func(t *domain.Task) []string
	chain = func(t *domain.Task) []string {
		if cached, ok := memo[t.ID]; ok {
			return cached
		}
		var longest []string
		for _, depID := range t.Dependencies {
			dep := list.Get(depID)
			if dep == nil || dep.Status == constants.TaskCompleted {
				continue
			}
			if tail := chain(dep); len(tail) > len(longest) {
				longest = tail
			}
		}
		result := append(append([]string{}, longest...), t.ID)
		memo[t.ID] = result
		return result
	}

	var best []string
	for _, t := range list.Tasks {
		if t.Status == constants.TaskCompleted {
			continue
		}
		if path := chain(t); len(path) > len(best) {
			best = path
		}
	}
	return best
}

// Bottleneck thresholds: tasks gating more than one incomplete task,
// and more than two tasks in progress at once.
const (
	bottleneckDependentThreshold = 1
	maxSimultaneousInProgress    = 2
)

// bottlenecks flags incomplete tasks that gate multiple downstream
// tasks, blocked tasks that gate anything at all, and every in-progress
// task when too many run at once.
func bottlenecks(list *TaskList) []Bottleneck {
	dependents := countDependents(list)

	inProgress := 0
	for _, t := range list.Tasks {
		if t.Status == constants.TaskInProgress {
			inProgress++
		}
	}
	wipOverload := inProgress > maxSimultaneousInProgress

	var out []Bottleneck
	for _, t := range list.Tasks {
		if t.Status == constants.TaskCompleted {
			continue
		}
		n := dependents[t.ID]
		switch {
		case t.Status == constants.TaskBlocked && n > 0:
			out = append(out, Bottleneck{
				ID: t.ID, Description: t.Description, Dependents: n,
				Reason: "blocked task is gating downstream work",
			})
		case n > bottleneckDependentThreshold:
			out = append(out, Bottleneck{
				ID: t.ID, Description: t.Description, Dependents: n,
				Reason: "multiple tasks wait on this one",
			})
		case wipOverload && t.Status == constants.TaskInProgress:
			out = append(out, Bottleneck{
				ID: t.ID, Description: t.Description, Dependents: n,
				Reason: fmt.Sprintf("%d tasks in progress at once", inProgress),
			})
		}
	}
	return out
}

// countDependents counts, per task, the incomplete tasks that
// transitively depend on it.
func countDependents(list *TaskList) map[string]int {
	counts := make(map[string]int)

	for _, t := range list.Tasks {
		if t.Status == constants.TaskCompleted {
			continue
		}
		seen := make(map[string]bool)
		var walk func(ids []string)
		walk = func(ids []string) {
			for _, depID := range ids {
				if seen[depID] {
					continue
				}
				seen[depID] = true
				dep := list.Get(depID)
				if dep == nil || dep.Status == constants.TaskCompleted {
					continue
				}
				counts[depID]++
				walk(dep.Dependencies)
			}
		}
		walk(t.Dependencies)
	}
	return counts
}
