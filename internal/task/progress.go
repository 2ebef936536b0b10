package task

import (
	"context"

	"github.com/specdriven/specd/internal/constants"
	"github.com/specdriven/specd/internal/domain"
)

// Weighted progress counts top-level tasks and subtasks separately so
// a burst of granular subtask completions cannot dominate the signal.
const (
	topLevelWeight = 0.7
	subtaskWeight  = 0.3
)

// Progress summarizes execution state across a spec's tasks.
type Progress struct {
	SpecID string `json:"spec_id"`

	Total      int `json:"total"`
	Completed  int `json:"completed"`
	InProgress int `json:"in_progress"`
	NotStarted int `json:"not_started"`
	Blocked    int `json:"blocked"`

	// Percent is completed/total.
	Percent float64 `json:"percent"`

	// WeightedPercent is 0.7 * top-level completion + 0.3 * subtask
	// completion. With no subtasks it equals the top-level completion.
	WeightedPercent float64 `json:"weighted_percent"`

	// Remaining counts tasks that are not yet completed.
	Remaining int `json:"remaining"`

	// RemainingEffort estimates the unfinished share of the work as the
	// weighted percentage still to be earned.
	RemainingEffort float64 `json:"remaining_effort"`

	// NextTaskID is the runnable task the scheduler would pick, if any.
	NextTaskID string `json:"next_task_id,omitempty"`

	// BlockedTasks details each blocked task.
	BlockedTasks []BlockedTask `json:"blocked_tasks,omitempty"`
}

// BlockedTask names one blocked task and what it was waiting on.
type BlockedTask struct {
	ID           string   `json:"id"`
	Description  string   `json:"description"`
	Dependencies []string `json:"dependencies,omitempty"`
}

// Progress computes execution progress for a spec.
func (e *Engine) Progress(ctx context.Context, specID string) (*Progress, error) {
	list, err := e.Load(ctx, specID)
	if err != nil {
		return nil, err
	}
	return computeProgress(specID, list), nil
}

func computeProgress(specID string, list *TaskList) *Progress {
	p := &Progress{SpecID: specID, Total: len(list.Tasks)}

	var topTotal, topDone, subTotal, subDone int
	for _, t := range list.Tasks {
		if t.Parent == "" {
			topTotal++
		} else {
			subTotal++
		}

		switch t.Status {
		case constants.TaskCompleted:
			p.Completed++
			if t.Parent == "" {
				topDone++
			} else {
				subDone++
			}
		case constants.TaskInProgress:
			p.InProgress++
		case constants.TaskBlocked:
			p.Blocked++
			p.BlockedTasks = append(p.BlockedTasks, BlockedTask{
				ID:           t.ID,
				Description:  t.Description,
				Dependencies: unmetDependencies(list, t),
			})
		case constants.TaskNotStarted:
			p.NotStarted++
		}
	}

	if p.Total > 0 {
		p.Percent = 100 * float64(p.Completed) / float64(p.Total)
		p.WeightedPercent = weightedPercent(topTotal, topDone, subTotal, subDone)
		p.Remaining = p.Total - p.Completed
		p.RemainingEffort = 100 - p.WeightedPercent
	}

	if next, _, err := nextRunnable(list); err == nil && next != nil {
		p.NextTaskID = next.ID
	}
	return p
}

// weightedPercent blends top-level and subtask completion ratios. A
// document with only top-level tasks reports plain top-level completion
// so the subtask weight is never forfeited.
func weightedPercent(topTotal, topDone, subTotal, subDone int) float64 {
	if topTotal == 0 {
		return 0
	}
	topFrac := float64(topDone) / float64(topTotal)
	if subTotal == 0 {
		return 100 * topFrac
	}
	subFrac := float64(subDone) / float64(subTotal)
	return 100 * (topLevelWeight*topFrac + subtaskWeight*subFrac)
}

// unmetDependencies lists the dependencies of a task that are not yet
// completed.
func unmetDependencies(list *TaskList, t *domain.Task) []string {
	var unmet []string
	for _, depID := range t.Dependencies {
		dep := list.Get(depID)
		if dep == nil || dep.Status != constants.TaskCompleted {
			unmet = append(unmet, depID)
		}
	}
	return unmet
}
