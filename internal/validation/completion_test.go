package validation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/specdriven/specd/internal/clock"
	"github.com/specdriven/specd/internal/domain"
)

func TestCompletionChecker(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewFakeClock(time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC))
	checker := NewCompletionChecker(clk)

	execCtx := &domain.ExecutionContext{
		Requirements: "# Requirements\n\n- 1.1 stores sessions\n- 1.2 expires sessions\n",
	}
	taskUnderTest := &domain.Task{ID: "2.1", Requirements: []string{"1.1"}}

	t.Run("CleanResult", func(t *testing.T) {
		result := &domain.TaskResult{
			TaskID:       "2.1",
			Success:      true,
			FilesCreated: []string{"internal/session/store.go"},
			TestsRun:     4,
		}
		report, err := checker.ValidateCompletion(ctx, "demo", taskUnderTest, result, execCtx)
		require.NoError(t, err)
		assert.Empty(t, report.Issues)
		assert.False(t, report.HasErrors())
	})

	t.Run("NoEvidenceOfWork", func(t *testing.T) {
		result := &domain.TaskResult{TaskID: "2.1", Success: true}
		report, err := checker.ValidateCompletion(ctx, "demo", taskUnderTest, result, execCtx)
		require.NoError(t, err)
		require.Len(t, report.Issues, 1)
		assert.Equal(t, domain.SeverityWarning, report.Issues[0].Severity)
		assert.False(t, report.HasErrors())
	})

	t.Run("ResultErrorBlocks", func(t *testing.T) {
		result := &domain.TaskResult{
			TaskID:   "2.1",
			TestsRun: 1,
			Error:    "two tests failing",
		}
		report, err := checker.ValidateCompletion(ctx, "demo", taskUnderTest, result, execCtx)
		require.NoError(t, err)
		assert.True(t, report.HasErrors())
	})

	t.Run("UnknownRequirementReference", func(t *testing.T) {
		badTask := &domain.Task{ID: "3", Requirements: []string{"1.1", "7.7"}}
		result := &domain.TaskResult{TaskID: "3", TestsRun: 1}
		report, err := checker.ValidateCompletion(ctx, "demo", badTask, result, execCtx)
		require.NoError(t, err)
		require.Len(t, report.Issues, 1)
		assert.Contains(t, report.Issues[0].Message, `"7.7"`)
		assert.False(t, report.HasErrors())
	})

	t.Run("NilResultWarns", func(t *testing.T) {
		report, err := checker.ValidateCompletion(ctx, "demo", taskUnderTest, nil, execCtx)
		require.NoError(t, err)
		require.Len(t, report.Issues, 1)
		assert.Equal(t, domain.SeverityWarning, report.Issues[0].Severity)
	})
}
