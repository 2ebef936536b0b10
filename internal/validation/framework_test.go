package validation

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/specdriven/specd/internal/clock"
	"github.com/specdriven/specd/internal/constants"
	"github.com/specdriven/specd/internal/domain"
)

// stubRule is a fixed-output rule for framework tests.
type stubRule struct {
	id     string
	phases []constants.Phase
	issues []domain.ValidationIssue
}

func (r stubRule) ID() string { return r.id }

func (r stubRule) AppliesTo(phase constants.Phase) bool {
	if len(r.phases) == 0 {
		return true
	}
	for _, p := range r.phases {
		if p == phase {
			return true
		}
	}
	return false
}

func (r stubRule) Check(_ context.Context, _ *Input) []domain.ValidationIssue {
	return r.issues
}

func issue(ruleID, location string) domain.ValidationIssue {
	return domain.ValidationIssue{
		RuleID:   ruleID,
		Severity: domain.SeverityWarning,
		Message:  "finding from " + ruleID,
		Location: location,
	}
}

func newFrameworkForTest(disabled []string, rules ...Rule) *Framework {
	clk := clock.NewFakeClock(time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC))
	f := NewFramework(clk, zerolog.Nop(), disabled)
	f.Register(rules...)
	return f
}

func TestFrameworkRun(t *testing.T) {
	ctx := context.Background()
	in := &Input{SpecID: "demo", Phase: constants.PhaseDesign}

	t.Run("AggregatesAndSorts", func(t *testing.T) {
		f := newFrameworkForTest(nil,
			stubRule{id: "zeta", issues: []domain.ValidationIssue{issue("zeta", "b"), issue("zeta", "a")}},
			stubRule{id: "alpha", issues: []domain.ValidationIssue{issue("alpha", "c")}},
		)

		report, err := f.Run(ctx, in)
		require.NoError(t, err)
		require.Len(t, report.Issues, 3)
		assert.Equal(t, "alpha", report.Issues[0].RuleID)
		assert.Equal(t, "a", report.Issues[1].Location)
		assert.Equal(t, "b", report.Issues[2].Location)
		assert.Equal(t, "demo", report.SpecID)
		assert.False(t, report.GeneratedAt.IsZero())
	})

	t.Run("Deterministic", func(t *testing.T) {
		f := newFrameworkForTest(nil,
			stubRule{id: "one", issues: []domain.ValidationIssue{issue("one", "x")}},
			stubRule{id: "two", issues: []domain.ValidationIssue{issue("two", "y")}},
			stubRule{id: "three", issues: []domain.ValidationIssue{issue("three", "z")}},
		)

		first, err := f.Run(ctx, in)
		require.NoError(t, err)
		second, err := f.Run(ctx, in)
		require.NoError(t, err)
		assert.Equal(t, first.Issues, second.Issues)
	})

	t.Run("DisabledRulesSkipped", func(t *testing.T) {
		f := newFrameworkForTest([]string{"noisy"},
			stubRule{id: "noisy", issues: []domain.ValidationIssue{issue("noisy", "x")}},
			stubRule{id: "kept", issues: []domain.ValidationIssue{issue("kept", "y")}},
		)

		report, err := f.Run(ctx, in)
		require.NoError(t, err)
		require.Len(t, report.Issues, 1)
		assert.Equal(t, "kept", report.Issues[0].RuleID)
	})

	t.Run("PhaseFiltering", func(t *testing.T) {
		f := newFrameworkForTest(nil,
			stubRule{id: "execution-only", phases: []constants.Phase{constants.PhaseExecution},
				issues: []domain.ValidationIssue{issue("execution-only", "x")}},
			stubRule{id: "everywhere", issues: []domain.ValidationIssue{issue("everywhere", "y")}},
		)

		report, err := f.Run(ctx, in)
		require.NoError(t, err)
		require.Len(t, report.Issues, 1)
		assert.Equal(t, "everywhere", report.Issues[0].RuleID)
	})

	t.Run("CleanRun", func(t *testing.T) {
		f := newFrameworkForTest(nil, stubRule{id: "quiet"})

		report, err := f.Run(ctx, in)
		require.NoError(t, err)
		assert.Empty(t, report.Issues)
		assert.Equal(t, domain.ReportValid, report.Status())
	})
}

func TestDefaultFrameworkOnHealthyWorkflow(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewFakeClock(time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC))
	f := NewDefaultFramework(clk, zerolog.Nop(), nil)

	state := domain.NewWorkflowState("demo", clk.Now().UTC())
	state.CurrentPhase = constants.PhaseTasks
	state.Approvals[constants.PhaseRequirements] = constants.ApprovalApproved
	state.Approvals[constants.PhaseDesign] = constants.ApprovalApproved

	in := &Input{
		SpecID: "demo",
		Phase:  constants.PhaseTasks,
		State:  state,
		Docs: map[constants.DocumentType]string{
			constants.DocRequirements: "# Requirements\n\nAs a user, I want sessions to persist.\n\n- 1.1 the system stores sessions\n",
			constants.DocDesign:       "# Design\n\nThe store covers requirement 1.1.\n",
			constants.DocTasks:        "# Plan\n\n- [ ] 1. Build the store\n  _Requirements: 1.1_\n",
		},
	}

	report, err := f.Run(ctx, in)
	require.NoError(t, err)
	for _, found := range report.Issues {
		assert.NotEqual(t, domain.SeverityError, found.Severity, "unexpected error: %s", found.Message)
	}
}
