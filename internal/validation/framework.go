package validation

import (
	"context"
	"sort"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/specdriven/specd/internal/clock"
	"github.com/specdriven/specd/internal/domain"
)

// Framework runs registered rules against an input and aggregates the
// findings into a deterministic report.
type Framework struct {
	clock    clock.Clock
	logger   zerolog.Logger
	disabled map[string]bool

	mu    sync.RWMutex
	rules []Rule
}

// NewFramework creates a framework with the given rule IDs disabled.
func NewFramework(clk clock.Clock, logger zerolog.Logger, disabledRules []string) *Framework {
	disabled := make(map[string]bool, len(disabledRules))
	for _, id := range disabledRules {
		disabled[id] = true
	}
	return &Framework{
		clock:    clk,
		logger:   logger.With().Str("component", "validation").Logger(),
		disabled: disabled,
	}
}

// NewDefaultFramework creates a framework with the standard rule set
// registered.
func NewDefaultFramework(clk clock.Clock, logger zerolog.Logger, disabledRules []string) *Framework {
	f := NewFramework(clk, logger, disabledRules)
	f.Register(
		RequirementsStructureRule{},
		DesignStructureRule{},
		TasksStructureRule{},
		TraceabilityRule{},
		ConsistencyRule{},
		WorkflowStateRule{},
	)
	return f
}

// Register adds rules to the framework.
func (f *Framework) Register(rules ...Rule) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rules = append(f.rules, rules...)
}

// Run executes every applicable, enabled rule concurrently and returns
// the aggregated report. Issues are sorted by rule ID then location so
// repeated runs over the same input produce identical reports.
func (f *Framework) Run(ctx context.Context, in *Input) (*domain.ValidationReport, error) {
	f.mu.RLock()
	rules := make([]Rule, 0, len(f.rules))
	for _, rule := range f.rules {
		if f.disabled[rule.ID()] {
			continue
		}
		if !rule.AppliesTo(in.Phase) {
			continue
		}
		rules = append(rules, rule)
	}
	f.mu.RUnlock()

	results := make([][]domain.ValidationIssue, len(rules))
	g, gctx := errgroup.WithContext(ctx)
	for i, rule := range rules {
		i, rule := i, rule
		g.Go(func() error {
			results[i] = rule.Check(gctx, in)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	report := &domain.ValidationReport{
		SpecID:      in.SpecID,
		GeneratedAt: f.clock.Now().UTC(),
	}
	for _, issues := range results {
		report.Issues = append(report.Issues, issues...)
	}
	sort.SliceStable(report.Issues, func(i, j int) bool {
		a, b := report.Issues[i], report.Issues[j]
		if a.RuleID != b.RuleID {
			return a.RuleID < b.RuleID
		}
		return a.Location < b.Location
	})

	f.logger.Debug().
		Str("spec_id", in.SpecID).
		Int("rules", len(rules)).
		Int("issues", len(report.Issues)).
		Msg("validation run finished")
	return report, nil
}
