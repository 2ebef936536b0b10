package cli

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/specdriven/specd/internal/authz"
	"github.com/specdriven/specd/internal/clock"
	"github.com/specdriven/specd/internal/config"
	"github.com/specdriven/specd/internal/document"
	"github.com/specdriven/specd/internal/persist"
	"github.com/specdriven/specd/internal/task"
	"github.com/specdriven/specd/internal/validation"
	"github.com/specdriven/specd/internal/workflow"
)

// globalLogger stores the initialized logger for use by subcommands.
// Set during PersistentPreRunE; access via Logger().
var (
	globalLogger   zerolog.Logger //nolint:gochecknoglobals // CLI logger requires global access
	globalLoggerMu sync.RWMutex   //nolint:gochecknoglobals // Protects globalLogger
)

// Logger returns the initialized logger for use by subcommands. It must
// only be called after the root command's PersistentPreRunE has run.
func Logger() zerolog.Logger {
	globalLoggerMu.RLock()
	defer globalLoggerMu.RUnlock()
	return globalLogger
}

// services wires the full stack for one command invocation: config,
// persistence, documents, orchestrator, task engine and validation.
type services struct {
	cfg          *config.Config
	actor        string
	docs         *document.FileStore
	store        *persist.Manager
	orchestrator *workflow.Orchestrator
	engine       *task.Engine
	framework    *validation.Framework
}

// newServices builds the service graph. actorOverride (the --actor flag)
// wins over the configured actor.
func newServices(ctx context.Context, actorOverride string) (*services, error) {
	logger := Logger()

	cfg, err := config.Load(ctx)
	if err != nil {
		return nil, err
	}

	actor := cfg.Workflow.Actor
	if actorOverride != "" {
		actor = actorOverride
	}

	specsRoot, err := config.SpecsRoot()
	if err != nil {
		return nil, err
	}

	clk := clock.RealClock{}
	docs := document.NewFileStore(specsRoot)
	store := persist.NewManager(specsRoot, clk, logger, persist.Options{
		MaxVersions: cfg.Persistence.MaxVersions,
		MaxBackups:  cfg.Persistence.MaxBackups,
	})

	orchestrator := workflow.NewOrchestrator(store, docs,
		workflow.WithAuthorizer(authz.AllowAll{}),
		workflow.WithClock(clk),
		workflow.WithLogger(logger),
	)

	loader := task.NewContextLoader(docs, clk, logger, cfg.Execution.ScanRoot)
	docs.OnSave(loader.Invalidate)

	engine := task.NewEngine(docs, loader,
		task.WithCompletionValidator(validation.NewCompletionChecker(clk)),
		task.WithStateUpdater(orchestrator),
		task.WithEngineAuthorizer(authz.AllowAll{}),
		task.WithEngineClock(clk),
		task.WithEngineLogger(logger),
		task.WithImplementTimeout(cfg.Execution.ImplementTimeout),
	)

	framework := validation.NewDefaultFramework(clk, logger, cfg.Validation.DisabledRules)

	return &services{
		cfg:          cfg,
		actor:        actor,
		docs:         docs,
		store:        store,
		orchestrator: orchestrator,
		engine:       engine,
		framework:    framework,
	}, nil
}
