package task

import (
	"context"
	stderrors "errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/specdriven/specd/internal/clock"
	"github.com/specdriven/specd/internal/constants"
	"github.com/specdriven/specd/internal/document"
	"github.com/specdriven/specd/internal/domain"
	specderrors "github.com/specdriven/specd/internal/errors"
)

// ContextLoader assembles and caches execution contexts. Snapshots stay
// valid until a document of the spec is written; wire Invalidate into
// the document store's save hooks so staleness is impossible by
// construction rather than by TTL.
type ContextLoader struct {
	docs     document.Store
	clock    clock.Clock
	logger   zerolog.Logger
	scanRoot string

	mu    sync.RWMutex
	cache map[string]*domain.ExecutionContext
}

// NewContextLoader creates a loader. scanRoot is the source tree scanned
// into the context's project summary; empty disables scanning.
func NewContextLoader(docs document.Store, clk clock.Clock, logger zerolog.Logger, scanRoot string) *ContextLoader {
	return &ContextLoader{
		docs:     docs,
		clock:    clk,
		logger:   logger.With().Str("component", "execution_context").Logger(),
		scanRoot: scanRoot,
		cache:    make(map[string]*domain.ExecutionContext),
	}
}

// Invalidate drops the cached snapshot for a spec. Registered as a
// document store save hook.
func (c *ContextLoader) Invalidate(specID string) {
	c.mu.Lock()
	delete(c.cache, specID)
	c.mu.Unlock()
}

// Load returns the execution context for a spec, from cache when fresh.
// All three documents are loaded concurrently; if any are missing or
// blank the errors are aggregated so the caller sees every gap at once.
func (c *ContextLoader) Load(ctx context.Context, specID string) (*domain.ExecutionContext, error) {
	c.mu.RLock()
	cached := c.cache[specID]
	c.mu.RUnlock()
	if cached != nil {
		return cached, nil
	}

	execCtx := &domain.ExecutionContext{
		SpecID:   specID,
		LoadedAt: c.clock.Now().UTC(),
	}

	var loadErrs [3]error
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		execCtx.Requirements, loadErrs[0] = c.loadDoc(gctx, specID, constants.DocRequirements)
		return nil
	})
	g.Go(func() error {
		execCtx.Design, loadErrs[1] = c.loadDoc(gctx, specID, constants.DocDesign)
		return nil
	})
	g.Go(func() error {
		execCtx.Tasks, loadErrs[2] = c.loadDoc(gctx, specID, constants.DocTasks)
		return nil
	})
	_ = g.Wait()

	if err := stderrors.Join(loadErrs[0], loadErrs[1], loadErrs[2]); err != nil {
		return nil, specderrors.Wrapf(err, "execution context for spec '%s' is incomplete", specID)
	}

	execCtx.Project = c.scanProject()

	c.mu.Lock()
	c.cache[specID] = execCtx
	c.mu.Unlock()

	c.logger.Debug().Str("spec_id", specID).Int("project_files", execCtx.Project.TotalFiles).
		Msg("execution context loaded")
	return execCtx, nil
}

func (c *ContextLoader) loadDoc(ctx context.Context, specID string, docType constants.DocumentType) (string, error) {
	content, _, err := c.docs.Load(ctx, specID, docType)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(content) == "" {
		return "", fmt.Errorf("%s: %w", docType, specderrors.ErrDocumentEmpty)
	}
	return content, nil
}

// scanProject walks the scan root shallowly: at most ScanMaxDepth levels
// and ScanMaxEntries entries, collecting top-level directories and file
// counts by extension. Scan problems degrade to an empty summary.
func (c *ContextLoader) scanProject() domain.ProjectScan {
	scan := domain.ProjectScan{Root: c.scanRoot}
	if c.scanRoot == "" {
		return scan
	}

	scan.FileCounts = make(map[string]int)
	entries := 0
	err := filepath.WalkDir(c.scanRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // unreadable entries are skipped, not fatal
		}
		if path == c.scanRoot {
			return nil
		}

		rel, relErr := filepath.Rel(c.scanRoot, path)
		if relErr != nil {
			return nil
		}
		depth := strings.Count(rel, string(os.PathSeparator)) + 1

		if entries >= constants.ScanMaxEntries {
			scan.Truncated = true
			return filepath.SkipAll
		}
		entries++

		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			if depth == 1 {
				scan.Dirs = append(scan.Dirs, d.Name())
			}
			if depth >= constants.ScanMaxDepth {
				return filepath.SkipDir
			}
			return nil
		}

		scan.TotalFiles++
		ext := filepath.Ext(d.Name())
		if ext == "" {
			ext = "(none)"
		}
		scan.FileCounts[ext]++
		return nil
	})
	if err != nil {
		c.logger.Warn().Err(err).Str("root", c.scanRoot).Msg("project scan incomplete")
	}
	return scan
}
