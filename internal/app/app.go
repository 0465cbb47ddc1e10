// -----------------------------------------------------------------------
// App - constructs and owns the per-kind render subsystems
// -----------------------------------------------------------------------

package app

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/folio/internal/common"
	"github.com/ternarybob/folio/internal/interfaces"
	"github.com/ternarybob/folio/internal/models"
	"github.com/ternarybob/folio/internal/render"
	"github.com/ternarybob/folio/internal/scheduler"
	"github.com/ternarybob/folio/internal/services/housekeeping"
	renderservice "github.com/ternarybob/folio/internal/services/render"
	"github.com/ternarybob/folio/internal/services/sanitize"
	jobstore "github.com/ternarybob/folio/internal/store"
)

// snapshotFiles maps each render kind to its snapshot file name.
var snapshotFiles = map[models.JobKind]string{
	models.JobKindPDF:        "pdf_jobs.json",
	models.JobKindScreenshot: "screenshot_jobs.json",
}

// App wires the stores, browser pools, workers and schedulers of both render
// kinds behind one render service, and tears everything down in order.
type App struct {
	Config  *common.Config
	Render  interfaces.RenderService
	Logger  arbor.ILogger
	stores  map[models.JobKind]interfaces.JobStore
	pools   map[models.JobKind]*render.Pool
	scheds  map[models.JobKind]interfaces.Scheduler
	cleaner *housekeeping.Service
}

// New builds the full service graph from configuration. Stores load their
// snapshots here; schedulers start immediately so recovered jobs resume.
func New(cfg *common.Config, logger arbor.ILogger) (*App, error) {
	a := &App{
		Config: cfg,
		Logger: logger,
		stores: make(map[models.JobKind]interfaces.JobStore),
		pools:  make(map[models.JobKind]*render.Pool),
		scheds: make(map[models.JobKind]interfaces.Scheduler),
	}

	subsystems := make(map[models.JobKind]*renderservice.Subsystem)
	for kind, file := range snapshotFiles {
		subsystems[kind] = a.buildSubsystem(kind, filepath.Join(cfg.Storage.SnapshotDir, file))
	}

	svc := renderservice.NewService(
		subsystems,
		sanitize.NewHTMLSanitizer(),
		sanitize.NewURLValidator(cfg.IsDevelopment()),
		cfg.Queue.MaxSize,
		logger,
	)
	a.Render = svc

	a.cleaner = housekeeping.NewService(
		svc,
		cfg.Storage.OutputDir,
		time.Duration(cfg.Storage.CleanupAfterHours)*time.Hour,
		logger,
	)
	if err := a.cleaner.Start(); err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to start housekeeping: %w", err)
	}

	for _, sched := range a.scheds {
		sched.Start()
	}
	return a, nil
}

// buildSubsystem assembles the store, pool, renderer, worker and scheduler of
// one render kind.
func (a *App) buildSubsystem(kind models.JobKind, snapshotPath string) *renderservice.Subsystem {
	store := jobstore.New(snapshotPath, a.Logger)
	a.stores[kind] = store

	pool := render.NewPool(kind, a.Config.Browser, a.Logger)
	a.pools[kind] = pool

	var renderer interfaces.Renderer
	if kind == models.JobKindPDF {
		renderer = render.NewPDFRenderer(a.Config.PDF)
	} else {
		renderer = render.NewScreenshotRenderer()
	}

	viewport := a.Config.Browser.DefaultViewport
	dedicated := func(ctx context.Context, opts *models.BrowserOptions) (interfaces.BrowserSession, error) {
		return render.NewDedicatedSession(ctx, opts, viewport, a.Logger)
	}

	worker := render.NewWorker(kind, store, renderer, pool.Session, dedicated, render.WorkerConfig{
		OutputDir:     a.Config.Storage.OutputDir,
		Timeout:       a.Config.Queue.ProcessingTimeout(),
		NavTimeout:    a.Config.Browser.DefaultTimeout(),
		RetryAttempts: a.Config.Queue.RetryAttempts,
		RetryDelay:    a.Config.Queue.RetryDelay(),
	}, a.Logger)

	sched := scheduler.New(kind, store, worker, a.Config.Browser.MaxConcurrent, a.Logger)
	a.scheds[kind] = sched

	return &renderservice.Subsystem{Store: store, Scheduler: sched}
}

// Close stops housekeeping and the schedulers, closes the browsers, and
// flushes the stores. Safe to call on a partially built app.
func (a *App) Close() {
	if a.cleaner != nil {
		a.cleaner.Stop()
		a.cleaner = nil
	}
	for _, sched := range a.scheds {
		sched.Stop()
	}
	for kind, pool := range a.pools {
		if err := pool.Close(); err != nil {
			a.Logger.Warn().Str("kind", string(kind)).Err(err).Msg("Failed to close browser pool")
		}
	}
	for kind, store := range a.stores {
		if err := store.Close(); err != nil {
			a.Logger.Warn().Str("kind", string(kind)).Err(err).Msg("Failed to close job store")
		}
	}
	a.Logger.Info().Msg("Application shut down")
}
