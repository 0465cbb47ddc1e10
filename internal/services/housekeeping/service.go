// -----------------------------------------------------------------------
// Housekeeping Service - scheduled pruning of expired jobs and artifacts
// -----------------------------------------------------------------------

package housekeeping

import (
	"os"
	"path/filepath"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/folio/internal/interfaces"
	"github.com/ternarybob/folio/internal/render"
)

// schedule runs the sweep at the top of every hour.
const schedule = "0 * * * *"

// Service prunes terminal job records older than the retention window and
// deletes artifact date folders whose day has aged out entirely.
type Service struct {
	renderer  interfaces.RenderService
	outputDir string
	retention time.Duration
	cron      *cron.Cron
	now       func() time.Time
	logger    arbor.ILogger
}

// NewService creates a stopped housekeeping service.
func NewService(renderer interfaces.RenderService, outputDir string, retention time.Duration, logger arbor.ILogger) *Service {
	return &Service{
		renderer:  renderer,
		outputDir: outputDir,
		retention: retention,
		cron:      cron.New(),
		now:       time.Now,
		logger:    logger,
	}
}

// Start registers the hourly sweep and launches the cron runner.
func (s *Service) Start() error {
	if _, err := s.cron.AddFunc(schedule, s.Sweep); err != nil {
		return err
	}
	s.cron.Start()
	s.logger.Info().
		Str("schedule", schedule).
		Dur("retention", s.retention).
		Msg("Housekeeping started")
	return nil
}

// Stop halts the cron runner and waits for a running sweep to finish.
func (s *Service) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info().Msg("Housekeeping stopped")
}

// Sweep runs one pruning pass over job records and artifact folders.
func (s *Service) Sweep() {
	removed := s.renderer.CleanupOlderThan(s.retention)
	folders := s.pruneArtifactFolders()

	s.logger.Info().
		Int("jobs_removed", removed).
		Int("folders_removed", folders).
		Msg("Housekeeping sweep finished")
}

// pruneArtifactFolders deletes date-partition directories old enough that
// every file inside is past retention. A folder dated D expires once
// D+1day+retention has passed.
func (s *Service) pruneArtifactFolders() int {
	entries, err := os.ReadDir(s.outputDir)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn().Str("dir", s.outputDir).Err(err).Msg("Failed to read output directory")
		}
		return 0
	}

	cutoff := s.now().Add(-s.retention)
	removed := 0
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		day, err := render.ParseDateFolder(entry.Name())
		if err != nil {
			continue
		}
		if day.AddDate(0, 0, 1).After(cutoff) {
			continue
		}

		path := filepath.Join(s.outputDir, entry.Name())
		if err := os.RemoveAll(path); err != nil {
			s.logger.Warn().Str("dir", path).Err(err).Msg("Failed to remove artifact folder")
			continue
		}
		removed++
		s.logger.Debug().Str("dir", path).Msg("Artifact folder removed")
	}
	return removed
}
