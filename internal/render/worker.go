// -----------------------------------------------------------------------
// Render Worker - drives one job through the render state machine
// -----------------------------------------------------------------------

package render

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/folio/internal/common"
	"github.com/ternarybob/folio/internal/interfaces"
	"github.com/ternarybob/folio/internal/models"
)

// animationKillCSS nullifies animations and transitions on every element and
// pseudo-element so captures are deterministic.
const animationKillCSS = `*, *::before, *::after {
	animation-duration: 0s !important;
	animation-delay: 0s !important;
	animation-iteration-count: 1 !important;
	transition-duration: 0s !important;
	transition-delay: 0s !important;
}`

// animationSettle is the pause after injecting the kill stylesheet.
const animationSettle = 50 * time.Millisecond

// WorkerConfig carries the retry and timeout policy for one render kind.
type WorkerConfig struct {
	OutputDir     string
	Timeout       time.Duration // per-attempt budget
	NavTimeout    time.Duration // page load and wait budget when the job sets none
	RetryAttempts int           // extra attempts after the first failure
	RetryDelay    time.Duration
}

// Worker executes one job per Run invocation: it obtains a browser session,
// loads the source, waits, captures, and persists the artifact. The job's
// processing slot is reserved by the scheduler before Run is called; the
// worker owns every browser resource it creates and releases it on all exit
// paths.
type Worker struct {
	kind      models.JobKind
	store     interfaces.JobStore
	renderer  interfaces.Renderer
	sessions  interfaces.SessionFactory // shared pool browser
	dedicated interfaces.SessionFactory // per-job browser for launch overrides
	cfg       WorkerConfig
	now       func() time.Time
	logger    arbor.ILogger
}

// NewWorker creates a worker for one render kind.
func NewWorker(kind models.JobKind, store interfaces.JobStore, renderer interfaces.Renderer, sessions, dedicated interfaces.SessionFactory, cfg WorkerConfig, logger arbor.ILogger) *Worker {
	return &Worker{
		kind:      kind,
		store:     store,
		renderer:  renderer,
		sessions:  sessions,
		dedicated: dedicated,
		cfg:       cfg,
		now:       time.Now,
		logger:    logger,
	}
}

// WithClock replaces the time source; used by tests.
func (w *Worker) WithClock(now func() time.Time) *Worker {
	w.now = now
	return w
}

// Run drives the job to a terminal status. Failures are retried up to
// RetryAttempts extra times; only the final failure touches the store.
func (w *Worker) Run(job *models.Job) {
	attempts := w.cfg.RetryAttempts + 1
	var lastErr error

	for attempt := 1; attempt <= attempts; attempt++ {
		attemptID := uuid.New().String()[:8]
		err := w.attempt(job, attempt, attemptID)
		if err == nil {
			return
		}
		if errors.Is(err, common.ErrCancelled) {
			w.store.Update(job.Key, func(j *models.Job) {
				j.Status = models.JobStatusCancelled
			})
			w.logger.Info().
				Str("kind", string(w.kind)).
				Str("key", job.Key).
				Msg("Render cancelled")
			return
		}

		lastErr = err
		w.logger.Warn().
			Str("kind", string(w.kind)).
			Str("key", job.Key).
			Str("attempt_id", attemptID).
			Int("attempt", attempt).
			Int("max_attempts", attempts).
			Err(err).
			Msg("Render attempt failed")

		if attempt < attempts {
			time.Sleep(w.cfg.RetryDelay)
		}
	}

	// A cancellation can land after the last attempt's checkpoint; a job
	// that already went terminal keeps its status.
	w.store.Update(job.Key, func(j *models.Job) {
		if j.Status.IsTerminal() {
			return
		}
		j.Status = models.JobStatusFailed
		j.Error = lastErr.Error()
	})
}

// attempt performs one bounded render attempt.
func (w *Worker) attempt(job *models.Job, attempt int, attemptID string) (err error) {
	ctx, cancel := context.WithTimeout(context.Background(), w.cfg.Timeout)
	defer cancel()

	w.logger.Debug().
		Str("kind", string(w.kind)).
		Str("key", job.Key).
		Str("attempt_id", attemptID).
		Int("attempt", attempt).
		Msg("Render attempt starting")

	// Launch-option override branches to a dedicated browser; the shared
	// pool browser cannot be reconfigured per job.
	factory := w.sessions
	if job.Options.Browser.Launch != nil {
		factory = w.dedicated
	}

	session, err := factory(ctx, &job.Options.Browser)
	if err != nil {
		return w.mapTimeout(ctx, fmt.Errorf("failed to open browser session: %w", err))
	}
	defer session.Close()

	if err := w.renderOn(ctx, session, job); err != nil {
		if errors.Is(err, common.ErrCancelled) {
			return err
		}
		err = w.mapTimeout(ctx, err)
		if w.kind == models.JobKindPDF {
			err = w.withErrorScreenshot(session, job, err)
		}
		return err
	}
	return nil
}

// renderOn walks the state machine on an open session: load, wait, capture,
// write, complete.
func (w *Worker) renderOn(ctx context.Context, session interfaces.BrowserSession, job *models.Job) error {
	w.setProgress(job.Key, 10)

	browser := &job.Options.Browser
	navTimeout := w.cfg.NavTimeout
	if browser.TimeoutMs > 0 {
		navTimeout = time.Duration(browser.TimeoutMs) * time.Millisecond
	}

	err := w.runBounded(ctx, navTimeout, func(loadCtx context.Context) error {
		if job.SourceKind.IsHTML() {
			if err := session.SetContent(loadCtx, job.Source); err != nil {
				return fmt.Errorf("failed to set page content: %w", err)
			}
			return nil
		}
		if err := session.Navigate(loadCtx, job.Source); err != nil {
			return fmt.Errorf("failed to navigate to %s: %w", job.Source, err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	w.setProgress(job.Key, 40)

	if browser.DisableAnimation {
		if err := session.InjectCSS(ctx, animationKillCSS); err != nil {
			return fmt.Errorf("failed to disable animations: %w", err)
		}
		if err := sleepCtx(ctx, animationSettle); err != nil {
			return err
		}
	}

	if browser.WaitForSelector != "" {
		err := w.runBounded(ctx, navTimeout, func(waitCtx context.Context) error {
			return session.WaitVisible(waitCtx, browser.WaitForSelector)
		})
		if err != nil {
			return fmt.Errorf("selector %q did not become visible: %w", browser.WaitForSelector, err)
		}
	}
	w.setProgress(job.Key, 50)

	if browser.WaitAfterMs > 0 {
		if err := sleepCtx(ctx, time.Duration(browser.WaitAfterMs)*time.Millisecond); err != nil {
			return err
		}
	}
	w.setProgress(job.Key, 60)

	// Cancellation checkpoint: last store read before the capture.
	if current, ok := w.store.Get(job.Key); !ok || current.Status == models.JobStatusCancelled {
		return common.ErrCancelled
	}

	buf, err := w.renderer.Capture(ctx, session, &job.Options)
	if err != nil {
		return err
	}
	w.setProgress(job.Key, 70)

	path, err := w.writeArtifact(job, buf)
	if err != nil {
		return err
	}

	w.store.Update(job.Key, func(j *models.Job) {
		j.Status = models.JobStatusCompleted
		j.Progress = 100
		j.FilePath = path
		j.Error = ""
	})

	w.logger.Info().
		Str("kind", string(w.kind)).
		Str("key", job.Key).
		Str("file", path).
		Int("bytes", len(buf)).
		Msg("Render completed")
	return nil
}

// writeArtifact persists the captured bytes under the date-partitioned
// output directory. The directory is created on demand.
func (w *Worker) writeArtifact(job *models.Job, buf []byte) (string, error) {
	now := w.now()
	dir := filepath.Join(w.cfg.OutputDir, DateFolder(now))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	path := filepath.Join(dir, Filename(job.Key, job.Options.Extension(w.kind), now))
	if err := os.WriteFile(path, buf, 0644); err != nil {
		return "", fmt.Errorf("failed to write artifact: %w", err)
	}
	return path, nil
}

// withErrorScreenshot captures a best-effort diagnostic PNG of the current
// page state into the date folder and appends its path to the error. A
// failure of the diagnostic itself is logged and ignored.
func (w *Worker) withErrorScreenshot(session interfaces.BrowserSession, job *models.Job, cause error) error {
	shotCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	buf, err := session.Screenshot(shotCtx, &models.ScreenshotOptions{Type: "png"})
	if err != nil {
		w.logger.Debug().Str("key", job.Key).Err(err).Msg("Error screenshot failed")
		return cause
	}

	now := w.now()
	dir := filepath.Join(w.cfg.OutputDir, DateFolder(now))
	if err := os.MkdirAll(dir, 0755); err != nil {
		w.logger.Debug().Str("key", job.Key).Err(err).Msg("Error screenshot directory failed")
		return cause
	}
	path := filepath.Join(dir, ErrorScreenshotFilename(job.Key, now))
	if err := os.WriteFile(path, buf, 0644); err != nil {
		w.logger.Debug().Str("key", job.Key).Err(err).Msg("Error screenshot write failed")
		return cause
	}

	return fmt.Errorf("%w (screenshot: %s)", cause, path)
}

// runBounded applies the navigation timeout to one page operation. The
// per-attempt context still wins when it expires first.
func (w *Worker) runBounded(ctx context.Context, timeout time.Duration, fn func(context.Context) error) error {
	if timeout <= 0 {
		return fn(ctx)
	}
	bounded, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := fn(bounded)
	if err != nil && ctx.Err() == nil && errors.Is(bounded.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w after %s: %v", common.ErrTimedOut, timeout, err)
	}
	return err
}

// mapTimeout rewrites a deadline expiry into the timed-out error kind.
func (w *Worker) mapTimeout(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w after %s: %v", common.ErrTimedOut, w.cfg.Timeout, err)
	}
	return err
}

// setProgress records a progress milestone unless the job left processing.
func (w *Worker) setProgress(key string, progress int) {
	w.store.Update(key, func(j *models.Job) {
		if j.Status == models.JobStatusProcessing {
			j.Progress = progress
		}
	})
}

// sleepCtx sleeps for d or until the context is done.
func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

var _ interfaces.JobRunner = (*Worker)(nil)
