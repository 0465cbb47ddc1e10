// -----------------------------------------------------------------------
// Scheduler - priority selection loop for one render kind
// -----------------------------------------------------------------------

package scheduler

import (
	"os"
	"sort"
	"sync"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/folio/internal/interfaces"
	"github.com/ternarybob/folio/internal/models"
)

// Scheduler picks queued jobs for one render kind and hands them to the
// runner. Selection order is priority descending, then creation time
// ascending, then key ascending. At most maxConcurrent jobs of this kind
// process at once.
type Scheduler struct {
	kind          models.JobKind
	store         interfaces.JobStore
	runner        interfaces.JobRunner
	maxConcurrent int
	logger        arbor.ILogger

	// trigger has capacity one so signals coalesce while a pass is pending.
	trigger chan struct{}
	done    chan struct{}

	mu      sync.Mutex
	started bool
	wg      sync.WaitGroup
}

// New creates a stopped scheduler.
func New(kind models.JobKind, store interfaces.JobStore, runner interfaces.JobRunner, maxConcurrent int, logger arbor.ILogger) *Scheduler {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &Scheduler{
		kind:          kind,
		store:         store,
		runner:        runner,
		maxConcurrent: maxConcurrent,
		logger:        logger,
		trigger:       make(chan struct{}, 1),
		done:          make(chan struct{}),
	}
}

// Start launches the selection loop and fires an initial pass so jobs
// recovered from a snapshot are picked up without an external trigger.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true

	go s.loop()
	s.Trigger()

	s.logger.Info().
		Str("kind", string(s.kind)).
		Int("max_concurrent", s.maxConcurrent).
		Msg("Scheduler started")
}

// Stop terminates the selection loop and waits for in-flight workers.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	s.mu.Unlock()

	close(s.done)
	s.wg.Wait()
	s.logger.Info().Str("kind", string(s.kind)).Msg("Scheduler stopped")
}

// Trigger requests a selection pass. A pending pass absorbs further triggers.
func (s *Scheduler) Trigger() {
	select {
	case s.trigger <- struct{}{}:
	default:
	}
}

// Cancel flips a non-terminal job to cancelled. Queued jobs leave the
// selection set immediately; processing jobs stop at the worker's next
// checkpoint.
func (s *Scheduler) Cancel(key string) bool {
	job, ok := s.store.Get(key)
	if !ok || job.Status.IsTerminal() {
		return false
	}
	wasQueued := job.Status == models.JobStatusQueued

	// The job can go terminal between the read above and this update; the
	// mutator runs under the store lock and reports whether it flipped.
	flipped := false
	_, ok = s.store.Update(key, func(j *models.Job) {
		if !j.Status.IsTerminal() {
			j.Status = models.JobStatusCancelled
			flipped = true
		}
	})
	if !ok || !flipped {
		return false
	}

	if wasQueued {
		// A queued job never reaches a worker checkpoint; nothing else to do.
		s.logger.Info().Str("kind", string(s.kind)).Str("key", key).Msg("Queued job cancelled")
	} else {
		s.logger.Info().Str("kind", string(s.kind)).Str("key", key).Msg("Cancellation requested for running job")
	}
	return true
}

// Remove deletes a job record and its artifact file. Processing jobs must be
// cancelled first.
func (s *Scheduler) Remove(key string) bool {
	job, ok := s.store.Get(key)
	if !ok {
		return false
	}
	if job.Status == models.JobStatusProcessing {
		return false
	}

	if job.FilePath != "" {
		if err := os.Remove(job.FilePath); err != nil && !os.IsNotExist(err) {
			s.logger.Warn().
				Str("key", key).
				Str("file", job.FilePath).
				Err(err).
				Msg("Failed to delete artifact file")
		}
	}
	if !s.store.Delete(key) {
		return false
	}
	s.logger.Info().Str("kind", string(s.kind)).Str("key", key).Msg("Job removed")
	return true
}

// loop waits for triggers and runs selection passes until Stop.
func (s *Scheduler) loop() {
	for {
		select {
		case <-s.done:
			return
		case <-s.trigger:
			s.pass()
		}
	}
}

// pass dispatches queued jobs until the concurrency ceiling is reached or the
// queue is empty. MarkProcessing is the reservation: a false return means the
// job changed state since selection and the pass simply reselects.
func (s *Scheduler) pass() {
	for {
		select {
		case <-s.done:
			return
		default:
		}

		if s.store.CountProcessing() >= s.maxConcurrent {
			return
		}

		job := s.selectNext()
		if job == nil {
			return
		}
		if !s.store.MarkProcessing(job.Key) {
			continue
		}
		job.Status = models.JobStatusProcessing

		s.logger.Debug().
			Str("kind", string(s.kind)).
			Str("key", job.Key).
			Int("priority", job.Priority).
			Msg("Job dispatched")

		s.wg.Add(1)
		go func(j *models.Job) {
			defer s.wg.Done()
			s.runner.Run(j)
			s.Trigger()
		}(job)
	}
}

// selectNext returns the highest ranked queued job, or nil.
func (s *Scheduler) selectNext() *models.Job {
	var queued []*models.Job
	for _, job := range s.store.List() {
		if job.Status == models.JobStatusQueued {
			queued = append(queued, job)
		}
	}
	if len(queued) == 0 {
		return nil
	}

	sort.Slice(queued, func(i, j int) bool {
		a, b := queued[i], queued[j]
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.Key < b.Key
	})
	return queued[0]
}

var _ interfaces.Scheduler = (*Scheduler)(nil)
