// -----------------------------------------------------------------------
// Job Store - in-memory job map with debounced JSON snapshot persistence
// -----------------------------------------------------------------------

package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/folio/internal/common"
	"github.com/ternarybob/folio/internal/interfaces"
	"github.com/ternarybob/folio/internal/models"
)

// DefaultFlushDelay is how long a mutation waits before the snapshot is
// written. Each mutation supersedes any pending flush.
const DefaultFlushDelay = 100 * time.Millisecond

// Store keeps every job of one render kind in memory and mirrors the set to a
// single JSON snapshot file. The mutex covers both the map and the debounce
// timer handle; the flush snapshots under the lock and writes outside it.
type Store struct {
	mu         sync.Mutex
	jobs       map[string]*models.Job
	path       string
	flushDelay time.Duration
	timer      *time.Timer
	dirty      bool
	closed     bool
	now        func() time.Time
	logger     arbor.ILogger
}

// Option customizes a Store; used by tests to inject a clock or shorten the
// debounce window.
type Option func(*Store)

// WithClock replaces the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithFlushDelay overrides the debounce window.
func WithFlushDelay(d time.Duration) Option {
	return func(s *Store) { s.flushDelay = d }
}

// New creates a store persisting to the given snapshot path and loads any
// existing snapshot. Jobs found processing are rewound to queued with zero
// progress; a corrupted snapshot is logged and treated as empty.
func New(path string, logger arbor.ILogger, opts ...Option) *Store {
	s := &Store{
		jobs:       make(map[string]*models.Job),
		path:       path,
		flushDelay: DefaultFlushDelay,
		now:        time.Now,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.load()
	return s
}

// load reads the snapshot file, if present, and applies crash recovery.
func (s *Store) load() {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn().Err(err).Str("path", s.path).Msg("Failed to read job snapshot")
		}
		return
	}

	var records []*models.Job
	if err := json.Unmarshal(data, &records); err != nil {
		s.logger.Warn().Err(err).Str("path", s.path).Msg("Corrupted job snapshot, starting empty")
		return
	}

	recovered := 0
	for _, job := range records {
		if job == nil || job.Key == "" {
			continue
		}
		if job.Status == models.JobStatusProcessing {
			// Browser work was interrupted by the crash; requeue from scratch.
			job.Status = models.JobStatusQueued
			job.Progress = 0
			job.UpdatedAt = s.now()
			recovered++
		}
		s.jobs[job.Key] = job
	}

	s.logger.Info().
		Int("jobs", len(s.jobs)).
		Int("requeued", recovered).
		Str("path", s.path).
		Msg("Job snapshot loaded")

	if recovered > 0 {
		s.markDirtyLocked()
	}
}

// Put inserts or replaces a job record.
func (s *Store) Put(job *models.Job) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := job.Clone()
	c.UpdatedAt = s.now()
	s.jobs[c.Key] = c
	s.markDirtyLocked()
}

// Insert adds a new job record atomically, refusing duplicates and enforcing
// the store capacity. Capacity counts every record, terminal ones included.
func (s *Store) Insert(job *models.Job, capacity int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[job.Key]; exists {
		return fmt.Errorf("%w: %s", common.ErrDuplicateKey, job.Key)
	}
	if capacity > 0 && len(s.jobs) >= capacity {
		return fmt.Errorf("%w: %d jobs", common.ErrQueueFull, len(s.jobs))
	}

	c := job.Clone()
	c.UpdatedAt = s.now()
	s.jobs[c.Key] = c
	s.markDirtyLocked()
	return nil
}

// Get returns a copy of the job.
func (s *Store) Get(key string) (*models.Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[key]
	if !ok {
		return nil, false
	}
	return job.Clone(), true
}

// Delete removes the record.
func (s *Store) Delete(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[key]; !ok {
		return false
	}
	delete(s.jobs, key)
	s.markDirtyLocked()
	return true
}

// List returns copies of every job.
func (s *Store) List() []*models.Job {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*models.Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		out = append(out, job.Clone())
	}
	return out
}

// Update applies the mutator under the lock and bumps UpdatedAt.
func (s *Store) Update(key string, mutate func(*models.Job)) (*models.Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[key]
	if !ok {
		return nil, false
	}
	mutate(job)
	job.UpdatedAt = s.now()
	s.markDirtyLocked()
	return job.Clone(), true
}

// MarkProcessing atomically reserves a queued job for a worker.
func (s *Store) MarkProcessing(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[key]
	if !ok || job.Status != models.JobStatusQueued {
		return false
	}
	job.Status = models.JobStatusProcessing
	job.UpdatedAt = s.now()
	s.markDirtyLocked()
	return true
}

// Count returns the number of records, terminal ones included.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

// CountProcessing returns the number of jobs currently processing.
func (s *Store) CountProcessing() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, job := range s.jobs {
		if job.Status == models.JobStatusProcessing {
			n++
		}
	}
	return n
}

// Stats summarizes the store by status.
func (s *Store) Stats() models.QueueStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := models.QueueStats{Total: len(s.jobs)}
	for _, job := range s.jobs {
		switch job.Status {
		case models.JobStatusQueued:
			stats.Queued++
		case models.JobStatusProcessing:
			stats.Processing++
		case models.JobStatusCompleted:
			stats.Completed++
		case models.JobStatusFailed:
			stats.Failed++
		case models.JobStatusCancelled:
			stats.Cancelled++
		}
	}
	return stats
}

// CleanupOlderThan deletes terminal jobs not updated within the given age.
func (s *Store) CleanupOlderThan(age time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-age)
	deleted := 0
	for key, job := range s.jobs {
		if job.Status.IsTerminal() && job.UpdatedAt.Before(cutoff) {
			delete(s.jobs, key)
			deleted++
		}
	}
	if deleted > 0 {
		s.markDirtyLocked()
	}
	return deleted
}

// markDirtyLocked schedules a debounced flush, superseding any pending one.
// Caller must hold s.mu.
func (s *Store) markDirtyLocked() {
	s.dirty = true
	if s.closed {
		return
	}
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.flushDelay, func() {
		if err := s.Flush(); err != nil {
			s.logger.Warn().Err(err).Str("path", s.path).Msg("Job snapshot flush failed")
		}
	})
}

// Flush writes the snapshot synchronously. The job set is serialized under
// the lock; the file write happens outside it. A write error leaves the
// store dirty so the next mutation retries.
func (s *Store) Flush() error {
	s.mu.Lock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	if !s.dirty {
		s.mu.Unlock()
		return nil
	}
	records := make([]*models.Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		records = append(records, job.Clone())
	}
	s.dirty = false
	s.mu.Unlock()

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal job snapshot: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		s.setDirty()
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		s.setDirty()
		return fmt.Errorf("failed to write job snapshot: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		s.setDirty()
		return fmt.Errorf("failed to replace job snapshot: %w", err)
	}
	return nil
}

func (s *Store) setDirty() {
	s.mu.Lock()
	s.dirty = true
	s.mu.Unlock()
}

// Close performs a final flush and stops the debounce timer.
func (s *Store) Close() error {
	s.mu.Lock()
	s.closed = true
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.mu.Unlock()
	return s.Flush()
}

var _ interfaces.JobStore = (*Store)(nil)
