package scheduler

import (
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/folio/internal/models"
	"github.com/ternarybob/folio/internal/store"
)

// recordingRunner completes each job immediately and records dispatch order.
type recordingRunner struct {
	store *store.Store

	mu   sync.Mutex
	keys []string
	done chan string
}

func newRecordingRunner(s *store.Store) *recordingRunner {
	return &recordingRunner{store: s, done: make(chan string, 32)}
}

func (r *recordingRunner) Run(job *models.Job) {
	r.mu.Lock()
	r.keys = append(r.keys, job.Key)
	r.mu.Unlock()

	r.store.Update(job.Key, func(j *models.Job) {
		j.Status = models.JobStatusCompleted
		j.Progress = 100
	})
	r.done <- job.Key
}

func (r *recordingRunner) order() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.keys))
	copy(out, r.keys)
	return out
}

// blockingRunner holds every job until released.
type blockingRunner struct {
	store   *store.Store
	started chan string
	release chan struct{}
	running atomic.Int32
}

func newBlockingRunner(s *store.Store) *blockingRunner {
	return &blockingRunner{
		store:   s,
		started: make(chan string, 32),
		release: make(chan struct{}),
	}
}

func (r *blockingRunner) Run(job *models.Job) {
	r.running.Add(1)
	r.started <- job.Key
	<-r.release
	r.running.Add(-1)

	r.store.Update(job.Key, func(j *models.Job) {
		j.Status = models.JobStatusCompleted
	})
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s := store.New(filepath.Join(t.TempDir(), "jobs.json"), arbor.NewLogger())
	t.Cleanup(func() { s.Close() })
	return s
}

func queuedJob(key string, priority int, createdAt time.Time) *models.Job {
	return &models.Job{
		Key:        key,
		Kind:       models.JobKindPDF,
		SourceKind: models.SourceInlineHTML,
		Source:     "<p>x</p>",
		Status:     models.JobStatusQueued,
		Priority:   priority,
		CreatedAt:  createdAt,
		UpdatedAt:  createdAt,
	}
}

func waitFor(t *testing.T, ch <-chan string, n int) []string {
	t.Helper()
	var got []string
	for i := 0; i < n; i++ {
		select {
		case key := <-ch:
			got = append(got, key)
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out waiting for dispatch %d of %d", i+1, n)
		}
	}
	return got
}

func TestDispatchOrderByPriority(t *testing.T) {
	s := newTestStore(t)
	base := time.Now()

	require.NoError(t, s.Insert(queuedJob("low", 2, base), 10))
	require.NoError(t, s.Insert(queuedJob("high", 9, base.Add(time.Second)), 10))
	require.NoError(t, s.Insert(queuedJob("mid", 5, base.Add(2*time.Second)), 10))

	runner := newRecordingRunner(s)
	sched := New(models.JobKindPDF, s, runner, 1, arbor.NewLogger())
	sched.Start()
	defer sched.Stop()

	waitFor(t, runner.done, 3)
	assert.Equal(t, []string{"high", "mid", "low"}, runner.order())
}

func TestDispatchTieBreaks(t *testing.T) {
	s := newTestStore(t)
	base := time.Now()

	// Same priority: older first. Same priority and age: key order.
	require.NoError(t, s.Insert(queuedJob("b", 5, base), 10))
	require.NoError(t, s.Insert(queuedJob("a", 5, base), 10))
	require.NoError(t, s.Insert(queuedJob("older", 5, base.Add(-time.Minute)), 10))

	runner := newRecordingRunner(s)
	sched := New(models.JobKindPDF, s, runner, 1, arbor.NewLogger())
	sched.Start()
	defer sched.Stop()

	waitFor(t, runner.done, 3)
	assert.Equal(t, []string{"older", "a", "b"}, runner.order())
}

func TestConcurrencyCeiling(t *testing.T) {
	s := newTestStore(t)
	base := time.Now()

	for _, key := range []string{"j1", "j2", "j3", "j4"} {
		require.NoError(t, s.Insert(queuedJob(key, 5, base), 10))
	}

	runner := newBlockingRunner(s)
	sched := New(models.JobKindPDF, s, runner, 2, arbor.NewLogger())
	sched.Start()

	waitFor(t, runner.started, 2)
	assert.Equal(t, int32(2), runner.running.Load(), "no more than maxConcurrent jobs may run")
	assert.Equal(t, 2, s.CountProcessing())

	close(runner.release)
	waitFor(t, runner.started, 2)
	sched.Stop()

	assert.Equal(t, 0, s.CountProcessing())
}

func TestLaterHighPriorityJobJumpsQueue(t *testing.T) {
	s := newTestStore(t)
	base := time.Now()

	require.NoError(t, s.Insert(queuedJob("first", 5, base), 10))
	require.NoError(t, s.Insert(queuedJob("second", 5, base.Add(time.Second)), 10))

	runner := newBlockingRunner(s)
	sched := New(models.JobKindPDF, s, runner, 1, arbor.NewLogger())
	sched.Start()

	// "first" occupies the only slot; submit an urgent job while it runs.
	waitFor(t, runner.started, 1)
	require.NoError(t, s.Insert(queuedJob("urgent", 10, base.Add(2*time.Second)), 10))
	sched.Trigger()

	close(runner.release)
	got := waitFor(t, runner.started, 2)
	sched.Stop()

	assert.Equal(t, []string{"urgent", "second"}, got)
}

func TestCancelQueuedJob(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Insert(queuedJob("a", 5, time.Now()), 10))

	sched := New(models.JobKindPDF, s, newRecordingRunner(s), 1, arbor.NewLogger())

	assert.True(t, sched.Cancel("a"))
	job, _ := s.Get("a")
	assert.Equal(t, models.JobStatusCancelled, job.Status)

	// Terminal jobs cannot be cancelled again.
	assert.False(t, sched.Cancel("a"))
	assert.False(t, sched.Cancel("missing"))
}

// staleReadStore always reports a queued status from Get, simulating a job
// that goes terminal between the cancel's read and its update.
type staleReadStore struct {
	*store.Store
}

func (s *staleReadStore) Get(key string) (*models.Job, bool) {
	job, ok := s.Store.Get(key)
	if !ok {
		return nil, false
	}
	job.Status = models.JobStatusQueued
	return job, true
}

func TestCancelLosesRaceWithTerminalStatus(t *testing.T) {
	s := newTestStore(t)
	job := queuedJob("a", 5, time.Now())
	job.Status = models.JobStatusCompleted
	require.NoError(t, s.Insert(job, 10))

	sched := New(models.JobKindPDF, &staleReadStore{Store: s}, newRecordingRunner(s), 1, arbor.NewLogger())

	// The read saw a queued job but the record is already terminal by update
	// time; Cancel must report that nothing was cancelled.
	assert.False(t, sched.Cancel("a"))

	got, _ := s.Get("a")
	assert.Equal(t, models.JobStatusCompleted, got.Status)
}

func TestRemoveRefusesProcessingJob(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Insert(queuedJob("a", 5, time.Now()), 10))
	require.True(t, s.MarkProcessing("a"))

	sched := New(models.JobKindPDF, s, newRecordingRunner(s), 1, arbor.NewLogger())
	assert.False(t, sched.Remove("a"))

	_, ok := s.Get("a")
	assert.True(t, ok)
}

func TestRemoveDeletesArtifact(t *testing.T) {
	s := newTestStore(t)
	artifact := filepath.Join(t.TempDir(), "a__10-00-00.pdf")
	require.NoError(t, os.WriteFile(artifact, []byte("%PDF-1.7"), 0644))

	job := queuedJob("a", 5, time.Now())
	job.Status = models.JobStatusCompleted
	job.FilePath = artifact
	require.NoError(t, s.Insert(job, 10))

	sched := New(models.JobKindPDF, s, newRecordingRunner(s), 1, arbor.NewLogger())
	assert.True(t, sched.Remove("a"))

	_, ok := s.Get("a")
	assert.False(t, ok)
	_, err := os.Stat(artifact)
	assert.True(t, os.IsNotExist(err))
}
