package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/folio/internal/common"
	"github.com/ternarybob/folio/internal/models"
)

func newTestStore(t *testing.T, opts ...Option) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "jobs.json")
	s := New(path, arbor.NewLogger(), opts...)
	t.Cleanup(func() { s.Close() })
	return s, path
}

func testJob(key string, status models.JobStatus) *models.Job {
	now := time.Now()
	return &models.Job{
		Key:        key,
		Kind:       models.JobKindPDF,
		SourceKind: models.SourceInlineHTML,
		Source:     "<p>hi</p>",
		Status:     status,
		Priority:   models.DefaultPriority,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func TestInsertAndGet(t *testing.T) {
	s, _ := newTestStore(t)

	require.NoError(t, s.Insert(testJob("a", models.JobStatusQueued), 10))

	got, ok := s.Get("a")
	require.True(t, ok)
	assert.Equal(t, "a", got.Key)
	assert.Equal(t, models.JobStatusQueued, got.Status)

	_, ok = s.Get("missing")
	assert.False(t, ok)
}

func TestInsertDuplicateKey(t *testing.T) {
	s, _ := newTestStore(t)

	require.NoError(t, s.Insert(testJob("a", models.JobStatusQueued), 10))
	err := s.Insert(testJob("a", models.JobStatusQueued), 10)
	assert.ErrorIs(t, err, common.ErrDuplicateKey)
}

func TestInsertCapacityCountsTerminalJobs(t *testing.T) {
	s, _ := newTestStore(t)

	require.NoError(t, s.Insert(testJob("done", models.JobStatusCompleted), 2))
	require.NoError(t, s.Insert(testJob("queued", models.JobStatusQueued), 2))

	err := s.Insert(testJob("over", models.JobStatusQueued), 2)
	assert.ErrorIs(t, err, common.ErrQueueFull)
}

func TestGetReturnsCopy(t *testing.T) {
	s, _ := newTestStore(t)
	require.NoError(t, s.Insert(testJob("a", models.JobStatusQueued), 10))

	got, _ := s.Get("a")
	got.Status = models.JobStatusFailed

	again, _ := s.Get("a")
	assert.Equal(t, models.JobStatusQueued, again.Status)
}

func TestUpdate(t *testing.T) {
	s, _ := newTestStore(t)
	require.NoError(t, s.Insert(testJob("a", models.JobStatusQueued), 10))

	updated, ok := s.Update("a", func(j *models.Job) {
		j.Progress = 40
	})
	require.True(t, ok)
	assert.Equal(t, 40, updated.Progress)

	_, ok = s.Update("missing", func(j *models.Job) {})
	assert.False(t, ok)
}

func TestMarkProcessing(t *testing.T) {
	s, _ := newTestStore(t)
	require.NoError(t, s.Insert(testJob("a", models.JobStatusQueued), 10))

	assert.True(t, s.MarkProcessing("a"))
	// Reservation is single-shot.
	assert.False(t, s.MarkProcessing("a"))
	assert.False(t, s.MarkProcessing("missing"))

	got, _ := s.Get("a")
	assert.Equal(t, models.JobStatusProcessing, got.Status)
	assert.Equal(t, 1, s.CountProcessing())
}

func TestStats(t *testing.T) {
	s, _ := newTestStore(t)
	require.NoError(t, s.Insert(testJob("q", models.JobStatusQueued), 10))
	require.NoError(t, s.Insert(testJob("p", models.JobStatusProcessing), 10))
	require.NoError(t, s.Insert(testJob("c", models.JobStatusCompleted), 10))
	require.NoError(t, s.Insert(testJob("f", models.JobStatusFailed), 10))
	require.NoError(t, s.Insert(testJob("x", models.JobStatusCancelled), 10))

	stats := s.Stats()
	assert.Equal(t, models.QueueStats{Total: 5, Queued: 1, Processing: 1, Completed: 1, Failed: 1, Cancelled: 1}, stats)
}

func TestCleanupOlderThan(t *testing.T) {
	current := time.Now()
	clock := func() time.Time { return current }
	s, _ := newTestStore(t, WithClock(clock))

	require.NoError(t, s.Insert(testJob("old-done", models.JobStatusCompleted), 10))
	require.NoError(t, s.Insert(testJob("old-queued", models.JobStatusQueued), 10))

	// Age both records by advancing the clock, then add a fresh one.
	current = current.Add(48 * time.Hour)
	require.NoError(t, s.Insert(testJob("new-done", models.JobStatusCompleted), 10))

	removed := s.CleanupOlderThan(24 * time.Hour)
	assert.Equal(t, 1, removed)

	_, ok := s.Get("old-done")
	assert.False(t, ok, "expired terminal job should be removed")
	_, ok = s.Get("old-queued")
	assert.True(t, ok, "queued jobs are never cleaned up")
	_, ok = s.Get("new-done")
	assert.True(t, ok, "fresh terminal job stays")
}

func TestDebouncedFlush(t *testing.T) {
	s, path := newTestStore(t, WithFlushDelay(10*time.Millisecond))

	require.NoError(t, s.Insert(testJob("a", models.JobStatusQueued), 10))

	require.Eventually(t, func() bool {
		_, err := os.Stat(path)
		return err == nil
	}, 2*time.Second, 5*time.Millisecond, "snapshot should appear after the debounce window")

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var records []*models.Job
	require.NoError(t, json.Unmarshal(data, &records))
	require.Len(t, records, 1)
	assert.Equal(t, "a", records[0].Key)
}

func TestCloseFlushes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jobs.json")
	s := New(path, arbor.NewLogger())

	require.NoError(t, s.Insert(testJob("a", models.JobStatusQueued), 10))
	require.NoError(t, s.Close())

	_, err := os.Stat(path)
	assert.NoError(t, err, "Close must write the snapshot even before the debounce fires")
}

func TestReloadRecoversProcessingJobs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jobs.json")

	s := New(path, arbor.NewLogger())
	require.NoError(t, s.Insert(testJob("interrupted", models.JobStatusQueued), 10))
	require.True(t, s.MarkProcessing("interrupted"))
	_, ok := s.Update("interrupted", func(j *models.Job) { j.Progress = 60 })
	require.True(t, ok)
	require.NoError(t, s.Insert(testJob("finished", models.JobStatusCompleted), 10))
	require.NoError(t, s.Close())

	// Simulates a crash-restart: the snapshot is reloaded from disk.
	reopened := New(path, arbor.NewLogger())
	defer reopened.Close()

	job, ok := reopened.Get("interrupted")
	require.True(t, ok)
	assert.Equal(t, models.JobStatusQueued, job.Status, "interrupted job rewinds to queued")
	assert.Equal(t, 0, job.Progress)

	done, ok := reopened.Get("finished")
	require.True(t, ok)
	assert.Equal(t, models.JobStatusCompleted, done.Status)
}

func TestCorruptedSnapshotStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jobs.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	s := New(path, arbor.NewLogger())
	defer s.Close()
	assert.Equal(t, 0, s.Count())
}
