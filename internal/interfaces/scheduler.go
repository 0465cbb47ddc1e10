package interfaces

import "github.com/ternarybob/folio/internal/models"

// JobRunner executes one selected job to a terminal outcome. The scheduler
// reserves the processing slot before invoking the runner.
type JobRunner interface {
	Run(job *models.Job)
}

// Scheduler selects the next runnable job, enforces the per-kind concurrency
// ceiling, and owns the process signal.
type Scheduler interface {
	// Start launches the selection loop.
	Start()

	// Stop terminates the selection loop; running workers finish on their own.
	Stop()

	// Trigger requests a selection pass. Invocations coalesce: if a pass is
	// already pending, Trigger is a no-op.
	Trigger()

	// Cancel marks a job cancelled unless it is already terminal. A running
	// worker observes the change at its next checkpoint.
	Cancel(key string) bool

	// Remove deletes the job record and its artifact file. Removal is
	// refused while the job is processing.
	Remove(key string) bool
}
