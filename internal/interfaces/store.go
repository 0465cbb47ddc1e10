package interfaces

import (
	"time"

	"github.com/ternarybob/folio/internal/models"
)

// JobStore is the single source of truth for the set of known jobs of one
// render kind. Every operation is atomic with respect to every other store
// operation; returned jobs are copies and never alias the stored record.
type JobStore interface {
	// Put inserts or replaces a job record and bumps UpdatedAt.
	Put(job *models.Job)

	// Insert adds a new job record atomically. It fails with ErrDuplicateKey
	// when the key is taken and ErrQueueFull when the store holds capacity
	// records (terminal ones included).
	Insert(job *models.Job, capacity int) error

	// Get returns a copy of the job, or false when the key is unknown.
	Get(key string) (*models.Job, bool)

	// Delete removes the record. Returns false when the key is unknown.
	Delete(key string) bool

	// List returns copies of every job, in no particular order.
	List() []*models.Job

	// Update applies the mutator to the stored job under the store lock and
	// bumps UpdatedAt. Returns a copy of the result, or false when the key
	// is unknown.
	Update(key string, mutate func(*models.Job)) (*models.Job, bool)

	// MarkProcessing atomically moves a job from queued to processing.
	// Returns false when the job is missing or not queued (reservation lost).
	MarkProcessing(key string) bool

	// Count returns the number of records, terminal ones included.
	Count() int

	// CountProcessing returns the number of jobs currently processing.
	CountProcessing() int

	// Stats summarizes the store by status.
	Stats() models.QueueStats

	// CleanupOlderThan deletes terminal jobs whose UpdatedAt is older than
	// the given age and returns the count deleted. Artifact files are not
	// touched.
	CleanupOlderThan(age time.Duration) int

	// Flush forces a synchronous snapshot write, superseding any pending
	// debounced flush.
	Flush() error

	// Close flushes and stops the debounce timer.
	Close() error
}
