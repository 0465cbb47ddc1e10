// -----------------------------------------------------------------------
// Render Job - persistent record for one rendering request
// -----------------------------------------------------------------------

package models

import (
	"fmt"
	"regexp"
	"time"
)

// JobKind selects the renderer and the artifact file extension.
type JobKind string

const (
	JobKindPDF        JobKind = "pdf"
	JobKindScreenshot JobKind = "screenshot"
)

// ParseJobKind converts a URL/JSON token into a JobKind.
func ParseJobKind(s string) (JobKind, error) {
	switch JobKind(s) {
	case JobKindPDF:
		return JobKindPDF, nil
	case JobKindScreenshot:
		return JobKindScreenshot, nil
	default:
		return "", fmt.Errorf("unknown job kind: %q", s)
	}
}

// SourceKind describes how the Source payload is interpreted.
type SourceKind string

const (
	SourceInlineHTML   SourceKind = "inline_html"
	SourceRemoteURL    SourceKind = "remote_url"
	SourceUploadedHTML SourceKind = "uploaded_html"
)

// IsHTML reports whether the source payload is raw HTML (inline or uploaded).
func (s SourceKind) IsHTML() bool {
	return s == SourceInlineHTML || s == SourceUploadedHTML
}

// Valid reports whether the source kind is one of the known values.
func (s SourceKind) Valid() bool {
	return s == SourceInlineHTML || s == SourceRemoteURL || s == SourceUploadedHTML
}

// JobStatus is the lifecycle state of a render job.
type JobStatus string

const (
	JobStatusQueued     JobStatus = "queued"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
	JobStatusCancelled  JobStatus = "cancelled"
)

// IsTerminal returns true for statuses that never change again.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusCancelled
}

// keyPattern is the allowed character class for caller-chosen job keys.
// Keys are embedded in artifact filenames, so the class is deliberately narrow.
var keyPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,255}$`)

// ValidateKey checks a requested key against the allowed character class and length.
func ValidateKey(key string) error {
	if key == "" {
		return fmt.Errorf("key is required")
	}
	if !keyPattern.MatchString(key) {
		return fmt.Errorf("key %q must be 1-255 characters of [A-Za-z0-9_-]", key)
	}
	return nil
}

// Job is the central entity: one rendering request and its outcome.
// A job is owned by its store for its entire lifetime; workers and the
// scheduler hold only the key and mutate through the store.
type Job struct {
	Key        string        `json:"key"`
	Kind       JobKind       `json:"kind"`
	SourceKind SourceKind    `json:"sourceKind"`
	Source     string        `json:"source"`
	Options    RenderOptions `json:"options"`

	Status   JobStatus `json:"status"`
	Progress int       `json:"progress"`
	Priority int       `json:"priority"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	FilePath string `json:"filePath,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Clone returns a copy of the job so callers outside the store never alias
// the stored record.
func (j *Job) Clone() *Job {
	c := *j
	return &c
}

// View projects the job into the externally served shape.
func (j *Job) View() *JobView {
	return &JobView{
		Key:       j.Key,
		Status:    j.Status,
		Progress:  j.Progress,
		CreatedAt: j.CreatedAt.Format(time.RFC3339),
		UpdatedAt: j.UpdatedAt.Format(time.RFC3339),
		FilePath:  j.FilePath,
		Error:     j.Error,
	}
}

// JobView is the API-facing projection of a job.
type JobView struct {
	Key       string    `json:"key"`
	Status    JobStatus `json:"status"`
	Progress  int       `json:"progress"`
	CreatedAt string    `json:"createdAt"`
	UpdatedAt string    `json:"updatedAt"`
	FilePath  string    `json:"filePath,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// QueueStats summarizes the store contents for one kind.
type QueueStats struct {
	Total      int `json:"total"`
	Queued     int `json:"queued"`
	Processing int `json:"processing"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
	Cancelled  int `json:"cancelled"`
}
