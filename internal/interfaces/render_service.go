package interfaces

import (
	"io"
	"time"

	"github.com/ternarybob/folio/internal/models"
)

// SubmitRequest carries one rendering submission.
type SubmitRequest struct {
	Key        string               `json:"key"`
	SourceKind models.SourceKind    `json:"sourceKind"`
	Source     string               `json:"source"`
	Options    models.RenderOptions `json:"options"`
	ReCreate   bool                 `json:"reCreate"`
}

// Artifact is a handle over a completed job's file, open for streaming.
type Artifact struct {
	Reader   io.ReadCloser
	Size     int64
	Filename string
	MimeType string
}

// RenderService is the core's external surface: submit, query, cancel,
// remove and download, per render kind.
type RenderService interface {
	Submit(kind models.JobKind, req *SubmitRequest) (*models.Job, error)
	GetStatus(kind models.JobKind, key string) (*models.JobView, error)
	Cancel(kind models.JobKind, key string) bool
	Remove(kind models.JobKind, key string) bool
	QueueStats(kind models.JobKind) models.QueueStats
	OpenArtifact(kind models.JobKind, key string) (*Artifact, error)
	CleanupOlderThan(age time.Duration) int
}

// HTMLSanitizer strips active content from inline and uploaded HTML.
type HTMLSanitizer interface {
	Sanitize(html string) (string, error)
}

// URLValidator rejects remote URLs that the service must not fetch.
type URLValidator interface {
	Validate(rawURL string) error
}
