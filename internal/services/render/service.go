// -----------------------------------------------------------------------
// Render Service - validated submission facade over the per-kind queues
// -----------------------------------------------------------------------

package render

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/folio/internal/common"
	"github.com/ternarybob/folio/internal/interfaces"
	"github.com/ternarybob/folio/internal/models"
)

// mimeTypes maps artifact extensions to download content types.
var mimeTypes = map[string]string{
	".pdf":  "application/pdf",
	".png":  "image/png",
	".jpeg": "image/jpeg",
	".jpg":  "image/jpeg",
}

// Subsystem bundles the store and scheduler of one render kind.
type Subsystem struct {
	Store     interfaces.JobStore
	Scheduler interfaces.Scheduler
}

// Service validates submissions, applies source safety checks, and routes
// every operation to the subsystem of the requested kind.
type Service struct {
	subsystems   map[models.JobKind]*Subsystem
	sanitizer    interfaces.HTMLSanitizer
	urls         interfaces.URLValidator
	validate     *validator.Validate
	maxQueueSize int
	now          func() time.Time
	logger       arbor.ILogger
}

// NewService creates the facade over the given subsystems.
func NewService(subsystems map[models.JobKind]*Subsystem, sanitizer interfaces.HTMLSanitizer, urls interfaces.URLValidator, maxQueueSize int, logger arbor.ILogger) *Service {
	return &Service{
		subsystems:   subsystems,
		sanitizer:    sanitizer,
		urls:         urls,
		validate:     validator.New(),
		maxQueueSize: maxQueueSize,
		now:          time.Now,
		logger:       logger,
	}
}

// WithClock replaces the time source; used by tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Submit validates, sanitizes and enqueues one render request. A completed
// job under the same key is returned as-is unless reCreate is set, in which
// case the old record and artifact are replaced.
func (s *Service) Submit(kind models.JobKind, req *interfaces.SubmitRequest) (*models.Job, error) {
	sub, err := s.subsystem(kind)
	if err != nil {
		return nil, err
	}
	if err := s.validateRequest(req); err != nil {
		return nil, err
	}

	source := req.Source
	if req.SourceKind.IsHTML() {
		source, err = s.sanitizer.Sanitize(source)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", common.ErrInvalidInput, err)
		}
	} else {
		if err := s.urls.Validate(source); err != nil {
			return nil, err
		}
	}

	if existing, ok := sub.Store.Get(req.Key); ok {
		if req.ReCreate {
			if !sub.Scheduler.Remove(req.Key) {
				return nil, fmt.Errorf("%w: job %q is processing and cannot be replaced", common.ErrDuplicateKey, req.Key)
			}
		} else if existing.Status == models.JobStatusCompleted {
			s.logger.Debug().
				Str("kind", string(kind)).
				Str("key", req.Key).
				Msg("Returning existing completed job")
			return existing, nil
		}
	}

	opts := req.Options
	opts.Normalize()

	now := s.now()
	job := &models.Job{
		Key:        req.Key,
		Kind:       kind,
		SourceKind: req.SourceKind,
		Source:     source,
		Options:    opts,
		Status:     models.JobStatusQueued,
		Progress:   0,
		Priority:   opts.Queue.Priority,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := sub.Store.Insert(job, s.maxQueueSize); err != nil {
		return nil, err
	}
	sub.Scheduler.Trigger()

	s.logger.Info().
		Str("kind", string(kind)).
		Str("key", job.Key).
		Str("source_kind", string(job.SourceKind)).
		Int("priority", job.Priority).
		Msg("Job queued")
	return job.Clone(), nil
}

// GetStatus returns the externally visible view of a job.
func (s *Service) GetStatus(kind models.JobKind, key string) (*models.JobView, error) {
	sub, err := s.subsystem(kind)
	if err != nil {
		return nil, err
	}
	job, ok := sub.Store.Get(key)
	if !ok {
		return nil, fmt.Errorf("%w: job %q", common.ErrNotFound, key)
	}
	return job.View(), nil
}

// Cancel marks a non-terminal job cancelled.
func (s *Service) Cancel(kind models.JobKind, key string) bool {
	sub, err := s.subsystem(kind)
	if err != nil {
		return false
	}
	return sub.Scheduler.Cancel(key)
}

// Remove deletes a non-processing job and its artifact.
func (s *Service) Remove(kind models.JobKind, key string) bool {
	sub, err := s.subsystem(kind)
	if err != nil {
		return false
	}
	return sub.Scheduler.Remove(key)
}

// QueueStats summarizes one kind's queue by status.
func (s *Service) QueueStats(kind models.JobKind) models.QueueStats {
	sub, err := s.subsystem(kind)
	if err != nil {
		return models.QueueStats{}
	}
	return sub.Store.Stats()
}

// OpenArtifact opens a completed job's file for streaming. The caller closes
// the reader.
func (s *Service) OpenArtifact(kind models.JobKind, key string) (*interfaces.Artifact, error) {
	sub, err := s.subsystem(kind)
	if err != nil {
		return nil, err
	}
	job, ok := sub.Store.Get(key)
	if !ok {
		return nil, fmt.Errorf("%w: job %q", common.ErrNotFound, key)
	}
	if job.Status != models.JobStatusCompleted {
		return nil, fmt.Errorf("%w: job %q is %s", common.ErrNotReady, key, job.Status)
	}
	if job.FilePath == "" {
		return nil, fmt.Errorf("%w: job %q has no file recorded", common.ErrArtifactMissing, key)
	}

	f, err := os.Open(job.FilePath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrArtifactMissing, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: %v", common.ErrArtifactMissing, err)
	}

	ext := strings.ToLower(filepath.Ext(job.FilePath))
	mime := mimeTypes[ext]
	if mime == "" {
		mime = "application/octet-stream"
	}

	return &interfaces.Artifact{
		Reader:   f,
		Size:     info.Size(),
		Filename: filepath.Base(job.FilePath),
		MimeType: mime,
	}, nil
}

// CleanupOlderThan removes terminal job records older than age across every
// kind and returns the total removed.
func (s *Service) CleanupOlderThan(age time.Duration) int {
	total := 0
	for kind, sub := range s.subsystems {
		removed := sub.Store.CleanupOlderThan(age)
		if removed > 0 {
			s.logger.Info().
				Str("kind", string(kind)).
				Int("removed", removed).
				Msg("Expired job records removed")
		}
		total += removed
	}
	return total
}

// subsystem resolves the kind or reports an invalid-input error.
func (s *Service) subsystem(kind models.JobKind) (*Subsystem, error) {
	sub, ok := s.subsystems[kind]
	if !ok {
		return nil, fmt.Errorf("%w: unknown render kind %q", common.ErrInvalidInput, kind)
	}
	return sub, nil
}

// validateRequest applies key, source and option validation.
func (s *Service) validateRequest(req *interfaces.SubmitRequest) error {
	if err := models.ValidateKey(req.Key); err != nil {
		return fmt.Errorf("%w: %v", common.ErrInvalidInput, err)
	}
	if !req.SourceKind.Valid() {
		return fmt.Errorf("%w: unknown source kind %q", common.ErrInvalidInput, req.SourceKind)
	}
	if strings.TrimSpace(req.Source) == "" {
		return fmt.Errorf("%w: source is empty", common.ErrInvalidInput)
	}
	if err := s.validate.Struct(&req.Options); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			first := verrs[0]
			return fmt.Errorf("%w: field %s failed %s validation", common.ErrInvalidInput, first.Namespace(), first.Tag())
		}
		return fmt.Errorf("%w: %v", common.ErrInvalidInput, err)
	}
	return nil
}

var _ interfaces.RenderService = (*Service)(nil)
