package common

import "errors"

// Error kinds surfaced by the render core. Handlers map these onto HTTP
// status codes; everything else is an internal error.
var (
	ErrInvalidInput    = errors.New("invalid input")
	ErrUnsafeSource    = errors.New("unsafe source")
	ErrDuplicateKey    = errors.New("duplicate key")
	ErrQueueFull       = errors.New("queue full")
	ErrNotFound        = errors.New("not found")
	ErrNotReady        = errors.New("not ready")
	ErrArtifactMissing = errors.New("artifact missing")
	ErrRenderFailed    = errors.New("render failed")
	ErrCancelled       = errors.New("cancelled")
	ErrTimedOut        = errors.New("timed out")
)
