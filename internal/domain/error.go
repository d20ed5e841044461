package domain

import (
	"errors"
	"fmt"
)

var (
	// Client input errors
	ErrNoImage          = errors.New("no image uploaded")
	ErrUnsupportedImage = errors.New("uploaded file is not a supported image")
	ErrImageTooLarge    = errors.New("uploaded image is too large")
	ErrInvalidArgument  = errors.New("invalid argument")

	ErrNotFound          = errors.New("entity not found")
	ErrInvalidTransition = errors.New("invalid status transition")

	// Generation errors; never returned to the uploader, recorded as a failed job.
	ErrEmptyGeneration = errors.New("image generation returned no image")
	ErrNoProvider      = errors.New("no image generation provider configured")

	ErrBusy = errors.New("generation queue is full")
)

// Stages reported by UpstreamError.
const (
	StageNormalize = "normalize"
	StageGenerate  = "generate"
)

// UpstreamError wraps a failure that happened while producing a coloring page.
type UpstreamError struct {
	Stage    string
	Provider string
	Err      error
}

func (e *UpstreamError) Error() string {
	if e.Provider != "" {
		return fmt.Sprintf("%s (%s): %v", e.Stage, e.Provider, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// IsClientError reports whether err should be surfaced to the uploader as a 4xx.
func IsClientError(err error) bool {
	return errors.Is(err, ErrNoImage) ||
		errors.Is(err, ErrUnsupportedImage) ||
		errors.Is(err, ErrImageTooLarge) ||
		errors.Is(err, ErrInvalidArgument)
}
