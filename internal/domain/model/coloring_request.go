package model

import (
	"time"

	"coloring-page-service/internal/domain"
)

type ColoringStatus string

const (
	ColoringStatusProcessing ColoringStatus = "processing"
	ColoringStatusCompleted  ColoringStatus = "completed"
	ColoringStatusFailed     ColoringStatus = "failed"
)

// Terminal reports whether no further transition is allowed from s.
func (s ColoringStatus) Terminal() bool {
	return s == ColoringStatusCompleted || s == ColoringStatusFailed
}

func (s ColoringStatus) Valid() bool {
	switch s {
	case ColoringStatusProcessing, ColoringStatusCompleted, ColoringStatusFailed:
		return true
	}
	return false
}

// ColoringRequest is one upload and its generated coloring page.
type ColoringRequest struct {
	ID               int64
	OriginalImageURL string
	ColoringPageURL  string
	Status           ColoringStatus
	FailureReason    string
	CreatedAt        time.Time
	// StartedAt is zero while the request waits in the queue.
	StartedAt        time.Time
	UpdatedAt        time.Time
}

// NewColoringRequest returns a record in the processing state. The ID is assigned by the store.
func NewColoringRequest(originalImageURL string) *ColoringRequest {
	now := time.Now()
	return &ColoringRequest{
		OriginalImageURL: originalImageURL,
		Status:           ColoringStatusProcessing,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// ColoringRequestPatch carries the fields a partial update may change. Nil fields are left as is.
type ColoringRequestPatch struct {
	ColoringPageURL *string
	Status          *ColoringStatus
	FailureReason   *string
	StartedAt       *time.Time
}

// StartedPatch records that a worker picked the request up at at.
func StartedPatch(at time.Time) ColoringRequestPatch {
	return ColoringRequestPatch{StartedAt: &at}
}

// CompletedPatch marks a request completed with the given page reference.
func CompletedPatch(pageURL string) ColoringRequestPatch {
	st := ColoringStatusCompleted
	return ColoringRequestPatch{ColoringPageURL: &pageURL, Status: &st}
}

// FailedPatch marks a request failed.
func FailedPatch(reason string) ColoringRequestPatch {
	st := ColoringStatusFailed
	return ColoringRequestPatch{Status: &st, FailureReason: &reason}
}

// Apply merges p into r. Terminal records are immutable and a request can never go back
// to processing.
func (r *ColoringRequest) Apply(p ColoringRequestPatch) error {
	if r.Status.Terminal() {
		return domain.ErrInvalidTransition
	}
	if p.Status != nil {
		if !p.Status.Valid() || *p.Status == ColoringStatusProcessing {
			return domain.ErrInvalidTransition
		}
		r.Status = *p.Status
	}
	if p.ColoringPageURL != nil {
		r.ColoringPageURL = *p.ColoringPageURL
	}
	if p.FailureReason != nil {
		r.FailureReason = *p.FailureReason
	}
	if p.StartedAt != nil && r.StartedAt.IsZero() {
		r.StartedAt = *p.StartedAt
	}
	r.UpdatedAt = time.Now()
	return nil
}

// GenerationJob is the unit of work handed to the generation worker.
type GenerationJob struct {
	RequestID int64
	Image     []byte
	Filename  string
	MimeType  string
}
