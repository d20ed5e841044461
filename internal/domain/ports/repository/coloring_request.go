package repository

import (
	"context"
	"time"

	"coloring-page-service/internal/domain/model"
)

type ColoringRequestRepository interface {
	// Create assigns a fresh ID and stores req with status forced to processing.
	Create(ctx context.Context, req *model.ColoringRequest) (*model.ColoringRequest, error)
	FindByID(ctx context.Context, id int64) (*model.ColoringRequest, error)
	// Update merges patch into the stored record; domain.ErrNotFound when id is unknown.
	Update(ctx context.Context, id int64, patch model.ColoringRequestPatch) (*model.ColoringRequest, error)
	// ListStale returns processing records a worker started before olderThan.
	ListStale(ctx context.Context, olderThan time.Time) ([]*model.ColoringRequest, error)
}
