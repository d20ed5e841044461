package memory

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"coloring-page-service/internal/domain"
	"coloring-page-service/internal/domain/model"
	"coloring-page-service/internal/domain/ports/repository"
)

var _ repository.ColoringRequestRepository = (*coloringRequestRepo)(nil)

// entry serializes writes to a single record.
type entry struct {
	mu  sync.Mutex
	rec model.ColoringRequest
}

// coloringRequestRepo is a process-lifetime store. Records are never deleted.
type coloringRequestRepo struct {
	mu      sync.RWMutex
	entries map[int64]*entry
	lastID  atomic.Int64
}

func NewColoringRequestRepo() *coloringRequestRepo {
	return &coloringRequestRepo{entries: make(map[int64]*entry)}
}

func (r *coloringRequestRepo) Create(ctx context.Context, req *model.ColoringRequest) (*model.ColoringRequest, error) {
	if req == nil {
		return nil, domain.ErrInvalidArgument
	}
	now := time.Now()
	rec := *req
	rec.ID = r.lastID.Add(1)
	rec.Status = model.ColoringStatusProcessing
	rec.ColoringPageURL = ""
	rec.FailureReason = ""
	rec.StartedAt = time.Time{}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now

	r.mu.Lock()
	r.entries[rec.ID] = &entry{rec: rec}
	r.mu.Unlock()

	out := rec
	return &out, nil
}

func (r *coloringRequestRepo) FindByID(ctx context.Context, id int64) (*model.ColoringRequest, error) {
	e := r.lookup(id)
	if e == nil {
		return nil, domain.ErrNotFound
	}
	e.mu.Lock()
	out := e.rec
	e.mu.Unlock()
	return &out, nil
}

func (r *coloringRequestRepo) Update(ctx context.Context, id int64, patch model.ColoringRequestPatch) (*model.ColoringRequest, error) {
	e := r.lookup(id)
	if e == nil {
		return nil, domain.ErrNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	next := e.rec
	if err := next.Apply(patch); err != nil {
		return nil, err
	}
	e.rec = next
	out := next
	return &out, nil
}

func (r *coloringRequestRepo) ListStale(ctx context.Context, olderThan time.Time) ([]*model.ColoringRequest, error) {
	r.mu.RLock()
	snapshot := make([]*entry, 0, len(r.entries))
	for _, e := range r.entries {
		snapshot = append(snapshot, e)
	}
	r.mu.RUnlock()

	var out []*model.ColoringRequest
	for _, e := range snapshot {
		e.mu.Lock()
		// queued requests have not started and are never stale
		if e.rec.Status == model.ColoringStatusProcessing && !e.rec.StartedAt.IsZero() && e.rec.StartedAt.Before(olderThan) {
			cp := e.rec
			out = append(out, &cp)
		}
		e.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *coloringRequestRepo) lookup(id int64) *entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.entries[id]
}
