package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coloring-page-service/internal/domain"
	"coloring-page-service/internal/domain/model"
)

func TestColoringRequestRepo_CreateAssignsMonotonicIDs(t *testing.T) {
	ctx := context.Background()
	repo := NewColoringRequestRepo()

	first, err := repo.Create(ctx, model.NewColoringRequest("a"))
	require.NoError(t, err)
	second, err := repo.Create(ctx, model.NewColoringRequest("b"))
	require.NoError(t, err)

	assert.Equal(t, int64(1), first.ID)
	assert.Equal(t, int64(2), second.ID)
	assert.Equal(t, model.ColoringStatusProcessing, first.Status)
}

func TestColoringRequestRepo_CreateForcesProcessing(t *testing.T) {
	repo := NewColoringRequestRepo()
	in := &model.ColoringRequest{
		OriginalImageURL: "a",
		ColoringPageURL:  "stale",
		Status:           model.ColoringStatusCompleted,
	}
	got, err := repo.Create(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, model.ColoringStatusProcessing, got.Status)
	assert.Empty(t, got.ColoringPageURL)
}

func TestColoringRequestRepo_FindByID(t *testing.T) {
	ctx := context.Background()
	repo := NewColoringRequestRepo()

	_, err := repo.FindByID(ctx, 42)
	require.ErrorIs(t, err, domain.ErrNotFound)

	created, err := repo.Create(ctx, model.NewColoringRequest("orig"))
	require.NoError(t, err)

	got, err := repo.FindByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "orig", got.OriginalImageURL)

	// callers get copies
	got.Status = model.ColoringStatusFailed
	again, err := repo.FindByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ColoringStatusProcessing, again.Status)
}

func TestColoringRequestRepo_Update(t *testing.T) {
	ctx := context.Background()
	repo := NewColoringRequestRepo()

	_, err := repo.Update(ctx, 7, model.FailedPatch("x"))
	require.ErrorIs(t, err, domain.ErrNotFound)

	created, err := repo.Create(ctx, model.NewColoringRequest("orig"))
	require.NoError(t, err)

	updated, err := repo.Update(ctx, created.ID, model.CompletedPatch("data:image/png;base64,AA"))
	require.NoError(t, err)
	assert.Equal(t, model.ColoringStatusCompleted, updated.Status)
	assert.Equal(t, "orig", updated.OriginalImageURL)

	_, err = repo.Update(ctx, created.ID, model.FailedPatch("late"))
	require.ErrorIs(t, err, domain.ErrInvalidTransition)

	got, err := repo.FindByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ColoringStatusCompleted, got.Status)
	assert.Equal(t, "data:image/png;base64,AA", got.ColoringPageURL)
}

func TestColoringRequestRepo_ConcurrentTerminalUpdatesApplyOnce(t *testing.T) {
	ctx := context.Background()
	repo := NewColoringRequestRepo()
	created, err := repo.Create(ctx, model.NewColoringRequest("orig"))
	require.NoError(t, err)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		applied int
	)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			patch := model.FailedPatch("x")
			if i%2 == 0 {
				patch = model.CompletedPatch("page")
			}
			if _, err := repo.Update(ctx, created.ID, patch); err == nil {
				mu.Lock()
				applied++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 1, applied)
}

func TestColoringRequestRepo_ConcurrentCreatesAreUnique(t *testing.T) {
	ctx := context.Background()
	repo := NewColoringRequestRepo()

	const n = 100
	ids := make(chan int64, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r, err := repo.Create(ctx, model.NewColoringRequest("x"))
			if err == nil {
				ids <- r.ID
			}
		}()
	}
	wg.Wait()
	close(ids)

	seen := map[int64]bool{}
	for id := range ids {
		assert.False(t, seen[id], "duplicate id %d", id)
		seen[id] = true
	}
	assert.Len(t, seen, n)
}

func TestColoringRequestRepo_ListStale(t *testing.T) {
	ctx := context.Background()
	repo := NewColoringRequestRepo()
	hourAgo := time.Now().Add(-time.Hour)

	old := model.NewColoringRequest("old")
	old.CreatedAt = hourAgo
	oldRec, err := repo.Create(ctx, old)
	require.NoError(t, err)
	_, err = repo.Update(ctx, oldRec.ID, model.StartedPatch(hourAgo))
	require.NoError(t, err)

	oldDone := model.NewColoringRequest("old-done")
	oldDone.CreatedAt = hourAgo
	doneRec, err := repo.Create(ctx, oldDone)
	require.NoError(t, err)
	_, err = repo.Update(ctx, doneRec.ID, model.StartedPatch(hourAgo))
	require.NoError(t, err)
	_, err = repo.Update(ctx, doneRec.ID, model.CompletedPatch("page"))
	require.NoError(t, err)

	// created long ago but still queued
	queued := model.NewColoringRequest("queued")
	queued.CreatedAt = hourAgo
	_, err = repo.Create(ctx, queued)
	require.NoError(t, err)

	// old record that only just started
	late := model.NewColoringRequest("late-start")
	late.CreatedAt = hourAgo
	lateRec, err := repo.Create(ctx, late)
	require.NoError(t, err)
	_, err = repo.Update(ctx, lateRec.ID, model.StartedPatch(time.Now()))
	require.NoError(t, err)

	stale, err := repo.ListStale(ctx, time.Now().Add(-time.Minute))
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, oldRec.ID, stale[0].ID)
}

func TestColoringRequestRepo_StartedPatch(t *testing.T) {
	ctx := context.Background()
	repo := NewColoringRequestRepo()
	created, err := repo.Create(ctx, model.NewColoringRequest("orig"))
	require.NoError(t, err)
	assert.True(t, created.StartedAt.IsZero())

	first := time.Now().Add(-time.Second)
	got, err := repo.Update(ctx, created.ID, model.StartedPatch(first))
	require.NoError(t, err)
	assert.Equal(t, model.ColoringStatusProcessing, got.Status)
	assert.True(t, got.StartedAt.Equal(first))

	// the first pickup wins
	got, err = repo.Update(ctx, created.ID, model.StartedPatch(time.Now()))
	require.NoError(t, err)
	assert.True(t, got.StartedAt.Equal(first))

	_, err = repo.Update(ctx, created.ID, model.FailedPatch("reaped"))
	require.NoError(t, err)
	_, err = repo.Update(ctx, created.ID, model.StartedPatch(time.Now()))
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}
