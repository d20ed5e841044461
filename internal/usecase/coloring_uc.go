// File: internal/usecase/coloring_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"coloring-page-service/internal/domain"
	"coloring-page-service/internal/domain/model"
	"coloring-page-service/internal/domain/ports/adapter"
	"coloring-page-service/internal/domain/ports/repository"
	"coloring-page-service/internal/infra/logging"
)

// Compile-time check
var _ ColoringUseCase = (*coloringUC)(nil)

type ColoringUseCase interface {
	// Submit validates the upload, records a processing request and schedules its generation.
	Submit(ctx context.Context, up Upload) (*model.ColoringRequest, error)
	Get(ctx context.Context, id int64) (*model.ColoringRequest, error)
	// FailStale marks requests still processing after maxAge as failed.
	FailStale(ctx context.Context, maxAge time.Duration) (int, error)
}

// Upload is one file received from a client.
type Upload struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Dispatcher runs tasks in the background. worker.Pool satisfies it.
type Dispatcher interface {
	Submit(ctx context.Context, task func(ctx context.Context) error) error
}

// JobRunner builds the background task for one generation job.
type JobRunner interface {
	Task(job model.GenerationJob) func(ctx context.Context) error
}

const staleReason = "generation did not finish in time"

type coloringUC struct {
	repo       repository.ColoringRequestRepository
	normalizer adapter.ImageNormalizer
	dispatcher Dispatcher
	runner     JobRunner
	log        *zerolog.Logger
}

func NewColoringUseCase(
	repo repository.ColoringRequestRepository,
	normalizer adapter.ImageNormalizer,
	dispatcher Dispatcher,
	runner JobRunner,
	logger *zerolog.Logger,
) *coloringUC {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &coloringUC{repo: repo, normalizer: normalizer, dispatcher: dispatcher, runner: runner, log: logger}
}

func (c *coloringUC) Submit(ctx context.Context, up Upload) (*model.ColoringRequest, error) {
	log := logging.With(ctx, c.log)
	defer logging.TraceDuration(log, "ColoringUC.Submit")()

	if len(up.Data) == 0 {
		return nil, domain.ErrNoImage
	}
	mimeType, err := c.normalizer.Detect(up.Data)
	if err != nil {
		return nil, err
	}

	rec, err := c.repo.Create(ctx, model.NewColoringRequest(adapter.DataURI(mimeType, up.Data)))
	if err != nil {
		return nil, fmt.Errorf("create coloring request: %w", err)
	}

	job := model.GenerationJob{
		RequestID: rec.ID,
		Image:     up.Data,
		Filename:  up.Filename,
		MimeType:  mimeType,
	}
	if err := c.dispatcher.Submit(ctx, c.runner.Task(job)); err != nil {
		// never leave an unscheduled record in processing
		if _, uerr := c.repo.Update(context.WithoutCancel(ctx), rec.ID, model.FailedPatch("could not schedule generation: "+err.Error())); uerr != nil {
			log.Error().Err(uerr).Int64("job_id", rec.ID).Msg("failed to mark unscheduled request failed")
		}
		log.Warn().Err(err).Int64("job_id", rec.ID).Msg("generation queue rejected job")
		return nil, fmt.Errorf("%w: %v", domain.ErrBusy, err)
	}

	log.Info().Int64("job_id", rec.ID).Str("mime", mimeType).Int("bytes", len(up.Data)).Msg("coloring request accepted")
	return rec, nil
}

func (c *coloringUC) Get(ctx context.Context, id int64) (*model.ColoringRequest, error) {
	if id <= 0 {
		return nil, domain.ErrInvalidArgument
	}
	return c.repo.FindByID(ctx, id)
}

func (c *coloringUC) FailStale(ctx context.Context, maxAge time.Duration) (int, error) {
	stale, err := c.repo.ListStale(ctx, time.Now().Add(-maxAge))
	if err != nil {
		return 0, err
	}
	n := 0
	for _, r := range stale {
		if _, err := c.repo.Update(ctx, r.ID, model.FailedPatch(staleReason)); err != nil {
			// finished between list and update
			if errors.Is(err, domain.ErrInvalidTransition) {
				continue
			}
			return n, err
		}
		n++
	}
	return n, nil
}
