package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"coloring-page-service/internal/domain"
	"coloring-page-service/internal/domain/model"
	"coloring-page-service/internal/domain/ports/adapter"
	"coloring-page-service/internal/domain/ports/repository"
	"coloring-page-service/internal/infra/logging"
	"coloring-page-service/internal/infra/metrics"
)

// Strategy is the single configured way of turning a photo into a coloring page.
type Strategy struct {
	Provider string
	Model    string
	Prompt   string
	Size     string
	Quality  string
	Timeout  time.Duration
}

type ColoringJobProcessor struct {
	repo       repository.ColoringRequestRepository
	normalizer adapter.ImageNormalizer
	generator  adapter.ImageGenerator
	strategy   Strategy
	log        *zerolog.Logger
}

func NewColoringJobProcessor(
	repo repository.ColoringRequestRepository,
	normalizer adapter.ImageNormalizer,
	generator adapter.ImageGenerator,
	strategy Strategy,
	log *zerolog.Logger,
) *ColoringJobProcessor {
	if strategy.Timeout <= 0 {
		strategy.Timeout = 2 * time.Minute
	}
	if log == nil {
		nop := zerolog.Nop()
		log = &nop
	}
	return &ColoringJobProcessor{
		repo:       repo,
		normalizer: normalizer,
		generator:  generator,
		strategy:   strategy,
		log:        log,
	}
}

// Task wraps job as a pool task.
func (p *ColoringJobProcessor) Task(job model.GenerationJob) Task {
	return func(ctx context.Context) error {
		return p.Process(ctx, job)
	}
}

// Process runs one job to a terminal state. Generation failures are recorded on the
// request and are not returned; only a failed store write is.
func (p *ColoringJobProcessor) Process(ctx context.Context, job model.GenerationJob) error {
	ctx = logging.WithJobID(ctx, job.RequestID)
	log := logging.With(ctx, p.log).With().Str("attempt_id", uuid.NewString()).Logger()

	// the reaper measures age from this mark, not from the upload
	if _, err := p.repo.Update(ctx, job.RequestID, model.StartedPatch(time.Now())); err != nil {
		if errors.Is(err, domain.ErrInvalidTransition) {
			log.Warn().Msg("coloring job already terminal, generation skipped")
			return nil
		}
		return fmt.Errorf("start coloring request %d: %w", job.RequestID, err)
	}
	defer metrics.JobStarted()()

	log.Info().Str("provider", p.strategy.Provider).Str("model", p.strategy.Model).Msg("coloring job started")
	start := time.Now()

	pageURL, jobErr := p.produce(ctx, job)

	patch := model.CompletedPatch(pageURL)
	status := model.ColoringStatusCompleted
	if jobErr != nil {
		patch = model.FailedPatch(jobErr.Error())
		status = model.ColoringStatusFailed
	}

	// the caller's ctx may already be done (timeout, shutdown); the terminal write must still land
	if _, err := p.repo.Update(context.WithoutCancel(ctx), job.RequestID, patch); err != nil {
		if errors.Is(err, domain.ErrInvalidTransition) {
			log.Warn().Str("status", string(status)).Msg("coloring job already terminal, result dropped")
			return nil
		}
		log.Error().Err(err).Msg("failed to store coloring job result")
		return fmt.Errorf("update coloring request %d: %w", job.RequestID, err)
	}

	metrics.IncColoringJob(string(status))
	ev := log.Info()
	if jobErr != nil {
		ev = log.Warn().Err(jobErr)
	}
	ev.Str("status", string(status)).Dur("duration_ms", time.Since(start)).Msg("coloring job finished")
	return nil
}

// produce normalizes and generates under one timeout, so an attempt never outlives it.
func (p *ColoringJobProcessor) produce(ctx context.Context, job model.GenerationJob) (string, error) {
	gctx, cancel := context.WithTimeout(ctx, p.strategy.Timeout)
	defer cancel()

	normStart := time.Now()
	img, err := p.normalizer.Normalize(gctx, job.Image)
	metrics.ObserveNormalize(int(time.Since(normStart) / time.Millisecond))
	if err != nil {
		return "", &domain.UpstreamError{Stage: domain.StageNormalize, Err: err}
	}

	callStart := time.Now()
	out, err := p.generator.GenerateImage(gctx, adapter.GenerateImageRequest{
		Model:    p.strategy.Model,
		Prompt:   p.strategy.Prompt,
		Image:    img.Data,
		MimeType: img.MimeType,
		Size:     p.strategy.Size,
		Quality:  p.strategy.Quality,
	})
	latency := int(time.Since(callStart) / time.Millisecond)
	if err == nil && out.Reference() == "" {
		err = domain.ErrEmptyGeneration
	}
	metrics.ObserveGeneration(p.strategy.Provider, p.strategy.Model, latency, err == nil)
	if err != nil {
		return "", &domain.UpstreamError{Stage: domain.StageGenerate, Provider: p.strategy.Provider, Err: err}
	}
	return out.Reference(), nil
}
