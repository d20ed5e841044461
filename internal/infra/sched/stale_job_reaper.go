package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"coloring-page-service/internal/infra/metrics"
)

// StaleFailer fails requests left processing for longer than maxAge.
type StaleFailer interface {
	FailStale(ctx context.Context, maxAge time.Duration) (int, error)
}

// StaleJobReaper periodically fails coloring requests that never reached a terminal state.
type StaleJobReaper struct {
	interval time.Duration
	maxAge   time.Duration
	uc       StaleFailer
	log      *zerolog.Logger
}

func NewStaleJobReaper(interval, maxAge time.Duration, uc StaleFailer, logger *zerolog.Logger) *StaleJobReaper {
	if interval <= 0 {
		interval = time.Minute
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	reaperLog := logger.With().Str("component", "StaleJobReaper").Logger()
	return &StaleJobReaper{
		interval: interval,
		maxAge:   maxAge,
		uc:       uc,
		log:      &reaperLog,
	}
}

func (w *StaleJobReaper) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Dur("max_age", w.maxAge).Msg("Starting stale job reaper")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping stale job reaper")
			return ctx.Err()
		case <-ticker.C:
			w.tick(ctx)
		}
	}
}

func (w *StaleJobReaper) tick(ctx context.Context) {
	n, err := w.uc.FailStale(ctx, w.maxAge)
	if err != nil {
		w.log.Error().Err(err).Msg("stale job reaper error")
	}
	if n > 0 {
		metrics.AddReapedJobs(n)
		w.log.Warn().Int("count", n).Msg("stale coloring jobs marked failed")
	}
}
