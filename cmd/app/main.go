// File: cmd/app/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"coloring-page-service/internal/config"
	"coloring-page-service/internal/domain/ports/adapter"
	aiAdapters "coloring-page-service/internal/infra/adapters/ai"
	"coloring-page-service/internal/infra/db/memory"
	httpapi "coloring-page-service/internal/infra/http"
	"coloring-page-service/internal/infra/imageproc"
	"coloring-page-service/internal/infra/logging"
	"coloring-page-service/internal/infra/metrics"
	red "coloring-page-service/internal/infra/redis"
	"coloring-page-service/internal/infra/sched"
	"coloring-page-service/internal/infra/worker"
	"coloring-page-service/internal/usecase"
)

// set with -ldflags "-X main.version=... -X main.commit=..."
var (
	version = "dev"
	commit  = "none"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (console logs, no sampling)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		// logger is not configured yet
		boot := logging.New(config.LogConfig{Level: "info", Format: "console"}, true)
		boot.Fatal().Err(err).Str("path", *cfgPath).Msg("config")
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Info().Msg("[DEV MODE] Enabled")
	}

	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)

	// ---- Store ----
	repo := memory.NewColoringRequestRepo()

	// ---- Image generation (one configured strategy) ----
	providers := map[string]adapter.ImageGenerator{
		"sketch": aiAdapters.NewSketchAdapter(),
	}
	g := cfg.Generation
	if g.OpenAIKey != "" {
		oa, err := aiAdapters.NewOpenAIAdapter(g.OpenAIKey, g.OpenAIOrg, g.OpenAIBaseURL, modelFor(g, "openai"))
		if err != nil {
			logger.Fatal().Err(err).Msg("openai adapter")
		}
		providers["openai"] = oa
	}
	if g.GeminiKey != "" {
		gm, err := aiAdapters.NewGeminiAdapter(ctx, g.GeminiKey, g.GeminiURL, modelFor(g, "gemini"))
		if err != nil {
			logger.Fatal().Err(err).Msg("gemini adapter")
		}
		providers["gemini"] = gm
	}
	multi := aiAdapters.NewMultiImageAdapter(g.Provider, providers, nil)
	generator := aiAdapters.NewLimitedGenerator(multi, g.ConcurrentLimit)
	logger.Info().
		Str("provider", g.Provider).
		Str("routed_to", multi.Provider(g.Model)).
		Str("model", g.Model).
		Dur("timeout", g.Timeout).
		Msg("image generation configured")

	normalizer := imageproc.NewNormalizer(g.MaxWidth)

	// ---- Worker pool + processor ----
	pool := worker.NewPool(cfg.Worker.Workers, cfg.Worker.QueueSize, logger)
	processor := worker.NewColoringJobProcessor(repo, normalizer, generator, worker.Strategy{
		Provider: g.Provider,
		Model:    g.Model,
		Prompt:   g.Prompt,
		Size:     g.Size,
		Quality:  g.Quality,
		Timeout:  g.Timeout,
	}, logger)

	coloringUC := usecase.NewColoringUseCase(repo, normalizer, pool, processor, logger)

	// ---- Optional redis rate limiting ----
	var opts []httpapi.Option
	if cfg.Redis.URL != "" && cfg.Redis.UploadLimit > 0 {
		redisClient, err := red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis")
		}
		defer redisClient.Close()
		opts = append(opts, httpapi.WithUploadLimiter(red.NewRateLimiter(redisClient), cfg.Redis))
		logger.Info().Int("limit", cfg.Redis.UploadLimit).Dur("window", cfg.Redis.UploadWindow).Msg("upload rate limiting enabled")
	}

	srv := httpapi.NewServer(cfg.Server, coloringUC, logger, opts...)
	reaper := sched.NewStaleJobReaper(cfg.Reaper.Interval, cfg.Reaper.MaxAge, coloringUC, logger)

	// ---- Run ----
	// jobs outlive the signal; the pool is stopped after the server has drained
	pool.Start(context.WithoutCancel(ctx))
	grp, gctx := errgroup.WithContext(ctx)
	grp.Go(srv.Start)
	grp.Go(func() error {
		if err := reaper.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	grp.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("shutdown requested")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := grp.Wait(); err != nil {
		logger.Error().Err(err).Msg("server stopped with error")
	}
	logger.Info().Int("queued", pool.Pending()).Msg("waiting for coloring jobs")
	pool.Stop()
	logger.Info().Msg("bye")
}

// modelFor returns the configured model when it belongs to provider, otherwise "" so the
// adapter falls back to its own default.
func modelFor(g config.GenerationConfig, provider string) string {
	if g.Provider == provider {
		return g.Model
	}
	return ""
}
