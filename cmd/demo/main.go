// Command demo runs one local photo through the coloring pipeline and writes the result.
//
//	go run ./cmd/demo -in photo.jpg -out page.png
//
// Without provider keys the offline sketch provider is used.
package main

import (
	"context"
	"encoding/base64"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"coloring-page-service/internal/config"
	"coloring-page-service/internal/domain/model"
	"coloring-page-service/internal/domain/ports/adapter"
	aiAdapters "coloring-page-service/internal/infra/adapters/ai"
	"coloring-page-service/internal/infra/db/memory"
	"coloring-page-service/internal/infra/imageproc"
	"coloring-page-service/internal/infra/logging"
	"coloring-page-service/internal/infra/worker"
	"coloring-page-service/internal/usecase"
)

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	in := flag.String("in", "", "input photo")
	out := flag.String("out", "coloring-page.png", "where to write the coloring page")
	flag.Parse()

	boot := logging.New(config.LogConfig{Level: "info", Format: "console"}, true)
	if *in == "" {
		boot.Fatal().Msg("-in is required")
	}

	cfg, err := config.LoadConfig(*cfgPath, true)
	if err != nil {
		boot.Fatal().Err(err).Msg("config")
	}
	logger := logging.New(cfg.Log, true)

	data, err := os.ReadFile(*in)
	if err != nil {
		logger.Fatal().Err(err).Msg("read input")
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Generation.Timeout+10*time.Second)
	defer cancel()

	gen, err := buildGenerator(ctx, cfg.Generation)
	if err != nil {
		logger.Fatal().Err(err).Msg("generator")
	}

	repo := memory.NewColoringRequestRepo()
	norm := imageproc.NewNormalizer(cfg.Generation.MaxWidth)
	proc := worker.NewColoringJobProcessor(repo, norm, gen, worker.Strategy{
		Provider: cfg.Generation.Provider,
		Model:    cfg.Generation.Model,
		Prompt:   cfg.Generation.Prompt,
		Size:     cfg.Generation.Size,
		Quality:  cfg.Generation.Quality,
		Timeout:  cfg.Generation.Timeout,
	}, logger)
	pool := worker.NewPool(1, 1, logger)
	pool.Start(ctx)
	defer pool.Stop()

	uc := usecase.NewColoringUseCase(repo, norm, pool, proc, logger)
	rec, err := uc.Submit(ctx, usecase.Upload{Filename: filepath.Base(*in), Data: data})
	if err != nil {
		logger.Fatal().Err(err).Msg("submit")
	}
	logger.Info().Int64("id", rec.ID).Str("provider", cfg.Generation.Provider).Msg("submitted, polling")

	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()
	for !rec.Status.Terminal() {
		select {
		case <-ctx.Done():
			logger.Fatal().Err(ctx.Err()).Msg("gave up waiting")
		case <-ticker.C:
		}
		if rec, err = uc.Get(ctx, rec.ID); err != nil {
			logger.Fatal().Err(err).Msg("poll")
		}
	}

	if rec.Status == model.ColoringStatusFailed {
		logger.Fatal().Str("reason", rec.FailureReason).Msg("generation failed")
	}
	if err := writePage(rec.ColoringPageURL, *out); err != nil {
		logger.Fatal().Err(err).Msg("write output")
	}
	logger.Info().Str("out", *out).Msg("done")
}

func buildGenerator(ctx context.Context, g config.GenerationConfig) (adapter.ImageGenerator, error) {
	switch g.Provider {
	case "openai":
		return aiAdapters.NewOpenAIAdapter(g.OpenAIKey, g.OpenAIOrg, g.OpenAIBaseURL, g.Model)
	case "gemini":
		return aiAdapters.NewGeminiAdapter(ctx, g.GeminiKey, g.GeminiURL, g.Model)
	default:
		return aiAdapters.NewSketchAdapter(), nil
	}
}

// writePage stores an inline data URI at path; hosted URLs are printed instead.
func writePage(ref, path string) error {
	if !strings.HasPrefix(ref, "data:") {
		fmt.Println(ref)
		return nil
	}
	_, payload, ok := strings.Cut(ref, ";base64,")
	if !ok {
		return fmt.Errorf("unexpected page reference %.32q", ref)
	}
	b, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}
