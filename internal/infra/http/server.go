package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"coloring-page-service/internal/config"
	"coloring-page-service/internal/infra/metrics"
	"coloring-page-service/internal/usecase"
)

type Server struct {
	cfg            config.ServerConfig
	uc             usecase.ColoringUseCase
	limiter        Limiter
	limitCfg       config.RedisConfig
	maxUploadBytes int64
	log            *zerolog.Logger
	server         *http.Server
}

type Option func(*Server)

// WithUploadLimiter enables per-IP upload rate limiting using cfg.UploadLimit and cfg.UploadWindow.
func WithUploadLimiter(l Limiter, cfg config.RedisConfig) Option {
	return func(s *Server) {
		s.limiter = l
		s.limitCfg = cfg
	}
}

func NewServer(cfg config.ServerConfig, uc usecase.ColoringUseCase, logger *zerolog.Logger, opts ...Option) *Server {
	s := &Server{
		cfg:            cfg,
		uc:             uc,
		maxUploadBytes: cfg.MaxUploadBytes,
		log:            logger,
	}
	if s.maxUploadBytes <= 0 {
		s.maxUploadBytes = 10 << 20
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Router builds the HTTP routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(TraceID())
	r.Use(RequestLog(s.log))
	r.Use(Recover(s.log))

	r.Get("/health", handleHealth)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.With(UploadRateLimit(s.limiter, s.limitCfg.UploadLimit, s.limitCfg.UploadWindow, s.log)).
			Post("/generate-coloring-page", s.handleGenerate)
		r.Get("/coloring-request/{id}", s.handleGetRequest)
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "Not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})
	return r
}

// Start blocks serving HTTP until Shutdown is called.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.cfg.Port),
		Handler:      s.Router(),
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	s.log.Info().Int("port", s.cfg.Port).Msg("HTTP server listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}
