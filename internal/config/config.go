// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type ServerConfig struct {
	Port            int           `yaml:"port" env:"PORT"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	MaxUploadBytes  int64         `yaml:"max_upload_bytes" env:"MAX_UPLOAD_BYTES"`
}

type LogConfig struct {
	Level    string `yaml:"level" env:"LOG_LEVEL"`   // trace|debug|info|warn|error
	Format   string `yaml:"format" env:"LOG_FORMAT"` // json|console
	Sampling bool   `yaml:"sampling"`
}

// GenerationConfig selects one image generation strategy: provider, model and prompt.
type GenerationConfig struct {
	Provider        string        `yaml:"provider" env:"IMAGE_PROVIDER"` // openai|gemini|sketch
	Model           string        `yaml:"model" env:"IMAGE_MODEL"`
	Prompt          string        `yaml:"prompt"`
	Size            string        `yaml:"size"`
	Quality         string        `yaml:"quality"`
	MaxWidth        int           `yaml:"max_width"`
	Timeout         time.Duration `yaml:"timeout"`
	ConcurrentLimit int           `yaml:"concurrent_limit"`

	OpenAIKey     string `yaml:"openai_key" env:"OPENAI_API_KEY"`
	OpenAIOrg     string `yaml:"openai_org" env:"OPENAI_ORG_ID"`
	OpenAIBaseURL string `yaml:"openai_base_url" env:"OPENAI_BASE_URL"`
	GeminiKey     string `yaml:"gemini_key" env:"GEMINI_API_KEY"`
	GeminiURL     string `yaml:"gemini_url" env:"GEMINI_BASE_URL"`
}

type WorkerConfig struct {
	Workers   int `yaml:"workers"`
	QueueSize int `yaml:"queue_size"`
}

type RedisConfig struct {
	URL      string `yaml:"url" env:"REDIS_URL"`
	Password string `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db"`
	// Uploads allowed per client IP per window; 0 disables rate limiting.
	UploadLimit  int           `yaml:"upload_limit"`
	UploadWindow time.Duration `yaml:"upload_window"`
}

type ReaperConfig struct {
	Interval time.Duration `yaml:"interval"`
	MaxAge   time.Duration `yaml:"max_age"`
}

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Log        LogConfig        `yaml:"log"`
	Generation GenerationConfig `yaml:"generation"`
	Worker     WorkerConfig     `yaml:"worker"`
	Redis      RedisConfig      `yaml:"redis"`
	Reaper     ReaperConfig     `yaml:"reaper"`

	Runtime RuntimeConfig `yaml:"-"`
}

const DefaultPrompt = "Create a black and white line drawing for a kids' coloring book " +
	"based on this photo. Keep the details simple and clean using clear " +
	"outlines, but preserve the recognizable features of the people, " +
	"setting, and background elements. Make it child-friendly and suitable " +
	"for coloring, similar to a cartoon or coloring-book page."

// LoadConfig reads the YAML file at path (a missing file yields defaults), applies
// environment overrides and validates the result.
func LoadConfig(path string, dev bool) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	var cfg Config
	b, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("env overrides: %w", err)
	}

	cfg.applyDefaults()
	cfg.Runtime.Dev = dev
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 5000
	}
	if c.Server.ReadTimeout <= 0 {
		c.Server.ReadTimeout = 30 * time.Second
	}
	if c.Server.WriteTimeout <= 0 {
		c.Server.WriteTimeout = 30 * time.Second
	}
	if c.Server.ShutdownTimeout <= 0 {
		c.Server.ShutdownTimeout = 15 * time.Second
	}
	if c.Server.MaxUploadBytes <= 0 {
		c.Server.MaxUploadBytes = 10 << 20
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}

	g := &c.Generation
	g.Provider = strings.ToLower(strings.TrimSpace(g.Provider))
	if g.Provider == "" {
		switch {
		case g.OpenAIKey != "":
			g.Provider = "openai"
		case g.GeminiKey != "":
			g.Provider = "gemini"
		default:
			g.Provider = "sketch"
		}
	}
	if g.Model == "" {
		switch g.Provider {
		case "openai":
			g.Model = "gpt-image-1"
		case "gemini":
			g.Model = "gemini-2.0-flash-preview-image-generation"
		default:
			g.Model = "sketch-v1"
		}
	}
	if strings.TrimSpace(g.Prompt) == "" {
		g.Prompt = DefaultPrompt
	}
	if g.Size == "" {
		g.Size = "1024x1024"
	}
	if g.MaxWidth <= 0 {
		g.MaxWidth = 1024
	}
	if g.Timeout <= 0 {
		g.Timeout = 2 * time.Minute
	}
	if g.ConcurrentLimit <= 0 {
		g.ConcurrentLimit = 4
	}

	if c.Worker.Workers <= 0 {
		c.Worker.Workers = 4
	}
	if c.Worker.QueueSize <= 0 {
		c.Worker.QueueSize = c.Worker.Workers * 4
	}

	if c.Redis.UploadWindow <= 0 {
		c.Redis.UploadWindow = time.Minute
	}

	if c.Reaper.Interval <= 0 {
		c.Reaper.Interval = time.Minute
	}
	if c.Reaper.MaxAge <= 0 {
		c.Reaper.MaxAge = 2 * c.Generation.Timeout
	}
}

func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	switch c.Generation.Provider {
	case "openai":
		if c.Generation.OpenAIKey == "" {
			return errors.New("generation.openai_key (or OPENAI_API_KEY) is required for provider openai")
		}
	case "gemini":
		if c.Generation.GeminiKey == "" {
			return errors.New("generation.gemini_key (or GEMINI_API_KEY) is required for provider gemini")
		}
	case "sketch":
	default:
		return fmt.Errorf("unknown generation.provider %q (valid: openai, gemini, sketch)", c.Generation.Provider)
	}
	// max_age counts from the worker pickup, so it only has to outlast one bounded attempt
	if c.Reaper.MaxAge <= c.Generation.Timeout {
		return fmt.Errorf("reaper.max_age (%s) must be longer than generation.timeout (%s)", c.Reaper.MaxAge, c.Generation.Timeout)
	}
	if c.Redis.UploadLimit < 0 {
		return errors.New("redis.upload_limit must be non-negative")
	}

	validLevels := map[string]bool{"trace": true, "debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Log.Level)] {
		return fmt.Errorf("invalid log level: %s (valid: trace, debug, info, warn, error)", c.Log.Level)
	}
	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[strings.ToLower(c.Log.Format)] {
		return fmt.Errorf("invalid log format: %s (valid: json, console)", c.Log.Format)
	}
	return nil
}
