package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is built once at startup and handed to the relay and the API server by value.
type Config struct {
	// Port is the HTTP listen port.
	Port int `env:"PORT" envDefault:"5000"`
	// AllowedOrigin is the single origin allowed to call the API from a browser ("*" allows any).
	AllowedOrigin string `env:"ALLOWED_ORIGIN" envDefault:"http://localhost:3000"`

	// SummarizerCommand is the executable of the external summarizer.
	SummarizerCommand string `env:"SUMMARIZER_COMMAND" envDefault:"python3"`
	// SummarizerArgs go before the video URL, which is always the last argument.
	SummarizerArgs []string `env:"SUMMARIZER_ARGS" envDefault:"python-summarizer/summarize.py"`
	// SummarizerDir is the working directory of the process (empty inherits ours).
	SummarizerDir string `env:"SUMMARIZER_DIR"`
	// SummarizerEnv holds extra KEY=VALUE pairs appended to the inherited environment.
	SummarizerEnv []string `env:"SUMMARIZER_ENV"`
	// SummarizerTimeout bounds a single process run.
	SummarizerTimeout time.Duration `env:"SUMMARIZER_TIMEOUT" envDefault:"5m"`

	// MaxConcurrent is the number of summarizer processes allowed to run at once.
	MaxConcurrent int `env:"MAX_CONCURRENT" envDefault:"2"`
	// MaxQueue is how many requests may wait for a free slot before new ones are rejected.
	MaxQueue int `env:"MAX_QUEUE" envDefault:"8"`
	// QueueTimeout bounds the wait for a free slot.
	QueueTimeout time.Duration `env:"QUEUE_TIMEOUT" envDefault:"30s"`

	// FetchMetadata adds video_id and title to successful results.
	FetchMetadata bool `env:"FETCH_METADATA"`
	// WebUI serves the bundled HTML page on "/".
	WebUI bool `env:"WEB_UI"`

	Debug     bool   `env:"DEBUG"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`
}

func Load() (Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// Validate reports every invalid field at once.
func (c Config) Validate() error {
	var errs []error

	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	if strings.TrimSpace(c.SummarizerCommand) == "" {
		errs = append(errs, errors.New("summarizer command is empty"))
	}
	if c.SummarizerTimeout <= 0 {
		errs = append(errs, fmt.Errorf("summarizer timeout must be positive, got %s", c.SummarizerTimeout))
	}
	if c.MaxConcurrent < 1 {
		errs = append(errs, fmt.Errorf("max concurrent must be at least 1, got %d", c.MaxConcurrent))
	}
	if c.MaxQueue < 0 {
		errs = append(errs, fmt.Errorf("max queue must not be negative, got %d", c.MaxQueue))
	}
	if c.QueueTimeout < 0 {
		errs = append(errs, fmt.Errorf("queue timeout must not be negative, got %s", c.QueueTimeout))
	}
	for _, kv := range c.SummarizerEnv {
		if !strings.Contains(kv, "=") {
			errs = append(errs, fmt.Errorf("summarizer env entry %q is not KEY=VALUE", kv))
		}
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("unknown log format %q", c.LogFormat))
	}

	return errors.Join(errs...)
}
