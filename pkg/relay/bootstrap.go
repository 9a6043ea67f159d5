package relay

import (
	"fmt"
	"log/slog"

	"github.com/imbecility/yt-summary/pkg/client"
	"github.com/imbecility/yt-summary/pkg/config"
	"github.com/imbecility/yt-summary/pkg/logger"
	"github.com/imbecility/yt-summary/pkg/metadata"
	"github.com/imbecility/yt-summary/pkg/pool"
	"github.com/imbecility/yt-summary/pkg/runner"
)

// New creates a ready-to-use Service from a validated config.
func New(cfg config.Config) (*Service, error) {
	// Setup the logger (globally)
	logger.SetupGlobal(cfg.Debug, cfg.LogFormat)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	r := &runner.Runner{
		Command: cfg.SummarizerCommand,
		Args:    cfg.SummarizerArgs,
		Dir:     cfg.SummarizerDir,
		Env:     cfg.SummarizerEnv,
		Timeout: cfg.SummarizerTimeout,
	}

	// The interpreter may show up later (e.g. a virtualenv mounted after start), so only warn.
	if path, err := r.Check(); err != nil {
		slog.Warn("Summarizer check failed, requests will fail until it is fixed", "err", err)
	} else {
		slog.Info("Summarizer found", "path", path, "args", cfg.SummarizerArgs)
	}

	p := pool.New(cfg.MaxConcurrent, cfg.MaxQueue, cfg.QueueTimeout)

	var titles TitleFetcher
	if cfg.FetchMetadata {
		httpClient, err := client.NewHttpClient(defaultMetadataTimeout)
		if err != nil {
			return nil, fmt.Errorf("failed to init http client: %w", err)
		}
		titles = metadata.NewFetcher(httpClient)
	}

	slog.Info("Relay configured",
		"max_concurrent", cfg.MaxConcurrent,
		"max_queue", cfg.MaxQueue,
		"queue_timeout", cfg.QueueTimeout,
		"timeout", cfg.SummarizerTimeout,
		"metadata", cfg.FetchMetadata)

	return NewService(r, p, titles), nil
}
