package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/imbecility/yt-summary/pkg/api"
	"github.com/imbecility/yt-summary/pkg/config"
	"github.com/imbecility/yt-summary/pkg/relay"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		reportStartup(os.Stderr, "Configuration", err)
		os.Exit(1)
	}

	urlFlag := flag.String("url", "", "Summarize one YouTube URL and print the JSON result")
	portFlag := flag.Int("port", cfg.Port, "Port for API server")
	originFlag := flag.String("origin", cfg.AllowedOrigin, "Origin allowed to call the API from a browser")
	timeoutFlag := flag.Duration("timeout", cfg.SummarizerTimeout, "Max time for one summarizer run")
	debugFlag := flag.Bool("debug", cfg.Debug, "Enable debug logging")
	webMode := flag.Bool("onweb", cfg.WebUI, "Enable simple Web UI")
	metaFlag := flag.Bool("metadata", cfg.FetchMetadata, "Add video title to results")

	flag.Parse()

	cfg.Port = *portFlag
	cfg.AllowedOrigin = *originFlag
	cfg.SummarizerTimeout = *timeoutFlag
	cfg.Debug = *debugFlag
	cfg.WebUI = *webMode
	cfg.FetchMetadata = *metaFlag

	svc, err := relay.New(cfg)
	if err != nil {
		reportStartup(os.Stderr, "Initialization", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// CLI
	if *urlFlag != "" {
		code := runOnce(ctx, os.Stdout, svc, *urlFlag)
		stop()
		os.Exit(code)
	}

	// API Server
	srv := &api.Server{
		Port:          cfg.Port,
		AllowedOrigin: cfg.AllowedOrigin,
		EnableWeb:     cfg.WebUI,
		Relay:         svc,
	}

	start := time.Now()
	if err := srv.Start(ctx); err != nil {
		slog.Error("Server crashed", "err", err)
		stop()
		os.Exit(1)
	}
	slog.Info("Exiting...", "uptimeSeconds", time.Since(start).Seconds())
}

// reportStartup prints a failure that happened before logging was set up.
// Stdout stays reserved for the -url result.
func reportStartup(w io.Writer, stage string, err error) {
	fmt.Fprintf(w, "%s failed: %v\n", stage, err)
}

// runOnce summarizes one URL, writes the indented JSON result to w and
// returns the process exit code.
func runOnce(ctx context.Context, w io.Writer, svc api.Summarizer, videoURL string) int {
	slog.Info("Processing video via CLI", "url", videoURL)

	res, err := svc.Summarize(ctx, videoURL)
	if err != nil {
		slog.Error("Failed to summarize video", "err", err)
		return 1
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		slog.Error("Failed to write result", "err", err)
		return 1
	}
	return 0
}
