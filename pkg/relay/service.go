package relay

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/imbecility/yt-summary/pkg/logger"
	"github.com/imbecility/yt-summary/pkg/models"
	"github.com/imbecility/yt-summary/pkg/pool"
	"github.com/imbecility/yt-summary/pkg/utils"
)

// ErrInvalidURL is returned before anything is spawned for input that does
// not look like a YouTube link.
var ErrInvalidURL = errors.New("invalid youtube url")

const (
	defaultMetadataTimeout = 5 * time.Second
	// maxLoggedURLBytes caps how much of a rejected input reaches the log.
	maxLoggedURLBytes = 200
)

// ProcessRunner runs one summarizer process; *runner.Runner implements it.
type ProcessRunner interface {
	Run(ctx context.Context, videoURL string) (*models.SummarizerOutput, error)
}

// TitleFetcher looks up a video title; *metadata.Fetcher implements it.
type TitleFetcher interface {
	VideoTitle(ctx context.Context, videoID string) (string, error)
}

type Service struct {
	Runner ProcessRunner
	Pool   *pool.Pool
	// Titles is optional. When set, results carry video_id and title.
	Titles          TitleFetcher
	MetadataTimeout time.Duration
}

func NewService(r ProcessRunner, p *pool.Pool, titles TitleFetcher) *Service {
	return &Service{
		Runner:          r,
		Pool:            p,
		Titles:          titles,
		MetadataTimeout: defaultMetadataTimeout,
	}
}

// Summarize validates rawURL, runs the summarizer for it inside the pool, and
// maps the output onto the relay's own result schema.
func (s *Service) Summarize(ctx context.Context, rawURL string) (*models.SummarizeResult, error) {
	log := logger.FromContext(ctx)

	videoURL := strings.TrimSpace(rawURL)
	if !utils.LooksLikeYouTubeURL(videoURL) {
		log.Info("Rejected URL", "url", utils.Truncate(videoURL, maxLoggedURLBytes), "len", len(rawURL))
		return nil, ErrInvalidURL
	}

	stats := s.Pool.Stats()
	log.Info("Summarizing", "url", videoURL, "running", stats.Running, "waiting", stats.Waiting)

	var out *models.SummarizerOutput
	err := s.Pool.Do(ctx, func(ctx context.Context) error {
		var runErr error
		out, runErr = s.Runner.Run(ctx, videoURL)
		return runErr
	})
	if err != nil {
		if errors.Is(err, pool.ErrBusy) {
			log.Warn("Summarizer pool is full", "url", videoURL, "size", stats.Size)
		}
		return nil, err
	}

	result := &models.SummarizeResult{Summary: *out.Summary}
	if s.Titles != nil {
		s.addMetadata(ctx, videoURL, result)
	}

	log.Info("Summary ready", "url", videoURL, "summary_len", len(result.Summary))
	return result, nil
}

// addMetadata fills VideoID and Title. Lookup failures only cost the title.
func (s *Service) addMetadata(ctx context.Context, videoURL string, result *models.SummarizeResult) {
	log := logger.FromContext(ctx)

	vidID := utils.ExtractVideoID(videoURL)
	if vidID == "" {
		log.Debug("No video ID in URL, skipping metadata", "url", videoURL)
		return
	}
	result.VideoID = vidID

	timeout := s.MetadataTimeout
	if timeout <= 0 {
		timeout = defaultMetadataTimeout
	}
	metaCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	title, err := s.Titles.VideoTitle(metaCtx, vidID)
	if err != nil {
		log.Warn("Failed to fetch metadata", "vid", vidID, "err", err)
		return
	}
	result.Title = title
}
