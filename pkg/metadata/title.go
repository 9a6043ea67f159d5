package metadata

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
)

const maxScrapeBytes = 1024 * 1024

var titleRe = regexp.MustCompile(`<title>(.*?)(?: - YouTube)?</title>`)

const DefaultBaseURL = "https://www.youtube.com"

// Fetcher looks up public video metadata.
type Fetcher struct {
	Client HTTPClient
	// BaseURL is where oEmbed and watch pages live.
	BaseURL string
}

func NewFetcher(client HTTPClient) *Fetcher {
	return &Fetcher{Client: client, BaseURL: DefaultBaseURL}
}

// VideoTitle tries to get the exact title of the video: fast oEmbed first, then partial HTML parsing.
func (f *Fetcher) VideoTitle(ctx context.Context, videoID string) (string, error) {
	title, err := f.fetchOembedTitle(ctx, videoID)
	if err == nil && title != "" {
		return title, nil
	}
	slog.Debug("oEmbed title failed, falling back to scraping", "vid", videoID, "err", err)
	return f.fetchScrapedTitle(ctx, videoID)
}

func (f *Fetcher) watchURL(videoID string) string {
	return f.BaseURL + "/watch?v=" + url.QueryEscape(videoID)
}

// fetchOembedTitle requests official JSON for iframe-embed video
func (f *Fetcher) fetchOembedTitle(ctx context.Context, videoID string) (string, error) {
	oembedURL := fmt.Sprintf("%s/oembed?url=%s&format=json", f.BaseURL, url.QueryEscape(f.watchURL(videoID)))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, oembedURL, nil)
	if err != nil {
		return "", err
	}
	resp, err := f.Client.Do(req)
	if err != nil {
		return "", err
	}
	defer closeBody(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("oembed status %d", resp.StatusCode)
	}

	var data struct {
		Title string `json:"title"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return "", fmt.Errorf("decode oembed: %w", err)
	}
	return strings.TrimSpace(data.Title), nil
}

// fetchScrapedTitle reads at most the first MiB of the watch page looking for <title>.
func (f *Fetcher) fetchScrapedTitle(ctx context.Context, videoID string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.watchURL(videoID), nil)
	if err != nil {
		return "", err
	}

	resp, err := f.Client.Do(req)
	if err != nil {
		return "", err
	}
	defer closeBody(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("watch page status %d", resp.StatusCode)
	}

	scanner := bufio.NewScanner(io.LimitReader(resp.Body, maxScrapeBytes))
	buf := make([]byte, 64*1024)
	scanner.Buffer(buf, maxScrapeBytes)

	for scanner.Scan() {
		matches := titleRe.FindStringSubmatch(scanner.Text())
		if len(matches) >= 2 {
			if title := strings.TrimSpace(html.UnescapeString(matches[1])); title != "" {
				return title, nil
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("scan watch page: %w", err)
	}

	return "", fmt.Errorf("title not found in first %d bytes", maxScrapeBytes)
}

func closeBody(body io.ReadCloser) {
	if err := body.Close(); err != nil {
		slog.Warn("failed to close response body", "err", err)
	}
}
