package utils

import (
	"regexp"
	"strings"
)

var (
	videoIDRe     = regexp.MustCompile(`(?:https?://)?(?:www\.|m\.|music\.)?(?:youtube|youtu|youtube-nocookie)\.(?:com|be)/(?:watch\?v=|embed/|v/|live/|.+\?v=|shorts/)?([a-zA-Z0-9_-]{11})`)
	bareVideoIDRe = regexp.MustCompile(`^[a-zA-Z0-9_-]{11}$`)
)

// hostTokens are the substrings that make an input look like a YouTube link.
var hostTokens = []string{"youtube.com", "youtu.be"}

// LooksLikeYouTubeURL is a shallow check that only rejects obviously wrong input.
// It does not parse the URL: "youtube.com" anywhere in the string is enough.
func LooksLikeYouTubeURL(input string) bool {
	s := strings.ToLower(strings.TrimSpace(input))
	if s == "" {
		return false
	}
	for _, token := range hostTokens {
		if strings.Contains(s, token) {
			return true
		}
	}
	return false
}

func ExtractVideoID(input string) string {
	input = strings.TrimSpace(input)

	matches := videoIDRe.FindStringSubmatch(input)
	if len(matches) >= 2 {
		return matches[1]
	}

	if bareVideoIDRe.MatchString(input) {
		return input
	}

	return ""
}
