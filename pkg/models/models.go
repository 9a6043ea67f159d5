package models

// SummarizeRequest is the body of POST /summarize.
type SummarizeRequest struct {
	URL string `json:"url"`
}

// SummarizeResult is the success schema owned by the relay.
type SummarizeResult struct {
	Summary string `json:"summary"`
	// VideoID and Title are only filled when metadata fetching is enabled.
	VideoID string `json:"video_id,omitempty"`
	Title   string `json:"title,omitempty"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

// SummarizerOutput is what the external summarizer prints to stdout.
// Summary is a pointer so a missing field can be told apart from an empty one.
type SummarizerOutput struct {
	Summary *string `json:"summary"`
	Error   string  `json:"error"`
}
