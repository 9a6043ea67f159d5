package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/imbecility/yt-summary/pkg/logger"
	"github.com/imbecility/yt-summary/pkg/models"
	"github.com/imbecility/yt-summary/pkg/pool"
	"github.com/imbecility/yt-summary/pkg/relay"
	"github.com/imbecility/yt-summary/pkg/runner"
	"github.com/imbecility/yt-summary/pkg/utils"
)

const (
	maxBodyBytes    = 64 << 10
	retryAfterBusy  = "10"
	shutdownTimeout = 10 * time.Second
	maxLoggedURL    = 200

	msgInvalidURL  = "Invalid YouTube URL"
	msgInvalidBody = "Invalid request body"
	msgBusy        = "Summarizer is busy, try again later"
	msgTimeout     = "Summarizer timed out"
	msgParseFailed = "Failed to parse summarizer output"
)

// Summarizer is what the HTTP layer needs from the relay; *relay.Service implements it.
type Summarizer interface {
	Summarize(ctx context.Context, rawURL string) (*models.SummarizeResult, error)
}

type Server struct {
	Port int
	// AllowedOrigin is the single browser origin granted CORS access; "*" allows any.
	AllowedOrigin string
	EnableWeb     bool
	Relay         Summarizer
}

// Handler returns the full middleware-wrapped router.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/summarize", s.corsPolicy().Handler(http.HandlerFunc(s.handleSummarize)))

	if s.EnableWeb {
		mux.HandleFunc("GET /{$}", s.handleWebIndex)
	}

	return s.withRequestID(mux)
}

// Start serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.Port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
		// No WriteTimeout: the response waits for the summarizer, which has its own deadline.
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Starting API server",
			"addr", fmt.Sprintf("http://localhost:%d", s.Port),
			"web_ui", s.EnableWeb,
			"allowed_origin", s.AllowedOrigin)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("Shutting down API server", "timeout", shutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func (s *Server) handleSummarize(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST, OPTIONS")
		s.respondJSON(w, r, http.StatusMethodNotAllowed, models.ErrorResponse{Error: "Method not allowed"})
		return
	}

	log := logger.FromContext(r.Context())

	var req models.SummarizeRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		log.Info("Bad request body", "err", err)
		s.respondJSON(w, r, http.StatusBadRequest, models.ErrorResponse{Error: msgInvalidBody})
		return
	}

	log.Info("Received URL", "url", utils.Truncate(req.URL, maxLoggedURL), "remote", r.RemoteAddr)

	res, err := s.Relay.Summarize(r.Context(), req.URL)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	s.respondJSON(w, r, http.StatusOK, res)
}

func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, context.Canceled) && r.Context().Err() != nil {
		logger.FromContext(r.Context()).Info("Client went away before the summary was ready")
		return
	}

	status, msg := errorStatus(err)
	if status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", retryAfterBusy)
	}
	s.respondJSON(w, r, status, models.ErrorResponse{Error: msg})
}

// errorStatus maps a relay error onto an HTTP status and a client-facing message.
func errorStatus(err error) (int, string) {
	var (
		execErr   *runner.ExecError
		formatErr *runner.FormatError
	)

	switch {
	case errors.Is(err, relay.ErrInvalidURL):
		return http.StatusBadRequest, msgInvalidURL
	case errors.Is(err, pool.ErrBusy):
		return http.StatusServiceUnavailable, msgBusy
	case errors.Is(err, runner.ErrTimeout):
		return http.StatusGatewayTimeout, msgTimeout
	case errors.As(err, &execErr):
		return http.StatusInternalServerError, execErr.Message
	case errors.As(err, &formatErr):
		return http.StatusInternalServerError, fmt.Sprintf("%s: %s", msgParseFailed, formatErr.Excerpt)
	default:
		return http.StatusInternalServerError, err.Error()
	}
}

func (s *Server) handleWebIndex(w http.ResponseWriter, r *http.Request) {
	t, err := template.New("index").Parse(tmpl)
	if err != nil {
		slog.Error("Template parse failed", "error", err)
		http.Error(w, "template error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := t.Execute(w, nil); err != nil {
		slog.Error("Template execution failed", "error", err, "remote", r.RemoteAddr)
	}
}

func (s *Server) respondJSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.FromContext(r.Context()).Error("JSON encoding failed", "error", err)
	}
}
