package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/cors"

	"github.com/imbecility/yt-summary/pkg/logger"
)

const (
	headerRequestID = "X-Request-ID"
	// statusClientClosed is logged when the handler wrote nothing because the client left.
	statusClientClosed = 499
	corsMaxAge         = 600
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	if r.status == 0 {
		r.status = status
	}
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter { return r.ResponseWriter }

// withRequestID tags every request with an ID, echoes it in the response and
// attaches a logger carrying it. A caller-supplied UUID is kept.
func (s *Server) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(headerRequestID)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		w.Header().Set(headerRequestID, id)

		log := slog.Default().With("request_id", id)
		r = r.WithContext(logger.WithContext(r.Context(), log))

		rec := &statusRecorder{ResponseWriter: w}
		start := time.Now()
		next.ServeHTTP(rec, r)

		status := rec.status
		if status == 0 {
			status = statusClientClosed
		}
		log.Info("Request handled",
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"duration", time.Since(start))
	})
}

// corsPolicy grants browser access to AllowedOrigin only. An empty origin
// disables cross-origin access entirely.
func (s *Server) corsPolicy() *cors.Cors {
	opts := cors.Options{
		AllowedOrigins: []string{s.AllowedOrigin},
		AllowedMethods: []string{http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
		ExposedHeaders: []string{headerRequestID},
		MaxAge:         corsMaxAge,
	}
	if s.AllowedOrigin == "" {
		opts.AllowedOrigins = nil
		opts.AllowOriginFunc = func(string) bool { return false }
	}
	return cors.New(opts)
}
