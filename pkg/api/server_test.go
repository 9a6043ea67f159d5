package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/imbecility/yt-summary/pkg/logger"
	"github.com/imbecility/yt-summary/pkg/models"
	"github.com/imbecility/yt-summary/pkg/pool"
	"github.com/imbecility/yt-summary/pkg/relay"
	"github.com/imbecility/yt-summary/pkg/runner"
	"github.com/imbecility/yt-summary/pkg/runner/runnertest"
)

func TestHelperProcess(t *testing.T) { runnertest.HelperProcess() }

type stubRelay struct {
	res *models.SummarizeResult
	err error
}

func (s stubRelay) Summarize(context.Context, string) (*models.SummarizeResult, error) {
	return s.res, s.err
}

func newRelayServer(t *testing.T, timeout time.Duration, size int) (*httptest.Server, *runnertest.Fake) {
	t.Helper()
	fake := runnertest.New(t, timeout)
	srv := &Server{
		AllowedOrigin: "http://localhost:3000",
		Relay:         relay.NewService(fake.Runner, pool.New(size, 0, 0), nil),
	}
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, fake
}

func post(t *testing.T, url, body string) (int, http.Header, string) {
	t.Helper()
	resp, err := http.Post(url+"/summarize", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp.StatusCode, resp.Header, strings.TrimSpace(string(raw))
}

func urlBody(u string) string {
	b, _ := json.Marshal(models.SummarizeRequest{URL: u})
	return string(b)
}

func TestSummarizeEndpoint(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantBody   string
	}{
		{"empty url", `{"url": ""}`, http.StatusBadRequest, `{"error":"Invalid YouTube URL"}`},
		{"missing url", `{}`, http.StatusBadRequest, `{"error":"Invalid YouTube URL"}`},
		{"no body", ``, http.StatusBadRequest, `{"error":"Invalid YouTube URL"}`},
		{"wrong host", `{"url": "https://vimeo.com/1"}`, http.StatusBadRequest, `{"error":"Invalid YouTube URL"}`},
		{"broken json", `{"url": `, http.StatusBadRequest, `{"error":"Invalid request body"}`},
		{"url not a string", `{"url": 42}`, http.StatusBadRequest, `{"error":"Invalid request body"}`},
		{
			"pass-through summary",
			urlBody(runnertest.URL("dQw4w9WgXcQ", runnertest.CaseHello)),
			http.StatusOK,
			`{"summary":"Hello world"}`,
		},
		{
			"process failure",
			urlBody(runnertest.URL("dQw4w9WgXcQ", runnertest.CaseFail)),
			http.StatusInternalServerError,
			`{"error":"network timeout"}`,
		},
		{
			"failure reported on stdout",
			urlBody(runnertest.URL("dQw4w9WgXcQ", runnertest.CaseErrorJSON)),
			http.StatusInternalServerError,
			`{"error":"quota exceeded"}`,
		},
		{
			"not json",
			urlBody(runnertest.URL("dQw4w9WgXcQ", runnertest.CaseNotJSON)),
			http.StatusInternalServerError,
			`{"error":"Failed to parse summarizer output: not json"}`,
		},
	}

	ts, _ := newRelayServer(t, 10*time.Second, 4)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, header, body := post(t, ts.URL, tt.body)

			if status != tt.wantStatus {
				t.Errorf("status = %d, want %d (body %s)", status, tt.wantStatus, body)
			}
			if body != tt.wantBody {
				t.Errorf("body = %s, want %s", body, tt.wantBody)
			}
			if ct := header.Get("Content-Type"); ct != "application/json" {
				t.Errorf("Content-Type = %q", ct)
			}
		})
	}

	// The server keeps answering after every failure above.
	if status, _, _ := post(t, ts.URL, urlBody(runnertest.URL("dQw4w9WgXcQ", ""))); status != http.StatusOK {
		t.Fatalf("follow-up request status = %d", status)
	}
}

func TestSummarizeEndpointSpawnsOncePerValidRequest(t *testing.T) {
	ts, fake := newRelayServer(t, 10*time.Second, 1)

	post(t, ts.URL, `{"url": "https://example.com"}`)
	videoURL := runnertest.URL("dQw4w9WgXcQ", runnertest.CaseHello)
	post(t, ts.URL, urlBody(videoURL))

	calls := fake.Invocations(t)
	if len(calls) != 1 || calls[0] != videoURL {
		t.Fatalf("invocations = %q, want [%q]", calls, videoURL)
	}
}

func TestSummarizeEndpointTruncatesGarbage(t *testing.T) {
	ts, _ := newRelayServer(t, 10*time.Second, 1)

	status, _, body := post(t, ts.URL, urlBody(runnertest.URL("dQw4w9WgXcQ", runnertest.CaseLongGarbage)))
	if status != http.StatusInternalServerError {
		t.Fatalf("status = %d", status)
	}

	var resp models.ErrorResponse
	if err := json.Unmarshal([]byte(body), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !strings.HasPrefix(resp.Error, msgParseFailed) || !strings.HasSuffix(resp.Error, "...") {
		t.Fatalf("error = %q", resp.Error)
	}
	if len(resp.Error) > len(msgParseFailed)+2+203 {
		t.Fatalf("excerpt is not bounded: %d bytes", len(resp.Error))
	}
}

func TestSummarizeEndpointTimeout(t *testing.T) {
	ts, _ := newRelayServer(t, 200*time.Millisecond, 1)

	status, _, body := post(t, ts.URL, urlBody(runnertest.URL("dQw4w9WgXcQ", runnertest.CaseHang)))
	if status != http.StatusGatewayTimeout {
		t.Fatalf("status = %d, body %s", status, body)
	}
	if body != `{"error":"Summarizer timed out"}` {
		t.Fatalf("body = %s", body)
	}
}

func TestSummarizeEndpointConcurrent(t *testing.T) {
	const n = 6
	ts, fake := newRelayServer(t, 10*time.Second, n)

	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			videoURL := runnertest.URL(fmt.Sprintf("clip%07d", i), runnertest.CaseSlow)

			status, _, body := post(t, ts.URL, urlBody(videoURL))
			if status != http.StatusOK {
				t.Errorf("request %d: status %d", i, status)
				return
			}
			var res models.SummarizeResult
			if err := json.Unmarshal([]byte(body), &res); err != nil {
				t.Errorf("request %d: %v", i, err)
				return
			}
			if want := "summary of " + videoURL; res.Summary != want {
				t.Errorf("request %d: got %q, want %q", i, res.Summary, want)
			}
		}()
	}
	wg.Wait()

	if calls := fake.Invocations(t); len(calls) != n {
		t.Fatalf("processes = %d, want %d", len(calls), n)
	}
}

func TestSummarizeEndpointMethodNotAllowed(t *testing.T) {
	ts, _ := newRelayServer(t, time.Second, 1)

	resp, err := http.Get(ts.URL + "/summarize")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if allow := resp.Header.Get("Allow"); allow != "POST, OPTIONS" {
		t.Fatalf("Allow = %q", allow)
	}
}

func TestSummarizeEndpointBodyTooLarge(t *testing.T) {
	ts, fake := newRelayServer(t, time.Second, 1)

	body := `{"url": "https://youtu.be/` + strings.Repeat("a", maxBodyBytes) + `"}`
	status, _, resp := post(t, ts.URL, body)
	if status != http.StatusBadRequest || resp != `{"error":"Invalid request body"}` {
		t.Fatalf("got %d %s", status, resp)
	}
	if calls := fake.Invocations(t); len(calls) != 0 {
		t.Fatalf("oversized body spawned a process")
	}
}

func TestErrorStatus(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantMsg    string
	}{
		{"invalid url", relay.ErrInvalidURL, http.StatusBadRequest, msgInvalidURL},
		{"busy", pool.ErrBusy, http.StatusServiceUnavailable, msgBusy},
		{"timeout", runner.ErrTimeout, http.StatusGatewayTimeout, msgTimeout},
		{"exec", &runner.ExecError{Message: "boom"}, http.StatusInternalServerError, "boom"},
		{"wrapped exec", fmt.Errorf("relay: %w", &runner.ExecError{Message: "boom"}), http.StatusInternalServerError, "boom"},
		{"format", &runner.FormatError{Excerpt: "<html>"}, http.StatusInternalServerError, msgParseFailed + ": <html>"},
		{"unknown", errors.New("weird"), http.StatusInternalServerError, "weird"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, msg := errorStatus(tt.err)
			if status != tt.wantStatus || msg != tt.wantMsg {
				t.Fatalf("errorStatus() = %d %q, want %d %q", status, msg, tt.wantStatus, tt.wantMsg)
			}
		})
	}
}

func TestBusyResponseHasRetryAfter(t *testing.T) {
	srv := &Server{Relay: stubRelay{err: pool.ErrBusy}}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/summarize", strings.NewReader(`{"url":"https://youtu.be/x"}`))
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Fatal("missing Retry-After")
	}
}

func TestMetadataFieldsInResponse(t *testing.T) {
	srv := &Server{Relay: stubRelay{res: &models.SummarizeResult{
		Summary: "short",
		VideoID: "dQw4w9WgXcQ",
		Title:   "Never Gonna Give You Up",
	}}}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/summarize", strings.NewReader(`{"url":"https://youtu.be/dQw4w9WgXcQ"}`))
	srv.Handler().ServeHTTP(rec, req)

	want := `{"summary":"short","video_id":"dQw4w9WgXcQ","title":"Never Gonna Give You Up"}`
	if got := strings.TrimSpace(rec.Body.String()); got != want {
		t.Fatalf("body = %s, want %s", got, want)
	}
}

func TestCORS(t *testing.T) {
	tests := []struct {
		name        string
		allowed     string
		origin      string
		path        string
		preflight   bool
		wantStatus  int
		wantAllowed string
		wantMethods string
		wantExpose  string
	}{
		{"preflight from allowed origin", "http://localhost:3000", "http://localhost:3000", "/summarize", true, http.StatusNoContent, "http://localhost:3000", "POST", ""},
		{"preflight from other origin", "http://localhost:3000", "https://evil.example", "/summarize", true, http.StatusNoContent, "", "", ""},
		{"preflight with wildcard", "*", "https://anything.example", "/summarize", true, http.StatusNoContent, "*", "POST", ""},
		{"preflight with cors disabled", "", "http://localhost:3000", "/summarize", true, http.StatusNoContent, "", "", ""},
		{"preflight on unknown route", "http://localhost:3000", "http://localhost:3000", "/nope", true, http.StatusNotFound, "", "", ""},
		{"simple request from allowed origin", "http://localhost:3000", "http://localhost:3000", "/summarize", false, http.StatusOK, "http://localhost:3000", "", headerRequestID},
		{"simple request from other origin", "http://localhost:3000", "https://evil.example", "/summarize", false, http.StatusOK, "", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := &Server{
				AllowedOrigin: tt.allowed,
				Relay:         stubRelay{res: &models.SummarizeResult{Summary: "ok"}},
			}

			var req *http.Request
			if tt.preflight {
				req = httptest.NewRequest(http.MethodOptions, tt.path, nil)
				req.Header.Set("Access-Control-Request-Method", http.MethodPost)
				req.Header.Set("Access-Control-Request-Headers", "content-type")
			} else {
				req = httptest.NewRequest(http.MethodPost, tt.path, strings.NewReader(`{"url":"https://youtu.be/x"}`))
			}
			req.Header.Set("Origin", tt.origin)

			rec := httptest.NewRecorder()
			srv.Handler().ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if got := rec.Header().Get("Access-Control-Allow-Origin"); got != tt.wantAllowed {
				t.Errorf("Allow-Origin = %q, want %q", got, tt.wantAllowed)
			}
			if got := rec.Header().Get("Access-Control-Allow-Methods"); got != tt.wantMethods {
				t.Errorf("Allow-Methods = %q, want %q", got, tt.wantMethods)
			}
			if got := rec.Header().Get("Access-Control-Expose-Headers"); !strings.EqualFold(got, tt.wantExpose) {
				t.Errorf("Expose-Headers = %q, want %q", got, tt.wantExpose)
			}
			if tt.wantMethods != "" {
				if got := rec.Header().Get("Access-Control-Allow-Headers"); !strings.EqualFold(got, "content-type") {
					t.Errorf("Allow-Headers = %q", got)
				}
				if got := rec.Header().Get("Access-Control-Max-Age"); got != "600" {
					t.Errorf("Max-Age = %q", got)
				}
			}
		})
	}
}

func TestAccessLogStatus(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(logger.New(&buf, false, "json"))
	t.Cleanup(func() { slog.SetDefault(prev) })

	srv := &Server{Relay: stubRelay{err: context.Canceled}}
	h := srv.Handler()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodPost, "/summarize", strings.NewReader(`{"url":"https://youtu.be/x"}`)).WithContext(ctx)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Body.Len() != 0 {
		t.Fatalf("body written for a departed client: %s", rec.Body.String())
	}
	if !strings.Contains(buf.String(), `"status":499`) {
		t.Fatalf("access log does not mark the departed client: %s", buf.String())
	}

	buf.Reset()
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/summarize", nil))
	if !strings.Contains(buf.String(), `"status":405`) {
		t.Fatalf("access log status: %s", buf.String())
	}
}

func TestRequestID(t *testing.T) {
	srv := &Server{Relay: stubRelay{res: &models.SummarizeResult{Summary: "ok"}}}
	h := srv.Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/summarize", strings.NewReader(`{"url":"https://youtu.be/x"}`)))
	if _, err := uuid.Parse(rec.Header().Get(headerRequestID)); err != nil {
		t.Fatalf("generated request id %q is not a UUID", rec.Header().Get(headerRequestID))
	}

	given := uuid.NewString()
	req := httptest.NewRequest(http.MethodPost, "/summarize", strings.NewReader(`{"url":"https://youtu.be/x"}`))
	req.Header.Set(headerRequestID, given)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if got := rec.Header().Get(headerRequestID); got != given {
		t.Fatalf("request id = %q, want caller's %q", got, given)
	}

	req = httptest.NewRequest(http.MethodPost, "/summarize", strings.NewReader(`{"url":"https://youtu.be/x"}`))
	req.Header.Set(headerRequestID, "<script>")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if got := rec.Header().Get(headerRequestID); got == "<script>" {
		t.Fatal("non-UUID request id was echoed back")
	}
}

func TestWebUI(t *testing.T) {
	enabled := (&Server{EnableWeb: true, Relay: stubRelay{}}).Handler()
	rec := httptest.NewRecorder()
	enabled.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "fetch('/summarize'") {
		t.Fatal("page does not post to /summarize")
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Fatalf("Content-Type = %q", ct)
	}

	disabled := (&Server{Relay: stubRelay{}}).Handler()
	rec = httptest.NewRecorder()
	disabled.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status with web UI off = %d, want 404", rec.Code)
	}
}

func TestStartStopsOnCancel(t *testing.T) {
	srv := &Server{Port: freePort(t), Relay: stubRelay{}}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Start(ctx) }()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Start() = %v", err)
		}
	case <-time.After(15 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func freePort(t *testing.T) int {
	t.Helper()
	ts := httptest.NewServer(http.NotFoundHandler())
	defer ts.Close()
	return ts.Listener.Addr().(*net.TCPAddr).Port
}
