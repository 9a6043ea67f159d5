package runner

import (
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/imbecility/yt-summary/pkg/utils"
)

const maxExcerptBytes = 200

// ErrTimeout means the summarizer ran past Runner.Timeout and was killed.
var ErrTimeout = errors.New("summarizer timed out")

var (
	errOutputTooLarge  = fmt.Errorf("output exceeds %d bytes", maxStdoutBytes)
	errMissingSummary  = errors.New(`no "summary" field`)
	errReportedFailure = errors.New("summarizer reported an error")
)

// ExecError is a spawn failure, a non-zero exit, or a failure the summarizer
// reported on stdout.
type ExecError struct {
	// Message is the diagnostic shown to clients: stderr, the summarizer's own
	// error field, or the spawn/exit error text, in that order of preference.
	Message string
	// ExitCode is -1 when the process never started or was signalled.
	ExitCode int
	Err      error
}

func newExecError(err error, stdout []byte, stderr string) *ExecError {
	e := &ExecError{Err: err, ExitCode: -1}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		e.ExitCode = exitErr.ExitCode()
	}

	switch {
	case strings.TrimSpace(stderr) != "":
		e.Message = strings.TrimSpace(stderr)
	case reportedError(stdout) != "":
		e.Message = reportedError(stdout)
	default:
		e.Message = err.Error()
	}
	return e
}

func (e *ExecError) Error() string {
	return "summarizer failed: " + e.Message
}

func (e *ExecError) Unwrap() error { return e.Err }

// FormatError means the summarizer exited cleanly but its stdout is unusable.
type FormatError struct {
	// Excerpt is a bounded prefix of the raw output.
	Excerpt string
	Err     error
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("malformed summarizer output (%v): %q", e.Err, e.Excerpt)
}

func (e *FormatError) Unwrap() error { return e.Err }

// reportedError extracts {"error": "..."} from stdout, if that is what it holds.
func reportedError(stdout []byte) string {
	var payload struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(stdout, &payload) != nil {
		return ""
	}
	return strings.TrimSpace(payload.Error)
}

// excerpt cuts b to maxExcerptBytes without splitting a UTF-8 sequence.
func excerpt(b []byte) string {
	return utils.Truncate(string(b), maxExcerptBytes)
}
