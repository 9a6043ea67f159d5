package runner

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"os/exec"
	"slices"
	"time"

	"github.com/imbecility/yt-summary/pkg/logger"
	"github.com/imbecility/yt-summary/pkg/models"
)

const (
	maxStdoutBytes = 4 << 20
	maxStderrBytes = 64 << 10

	// waitDelay bounds how long Wait blocks on pipes after the process was killed,
	// e.g. when the summarizer left a grandchild holding stdout open.
	waitDelay = 2 * time.Second
)

// Runner starts the external summarizer, one process per video URL.
type Runner struct {
	Command string
	// Args go before the URL, which is always passed last.
	Args []string
	// Dir is the working directory; empty inherits ours.
	Dir string
	// Env is appended to the inherited environment.
	Env     []string
	Timeout time.Duration
}

// Run executes the summarizer for videoURL and decodes its stdout.
//
// The URL is handed over as a single argv entry, never through a shell.
// Errors are ErrTimeout, *ExecError, *FormatError, or ctx.Err() when the
// caller went away first.
func (r *Runner) Run(ctx context.Context, videoURL string) (*models.SummarizerOutput, error) {
	log := logger.FromContext(ctx)

	runCtx := ctx
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	args := append(slices.Clone(r.Args), videoURL)
	cmd := exec.CommandContext(runCtx, r.Command, args...)
	cmd.Dir = r.Dir
	if len(r.Env) > 0 {
		cmd.Env = append(os.Environ(), r.Env...)
	}
	cmd.WaitDelay = waitDelay

	stdout := &cappedBuffer{limit: maxStdoutBytes}
	stderr := &cappedBuffer{limit: maxStderrBytes}
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	start := time.Now()
	log.Debug("Starting summarizer", "command", r.Command, "args", args)

	err := cmd.Run()
	elapsed := time.Since(start)

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			log.Warn("Summarizer cancelled by caller", "err", ctxErr, "duration", elapsed)
			return nil, ctxErr
		}
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			log.Warn("Summarizer timed out", "timeout", r.Timeout, "duration", elapsed)
			return nil, ErrTimeout
		}

		execErr := newExecError(err, stdout.Bytes(), stderr.String())
		log.Error("Summarizer failed",
			"exit_code", execErr.ExitCode,
			"duration", elapsed,
			"stderr", execErr.Message)
		return nil, execErr
	}

	log.Debug("Summarizer finished", "duration", elapsed, "stdout_bytes", stdout.Len())

	if stdout.truncated {
		return nil, &FormatError{Excerpt: excerpt(stdout.Bytes()), Err: errOutputTooLarge}
	}
	return parseOutput(stdout.Bytes())
}

func parseOutput(raw []byte) (*models.SummarizerOutput, error) {
	trimmed := bytes.TrimSpace(raw)

	var out models.SummarizerOutput
	if err := json.Unmarshal(trimmed, &out); err != nil {
		return nil, &FormatError{Excerpt: excerpt(trimmed), Err: err}
	}

	if out.Summary == nil {
		// The summarizer may report its own failure on stdout with exit code 0.
		if out.Error != "" {
			return nil, &ExecError{Message: out.Error, Err: errReportedFailure}
		}
		return nil, &FormatError{Excerpt: excerpt(trimmed), Err: errMissingSummary}
	}

	return &out, nil
}

// cappedBuffer keeps the first limit bytes and silently drops the rest, so the
// child never blocks or dies on a full pipe.
type cappedBuffer struct {
	bytes.Buffer
	limit     int
	truncated bool
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	room := b.limit - b.Len()
	if room <= 0 {
		if len(p) > 0 {
			b.truncated = true
		}
		return len(p), nil
	}
	if len(p) > room {
		b.Buffer.Write(p[:room])
		b.truncated = true
		return len(p), nil
	}
	return b.Buffer.Write(p)
}
