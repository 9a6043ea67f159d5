// Package runnertest re-executes the running test binary as a fake summarizer.
//
// A test package wires it up with
//
//	func TestHelperProcess(t *testing.T) { runnertest.HelperProcess() }
//
// and then runs runnertest.New(t, timeout).Runner. The fake picks its
// behaviour from the "case" query parameter of the video URL it receives.
package runnertest

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/imbecility/yt-summary/pkg/runner"
)

const (
	envWant = "YT_SUMMARY_HELPER_PROCESS"
	envLog  = "YT_SUMMARY_HELPER_LOG"
)

// Cases understood by the fake summarizer.
const (
	CaseHello        = "hello"        // {"summary":"Hello world"}
	CaseFail         = "fail"         // stderr "network timeout", exit 1
	CaseFailJSON     = "failjson"     // {"error":...} on stdout, exit 1
	CaseFailSilent   = "failsilent"   // no output, exit 3
	CaseNotJSON      = "notjson"      // "not json", exit 0
	CaseErrorJSON    = "errorjson"    // {"error":...} on stdout, exit 0
	CaseNoSummary    = "nosummary"    // {"title":...}, exit 0
	CaseLongGarbage  = "longgarbage"  // 1 KiB of non-JSON text, exit 0
	CaseHuge         = "huge"         // more stdout than the runner keeps
	CaseHang         = "hang"         // sleeps far past any test timeout
	CaseSlow         = "slow"         // sleeps 300ms, then echoes
	CaseProgressOnly = "progressonly" // progress on stderr, summary on stdout
)

// Fake is a Runner pointing at the current test binary.
type Fake struct {
	*runner.Runner
	logPath string
}

func New(t testing.TB, timeout time.Duration) *Fake {
	t.Helper()

	logPath := filepath.Join(t.TempDir(), "invocations.log")
	return &Fake{
		Runner: &runner.Runner{
			Command: os.Args[0],
			Args:    []string{"-test.run=^TestHelperProcess$", "--"},
			Env:     []string{envWant + "=1", envLog + "=" + logPath},
			Timeout: timeout,
		},
		logPath: logPath,
	}
}

// Invocations returns the URL argument of every process started so far.
func (f *Fake) Invocations(t testing.TB) []string {
	t.Helper()

	file, err := os.Open(f.logPath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		t.Fatalf("open invocation log: %v", err)
	}
	defer file.Close()

	var urls []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var args []string
		if err := json.Unmarshal(scanner.Bytes(), &args); err != nil {
			t.Fatalf("decode invocation %q: %v", scanner.Text(), err)
		}
		if len(args) != 1 {
			t.Fatalf("expected exactly one argument, got %q", args)
		}
		urls = append(urls, args[0])
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("read invocation log: %v", err)
	}
	return urls
}

// URL builds a YouTube-looking URL that selects a fake behaviour.
func URL(id, fakeCase string) string {
	u := "https://www.youtube.com/watch?v=" + id
	if fakeCase != "" {
		u += "&case=" + fakeCase
	}
	return u
}

// HelperProcess turns the test binary into the fake summarizer when it was
// started by a Fake runner, and does nothing otherwise.
func HelperProcess() {
	if os.Getenv(envWant) != "1" {
		return
	}

	args := os.Args
	for len(args) > 0 {
		if args[0] == "--" {
			args = args[1:]
			break
		}
		args = args[1:]
	}

	os.Exit(fakeSummarizer(args))
}

func fakeSummarizer(args []string) int {
	record(args)

	if len(args) < 1 {
		printJSON(map[string]string{"error": "Missing YouTube URL argument"})
		return 1
	}
	videoURL := args[len(args)-1]

	fakeCase := ""
	if u, err := url.Parse(videoURL); err == nil {
		fakeCase = u.Query().Get("case")
	}

	switch fakeCase {
	case CaseHello:
		fmt.Print(`{"summary": "Hello world"}`)
	case CaseFail:
		fmt.Fprintln(os.Stderr, "network timeout")
		return 1
	case CaseFailJSON:
		printJSON(map[string]string{"error": "Could not retrieve a transcript"})
		return 1
	case CaseFailSilent:
		return 3
	case CaseNotJSON:
		fmt.Print("not json")
	case CaseErrorJSON:
		printJSON(map[string]string{"error": "quota exceeded"})
	case CaseNoSummary:
		printJSON(map[string]string{"title": "no summary here"})
	case CaseLongGarbage:
		fmt.Print(strings.Repeat("é", 512))
	case CaseHuge:
		fmt.Print(`{"summary": "`)
		fmt.Print(strings.Repeat("a", 5<<20))
		fmt.Print(`"}`)
	case CaseHang:
		time.Sleep(time.Minute)
	case CaseSlow:
		time.Sleep(300 * time.Millisecond)
		printJSON(map[string]string{"summary": "summary of " + videoURL})
	case CaseProgressOnly:
		fmt.Fprintln(os.Stderr, "Fetching transcript...")
		fmt.Fprintln(os.Stderr, "Generating summary...")
		printJSON(map[string]string{"summary": "summary of " + videoURL})
	default:
		printJSON(map[string]string{"summary": "summary of " + videoURL})
	}
	return 0
}

func printJSON(v any) {
	_ = json.NewEncoder(os.Stdout).Encode(v)
}

func record(args []string) {
	path := os.Getenv(envLog)
	if path == "" {
		return
	}
	line, err := json.Marshal(args)
	if err != nil {
		return
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return
	}
	defer f.Close()
	_, _ = f.Write(append(line, '\n'))
}
