package runner

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestExcerptKeepsRunesWhole(t *testing.T) {
	raw := []byte(strings.Repeat("é", 150)) // 300 bytes

	got := excerpt(raw)

	if !strings.HasSuffix(got, "...") {
		t.Fatalf("expected truncation marker, got %q", got)
	}
	body := strings.TrimSuffix(got, "...")
	if !utf8.ValidString(body) {
		t.Fatalf("excerpt split a rune: %q", body)
	}
	if len(body) > maxExcerptBytes {
		t.Fatalf("excerpt is %d bytes, limit %d", len(body), maxExcerptBytes)
	}
}

func TestExcerptShortInput(t *testing.T) {
	if got := excerpt([]byte("not json")); got != "not json" {
		t.Fatalf("excerpt = %q", got)
	}
}

func TestCappedBuffer(t *testing.T) {
	b := &cappedBuffer{limit: 5}

	for _, chunk := range []string{"abc", "defg", "hij"} {
		n, err := b.Write([]byte(chunk))
		if err != nil || n != len(chunk) {
			t.Fatalf("Write(%q) = %d, %v", chunk, n, err)
		}
	}

	if b.String() != "abcde" {
		t.Fatalf("buffer = %q, want %q", b.String(), "abcde")
	}
	if !b.truncated {
		t.Fatalf("expected truncated flag")
	}
}

func TestParseOutput(t *testing.T) {
	out, err := parseOutput([]byte("\n{\"summary\": \"Hello world\", \"extra\": 1}\n"))
	if err != nil {
		t.Fatalf("parseOutput() error = %v", err)
	}
	if out.Summary == nil || *out.Summary != "Hello world" {
		t.Fatalf("summary = %v", out.Summary)
	}

	if _, err := parseOutput([]byte(`"just a string"`)); err == nil {
		t.Fatalf("expected an error for a JSON string")
	}
	if _, err := parseOutput(nil); err == nil {
		t.Fatalf("expected an error for empty output")
	}
	if _, err := parseOutput([]byte("null")); err == nil {
		t.Fatalf("expected an error for null output")
	}
}
