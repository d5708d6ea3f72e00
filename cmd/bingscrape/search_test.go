package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/FranksOps/bingscrape/internal/config"
	"github.com/FranksOps/bingscrape/internal/serp"
)

const resultsHTML = `<html><body><ol id="b_results">
<li class="b_algo"><h2><a href="https://go.dev/?utm_source=bing">The Go Programming Language</a></h2><p>Build simple, secure, scalable systems.</p></li>
<li class="b_algo"><h2><a href="https://pkg.go.dev/">Go Packages</a></h2></li>
<li class="b_algo"><h2><a href="https://gobyexample.com/">Go by Example</a></h2><p>Hands-on introduction.</p></li>
</ol></body></html>`

// fakeBing serves resultsHTML, or a fixed error status when status is set.
type fakeBing struct {
	*httptest.Server
	hits atomic.Int32

	mu      sync.Mutex
	queries []string
	agents  []string
}

func newFakeBing(t *testing.T, status int) *fakeBing {
	t.Helper()
	fb := &fakeBing{}
	fb.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fb.hits.Add(1)
		fb.mu.Lock()
		fb.queries = append(fb.queries, r.URL.Query().Get("q"))
		fb.agents = append(fb.agents, r.UserAgent())
		fb.mu.Unlock()

		if status != 0 {
			w.WriteHeader(status)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, resultsHTML)
	}))
	t.Cleanup(fb.Close)
	return fb
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestSearchCmd_JSON(t *testing.T) {
	t.Parallel()
	fb := newFakeBing(t, 0)

	out, err := runCLI(t, "search",
		"--endpoint", fb.URL+"/search",
		"--fingerprint", "go",
		"--delay", "0s",
		"--limit", "2",
		"--format", "json",
		"--user-agent", "test-agent/1.0",
		"golang", "generics")
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}

	var report struct {
		Query   string        `json:"query"`
		Count   int           `json:"count"`
		Results []serp.Result `json:"results"`
	}
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("output is not json: %v\n%s", err, out)
	}
	if report.Query != "golang generics" || report.Count != 2 || len(report.Results) != 2 {
		t.Errorf("unexpected report %+v", report)
	}
	if report.Results[0].URL != "https://go.dev/" {
		t.Errorf("expected tracking parameters stripped, got %q", report.Results[0].URL)
	}

	fb.mu.Lock()
	defer fb.mu.Unlock()
	if len(fb.queries) != 1 || fb.queries[0] != "golang generics" {
		t.Errorf("unexpected queries %v", fb.queries)
	}
	if fb.agents[0] != "test-agent/1.0" {
		t.Errorf("expected configured user agent, got %q", fb.agents[0])
	}
}

func TestSearchCmd_TextDefault(t *testing.T) {
	t.Parallel()
	fb := newFakeBing(t, 0)

	out, err := runCLI(t, "search", "--endpoint", fb.URL, "--fingerprint", "go", "--delay", "0s", "golang")
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	for _, want := range []string{
		`Results for "golang" (3 of 10 requested`,
		"1. The Go Programming Language",
		"3. Go by Example",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output:\n%s", want, out)
		}
	}
}

func TestSearchCmd_ConfigFile(t *testing.T) {
	t.Parallel()
	fb := newFakeBing(t, 0)

	path := filepath.Join(t.TempDir(), "bingscrape.yaml")
	contents := fmt.Sprintf("endpoint: %s\nfingerprint: go\ndelay: 0s\nlimit: 1\nformat: csv\n", fb.URL)
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatal(err)
	}

	out, err := runCLI(t, "search", "--config", path, "golang")
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected header and one row, got %d lines:\n%s", len(lines), out)
	}
	if lines[0] != "rank,title,url,description" {
		t.Errorf("unexpected header %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "1,The Go Programming Language,https://go.dev/,") {
		t.Errorf("unexpected row %q", lines[1])
	}
}

func TestSearchCmd_FlagOverridesConfigFile(t *testing.T) {
	t.Parallel()
	fb := newFakeBing(t, 0)

	path := filepath.Join(t.TempDir(), "bingscrape.yaml")
	contents := fmt.Sprintf("endpoint: %s\nfingerprint: go\ndelay: 0s\nlimit: 1\nformat: csv\n", fb.URL)
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatal(err)
	}

	out, err := runCLI(t, "search", "--config", path, "--format", "json", "golang")
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if !json.Valid([]byte(out)) {
		t.Errorf("expected --format to override the config file, got:\n%s", out)
	}
}

// Not parallel: mutates the process environment.
func TestSearchCmd_EnvOverride(t *testing.T) {
	fb := newFakeBing(t, 0)
	t.Setenv("BINGSCRAPE_ENDPOINT", fb.URL)
	t.Setenv("BINGSCRAPE_FINGERPRINT", "go")
	t.Setenv("BINGSCRAPE_DELAY", "0s")
	t.Setenv("BINGSCRAPE_LIMIT", "1")
	t.Setenv("BINGSCRAPE_FORMAT", "JSON")

	out, err := runCLI(t, "search", "golang")
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	var report struct {
		Count int `json:"count"`
	}
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("output is not json: %v\n%s", err, out)
	}
	if report.Count != 1 {
		t.Errorf("expected 1 result, got %d", report.Count)
	}
}

func TestSearchCmd_InvalidConfig(t *testing.T) {
	t.Parallel()

	_, err := runCLI(t, "search", "--limit", "0", "golang")
	if !errors.Is(err, config.ErrInvalidLimit) {
		t.Fatalf("expected ErrInvalidLimit, got %v", err)
	}
	if !strings.Contains(err.Error(), "configuration error") {
		t.Errorf("unexpected message %q", err)
	}

	if _, err := runCLI(t, "search", "--fingerprint", "netscape", "golang"); err == nil {
		t.Error("expected unknown fingerprint to be rejected")
	}
}

func TestSearchCmd_HTTPErrorExhaustsRetries(t *testing.T) {
	t.Parallel()
	fb := newFakeBing(t, http.StatusServiceUnavailable)

	_, err := runCLI(t, "search",
		"--endpoint", fb.URL,
		"--fingerprint", "go",
		"--delay", "0s",
		"--max-retries", "2",
		"golang")
	if !errors.Is(err, serp.ErrConnection) {
		t.Fatalf("expected ErrConnection, got %v", err)
	}
	if got := exitCode(err); got != exitConnection {
		t.Errorf("expected exit code %d, got %d", exitConnection, got)
	}
	if got := fb.hits.Load(); got != 2 {
		t.Errorf("expected 2 attempts, got %d", got)
	}
}

func TestSearchCmd_EmptyQuery(t *testing.T) {
	t.Parallel()
	fb := newFakeBing(t, 0)

	_, err := runCLI(t, "search", "--endpoint", fb.URL, "--fingerprint", "go", "--delay", "0s", "   ")
	if !errors.Is(err, serp.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if got := exitCode(err); got != exitInvalidInput {
		t.Errorf("expected exit code %d, got %d", exitInvalidInput, got)
	}
	if fb.hits.Load() != 0 {
		t.Error("empty query must not reach the network")
	}
}

func TestSearchCmd_RequiresQuery(t *testing.T) {
	t.Parallel()
	if _, err := runCLI(t, "search"); err == nil {
		t.Fatal("expected error without a query argument")
	}
}
