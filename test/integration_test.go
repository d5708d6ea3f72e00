//go:build integration

package test

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/FranksOps/bingscrape/internal/fingerprint"
	"github.com/FranksOps/bingscrape/internal/metrics"
	"github.com/FranksOps/bingscrape/internal/pipeline"
	"github.com/FranksOps/bingscrape/internal/scraper"
	"github.com/FranksOps/bingscrape/internal/serp"
	"github.com/FranksOps/bingscrape/pkg/proxy"
	"github.com/FranksOps/bingscrape/pkg/ratelimit"
	"github.com/FranksOps/bingscrape/pkg/useragent"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"gopkg.in/yaml.v3"
)

const resultsHTML = `<html><body><ol id="b_results">
<li class="b_algo"><h2><a href="https://go.dev/?utm_source=bing&amp;utm_medium=serp">The Go Programming Language</a></h2><p>Build simple, secure, scalable systems.</p></li>
<li class="b_algo"><h2><a href="https://www.bing.com/images">Images</a></h2></li>
<li class="b_algo"><h2><a href="https://pkg.go.dev/">Go Packages</a></h2></li>
</ol></body></html>`

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newBing(t *testing.T, endpoint string, cfg scraper.FetchConfig, delay time.Duration) *serp.Bing {
	t.Helper()
	fetcher, err := scraper.NewFetcher(cfg)
	if err != nil {
		t.Fatalf("failed to create fetcher: %v", err)
	}
	t.Cleanup(fetcher.Close)

	bing, err := serp.NewBing(serp.BingConfig{
		Endpoint: endpoint,
		Delay:    delay,
		Fetcher:  fetcher,
		Limiter:  ratelimit.NewLimiter(delay, 0),
		Logger:   discardLogger(),
	})
	if err != nil {
		t.Fatalf("failed to create provider: %v", err)
	}
	return bing
}

func TestIntegration_SearchOverUTLS(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("q") != "golang" {
			http.Error(w, "bad query", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, resultsHTML)
	}))
	defer srv.Close()

	bing := newBing(t, srv.URL+"/search", scraper.FetchConfig{
		Timeout:            5 * time.Second,
		Fingerprint:        fingerprint.ProfileChrome,
		InsecureSkipVerify: true,
	}, 0)

	var out bytes.Buffer
	p := pipeline.Pipeline{Provider: bing, Out: &out, Format: "yaml", Logger: discardLogger()}

	summary, err := p.Run(context.Background(), "golang", 10)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}

	var decoded struct {
		Query   string        `yaml:"query"`
		Results []serp.Result `yaml:"results"`
	}
	if err := yaml.Unmarshal(out.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not yaml: %v", err)
	}
	if decoded.Query != "golang" || len(decoded.Results) != 2 || summary.Count != 2 {
		t.Fatalf("unexpected report %+v", decoded)
	}
	if decoded.Results[0].URL != "https://go.dev/" {
		t.Errorf("expected tracking parameters stripped, got %q", decoded.Results[0].URL)
	}
}

func TestIntegration_ChallengePage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><body><div id="b_captcha">Verify you are human</div></body></html>`)
	}))
	defer srv.Close()

	before := testutil.ToFloat64(metrics.ChallengesDetected.WithLabelValues("Bing"))

	bing := newBing(t, srv.URL, scraper.FetchConfig{
		Timeout:     5 * time.Second,
		Fingerprint: fingerprint.ProfileGo,
	}, 0)

	results, err := bing.Search(context.Background(), "golang", 10)
	if err != nil {
		t.Fatalf("a 200 challenge page is not an error: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected no results from a challenge page, got %d", len(results))
	}
	if got := testutil.ToFloat64(metrics.ChallengesDetected.WithLabelValues("Bing")); got != before+1 {
		t.Errorf("expected challenge counter to increase by 1, got %v -> %v", before, got)
	}
}

func TestIntegration_ProxyRouting(t *testing.T) {
	var proxyHits int32
	var seenUA atomic.Value

	// A forward proxy receives absolute-form request URIs.
	proxySrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&proxyHits, 1)
		seenUA.Store(r.UserAgent())
		if r.URL.Host != "search.example" {
			http.Error(w, "unexpected host", http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, resultsHTML)
	}))
	defer proxySrv.Close()

	pool, err := proxy.NewPool(proxy.Config{}, proxySrv.URL)
	if err != nil {
		t.Fatalf("failed to create proxy pool: %v", err)
	}

	bing := newBing(t, "http://search.example/search", scraper.FetchConfig{
		Timeout:     5 * time.Second,
		Fingerprint: fingerprint.ProfileGo,
		ProxyPool:   pool,
		UAPool:      useragent.NewPool([]string{"IntegrationTest-UA"}),
	}, 0)

	results, err := bing.Search(context.Background(), "golang", 1)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if atomic.LoadInt32(&proxyHits) != 1 {
		t.Errorf("expected 1 proxy hit, got %d", proxyHits)
	}
	if ua, _ := seenUA.Load().(string); ua != "IntegrationTest-UA" {
		t.Errorf("expected IntegrationTest-UA, got %q", ua)
	}
	if len(results) != 1 {
		t.Errorf("expected limit to truncate to 1 result, got %d", len(results))
	}
}

func TestIntegration_SearchesAreSpaced(t *testing.T) {
	const delay = 150 * time.Millisecond

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, resultsHTML)
	}))
	defer srv.Close()

	bing := newBing(t, srv.URL, scraper.FetchConfig{
		Timeout:     5 * time.Second,
		Fingerprint: fingerprint.ProfileGo,
	}, delay)

	start := time.Now()
	for i := 0; i < 3; i++ {
		if _, err := bing.Search(context.Background(), "golang", 5); err != nil {
			t.Fatalf("search %d failed: %v", i, err)
		}
	}
	if elapsed := time.Since(start); elapsed < 2*delay {
		t.Errorf("expected three searches to take at least %v, took %v", 2*delay, elapsed)
	}
}
