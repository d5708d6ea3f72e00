package scraper

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/FranksOps/bingscrape/internal/bypass"
	"github.com/FranksOps/bingscrape/internal/fingerprint"
	"github.com/FranksOps/bingscrape/pkg/httpclient"
	"github.com/FranksOps/bingscrape/pkg/proxy"
	"github.com/FranksOps/bingscrape/pkg/useragent"
)

// FetchConfig configures a single-page fetch.
type FetchConfig struct {
	Timeout time.Duration
	// MaxRedirects of 0 means 10; negative disables following redirects.
	MaxRedirects int
	UseCookieJar bool
	MaxBodySize  int64
	Fingerprint  fingerprint.Profile
	// ProxyPool, when set, routes each fetch through the next healthy proxy.
	ProxyPool *proxy.Pool
	// InsecureSkipVerify is for tests against self-signed servers.
	InsecureSkipVerify bool
	UAPool             useragent.Rotator
	Detectors          []bypass.Detector
}

// Page is the outcome of one successful round trip. Non-2xx responses are
// still Pages; only transport failures surface as errors from Fetch.
type Page struct {
	URL        string
	StatusCode int
	Status     string
	Headers    http.Header
	Body       []byte
	UserAgent  string
	// Proxy is the proxy the request went through, empty when direct.
	Proxy string
	// Challenge names the bot wall that served this page, if any.
	Challenge string
	Duration  time.Duration
}

// OK reports whether the response carried a 2xx status.
func (p *Page) OK() bool {
	return p.StatusCode >= 200 && p.StatusCode < 300
}

// ContentType returns the response Content-Type header.
func (p *Page) ContentType() string {
	return p.Headers.Get("Content-Type")
}

// Fetcher performs single URL fetches with a rotated identity on every call.
type Fetcher struct {
	config FetchConfig
	client *httpclient.Client
}

// NewFetcher initializes a new Fetcher. The transport is built once so
// connections and the cookie jar (if configured) persist across fetches.
func NewFetcher(cfg FetchConfig) (*Fetcher, error) {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxRedirects == 0 {
		cfg.MaxRedirects = 10
	}
	if cfg.UAPool == nil {
		cfg.UAPool = useragent.NewPool(nil)
	}
	if cfg.Fingerprint == "" {
		cfg.Fingerprint = fingerprint.ProfileChrome
	}
	if cfg.Detectors == nil {
		cfg.Detectors = bypass.DefaultDetectors()
	}

	opts := fingerprint.Options{
		Profile:            cfg.Fingerprint,
		InsecureSkipVerify: cfg.InsecureSkipVerify,
	}
	if cfg.ProxyPool != nil {
		opts.Proxy = proxy.FromRequest
	}
	transport, err := fingerprint.Transport(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to setup transport: %w", err)
	}

	client, err := httpclient.New(httpclient.Config{
		Timeout:      cfg.Timeout,
		MaxRedirects: cfg.MaxRedirects,
		UseCookieJar: cfg.UseCookieJar,
		MaxBodySize:  cfg.MaxBodySize,
		Transport:    transport,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	return &Fetcher{
		config: cfg,
		client: client,
	}, nil
}

// Fetch executes a GET request to targetURL with a freshly drawn User-Agent.
// An error means no usable response arrived (DNS, dial, TLS, timeout, body
// read); HTTP error statuses are returned as a Page for the caller to judge.
func (f *Fetcher) Fetch(ctx context.Context, targetURL string) (*Page, error) {
	start := time.Now()

	var proxyURL *url.URL
	if f.config.ProxyPool != nil {
		u, err := f.config.ProxyPool.Next()
		if err != nil {
			return nil, fmt.Errorf("select proxy: %w", err)
		}
		proxyURL = u
		ctx = proxy.WithProxy(ctx, u)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	ua := f.config.UAPool.Next()
	req.Header.Set("User-Agent", ua)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := f.client.Do(ctx, req)
	if err != nil {
		f.report(ctx, proxyURL, err)
		return nil, fmt.Errorf("request failed: %w", err)
	}

	body, err := f.client.ReadBody(resp)
	f.report(ctx, proxyURL, err)
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}

	page := &Page{
		URL:        targetURL,
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Headers:    resp.Header,
		Body:       body,
		UserAgent:  ua,
		Duration:   time.Since(start),
	}
	if proxyURL != nil {
		page.Proxy = proxyURL.Redacted()
	}

	page.Challenge = bypass.Analyze(bypass.Response{
		StatusCode: page.StatusCode,
		Headers:    page.Headers,
		Body:       page.Body,
	}, f.config.Detectors)

	return page, nil
}

// report credits the proxy with the outcome. Failures caused by the
// caller's own cancellation are not held against it.
func (f *Fetcher) report(ctx context.Context, u *url.URL, err error) {
	if u == nil || (err != nil && ctx.Err() != nil) {
		return
	}
	f.config.ProxyPool.Report(u, err)
}

// Close releases idle connections held by the transport.
func (f *Fetcher) Close() {
	f.client.CloseIdleConnections()
}
