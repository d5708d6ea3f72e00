package serp

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/FranksOps/bingscrape/internal/metrics"
	"github.com/FranksOps/bingscrape/internal/scraper"
	"github.com/FranksOps/bingscrape/pkg/ratelimit"
)

const (
	// DefaultEndpoint is the results page every search is issued against.
	DefaultEndpoint = "https://www.bing.com/search"
	// DefaultMaxRetries is the attempt ceiling for HTTP status failures.
	DefaultMaxRetries = 3
	// DefaultDelay is both the rate-limit floor and the backoff base.
	DefaultDelay = time.Second
)

// PageFetcher performs one GET. *scraper.Fetcher is the production
// implementation.
type PageFetcher interface {
	Fetch(ctx context.Context, targetURL string) (*scraper.Page, error)
}

// BingConfig configures a Bing provider. Zero values select the defaults.
type BingConfig struct {
	Endpoint   string
	MaxRetries int
	Delay      time.Duration
	Fetcher    PageFetcher
	// Limiter is shared by every search on this provider. When nil, a limiter
	// with a Delay floor is created.
	Limiter *ratelimit.Limiter
	Logger  *slog.Logger
}

// Bing scrapes the Bing results page.
type Bing struct {
	endpoint   *url.URL
	maxRetries int
	delay      time.Duration
	fetcher    PageFetcher
	limiter    *ratelimit.Limiter
	logger     *slog.Logger
	extract    func(*scraper.Page) ([]Result, error)
}

var _ Provider = (*Bing)(nil)

// NewBing validates cfg and builds a provider.
func NewBing(cfg BingConfig) (*Bing, error) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.Delay < 0 {
		return nil, fmt.Errorf("serp: delay cannot be negative: %v", cfg.Delay)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	endpoint, err := url.Parse(cfg.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("serp: invalid endpoint: %w", err)
	}
	if (endpoint.Scheme != "http" && endpoint.Scheme != "https") || endpoint.Host == "" {
		return nil, fmt.Errorf("serp: endpoint must be an absolute http(s) url: %q", cfg.Endpoint)
	}

	if cfg.Fetcher == nil {
		f, err := scraper.NewFetcher(scraper.FetchConfig{})
		if err != nil {
			return nil, fmt.Errorf("serp: %w", err)
		}
		cfg.Fetcher = f
	}
	if cfg.Limiter == nil {
		cfg.Limiter = ratelimit.NewLimiter(cfg.Delay, 0)
	}

	return &Bing{
		endpoint:   endpoint,
		maxRetries: cfg.MaxRetries,
		delay:      cfg.Delay,
		fetcher:    cfg.Fetcher,
		limiter:    cfg.Limiter,
		logger:     cfg.Logger,
		extract:    extractPage,
	}, nil
}

// Search fetches the results page for query and returns at most limit
// results in page order.
//
// Non-2xx responses are retried up to the configured attempt ceiling with a
// linear backoff of delay*attempt; the rate limiter is consulted before every
// attempt. Transport failures and parse failures are not retried. Every
// returned error wraps exactly one of ErrInvalidInput, ErrConnection or
// ErrParsing.
func (b *Bing) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	if strings.TrimSpace(query) == "" {
		return nil, invalidInput("search query cannot be empty")
	}
	if limit < 1 {
		return nil, invalidInput(fmt.Sprintf("limit must be positive, got %d", limit))
	}

	target := b.searchURL(query, limit)
	attempts := 0

	for {
		if err := b.limiter.Enforce(ctx); err != nil {
			return nil, connectionError("rate limit", err)
		}

		page, err := b.fetcher.Fetch(ctx, target)
		if err != nil {
			metrics.SearchAttempts.WithLabelValues("error").Inc()
			return nil, connectionError("network error", err)
		}
		metrics.SearchAttempts.WithLabelValues(strconv.Itoa(page.StatusCode)).Inc()

		if page.Challenge != "" {
			metrics.ChallengesDetected.WithLabelValues(page.Challenge).Inc()
			b.logger.Warn("results page looks like a bot challenge",
				"source", page.Challenge, "status", page.StatusCode, "user_agent", page.UserAgent, "proxy", page.Proxy)
		}

		if !page.OK() {
			attempts++
			if attempts >= b.maxRetries {
				return nil, statusError(attempts, page.StatusCode, statusReason(page))
			}

			backoff := b.delay * time.Duration(attempts)
			b.logger.Debug("retrying search",
				"attempt", attempts, "status", page.StatusCode, "backoff", backoff,
				"rate_limit", b.limiter.Interval())
			if err := sleep(ctx, backoff); err != nil {
				return nil, connectionError("backoff", err)
			}
			continue
		}

		results, err := b.extract(page)
		if err != nil {
			return nil, parsingError(err)
		}

		b.logger.Debug("extracted results", "found", len(results), "limit", limit)
		if len(results) > limit {
			results = results[:limit]
		}
		return results, nil
	}
}

func (b *Bing) searchURL(query string, limit int) string {
	u := *b.endpoint
	q := u.Query()
	q.Set("q", query)
	q.Set("n", strconv.Itoa(limit))
	u.RawQuery = q.Encode()
	return u.String()
}

// extractPage turns any panic from the parser into an error so the caller
// still sees a classified failure.
func extractPage(page *scraper.Page) (results []Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("extractor panic: %v", r)
		}
	}()
	return ExtractHTML(bytes.NewReader(page.Body), page.ContentType())
}

func statusReason(page *scraper.Page) string {
	if _, reason, ok := strings.Cut(page.Status, " "); ok && reason != "" {
		return reason
	}
	return http.StatusText(page.StatusCode)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
