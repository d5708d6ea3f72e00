// Package proxy rotates outbound requests across forward proxies and benches
// proxies that keep failing.
package proxy

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// Defaults for Config zero values.
const (
	DefaultMaxFailures = 3
	DefaultCooldown    = 5 * time.Minute
)

// ErrNoProxy is returned by Next when every proxy is benched.
var ErrNoProxy = errors.New("proxy: no healthy proxy available")

// Config tunes health tracking.
type Config struct {
	// MaxFailures consecutive failures bench a proxy.
	MaxFailures int
	// Cooldown is how long a benched proxy sits out.
	Cooldown time.Duration
}

type endpoint struct {
	url          *url.URL
	failures     int
	benchedUntil time.Time
}

// Pool hands out proxies round-robin. It is safe for concurrent use.
type Pool struct {
	mu          sync.Mutex
	endpoints   []*endpoint
	next        int
	maxFailures int
	cooldown    time.Duration
	now         func() time.Time
}

// Parse validates a proxy URL. A bare host:port is taken as http.
func Parse(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("proxy: %w", err)
	}
	switch u.Scheme {
	case "http", "https", "socks5":
	default:
		return nil, fmt.Errorf("proxy: unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("proxy: missing host in %q", raw)
	}
	return u, nil
}

// NewPool builds a pool over rawURLs. Duplicates are dropped.
func NewPool(cfg Config, rawURLs ...string) (*Pool, error) {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = DefaultMaxFailures
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = DefaultCooldown
	}

	p := &Pool{
		maxFailures: cfg.MaxFailures,
		cooldown:    cfg.Cooldown,
		now:         time.Now,
	}
	seen := make(map[string]bool, len(rawURLs))
	for _, raw := range rawURLs {
		u, err := Parse(raw)
		if err != nil {
			return nil, err
		}
		if seen[u.String()] {
			continue
		}
		seen[u.String()] = true
		p.endpoints = append(p.endpoints, &endpoint{url: u})
	}
	return p, nil
}

// ReadList reads one proxy URL per line. Blank lines and lines starting
// with '#' are skipped.
func ReadList(r io.Reader) ([]string, error) {
	var urls []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		urls = append(urls, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("proxy: read list: %w", err)
	}
	return urls, nil
}

// Len returns the number of proxies, benched or not.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.endpoints)
}

// Next returns the next proxy that is not benched. A proxy whose cooldown
// has expired is put back into rotation with a clean record.
func (p *Pool) Next() (*url.URL, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	for range p.endpoints {
		e := p.endpoints[p.next]
		p.next = (p.next + 1) % len(p.endpoints)

		if !e.benchedUntil.IsZero() {
			if now.Before(e.benchedUntil) {
				continue
			}
			e.benchedUntil = time.Time{}
			e.failures = 0
		}
		return e.url, nil
	}
	return nil, ErrNoProxy
}

// Report records the outcome of a request made through u. A success clears
// one failure; MaxFailures failures bench the proxy for Cooldown.
func (p *Pool) Report(u *url.URL, err error) {
	if u == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	e := p.find(u)
	if e == nil {
		return
	}
	if err == nil {
		if e.failures > 0 {
			e.failures--
		}
		return
	}
	e.failures++
	if e.failures >= p.maxFailures {
		e.benchedUntil = p.now().Add(p.cooldown)
	}
}

// find must be called with mu held.
func (p *Pool) find(u *url.URL) *endpoint {
	key := u.String()
	for _, e := range p.endpoints {
		if e.url.String() == key {
			return e
		}
	}
	return nil
}

type ctxKey struct{}

// WithProxy returns a context that routes requests made with it through u.
func WithProxy(ctx context.Context, u *url.URL) context.Context {
	return context.WithValue(ctx, ctxKey{}, u)
}

// FromRequest is an http.Transport Proxy func that honours WithProxy. A
// request without a proxy in its context goes direct.
func FromRequest(req *http.Request) (*url.URL, error) {
	u, _ := req.Context().Value(ctxKey{}).(*url.URL)
	return u, nil
}
