package useragent

import (
	"crypto/rand"
	"math/big"
	mrand "math/rand/v2"
	"sync"
	"sync/atomic"
)

// DefaultPool is a set of current desktop browser identities spanning the
// common OS and browser combinations seen on a results page.
var DefaultPool = []string{
	// Chrome Windows
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	// Chrome Mac
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	// Chrome Linux
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	// Firefox Windows
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:125.0) Gecko/20100101 Firefox/125.0",
	// Firefox Mac
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10.15; rv:125.0) Gecko/20100101 Firefox/125.0",
	// Safari Mac
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Safari/605.1.15",
	// Edge Windows
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36 Edg/124.0.0.0",
}

// Rotator hands out a client identity for each outbound request.
type Rotator interface {
	Next() string
}

// Option customizes a Pool.
type Option func(*Pool)

// WithRand makes Next draw from r instead of crypto/rand. Tests use a seeded
// source to get a reproducible sequence.
func WithRand(r *mrand.Rand) Option {
	return func(p *Pool) {
		p.rnd = r
	}
}

// Pool is a fixed set of User-Agents drawn uniformly at random.
type Pool struct {
	uas []string
	// counter drives the round-robin fallback when crypto/rand fails.
	counter atomic.Uint64

	rndMu sync.Mutex
	rnd   *mrand.Rand
}

var _ Rotator = (*Pool)(nil)

// NewPool creates a new User-Agent pool. If the provided slice is empty,
// it falls back to DefaultPool.
func NewPool(uas []string, opts ...Option) *Pool {
	if len(uas) == 0 {
		uas = DefaultPool
	}
	copied := make([]string, len(uas))
	copy(copied, uas)

	p := &Pool{uas: copied}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Next returns a uniformly random User-Agent. It is safe for concurrent use.
func (p *Pool) Next() string {
	if len(p.uas) == 0 {
		return ""
	}
	return p.uas[p.index()]
}

// Contains reports whether ua is a member of the pool.
func (p *Pool) Contains(ua string) bool {
	for _, u := range p.uas {
		if u == ua {
			return true
		}
	}
	return false
}

func (p *Pool) index() int {
	n := len(p.uas)
	if p.rnd != nil {
		p.rndMu.Lock()
		defer p.rndMu.Unlock()
		return p.rnd.IntN(n)
	}
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		// crypto/rand failing is not worth failing a request over
		return int((p.counter.Add(1) - 1) % uint64(n))
	}
	return int(v.Int64())
}
