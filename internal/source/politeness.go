package source

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	"golang.org/x/time/rate"
)

// Politeness manages per-domain token buckets for outbound fetches, keeping
// scrapes of the upstream sites at a civil pace.
type Politeness struct {
	mu           sync.Mutex
	limiters     map[string]*rate.Limiter
	defaultRate  rate.Limit
	defaultBurst int
}

// NewPoliteness creates a Politeness limiter. A non-positive rps disables
// throttling.
func NewPoliteness(rps float64, burst int) *Politeness {
	r := rate.Limit(rps)
	if rps <= 0 {
		r = rate.Inf
	}
	if burst <= 0 {
		burst = 1
	}
	return &Politeness{
		limiters:     make(map[string]*rate.Limiter),
		defaultRate:  r,
		defaultBurst: burst,
	}
}

// Wait blocks until a token is available for the URL's domain, respecting
// the context.
func (p *Politeness) Wait(ctx context.Context, rawURL string) error {
	domain := "unknown"
	if u, err := url.Parse(rawURL); err == nil && u.Hostname() != "" {
		domain = u.Hostname()
	}

	p.mu.Lock()
	limiter, exists := p.limiters[domain]
	if !exists {
		limiter = rate.NewLimiter(p.defaultRate, p.defaultBurst)
		p.limiters[domain] = limiter
	}
	p.mu.Unlock()

	if err := limiter.Wait(ctx); err != nil {
		return fmt.Errorf("politeness wait: %w", err)
	}
	return nil
}
