package retrieval

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter implements three-tier rate limiting for page fetching
type RateLimiter struct {
	globalLimiter      *rate.Limiter // Overall requests/second for the server
	perDomainLimiters  *sync.Map     // map[string]*rate.Limiter - per domain limits
	perSessionLimiters *sync.Map     // map[string]*rate.Limiter - per conversation limits
	mu                 sync.RWMutex
}

// NewRateLimiter creates a new three-tier rate limiter
func NewRateLimiter(globalRate, perSessionRate float64) *RateLimiter {
	return &RateLimiter{
		globalLimiter:      rate.NewLimiter(rate.Limit(globalRate), int(globalRate*2)),
		perDomainLimiters:  &sync.Map{},
		perSessionLimiters: &sync.Map{},
	}
}

// Wait applies all three tiers of rate limiting
func (rl *RateLimiter) Wait(ctx context.Context, sessionID, domain string) error {
	return rl.WaitWithCrawlDelay(ctx, sessionID, domain, 500*time.Millisecond)
}

// WaitWithCrawlDelay applies rate limiting with respect to robots.txt crawl-delay
func (rl *RateLimiter) WaitWithCrawlDelay(ctx context.Context, sessionID, domain string, crawlDelay time.Duration) error {
	// Tier 1: Global rate limit (protect server resources)
	if err := rl.globalLimiter.Wait(ctx); err != nil {
		return err
	}

	// Tier 2: Per-domain rate limit (respect target websites)
	domainLimiter := rl.getOrCreateDomainLimiter(domain, crawlDelay)
	if err := domainLimiter.Wait(ctx); err != nil {
		return err
	}

	// Tier 3: Per-session rate limit (fair usage across conversations)
	sessionLimiter := rl.getOrCreateSessionLimiter(sessionID)
	if err := sessionLimiter.Wait(ctx); err != nil {
		return err
	}

	return nil
}

// getOrCreateDomainLimiter gets or creates a rate limiter for a domain derived from its crawl delay
func (rl *RateLimiter) getOrCreateDomainLimiter(domain string, crawlDelay time.Duration) *rate.Limiter {
	if limiter, ok := rl.perDomainLimiters.Load(domain); ok {
		return limiter.(*rate.Limiter)
	}

	requestsPerSecond := 1.0 / crawlDelay.Seconds()
	if requestsPerSecond > 5.0 {
		requestsPerSecond = 5.0 // Cap at 5 req/s
	}
	if requestsPerSecond < 0.2 {
		requestsPerSecond = 0.2 // Minimum 1 request per 5 seconds
	}

	newLimiter := rate.NewLimiter(rate.Limit(requestsPerSecond), 1)

	// Try to store, but use existing if another goroutine created it first
	actual, _ := rl.perDomainLimiters.LoadOrStore(domain, newLimiter)
	return actual.(*rate.Limiter)
}

// getOrCreateSessionLimiter gets or creates a rate limiter for a session (5 req/s)
func (rl *RateLimiter) getOrCreateSessionLimiter(sessionID string) *rate.Limiter {
	if limiter, ok := rl.perSessionLimiters.Load(sessionID); ok {
		return limiter.(*rate.Limiter)
	}

	newLimiter := rate.NewLimiter(rate.Limit(5.0), 10)

	actual, _ := rl.perSessionLimiters.LoadOrStore(sessionID, newLimiter)
	return actual.(*rate.Limiter)
}

// SetGlobalRate updates the global rate limit
func (rl *RateLimiter) SetGlobalRate(requestsPerSecond float64) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.globalLimiter.SetLimit(rate.Limit(requestsPerSecond))
	rl.globalLimiter.SetBurst(int(requestsPerSecond * 2))
}
