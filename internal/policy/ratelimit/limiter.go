// Package ratelimit throttles crawler requests per host with token buckets.
package ratelimit

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/JakeFAU/seo-audit/internal/metrics"
)

// minObservedDelay filters out waits that were satisfied from the bucket.
const minObservedDelay = time.Millisecond

// Config holds rate limiter configuration. A non-positive RPS disables
// throttling for hosts without an override.
type Config struct {
	RPS   float64
	Burst int
	// HostRPS overrides RPS for specific hostnames.
	HostRPS map[string]float64
}

// Limiter hands out one token bucket per hostname.
type Limiter struct {
	mu       sync.Mutex
	buckets  map[string]*rate.Limiter
	rate     rate.Limit
	burst    int
	hostRate map[string]rate.Limit
}

// New creates a new Limiter.
func New(cfg Config) *Limiter {
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	overrides := make(map[string]rate.Limit, len(cfg.HostRPS))
	for host, rps := range cfg.HostRPS {
		overrides[strings.ToLower(host)] = toLimit(rps)
	}
	return &Limiter{
		buckets:  make(map[string]*rate.Limiter),
		rate:     toLimit(cfg.RPS),
		burst:    burst,
		hostRate: overrides,
	}
}

// Wait blocks until rawURL's host may be fetched or ctx ends.
func (l *Limiter) Wait(ctx context.Context, rawURL string) error {
	host := hostOf(rawURL)
	bucket := l.bucket(host)

	start := time.Now()
	if err := bucket.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait for %s: %w", host, err)
	}
	if waited := time.Since(start); waited > minObservedDelay {
		metrics.ObserveRateLimitDelay(host, waited)
	}
	return nil
}

func (l *Limiter) bucket(host string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	bucket, ok := l.buckets[host]
	if !ok {
		limit, overridden := l.hostRate[host]
		if !overridden {
			limit = l.rate
		}
		bucket = rate.NewLimiter(limit, l.burst)
		l.buckets[host] = bucket
	}
	return bucket
}

func toLimit(rps float64) rate.Limit {
	if rps <= 0 {
		return rate.Inf
	}
	return rate.Limit(rps)
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}
