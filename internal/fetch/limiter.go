package fetch

import (
	"context"
	"sync"
	"time"
)

// TokenBucket is a per-registry rate limiter. No pack example imports a
// rate-limiting library (golang.org/x/time/rate never appears in go.mod
// anywhere in the corpus), so this stays on the standard library the same
// way core.RateLimiter's sibling fetch.Fetcher hand-rolls its own backoff.
type TokenBucket struct {
	mu         sync.Mutex
	tokens     float64
	max        float64
	refillRate float64 // tokens per second
	last       time.Time
}

// NewTokenBucket creates a limiter allowing ratePerSecond sustained requests,
// with burst capacity equal to the rate (never more than one second's worth
// of pent-up demand).
func NewTokenBucket(ratePerSecond float64) *TokenBucket {
	if ratePerSecond <= 0 {
		ratePerSecond = 1
	}
	return &TokenBucket{
		tokens:     ratePerSecond,
		max:        ratePerSecond,
		refillRate: ratePerSecond,
		last:       time.Now(),
	}
}

// Wait blocks until a token is available or ctx is done.
func (b *TokenBucket) Wait(ctx context.Context) error {
	for {
		wait, ok := b.take()
		if ok {
			return nil
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func (b *TokenBucket) take() (time.Duration, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(b.last).Seconds()
	b.last = now
	b.tokens += elapsed * b.refillRate
	if b.tokens > b.max {
		b.tokens = b.max
	}

	if b.tokens >= 1 {
		b.tokens--
		return 0, true
	}

	deficit := 1 - b.tokens
	return time.Duration(deficit/b.refillRate*1000) * time.Millisecond, false
}

// Budgets is the per-registry request budget table (spec 4.4's table),
// expressed as sustained requests per second.
var Budgets = map[string]float64{
	"crates.io":           1,
	"registry.npmjs.org":  1,
	"pypi.org":            20,
	"proxy.golang.org":    50,
	"packagist.org":       1, // 60/minute
	"pub.dev":             1.66, // 100/minute
	"api.nuget.org":       50,
	"rubygems.org":        10,
}

// BudgetFor returns the configured budget for a registry host, defaulting to
// a conservative 1 request/second for unlisted hosts (alternate registries,
// private indices).
func BudgetFor(host string) float64 {
	if b, ok := Budgets[host]; ok {
		return b
	}
	return 1
}
