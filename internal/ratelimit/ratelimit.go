// Package ratelimit throttles inbound channel traffic per peer, so a single
// noisy chat cannot monopolize the agent pool or the sandboxed tool loop.
package ratelimit

import (
	"sync"

	"golang.org/x/time/rate"
)

// PerKey hands out one token-bucket limiter per key, lazily created on first
// use and shared across calls for that key thereafter.
type PerKey struct {
	r     rate.Limit
	burst int

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewPerKey builds a limiter factory allowing r events/sec with burst
// capacity burst, per distinct key.
func NewPerKey(r float64, burst int) *PerKey {
	if burst <= 0 {
		burst = 1
	}
	return &PerKey{r: rate.Limit(r), burst: burst, limiters: make(map[string]*rate.Limiter)}
}

// Allow reports whether an event for key may proceed right now, consuming a
// token if so.
func (p *PerKey) Allow(key string) bool {
	return p.limiterFor(key).Allow()
}

func (p *PerKey) limiterFor(key string) *rate.Limiter {
	p.mu.Lock()
	defer p.mu.Unlock()
	l, ok := p.limiters[key]
	if !ok {
		l = rate.NewLimiter(p.r, p.burst)
		p.limiters[key] = l
	}
	return l
}
