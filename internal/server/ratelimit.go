package server

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// rateLimiter hands out one token bucket per client key.
type rateLimiter struct {
	limit rate.Limit
	burst int

	mu      sync.Mutex
	clients map[string]*rate.Limiter
}

func newRateLimiter(perSecond float64, burst int) *rateLimiter {
	return &rateLimiter{
		limit:   rate.Limit(perSecond),
		burst:   burst,
		clients: make(map[string]*rate.Limiter),
	}
}

func (rl *rateLimiter) enabled() bool {
	return rl.limit > 0 && rl.burst > 0
}

// newLimiter returns a standalone bucket, or nil when limiting is disabled.
func (rl *rateLimiter) newLimiter() *rate.Limiter {
	if !rl.enabled() {
		return nil
	}
	return rate.NewLimiter(rl.limit, rl.burst)
}

func (rl *rateLimiter) allow(key string) bool {
	if !rl.enabled() {
		return true
	}
	rl.mu.Lock()
	limiter, ok := rl.clients[key]
	if !ok {
		limiter = rate.NewLimiter(rl.limit, rl.burst)
		rl.clients[key] = limiter
	}
	rl.mu.Unlock()
	return limiter.Allow()
}

// sweep forgets clients whose bucket has refilled.
func (rl *rateLimiter) sweep() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	now := time.Now()
	for key, limiter := range rl.clients {
		if limiter.TokensAt(now) >= float64(rl.burst) {
			delete(rl.clients, key)
		}
	}
}

func (rl *rateLimiter) sweepEvery(ctx context.Context, interval time.Duration) {
	if !rl.enabled() {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rl.sweep()
		}
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
