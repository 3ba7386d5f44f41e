// Package ratelimit implements a fixed-window per-client request limiter.
package ratelimit

import (
	"sync"
	"sync/atomic"
	"time"
)

// staleAfter is how long an idle client entry survives before the
// cleanup loop drops it.
const staleAfter = 10 * time.Minute

// Config holds rate limiter configuration.
type Config struct {
	RequestsPerMinute int
	CleanupInterval   time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		RequestsPerMinute: 60,
		CleanupInterval:   5 * time.Minute,
	}
}

// Limiter tracks request counts per client key, typically an IP.
type Limiter struct {
	mu           sync.Mutex
	clients      map[string]*window
	stopCleanup  chan struct{}
	shutdownOnce sync.Once
	totalDenied  int64

	requestsPerMinute int
	cleanupInterval   time.Duration
}

// window is one client's count inside the current minute.
type window struct {
	startedAt time.Time
	requests  int
}

// NewLimiter creates a limiter and starts its cleanup loop. Call Stop
// on shutdown.
func NewLimiter(config Config) *Limiter {
	if config.RequestsPerMinute <= 0 {
		config = DefaultConfig()
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = 5 * time.Minute
	}

	rl := &Limiter{
		clients:           make(map[string]*window),
		stopCleanup:       make(chan struct{}),
		requestsPerMinute: config.RequestsPerMinute,
		cleanupInterval:   config.CleanupInterval,
	}
	go rl.cleanupLoop()
	return rl
}

// Allow reports whether a request from the given client fits inside the
// current window. Denied requests are counted for metrics.
func (rl *Limiter) Allow(clientKey string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	w, ok := rl.clients[clientKey]
	if !ok || now.Sub(w.startedAt) > time.Minute {
		rl.clients[clientKey] = &window{startedAt: now, requests: 1}
		return true
	}

	w.requests++
	if w.requests > rl.requestsPerMinute {
		atomic.AddInt64(&rl.totalDenied, 1)
		return false
	}
	return true
}

func (rl *Limiter) cleanupLoop() {
	ticker := time.NewTicker(rl.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.dropStale()
		case <-rl.stopCleanup:
			return
		}
	}
}

func (rl *Limiter) dropStale() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := time.Now().Add(-staleAfter)
	for key, w := range rl.clients {
		if w.startedAt.Before(cutoff) {
			delete(rl.clients, key)
		}
	}
}

// Stop terminates the cleanup loop. Safe to call more than once.
func (rl *Limiter) Stop() {
	rl.shutdownOnce.Do(func() {
		close(rl.stopCleanup)
	})
}

// Metrics is a point-in-time view of limiter activity.
type Metrics struct {
	TotalDenied int64
	ClientCount int64
}

// GetMetrics returns current limiter metrics.
func (rl *Limiter) GetMetrics() Metrics {
	rl.mu.Lock()
	clients := int64(len(rl.clients))
	rl.mu.Unlock()

	return Metrics{
		TotalDenied: atomic.LoadInt64(&rl.totalDenied),
		ClientCount: clients,
	}
}
