package ratelimit

import (
	"sync"
	"time"
)

// Limiter throttles outbound API calls with a fixed per-minute window per
// host. It exists to keep background revalidation storms from hammering the
// remote API; it is not a fairness mechanism.
type Limiter struct {
	mu           sync.Mutex
	hosts        map[string]*hostWindow
	stopCleanup  chan struct{}
	shutdownOnce sync.Once

	requestsPerMinute int
	cleanupInterval   time.Duration
}

type hostWindow struct {
	windowStart time.Time
	requests    int
}

// Config holds rate limiter configuration
type Config struct {
	RequestsPerMinute int
	CleanupInterval   time.Duration
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		RequestsPerMinute: 120,
		CleanupInterval:   5 * time.Minute,
	}
}

// NewLimiter creates a new rate limiter
func NewLimiter(config Config) *Limiter {
	if config.RequestsPerMinute <= 0 {
		config.RequestsPerMinute = DefaultConfig().RequestsPerMinute
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = DefaultConfig().CleanupInterval
	}

	l := &Limiter{
		hosts:             make(map[string]*hostWindow),
		stopCleanup:       make(chan struct{}),
		requestsPerMinute: config.RequestsPerMinute,
		cleanupInterval:   config.CleanupInterval,
	}
	go l.startCleanup()
	return l
}

// Allow reports whether another request to the given host fits in the
// current window and records it if so.
func (l *Limiter) Allow(host string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	w, exists := l.hosts[host]
	if !exists {
		l.hosts[host] = &hostWindow{windowStart: now, requests: 1}
		return true
	}

	if now.Sub(w.windowStart) > time.Minute {
		w.windowStart = now
		w.requests = 1
		return true
	}

	if w.requests >= l.requestsPerMinute {
		return false
	}
	w.requests++
	return true
}

func (l *Limiter) startCleanup() {
	ticker := time.NewTicker(l.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.cleanup()
		case <-l.stopCleanup:
			return
		}
	}
}

func (l *Limiter) cleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := time.Now().Add(-2 * time.Minute)
	for host, w := range l.hosts {
		if w.windowStart.Before(cutoff) {
			delete(l.hosts, host)
		}
	}
}

// Stop shuts down the cleanup goroutine.
func (l *Limiter) Stop() {
	l.shutdownOnce.Do(func() {
		close(l.stopCleanup)
	})
}
