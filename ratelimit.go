package main

import (
	"sync"
	"time"
)

// rateLimiter counts requests per client address within a fixed window.
// The counts map is cleared when the window rolls over.
type rateLimiter struct {
	mu        sync.Mutex
	counts    map[string]int
	limit     int
	window    time.Duration
	lastReset time.Time
}

func newRateLimiter(limit int, window time.Duration) *rateLimiter {
	return &rateLimiter{
		counts:    make(map[string]int),
		limit:     limit,
		window:    window,
		lastReset: time.Now(),
	}
}

// allow reports whether addr may make another request in the current window.
func (l *rateLimiter) allow(addr string) bool {
	if l.limit <= 0 {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if now.Sub(l.lastReset) >= l.window {
		l.counts = make(map[string]int)
		l.lastReset = now
	}

	if l.counts[addr] >= l.limit {
		return false
	}

	l.counts[addr]++
	return true
}
