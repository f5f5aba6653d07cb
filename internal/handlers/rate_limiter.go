package handlers

import (
	"strings"
	"sync"
	"time"
)

type rateLimiter interface {
	Allow(key string) bool
}

// callbackRateLimiter is a fixed-window counter keyed by calling client. It
// exists to shield the gateway callback endpoint from replay floods; exceeding
// the window budget denies the caller until the window rolls over.
type callbackRateLimiter struct {
	budget int
	window time.Duration
	clock  func() time.Time

	mu      sync.Mutex
	windows map[string]*callbackWindow
	sweeps  int
}

type callbackWindow struct {
	startedAt time.Time
	hits      int
}

// Stale windows are swept every sweepEvery new-window openings so the map
// does not grow with one entry per client forever.
const sweepEvery = 32

func newCallbackRateLimiter(budget int, window time.Duration, clock func() time.Time) rateLimiter {
	if budget <= 0 || window <= 0 {
		return nil
	}
	if clock == nil {
		clock = time.Now
	}
	return &callbackRateLimiter{
		budget:  budget,
		window:  window,
		clock:   clock,
		windows: make(map[string]*callbackWindow),
	}
}

func (l *callbackRateLimiter) Allow(key string) bool {
	if l == nil {
		return true
	}
	if key = strings.TrimSpace(key); key == "" {
		key = "anonymous"
	}

	now := l.clock()
	l.mu.Lock()
	defer l.mu.Unlock()

	win := l.windows[key]
	if win == nil || now.Sub(win.startedAt) >= l.window {
		l.windows[key] = &callbackWindow{startedAt: now, hits: 1}
		l.sweeps++
		if l.sweeps >= sweepEvery {
			l.sweeps = 0
			l.dropStaleLocked(now)
		}
		return true
	}

	if win.hits >= l.budget {
		return false
	}
	win.hits++
	return true
}

func (l *callbackRateLimiter) dropStaleLocked(now time.Time) {
	for key, win := range l.windows {
		if now.Sub(win.startedAt) >= l.window {
			delete(l.windows, key)
		}
	}
}
