// Package ratelimit bounds inbound requests with a fixed window counter per
// client identifier (user ID or IP).
package ratelimit

import (
	"sync"
	"time"
)

type Config struct {
	Window time.Duration
	Max    int
}

// Named configurations for the route groups, differing only in window and max.
var (
	Auth = Config{Window: time.Minute, Max: 10}
	API  = Config{Window: time.Minute, Max: 100}
	Data = Config{Window: time.Minute, Max: 60}
	AI   = Config{Window: time.Minute, Max: 10}
)

type window struct {
	count   int
	resetAt time.Time
}

type Limiter struct {
	mu      sync.Mutex
	windows map[string]window
	now     func() time.Time
	stop    chan struct{}
	once    sync.Once
}

func New() *Limiter {
	return &Limiter{
		windows: make(map[string]window),
		now:     time.Now,
		stop:    make(chan struct{}),
	}
}

// Check records a request for id and reports whether it is within cfg's limit.
// A window starts at the first request and restarts with count 1 once the
// reset time has passed.
func (l *Limiter) Check(id string, cfg Config) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w, ok := l.windows[id]
	if !ok || !now.Before(w.resetAt) {
		l.windows[id] = window{count: 1, resetAt: now.Add(cfg.Window)}
		return true
	}
	if w.count >= cfg.Max {
		return false
	}
	w.count++
	l.windows[id] = w
	return true
}

// StartSweeper deletes expired windows every interval to bound memory.
func (l *Limiter) StartSweeper(interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-l.stop:
				return
			case <-ticker.C:
				l.sweep()
			}
		}
	}()
}

func (l *Limiter) Stop() {
	l.once.Do(func() { close(l.stop) })
}

func (l *Limiter) sweep() {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	for id, w := range l.windows {
		if !now.Before(w.resetAt) {
			delete(l.windows, id)
		}
	}
}

func (l *Limiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.windows)
}
