package strava

import (
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// UsageTracker records the rate-limit headers Strava attaches to every
// response: X-RateLimit-Limit and X-RateLimit-Usage, each "15min,daily".
type UsageTracker struct {
	mu          sync.RWMutex
	limit15Min  int
	usage15Min  int
	limitDaily  int
	usageDaily  int
	lastUpdated time.Time
}

type UsageStatus struct {
	Limit15Min  int       `json:"limit_15min"`
	Usage15Min  int       `json:"usage_15min"`
	LimitDaily  int       `json:"limit_daily"`
	UsageDaily  int       `json:"usage_daily"`
	LastUpdated time.Time `json:"last_updated"`
}

func NewUsageTracker() *UsageTracker {
	// Default app limits.
	return &UsageTracker{limit15Min: 200, limitDaily: 2000}
}

func (t *UsageTracker) Observe(resp *http.Response) {
	limit15, limitDaily, okLimit := splitPair(resp.Header.Get("X-RateLimit-Limit"))
	usage15, usageDaily, okUsage := splitPair(resp.Header.Get("X-RateLimit-Usage"))
	if !okLimit && !okUsage {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if okLimit {
		t.limit15Min = limit15
		t.limitDaily = limitDaily
	}
	if okUsage {
		t.usage15Min = usage15
		t.usageDaily = usageDaily
	}
	t.lastUpdated = time.Now()
}

func (t *UsageTracker) Status() UsageStatus {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return UsageStatus{
		Limit15Min:  t.limit15Min,
		Usage15Min:  t.usage15Min,
		LimitDaily:  t.limitDaily,
		UsageDaily:  t.usageDaily,
		LastUpdated: t.lastUpdated,
	}
}

func splitPair(raw string) (int, int, bool) {
	parts := strings.Split(raw, ",")
	if len(parts) != 2 {
		return 0, 0, false
	}
	first, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, 0, false
	}
	second, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return 0, 0, false
	}
	return first, second, true
}
