package strava

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"stravawesome/api-service/internal/models"
	"stravawesome/api-service/internal/retry"
)

func fastPolicy() retry.Policy {
	return retry.NewPolicy(3, time.Millisecond, 5*time.Millisecond)
}

func summaries(ids ...int64) []map[string]any {
	out := make([]map[string]any, 0, len(ids))
	for _, id := range ids {
		out = append(out, map[string]any{
			"id":         id,
			"name":       "Morning Run",
			"sport_type": "Run",
			"distance":   5000.0,
			"start_date": "2025-06-01T08:00:00Z",
		})
	}
	return out
}

func TestFetchActivitiesCachesBySize(t *testing.T) {
	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_ = json.NewEncoder(w).Encode(summaries(1, 2, 3))
	}))
	defer server.Close()

	c := NewClient(ClientConfig{BaseURL: server.URL, RetryPolicy: fastPolicy()})
	opts := FetchOptions{CacheKey: "u1", TTL: time.Minute}

	if _, err := c.FetchActivities(context.Background(), "tok", 30, opts); err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("expected 1 upstream call, got %d", calls.Load())
	}

	// Smaller request is served from cache.
	if _, err := c.FetchActivities(context.Background(), "tok", 10, opts); err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("smaller request should hit cache, got %d calls", calls.Load())
	}

	// Larger request must go back to the network.
	if _, err := c.FetchActivities(context.Background(), "tok", 50, opts); err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if calls.Load() != 2 {
		t.Fatalf("larger request should miss cache, got %d calls", calls.Load())
	}
}

func TestFetchActivitiesRateLimitedReturnsStale(t *testing.T) {
	var limited atomic.Bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if limited.Load() {
			w.Header().Set("Retry-After", "30")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_ = json.NewEncoder(w).Encode(summaries(1, 2))
	}))
	defer server.Close()

	c := NewClient(ClientConfig{BaseURL: server.URL, RetryPolicy: fastPolicy()})

	// Seed the cache with a very short TTL, then let it expire.
	opts := FetchOptions{CacheKey: "u1", TTL: time.Nanosecond}
	seeded, err := c.FetchActivities(context.Background(), "tok", 2, opts)
	if err != nil || len(seeded) != 2 {
		t.Fatalf("seed fetch: %v (%d items)", err, len(seeded))
	}
	time.Sleep(time.Millisecond)

	limited.Store(true)
	stale, err := c.FetchActivities(context.Background(), "tok", 2, opts)
	if err != nil {
		t.Fatalf("rate limited fetch must not error: %v", err)
	}
	if len(stale) != 2 {
		t.Fatalf("expected stale entries, got %d", len(stale))
	}
}

func TestFetchActivitiesRateLimitedNoCacheReturnsEmpty(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	c := NewClient(ClientConfig{BaseURL: server.URL, RetryPolicy: fastPolicy()})
	activities, err := c.FetchActivities(context.Background(), "tok", 30, FetchOptions{CacheKey: "u1", TTL: time.Minute})
	if err != nil {
		t.Fatalf("rate limited fetch must not error: %v", err)
	}
	if activities == nil || len(activities) != 0 {
		t.Fatalf("expected empty list, got %v", activities)
	}
}

func TestFetchActivitiesServerErrorFallsBackToStale(t *testing.T) {
	var failing atomic.Bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if failing.Load() {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(summaries(1))
	}))
	defer server.Close()

	c := NewClient(ClientConfig{BaseURL: server.URL, RetryPolicy: fastPolicy()})
	opts := FetchOptions{CacheKey: "u1", TTL: time.Nanosecond}
	if _, err := c.FetchActivities(context.Background(), "tok", 1, opts); err != nil {
		t.Fatalf("seed fetch: %v", err)
	}
	time.Sleep(time.Millisecond)

	failing.Store(true)
	stale, err := c.FetchActivities(context.Background(), "tok", 1, opts)
	if err != nil {
		t.Fatalf("expected stale fallback, got %v", err)
	}
	if len(stale) != 1 {
		t.Fatalf("expected 1 stale entry, got %d", len(stale))
	}

	// Without any cached data the failure propagates.
	if _, err := c.FetchActivities(context.Background(), "tok", 1, FetchOptions{CacheKey: "other", TTL: time.Minute}); err == nil {
		t.Fatal("expected error when no stale data exists")
	}
}

func TestFetchActivityDetailsRetriesThenGivesUp(t *testing.T) {
	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	c := NewClient(ClientConfig{BaseURL: server.URL, RetryPolicy: fastPolicy()})
	detail, err := c.FetchActivityDetails(context.Background(), "tok", 42)
	if err != nil {
		t.Fatalf("exhausted retries must not error: %v", err)
	}
	if detail != nil {
		t.Fatalf("expected nil detail, got %+v", detail)
	}
	if calls.Load() != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls.Load())
	}
}

func TestFetchActivitiesWithDetailsDegradesPerRecord(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/athlete/activities":
			_ = json.NewEncoder(w).Encode(summaries(1, 2))
		case "/activities/1":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"id":           int64(1),
				"start_latlng": []float64{52.5, 13.4},
				"map":          map[string]string{"summary_polyline": "abc"},
			})
		case "/activities/2":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	c := NewClient(ClientConfig{BaseURL: server.URL, RetryPolicy: fastPolicy()})
	merged, err := c.FetchActivitiesWithDetails(context.Background(), "tok", 2, FetchOptions{CacheKey: "u1", TTL: time.Minute})
	if err != nil {
		t.Fatalf("fetch with details: %v", err)
	}
	if len(merged) != 2 {
		t.Fatalf("expected both records, got %d", len(merged))
	}

	byID := map[int64]models.Activity{}
	for _, a := range merged {
		byID[a.ID] = a
	}
	if !byID[1].Detailed || byID[1].Polyline != "abc" {
		t.Fatalf("activity 1 should carry details: %+v", byID[1])
	}
	if byID[2].Detailed {
		t.Fatalf("activity 2 should degrade to its basic form: %+v", byID[2])
	}
}

func TestFetchActivityPhotos(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([]map[string]any{
			{"unique_id": "p1", "urls": map[string]string{"600": "https://cdn/p1.jpg"}},
		})
	}))
	defer server.Close()

	c := NewClient(ClientConfig{BaseURL: server.URL, RetryPolicy: fastPolicy()})
	photos, err := c.FetchActivityPhotos(context.Background(), "tok", 7, 600)
	if err != nil {
		t.Fatalf("photos: %v", err)
	}
	if len(photos) != 1 || photos[0].URL != "https://cdn/p1.jpg" || photos[0].ActivityID != 7 {
		t.Fatalf("unexpected photos %+v", photos)
	}
}

func TestUsageTrackerObservesHeaders(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-RateLimit-Limit", "600,30000")
		w.Header().Set("X-RateLimit-Usage", "42,314")
		_ = json.NewEncoder(w).Encode(summaries(1))
	}))
	defer server.Close()

	c := NewClient(ClientConfig{BaseURL: server.URL, RetryPolicy: fastPolicy()})
	if _, err := c.FetchActivities(context.Background(), "tok", 1, FetchOptions{CacheKey: "u1", TTL: time.Minute}); err != nil {
		t.Fatalf("fetch: %v", err)
	}

	status := c.Usage()
	if status.Limit15Min != 600 || status.UsageDaily != 314 {
		t.Fatalf("unexpected usage status %+v", status)
	}
}
