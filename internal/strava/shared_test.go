package strava

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"stravawesome/api-service/internal/models"
)

func newTestShared(t *testing.T, upstream http.HandlerFunc) (*SharedService, *atomic.Int64) {
	t.Helper()

	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		upstream(w, r)
	}))
	t.Cleanup(server.Close)

	client := NewClient(ClientConfig{BaseURL: server.URL, RetryPolicy: fastPolicy()})
	accounts := &fakeAccounts{account: models.Account{
		AccessToken:  "tok",
		RefreshToken: "refresh",
		ExpiresAt:    time.Now().Add(time.Hour),
	}}
	tokens := NewTokenManager(accounts, TokenManagerConfig{TokenURL: "http://unused.invalid"})
	return NewSharedService(client, tokens, 15*time.Minute), &calls
}

func TestActivitiesDeduplicatesConcurrentFetches(t *testing.T) {
	shared, calls := newTestShared(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(50 * time.Millisecond)
		_ = json.NewEncoder(w).Encode(summaries(1, 2, 3))
	})

	var wg sync.WaitGroup
	results := make([][]models.Activity, 5)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			activities, err := shared.Activities(context.Background(), "u1", 30, false)
			if err != nil {
				t.Errorf("activities: %v", err)
				return
			}
			results[i] = activities
		}()
	}
	wg.Wait()

	if calls.Load() != 1 {
		t.Fatalf("expected one upstream fetch for concurrent callers, got %d", calls.Load())
	}
	for i, result := range results {
		if len(result) != 3 {
			t.Fatalf("caller %d got %d activities", i, len(result))
		}
	}
}

func TestActivitiesServedFromCacheAcrossCalls(t *testing.T) {
	shared, calls := newTestShared(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(summaries(1))
	})

	for i := 0; i < 3; i++ {
		if _, err := shared.Activities(context.Background(), "u1", 10, false); err != nil {
			t.Fatalf("activities: %v", err)
		}
	}
	if calls.Load() != 1 {
		t.Fatalf("expected one upstream fetch, got %d", calls.Load())
	}

	shared.Invalidate("u1")
	if _, err := shared.Activities(context.Background(), "u1", 10, false); err != nil {
		t.Fatalf("activities: %v", err)
	}
	if calls.Load() != 2 {
		t.Fatalf("invalidate should force a refetch, got %d calls", calls.Load())
	}
}

func TestPhotosCollectsAcrossActivities(t *testing.T) {
	shared, _ := newTestShared(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/athlete/activities":
			_ = json.NewEncoder(w).Encode([]map[string]any{
				{"id": int64(1), "name": "With Photos", "sport_type": "Run", "total_photo_count": 2},
				{"id": int64(2), "name": "No Photos", "sport_type": "Ride"},
			})
		case "/activities/1/photos":
			_ = json.NewEncoder(w).Encode([]map[string]any{
				{"unique_id": "p1", "urls": map[string]string{"600": "https://cdn/p1.jpg"}},
				{"unique_id": "p2", "urls": map[string]string{"600": "https://cdn/p2.jpg"}},
			})
		default:
			t.Errorf("unexpected upstream path %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	})

	photos, err := shared.Photos(context.Background(), "u1", 600)
	if err != nil {
		t.Fatalf("photos: %v", err)
	}
	if len(photos) != 2 {
		t.Fatalf("expected 2 photos, got %d", len(photos))
	}
	if photos[0].ActivityName != "With Photos" {
		t.Fatalf("photo should carry its activity name, got %+v", photos[0])
	}
}

func TestSummaryDescribesTraining(t *testing.T) {
	if got := Summary(nil); got != "No recent activities." {
		t.Fatalf("unexpected empty summary %q", got)
	}

	activities := []models.Activity{
		{SportType: "Run", Distance: 10000, MovingTime: 3600},
		{SportType: "Run", Distance: 5000, MovingTime: 1800},
	}
	got := Summary(activities)
	if got == "" || got == "No recent activities." {
		t.Fatalf("expected summary text, got %q", got)
	}
}
