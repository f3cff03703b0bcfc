package strava

import (
	"context"
	"fmt"
	"time"

	"stravawesome/api-service/internal/models"

	"golang.org/x/sync/singleflight"
)

const (
	defaultActivityCount = 30
	defaultActivityTTL   = 15 * time.Minute
)

// SharedService deduplicates concurrent inbound requests for the same user's
// activities: one upstream fetch per user is in flight at a time, and late
// arrivals await its result instead of issuing their own call.
type SharedService struct {
	client *Client
	tokens *TokenManager
	group  singleflight.Group
	ttl    time.Duration
}

func NewSharedService(client *Client, tokens *TokenManager, ttl time.Duration) *SharedService {
	if ttl <= 0 {
		ttl = defaultActivityTTL
	}
	return &SharedService{client: client, tokens: tokens, ttl: ttl}
}

// Activities returns up to count recent activities for the user, resolving a
// valid token first. detailed merges per-activity geographic data.
func (s *SharedService) Activities(ctx context.Context, userID string, count int, detailed bool) ([]models.Activity, error) {
	if count <= 0 {
		count = defaultActivityCount
	}

	key := userID
	if detailed {
		key = userID + ":detailed"
	}
	value, err, _ := s.group.Do(key, func() (any, error) {
		token, err := s.tokens.GetValidToken(ctx, userID)
		if err != nil {
			return nil, err
		}
		opts := FetchOptions{CacheKey: key, TTL: s.ttl}
		if detailed {
			return s.client.FetchActivitiesWithDetails(ctx, token.AccessToken, count, opts)
		}
		return s.client.FetchActivities(ctx, token.AccessToken, count, opts)
	})
	if err != nil {
		return nil, err
	}
	return value.([]models.Activity), nil
}

// Photos collects photos across the user's recent activities with photos
// attached. Individual photo-fetch failures leave gaps rather than failing.
func (s *SharedService) Photos(ctx context.Context, userID string, size int) ([]models.ActivityPhoto, error) {
	token, err := s.tokens.GetValidToken(ctx, userID)
	if err != nil {
		return nil, err
	}

	activities, err := s.Activities(ctx, userID, defaultActivityCount, false)
	if err != nil {
		return nil, err
	}

	var photos []models.ActivityPhoto
	for _, activity := range activities {
		if activity.PhotoCount == 0 {
			continue
		}
		batch, err := s.client.FetchActivityPhotos(ctx, token.AccessToken, activity.ID, size)
		if err != nil {
			continue
		}
		for i := range batch {
			batch[i].ActivityName = activity.Name
		}
		photos = append(photos, batch...)
	}
	if photos == nil {
		photos = []models.ActivityPhoto{}
	}
	return photos, nil
}

// Invalidate drops the cached lists for a user, forcing the next read to hit
// the upstream API.
func (s *SharedService) Invalidate(userID string) {
	s.client.activities.Delete(userID)
	s.client.activities.Delete(userID + ":detailed")
}

// Summary renders a compact text description of recent training, used as
// context for the AI coach prompt.
func Summary(activities []models.Activity) string {
	if len(activities) == 0 {
		return "No recent activities."
	}

	totalKm := 0.0
	totalMoving := 0
	bySport := map[string]int{}
	for _, a := range activities {
		totalKm += a.Distance / 1000
		totalMoving += a.MovingTime
		bySport[a.SportType]++
	}

	summary := fmt.Sprintf("%d activities in the recent window: %.1f km total, %.1f hours moving.",
		len(activities), totalKm, float64(totalMoving)/3600)
	for sport, n := range bySport {
		summary += fmt.Sprintf(" %s x%d.", sport, n)
	}
	return summary
}
