package strava

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"stravawesome/api-service/internal/cache"
	"stravawesome/api-service/internal/models"
	"stravawesome/api-service/internal/retry"
	"stravawesome/api-service/internal/throttle"

	"golang.org/x/sync/errgroup"
)

const (
	defaultFetchTimeout = 12 * time.Second
	defaultDetailLimit  = 4
	detailTTL           = 30 * time.Minute
	photoTTL            = 30 * time.Minute
)

// Client fetches activity data from the Strava REST API. List, detail and
// photo responses are cached independently; rate-limited reads degrade to
// stale or empty data instead of failing.
type Client struct {
	httpClient   *http.Client
	baseURL      string
	activities   *cache.Cache
	details      *cache.Cache
	photos       *cache.Cache
	retryPolicy  retry.Policy
	queue        *throttle.Queue
	detailLimit  int
	fetchTimeout time.Duration
	usage        *UsageTracker
}

type ClientConfig struct {
	BaseURL      string
	HTTPClient   *http.Client
	RetryPolicy  retry.Policy
	Queue        *throttle.Queue
	DetailLimit  int
	FetchTimeout time.Duration
}

type FetchOptions struct {
	CacheKey string
	TTL      time.Duration
	After    time.Time
	Timeout  time.Duration
}

func NewClient(cfg ClientConfig) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	detailLimit := cfg.DetailLimit
	if detailLimit <= 0 {
		detailLimit = defaultDetailLimit
	}
	fetchTimeout := cfg.FetchTimeout
	if fetchTimeout <= 0 {
		fetchTimeout = defaultFetchTimeout
	}
	policy := cfg.RetryPolicy
	if policy.MaxAttempts == 0 {
		policy = retry.NewPolicy(3, time.Second, 30*time.Second)
	}
	return &Client{
		httpClient:   httpClient,
		baseURL:      cfg.BaseURL,
		activities:   cache.New(),
		details:      cache.New(),
		photos:       cache.New(),
		retryPolicy:  policy,
		queue:        cfg.Queue,
		detailLimit:  detailLimit,
		fetchTimeout: fetchTimeout,
		usage:        NewUsageTracker(),
	}
}

// Usage reports the upstream rate-limit headroom observed on recent responses.
func (c *Client) Usage() UsageStatus {
	return c.usage.Status()
}

// FetchActivities returns up to count recent activities. A cached entry is
// used when unexpired and recorded for at least count items. On HTTP 429 the
// call degrades to stale data, or an empty list when none exists; other
// failures fall back to stale data before propagating.
func (c *Client) FetchActivities(ctx context.Context, token string, count int, opts FetchOptions) ([]models.Activity, error) {
	if cached, ok := c.activities.Get(opts.CacheKey, count); ok {
		return cached.([]models.Activity), nil
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = c.fetchTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	query := url.Values{}
	query.Set("per_page", strconv.Itoa(count))
	if !opts.After.IsZero() {
		query.Set("after", strconv.FormatInt(opts.After.Unix(), 10))
	}

	resp, err := c.get(ctx, token, "/athlete/activities?"+query.Encode())
	if err != nil {
		if stale, ok := c.activities.GetStale(opts.CacheKey, count); ok {
			return stale.([]models.Activity), nil
		}
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		var raw []summaryActivity
		if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
			return nil, fmt.Errorf("decode activities: %w", err)
		}
		activities := make([]models.Activity, 0, len(raw))
		for _, a := range raw {
			activities = append(activities, a.toModel())
		}
		c.activities.Set(opts.CacheKey, activities, opts.TTL, count)
		return activities, nil

	case resp.StatusCode == http.StatusTooManyRequests:
		if after := retryAfter(resp); after > 0 {
			log.Printf("strava rate limited key=%s retry_after=%s", opts.CacheKey, after)
		}
		if stale, ok := c.activities.GetStale(opts.CacheKey, count); ok {
			return stale.([]models.Activity), nil
		}
		return []models.Activity{}, nil

	default:
		if stale, ok := c.activities.GetStale(opts.CacheKey, count); ok {
			return stale.([]models.Activity), nil
		}
		return nil, fmt.Errorf("strava activities: unexpected status %d", resp.StatusCode)
	}
}

// FetchActivityDetails returns the detailed record for one activity, or
// (nil, nil) once rate-limit retries are exhausted so a batch caller can fall
// back to the basic record.
func (c *Client) FetchActivityDetails(ctx context.Context, token string, activityID int64) (*DetailedActivity, error) {
	key := strconv.FormatInt(activityID, 10)
	if cached, ok := c.details.Get(key, 0); ok {
		return cached.(*DetailedActivity), nil
	}

	var detail *DetailedActivity
	err := c.retryPolicy.Do(ctx, func() error {
		resp, err := c.get(ctx, token, "/activities/"+key)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusOK:
			var d DetailedActivity
			if err := json.NewDecoder(resp.Body).Decode(&d); err != nil {
				return fmt.Errorf("decode activity %d: %w", activityID, err)
			}
			detail = &d
			return nil
		case resp.StatusCode == http.StatusTooManyRequests:
			return retry.Transient(fmt.Errorf("strava activity %d: rate limited", activityID), retryAfter(resp))
		default:
			return fmt.Errorf("strava activity %d: unexpected status %d", activityID, resp.StatusCode)
		}
	})
	if err != nil {
		var transient *retry.TransientError
		if errors.As(err, &transient) {
			return nil, nil
		}
		return nil, err
	}

	c.details.Set(key, detail, detailTTL, 0)
	return detail, nil
}

// FetchActivitiesWithDetails fetches the activity list and then the details
// for each entry, concurrently but bounded, routed through the throttle queue.
// A failed detail fetch degrades that one record to its basic form.
func (c *Client) FetchActivitiesWithDetails(ctx context.Context, token string, count int, opts FetchOptions) ([]models.Activity, error) {
	activities, err := c.FetchActivities(ctx, token, count, opts)
	if err != nil {
		return nil, err
	}

	merged := make([]models.Activity, len(activities))
	copy(merged, activities)

	group, ctx := errgroup.WithContext(ctx)
	group.SetLimit(c.detailLimit)
	for i := range merged {
		group.Go(func() error {
			detail, err := c.throttledDetails(ctx, token, merged[i].ID)
			if err != nil || detail == nil {
				if err != nil {
					log.Printf("strava detail fetch degraded id=%d err=%v", merged[i].ID, err)
				}
				return nil
			}
			merged[i] = mergeDetails(merged[i], detail)
			return nil
		})
	}
	// Workers never return errors: each failure degrades its own record only.
	_ = group.Wait()
	return merged, nil
}

func (c *Client) throttledDetails(ctx context.Context, token string, activityID int64) (*DetailedActivity, error) {
	if c.queue == nil {
		return c.FetchActivityDetails(ctx, token, activityID)
	}
	value, err := c.queue.Do(ctx, 0, func(ctx context.Context) (any, error) {
		return c.FetchActivityDetails(ctx, token, activityID)
	})
	if err != nil || value == nil {
		return nil, err
	}
	return value.(*DetailedActivity), nil
}

// FetchActivityPhotos returns the photos attached to one activity. Failures
// degrade to an empty list; photo grids tolerate gaps.
func (c *Client) FetchActivityPhotos(ctx context.Context, token string, activityID int64, size int) ([]models.ActivityPhoto, error) {
	key := strconv.FormatInt(activityID, 10)
	if cached, ok := c.photos.Get(key, 0); ok {
		return cached.([]models.ActivityPhoto), nil
	}

	sizeKey := strconv.Itoa(size)
	var photos []models.ActivityPhoto
	err := c.retryPolicy.Do(ctx, func() error {
		resp, err := c.get(ctx, token, "/activities/"+key+"/photos?photo_sources=true&size="+sizeKey)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusOK:
			var raw []activityPhoto
			if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
				return fmt.Errorf("decode photos %d: %w", activityID, err)
			}
			photos = make([]models.ActivityPhoto, 0, len(raw))
			for _, p := range raw {
				photo := p.toModel(sizeKey)
				photo.ActivityID = activityID
				photos = append(photos, photo)
			}
			return nil
		case resp.StatusCode == http.StatusTooManyRequests:
			return retry.Transient(fmt.Errorf("strava photos %d: rate limited", activityID), retryAfter(resp))
		default:
			return fmt.Errorf("strava photos %d: unexpected status %d", activityID, resp.StatusCode)
		}
	})
	if err != nil {
		if stale, ok := c.photos.GetStale(key, 0); ok {
			return stale.([]models.ActivityPhoto), nil
		}
		return []models.ActivityPhoto{}, nil
	}

	c.photos.Set(key, photos, photoTTL, 0)
	return photos, nil
}

func (c *Client) get(ctx context.Context, token, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	c.usage.Observe(resp)
	return resp, nil
}

func retryAfter(resp *http.Response) time.Duration {
	raw := resp.Header.Get("Retry-After")
	if raw == "" {
		return 0
	}
	seconds, err := strconv.Atoi(raw)
	if err != nil || seconds <= 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}
