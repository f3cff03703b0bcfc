package strava

import (
	"time"

	"stravawesome/api-service/internal/models"
)

// summaryActivity is the wire shape of GET /athlete/activities entries.
type summaryActivity struct {
	ID            int64     `json:"id"`
	Name          string    `json:"name"`
	SportType     string    `json:"sport_type"`
	Distance      float64   `json:"distance"`
	MovingTime    int       `json:"moving_time"`
	ElapsedTime   int       `json:"elapsed_time"`
	ElevationGain float64   `json:"total_elevation_gain"`
	StartDate     time.Time `json:"start_date"`
	AverageSpeed  float64   `json:"average_speed"`
	MaxSpeed      float64   `json:"max_speed"`
	Kudos         int       `json:"kudos_count"`
	PhotoCount    int       `json:"total_photo_count"`
}

// DetailedActivity adds the geographic fields only present on GET /activities/{id}.
type DetailedActivity struct {
	summaryActivity
	StartLatLng []float64 `json:"start_latlng"`
	EndLatLng   []float64 `json:"end_latlng"`
	City        string    `json:"location_city"`
	Country     string    `json:"location_country"`
	Map         struct {
		SummaryPolyline string `json:"summary_polyline"`
	} `json:"map"`
}

type activityPhoto struct {
	ActivityID int64             `json:"activity_id"`
	UniqueID   string            `json:"unique_id"`
	URLs       map[string]string `json:"urls"`
	CreatedAt  time.Time         `json:"created_at"`
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresAt    int64  `json:"expires_at"`
}

func (a summaryActivity) toModel() models.Activity {
	return models.Activity{
		ID:            a.ID,
		Name:          a.Name,
		SportType:     a.SportType,
		Distance:      a.Distance,
		MovingTime:    a.MovingTime,
		ElapsedTime:   a.ElapsedTime,
		ElevationGain: a.ElevationGain,
		StartDate:     a.StartDate,
		AverageSpeed:  a.AverageSpeed,
		MaxSpeed:      a.MaxSpeed,
		Kudos:         a.Kudos,
		PhotoCount:    a.PhotoCount,
	}
}

// mergeDetails copies the geographic fields of d onto the basic record.
func mergeDetails(basic models.Activity, d *DetailedActivity) models.Activity {
	basic.StartLatLng = d.StartLatLng
	basic.EndLatLng = d.EndLatLng
	basic.City = d.City
	basic.Country = d.Country
	basic.Polyline = d.Map.SummaryPolyline
	basic.Detailed = true
	return basic
}

func (p activityPhoto) toModel(size string) models.ActivityPhoto {
	url := p.URLs[size]
	if url == "" {
		for _, u := range p.URLs {
			url = u
			break
		}
	}
	return models.ActivityPhoto{
		ActivityID: p.ActivityID,
		UniqueID:   p.UniqueID,
		URL:        url,
		TakenAt:    p.CreatedAt,
	}
}
