package models

import "time"

// Activity is the subset of a Strava activity the dashboard renders.
// Geographic fields are only populated when details were fetched.
type Activity struct {
	ID            int64     `json:"id"`
	Name          string    `json:"name"`
	SportType     string    `json:"sport_type"`
	Distance      float64   `json:"distance"`
	MovingTime    int       `json:"moving_time"`
	ElapsedTime   int       `json:"elapsed_time"`
	ElevationGain float64   `json:"total_elevation_gain"`
	StartDate     time.Time `json:"start_date"`
	AverageSpeed  float64   `json:"average_speed"`
	MaxSpeed      float64   `json:"max_speed,omitempty"`
	Kudos         int       `json:"kudos_count,omitempty"`
	PhotoCount    int       `json:"total_photo_count,omitempty"`

	StartLatLng []float64 `json:"start_latlng,omitempty"`
	EndLatLng   []float64 `json:"end_latlng,omitempty"`
	Polyline    string    `json:"polyline,omitempty"`
	City        string    `json:"location_city,omitempty"`
	Country     string    `json:"location_country,omitempty"`
	Detailed    bool      `json:"detailed"`
}

type ActivityPhoto struct {
	ActivityID   int64     `json:"activity_id"`
	ActivityName string    `json:"activity_name,omitempty"`
	UniqueID     string    `json:"unique_id"`
	URL          string    `json:"url"`
	TakenAt      time.Time `json:"taken_at,omitempty"`
}

type Goal struct {
	GoalID       string    `json:"goal_id"`
	UserID       string    `json:"user_id"`
	Year         int       `json:"year"`
	ActivityType string    `json:"activity_type"`
	TargetKm     float64   `json:"target_km"`
	UpdatedAt    time.Time `json:"updated_at"`
}

const (
	ActivityRun  = "Run"
	ActivityRide = "Ride"
	ActivitySwim = "Swim"
	ActivityHike = "Hike"
	ActivityWalk = "Walk"
)

// GoalActivityTypes lists the sports a yearly goal can target.
var GoalActivityTypes = []string{ActivityRun, ActivityRide, ActivitySwim, ActivityHike, ActivityWalk}
