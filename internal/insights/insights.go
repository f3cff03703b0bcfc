// Package insights aggregates synced activity lists into the figures the
// dashboard charts: totals, per-sport splits, weekly distance and yearly goal
// progress.
package insights

import (
	"sort"
	"time"

	"stravawesome/api-service/internal/models"
)

type SportTotal struct {
	Sport      string  `json:"sport"`
	Count      int     `json:"count"`
	DistanceKm float64 `json:"distance_km"`
}

type WeeklyTotal struct {
	WeekStart  time.Time `json:"week_start"`
	Count      int       `json:"count"`
	DistanceKm float64   `json:"distance_km"`
}

type GoalProgress struct {
	ActivityType string  `json:"activity_type"`
	TargetKm     float64 `json:"target_km"`
	ActualKm     float64 `json:"actual_km"`
	Percent      float64 `json:"percent"`
}

type Insights struct {
	TotalActivities  int            `json:"total_activities"`
	TotalDistanceKm  float64        `json:"total_distance_km"`
	TotalMovingHours float64        `json:"total_moving_hours"`
	TotalElevation   float64        `json:"total_elevation_gain"`
	BySport          []SportTotal   `json:"by_sport"`
	Weekly           []WeeklyTotal  `json:"weekly"`
	Goals            []GoalProgress `json:"goals"`
}

// Compute summarizes activities and measures goals against the activities
// that fall in the goal's year.
func Compute(activities []models.Activity, goals []models.Goal) Insights {
	out := Insights{TotalActivities: len(activities)}

	sports := map[string]*SportTotal{}
	weeks := map[time.Time]*WeeklyTotal{}
	yearKmByType := map[int]map[string]float64{}

	for _, a := range activities {
		km := a.Distance / 1000
		out.TotalDistanceKm += km
		out.TotalMovingHours += float64(a.MovingTime) / 3600
		out.TotalElevation += a.ElevationGain

		sport, ok := sports[a.SportType]
		if !ok {
			sport = &SportTotal{Sport: a.SportType}
			sports[a.SportType] = sport
		}
		sport.Count++
		sport.DistanceKm += km

		week := weekStart(a.StartDate)
		w, ok := weeks[week]
		if !ok {
			w = &WeeklyTotal{WeekStart: week}
			weeks[week] = w
		}
		w.Count++
		w.DistanceKm += km

		year := a.StartDate.Year()
		if yearKmByType[year] == nil {
			yearKmByType[year] = map[string]float64{}
		}
		yearKmByType[year][a.SportType] += km
	}

	for _, sport := range sports {
		out.BySport = append(out.BySport, *sport)
	}
	sort.Slice(out.BySport, func(i, j int) bool {
		return out.BySport[i].DistanceKm > out.BySport[j].DistanceKm
	})

	for _, w := range weeks {
		out.Weekly = append(out.Weekly, *w)
	}
	sort.Slice(out.Weekly, func(i, j int) bool {
		return out.Weekly[i].WeekStart.Before(out.Weekly[j].WeekStart)
	})

	for _, goal := range goals {
		actual := yearKmByType[goal.Year][goal.ActivityType]
		progress := GoalProgress{
			ActivityType: goal.ActivityType,
			TargetKm:     goal.TargetKm,
			ActualKm:     actual,
		}
		if goal.TargetKm > 0 {
			progress.Percent = actual / goal.TargetKm * 100
		}
		out.Goals = append(out.Goals, progress)
	}

	return out
}

// weekStart truncates to the Monday of t's week, UTC.
func weekStart(t time.Time) time.Time {
	t = t.UTC()
	day := t.YearDay() - 1
	weekday := (int(t.Weekday()) + 6) % 7
	start := time.Date(t.Year(), 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, day-weekday)
	return start
}
