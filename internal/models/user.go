package models

import "time"

type User struct {
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	Name      string    `json:"name,omitempty"`
	Premium   bool      `json:"premium"`
	CreatedAt time.Time `json:"created_at"`
}

type Session struct {
	SessionID string    `json:"session_id"`
	UserID    string    `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Account is a linked OAuth account row. AccessToken and RefreshToken are
// managed by the token manager; everything else is written once at link time.
type Account struct {
	UserID       string    `json:"user_id"`
	Provider     string    `json:"provider"`
	AthleteID    string    `json:"athlete_id,omitempty"`
	AccessToken  string    `json:"-"`
	RefreshToken string    `json:"-"`
	ExpiresAt    time.Time `json:"expires_at"`
}

type Subscription struct {
	UserID     string     `json:"user_id"`
	ExternalID string     `json:"external_id"`
	Status     string     `json:"status"`
	PlanID     string     `json:"plan_id,omitempty"`
	UpdatedAt  time.Time  `json:"updated_at"`
	EndsAt     *time.Time `json:"ends_at,omitempty"`
}

const (
	SubscriptionActive   = "active"
	SubscriptionCanceled = "canceled"
	SubscriptionPastDue  = "past_due"
)
