package store

import (
	"context"
	"time"

	"stravawesome/api-service/internal/models"
)

type TokenUpdate struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

type GoalInput struct {
	UserID       string
	Year         int
	ActivityType string
	TargetKm     float64
}

type SubscriptionUpdate struct {
	UserID     string
	ExternalID string
	Status     string
	PlanID     string
	EndsAt     *time.Time
}

type AccountStore interface {
	GetAccount(ctx context.Context, userID, provider string) (models.Account, error)
	UpdateAccountTokens(ctx context.Context, userID, provider string, update TokenUpdate) error
}

type SessionStore interface {
	GetSession(ctx context.Context, sessionID string) (models.Session, models.User, error)
	CreateSession(ctx context.Context, userID string, expiresAt time.Time) (models.Session, error)
}

type GoalStore interface {
	UpsertGoal(ctx context.Context, input GoalInput) (models.Goal, error)
	ListGoals(ctx context.Context, userID string, year int) ([]models.Goal, error)
}

type SubscriptionStore interface {
	GetSubscription(ctx context.Context, userID string) (models.Subscription, error)
	UpsertSubscription(ctx context.Context, update SubscriptionUpdate) error
}

// Store is the full persistence surface used by the composition root.
type Store interface {
	AccountStore
	SessionStore
	GoalStore
	SubscriptionStore
}
