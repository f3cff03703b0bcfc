package postgres

import (
	"context"
	"errors"
	"time"

	"stravawesome/api-service/internal/models"
	"stravawesome/api-service/internal/store"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) GetAccount(ctx context.Context, userID, provider string) (models.Account, error) {
	var account models.Account
	row := s.pool.QueryRow(ctx, `
		SELECT user_id, provider, provider_account_id, access_token, refresh_token, expires_at
		FROM accounts
		WHERE user_id = $1 AND provider = $2
	`, userID, provider)
	if err := row.Scan(&account.UserID, &account.Provider, &account.AthleteID, &account.AccessToken, &account.RefreshToken, &account.ExpiresAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Account{}, store.ErrNoLinkedAccount
		}
		return models.Account{}, err
	}
	if account.AccessToken == "" {
		return models.Account{}, store.ErrNoLinkedAccount
	}
	return account, nil
}

func (s *Store) UpdateAccountTokens(ctx context.Context, userID, provider string, update store.TokenUpdate) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE accounts
		SET access_token = $3, refresh_token = $4, expires_at = $5
		WHERE user_id = $1 AND provider = $2
	`, userID, provider, update.AccessToken, update.RefreshToken, update.ExpiresAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNoLinkedAccount
	}
	return nil
}

func (s *Store) GetSession(ctx context.Context, sessionID string) (models.Session, models.User, error) {
	var session models.Session
	var user models.User
	row := s.pool.QueryRow(ctx, `
		SELECT s.session_id, s.user_id, s.expires_at,
		       u.user_id, u.email, COALESCE(u.name, ''), u.premium, u.created_at
		FROM sessions s
		JOIN users u ON u.user_id = s.user_id
		WHERE s.session_id = $1 AND s.expires_at > NOW()
	`, sessionID)
	if err := row.Scan(&session.SessionID, &session.UserID, &session.ExpiresAt, &user.UserID, &user.Email, &user.Name, &user.Premium, &user.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Session{}, models.User{}, store.ErrSessionNotFound
		}
		return models.Session{}, models.User{}, err
	}
	return session, user, nil
}

func (s *Store) CreateSession(ctx context.Context, userID string, expiresAt time.Time) (models.Session, error) {
	sessionID := uuid.NewString()
	_, err := s.pool.Exec(ctx, `
		INSERT INTO sessions (session_id, user_id, expires_at)
		VALUES ($1, $2, $3)
	`, sessionID, userID, expiresAt)
	if err != nil {
		return models.Session{}, err
	}
	return models.Session{SessionID: sessionID, UserID: userID, ExpiresAt: expiresAt}, nil
}

func (s *Store) UpsertGoal(ctx context.Context, input store.GoalInput) (models.Goal, error) {
	goal := models.Goal{
		GoalID:       uuid.NewString(),
		UserID:       input.UserID,
		Year:         input.Year,
		ActivityType: input.ActivityType,
		TargetKm:     input.TargetKm,
	}
	row := s.pool.QueryRow(ctx, `
		INSERT INTO goals (goal_id, user_id, year, activity_type, target_km, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (user_id, year, activity_type)
		DO UPDATE SET target_km = EXCLUDED.target_km, updated_at = NOW()
		RETURNING goal_id, updated_at
	`, goal.GoalID, goal.UserID, goal.Year, goal.ActivityType, goal.TargetKm)
	if err := row.Scan(&goal.GoalID, &goal.UpdatedAt); err != nil {
		return models.Goal{}, err
	}
	return goal, nil
}

func (s *Store) ListGoals(ctx context.Context, userID string, year int) ([]models.Goal, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT goal_id, user_id, year, activity_type, target_km, updated_at
		FROM goals
		WHERE user_id = $1 AND year = $2
		ORDER BY activity_type
	`, userID, year)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var goals []models.Goal
	for rows.Next() {
		var goal models.Goal
		if err := rows.Scan(&goal.GoalID, &goal.UserID, &goal.Year, &goal.ActivityType, &goal.TargetKm, &goal.UpdatedAt); err != nil {
			return nil, err
		}
		goals = append(goals, goal)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return goals, nil
}

func (s *Store) GetSubscription(ctx context.Context, userID string) (models.Subscription, error) {
	var sub models.Subscription
	row := s.pool.QueryRow(ctx, `
		SELECT user_id, external_id, status, COALESCE(plan_id, ''), updated_at, ends_at
		FROM subscriptions
		WHERE user_id = $1
	`, userID)
	if err := row.Scan(&sub.UserID, &sub.ExternalID, &sub.Status, &sub.PlanID, &sub.UpdatedAt, &sub.EndsAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Subscription{}, store.ErrSubscriptionNotFound
		}
		return models.Subscription{}, err
	}
	return sub, nil
}

func (s *Store) UpsertSubscription(ctx context.Context, update store.SubscriptionUpdate) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO subscriptions (user_id, external_id, status, plan_id, updated_at, ends_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), NOW(), $5)
		ON CONFLICT (user_id)
		DO UPDATE SET external_id = EXCLUDED.external_id, status = EXCLUDED.status,
		              plan_id = EXCLUDED.plan_id, updated_at = NOW(), ends_at = EXCLUDED.ends_at
	`, update.UserID, update.ExternalID, update.Status, update.PlanID, update.EndsAt)
	if err != nil {
		return err
	}
	// Premium flag mirrors the subscription status so session lookups stay one query.
	_, err = s.pool.Exec(ctx, `
		UPDATE users SET premium = $2 WHERE user_id = $1
	`, update.UserID, update.Status == models.SubscriptionActive)
	return err
}
