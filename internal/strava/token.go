package strava

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"stravawesome/api-service/internal/store"

	"golang.org/x/sync/singleflight"
)

// ErrReauthRequired means the stored grant is gone or the authorization server
// rejected the refresh. The client surfaces it as a distinct code so the UI
// can prompt the user to reconnect Strava.
var ErrReauthRequired = errors.New("strava reauthorization required")

// expiryLeeway treats tokens about to expire as already expired, so a request
// never goes out with a token that dies mid-flight.
const expiryLeeway = 60 * time.Second

type Token struct {
	AccessToken string
	AthleteID   string
}

// TokenManager hands out valid access tokens, refreshing expired ones against
// the authorization server and persisting the result. Refreshes for the same
// user are single-flighted so concurrent callers share one refresh call.
type TokenManager struct {
	accounts     store.AccountStore
	httpClient   *http.Client
	tokenURL     string
	clientID     string
	clientSecret string
	group        singleflight.Group
	now          func() time.Time
}

type TokenManagerConfig struct {
	TokenURL     string
	ClientID     string
	ClientSecret string
	HTTPClient   *http.Client
}

func NewTokenManager(accounts store.AccountStore, cfg TokenManagerConfig) *TokenManager {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &TokenManager{
		accounts:     accounts,
		httpClient:   httpClient,
		tokenURL:     cfg.TokenURL,
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		now:          time.Now,
	}
}

// GetValidToken returns a usable access token for the user's linked Strava
// account. A missing account, missing token, or failed refresh all map to
// ErrReauthRequired; the refresh call itself is never retried.
func (m *TokenManager) GetValidToken(ctx context.Context, userID string) (Token, error) {
	value, err, _ := m.group.Do(userID, func() (any, error) {
		return m.getValidToken(ctx, userID)
	})
	if err != nil {
		return Token{}, err
	}
	return value.(Token), nil
}

func (m *TokenManager) getValidToken(ctx context.Context, userID string) (Token, error) {
	account, err := m.accounts.GetAccount(ctx, userID, "strava")
	if err != nil {
		if errors.Is(err, store.ErrNoLinkedAccount) {
			return Token{}, ErrReauthRequired
		}
		return Token{}, err
	}

	if account.ExpiresAt.After(m.now().Add(expiryLeeway)) {
		return Token{AccessToken: account.AccessToken, AthleteID: account.AthleteID}, nil
	}

	refreshed, err := m.refresh(ctx, account.RefreshToken)
	if err != nil {
		return Token{}, err
	}

	update := store.TokenUpdate{
		AccessToken:  refreshed.AccessToken,
		RefreshToken: refreshed.RefreshToken,
		ExpiresAt:    time.Unix(refreshed.ExpiresAt, 0).UTC(),
	}
	if update.RefreshToken == "" {
		update.RefreshToken = account.RefreshToken
	}
	if err := m.accounts.UpdateAccountTokens(ctx, userID, "strava", update); err != nil {
		return Token{}, err
	}
	return Token{AccessToken: refreshed.AccessToken, AthleteID: account.AthleteID}, nil
}

func (m *TokenManager) refresh(ctx context.Context, refreshToken string) (tokenResponse, error) {
	if refreshToken == "" {
		return tokenResponse{}, ErrReauthRequired
	}

	form := url.Values{}
	form.Set("client_id", m.clientID)
	form.Set("client_secret", m.clientSecret)
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return tokenResponse{}, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return tokenResponse{}, fmt.Errorf("token refresh: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return tokenResponse{}, ErrReauthRequired
	}

	var refreshed tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&refreshed); err != nil {
		return tokenResponse{}, fmt.Errorf("token refresh decode: %w", err)
	}
	if refreshed.AccessToken == "" {
		return tokenResponse{}, ErrReauthRequired
	}
	return refreshed, nil
}
