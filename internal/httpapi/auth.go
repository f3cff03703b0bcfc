package httpapi

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"

	"stravawesome/api-service/internal/models"
	"stravawesome/api-service/internal/ratelimit"
	"stravawesome/api-service/internal/store"
)

type authContextKey struct{}

// authed resolves the bearer session token before the wrapped handler runs.
func (h *Handler) authed(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID := bearerToken(r.Header.Get("Authorization"))
		if sessionID == "" {
			writeError(w, http.StatusUnauthorized, "unauthorized", "missing session token", "")
			return
		}
		_, user, err := h.store.GetSession(r.Context(), sessionID)
		if err != nil {
			if errors.Is(err, store.ErrSessionNotFound) {
				writeError(w, http.StatusUnauthorized, "unauthorized", "invalid session", "")
				return
			}
			h.writeInternalError(w, r, err)
			return
		}
		ctx := context.WithValue(r.Context(), authContextKey{}, user)
		next(w, r.WithContext(ctx))
	}
}

// limited applies cfg keyed by the authenticated user, falling back to the
// client IP for public routes.
func (h *Handler) limited(cfg ratelimit.Config, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := clientIP(r)
		if user, ok := userFromContext(r.Context()); ok {
			id = user.UserID
		}
		if id != "" && !h.limiter.Check(id, cfg) {
			writeError(w, http.StatusTooManyRequests, "rate_limited", "too many requests", "")
			return
		}
		next(w, r)
	}
}

func userFromContext(ctx context.Context) (models.User, bool) {
	value := ctx.Value(authContextKey{})
	if value == nil {
		return models.User{}, false
	}
	user, ok := value.(models.User)
	if !ok {
		return models.User{}, false
	}
	return user, true
}

func bearerToken(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.Fields(header)
	if len(parts) != 2 {
		return ""
	}
	if strings.ToLower(parts[0]) != "bearer" {
		return ""
	}
	return parts[1]
}

func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		return strings.TrimSpace(parts[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
