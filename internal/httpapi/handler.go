package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"expvar"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"stravawesome/api-service/internal/checkout"
	"stravawesome/api-service/internal/insights"
	"stravawesome/api-service/internal/models"
	"stravawesome/api-service/internal/ratelimit"
	"stravawesome/api-service/internal/store"
	"stravawesome/api-service/internal/strava"
)

const (
	maxActivityCount = 200
	defaultPhotoSize = 600
)

// ActivityService is the read surface of the Strava layer the handlers use.
type ActivityService interface {
	Activities(ctx context.Context, userID string, count int, detailed bool) ([]models.Activity, error)
	Photos(ctx context.Context, userID string, size int) ([]models.ActivityPhoto, error)
}

// Completer is the AI provider: prompts in, text out.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// CheckoutProvider creates checkout sessions and authenticates webhooks.
type CheckoutProvider interface {
	CreateSession(ctx context.Context, userID, email string) (checkout.CheckoutSession, error)
	VerifyAndDecode(body []byte, signature string) (checkout.WebhookEvent, error)
}

type Handler struct {
	store      store.Store
	activities ActivityService
	ai         Completer
	checkout   CheckoutProvider
	limiter    *ratelimit.Limiter
	usage      func() strava.UsageStatus
}

func NewHandler(st store.Store, activities ActivityService, ai Completer, provider CheckoutProvider, limiter *ratelimit.Limiter, usage func() strava.UsageStatus) *Handler {
	return &Handler{
		store:      st,
		activities: activities,
		ai:         ai,
		checkout:   provider,
		limiter:    limiter,
		usage:      usage,
	}
}

func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/strava/activities", h.authed(h.limited(ratelimit.Data, h.handleActivities)))
	mux.HandleFunc("/api/strava/insights", h.authed(h.limited(ratelimit.Data, h.handleInsights)))
	mux.HandleFunc("/api/strava/photos", h.authed(h.limited(ratelimit.Data, h.handlePhotos)))
	mux.HandleFunc("/api/strava/usage", h.authed(h.limited(ratelimit.API, h.handleUsage)))
	mux.HandleFunc("/api/goals", h.authed(h.limited(ratelimit.API, h.handleGoals)))
	mux.HandleFunc("/api/subscription", h.authed(h.limited(ratelimit.API, h.handleSubscription)))
	mux.HandleFunc("/api/ai/chat", h.authed(h.limited(ratelimit.AI, h.handleAIChat)))
	mux.HandleFunc("/api/checkout/create", h.authed(h.limited(ratelimit.API, h.handleCheckoutCreate)))
	mux.HandleFunc("/api/webhooks/polar", h.handleWebhook)
	mux.HandleFunc("/healthz", h.handleHealth)
	mux.Handle("/debug/vars", expvar.Handler())
	return mux
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeData(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleActivities(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	user, _ := userFromContext(r.Context())

	count := queryInt(r, "count", 30)
	if count < 1 || count > maxActivityCount {
		writeError(w, http.StatusBadRequest, "validation_error", "count must be between 1 and 200", "count")
		return
	}
	detailed := r.URL.Query().Get("details") == "true"

	activities, err := h.activities.Activities(r.Context(), user.UserID, count, detailed)
	if err != nil {
		h.writeUpstreamError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, activities)
}

func (h *Handler) handleInsights(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	user, _ := userFromContext(r.Context())

	activities, err := h.activities.Activities(r.Context(), user.UserID, maxActivityCount, false)
	if err != nil {
		h.writeUpstreamError(w, r, err)
		return
	}
	goals, err := h.store.ListGoals(r.Context(), user.UserID, time.Now().UTC().Year())
	if err != nil {
		h.writeInternalError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, insights.Compute(activities, goals))
}

func (h *Handler) handlePhotos(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	user, _ := userFromContext(r.Context())

	size := queryInt(r, "size", defaultPhotoSize)
	photos, err := h.activities.Photos(r.Context(), user.UserID, size)
	if err != nil {
		h.writeUpstreamError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, photos)
}

func (h *Handler) handleUsage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeData(w, http.StatusOK, h.usage())
}

func (h *Handler) handleGoals(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.handleListGoals(w, r)
	case http.MethodPost:
		h.handleUpsertGoal(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *Handler) handleListGoals(w http.ResponseWriter, r *http.Request) {
	user, _ := userFromContext(r.Context())

	year := queryInt(r, "year", time.Now().UTC().Year())
	goals, err := h.store.ListGoals(r.Context(), user.UserID, year)
	if err != nil {
		h.writeInternalError(w, r, err)
		return
	}
	if goals == nil {
		goals = []models.Goal{}
	}
	writeData(w, http.StatusOK, goals)
}

type goalRequest struct {
	Year         int     `json:"year"`
	ActivityType string  `json:"activity_type"`
	TargetKm     float64 `json:"target_km"`
}

func (h *Handler) handleUpsertGoal(w http.ResponseWriter, r *http.Request) {
	user, _ := userFromContext(r.Context())

	var req goalRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", "invalid JSON payload", "")
		return
	}

	if req.Year < 2000 || req.Year > 2100 {
		writeError(w, http.StatusBadRequest, "validation_error", "year must be between 2000 and 2100", "year")
		return
	}
	if !validActivityType(req.ActivityType) {
		writeError(w, http.StatusBadRequest, "validation_error", "unsupported activity type", "activity_type")
		return
	}
	if req.TargetKm <= 0 {
		writeError(w, http.StatusBadRequest, "validation_error", "target_km must be positive", "target_km")
		return
	}

	goal, err := h.store.UpsertGoal(r.Context(), store.GoalInput{
		UserID:       user.UserID,
		Year:         req.Year,
		ActivityType: req.ActivityType,
		TargetKm:     req.TargetKm,
	})
	if err != nil {
		h.writeInternalError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, goal)
}

func (h *Handler) handleSubscription(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	user, _ := userFromContext(r.Context())

	sub, err := h.store.GetSubscription(r.Context(), user.UserID)
	if err != nil {
		if errors.Is(err, store.ErrSubscriptionNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "no subscription", "")
			return
		}
		h.writeInternalError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, sub)
}

type chatRequest struct {
	Message string `json:"message"`
}

func (h *Handler) handleAIChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	user, _ := userFromContext(r.Context())

	var req chatRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", "invalid JSON payload", "")
		return
	}
	req.Message = strings.TrimSpace(req.Message)
	if req.Message == "" {
		writeError(w, http.StatusBadRequest, "validation_error", "message is required", "message")
		return
	}

	// Recent training goes into the system prompt so the coach has context.
	activities, err := h.activities.Activities(r.Context(), user.UserID, 30, false)
	if err != nil && !errors.Is(err, strava.ErrReauthRequired) {
		h.writeUpstreamError(w, r, err)
		return
	}

	systemPrompt := "You are a friendly training coach for a fitness dashboard. " +
		"Answer briefly and concretely based on the athlete's recent training. " +
		strava.Summary(activities)

	reply, err := h.ai.Complete(r.Context(), systemPrompt, req.Message)
	if err != nil {
		log.Printf("ai chat error user=%s err=%v", user.UserID, err)
		writeError(w, http.StatusServiceUnavailable, "ai_unavailable", "coach is unavailable right now", "")
		return
	}
	writeData(w, http.StatusOK, map[string]string{"reply": reply})
}

func (h *Handler) handleCheckoutCreate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	user, _ := userFromContext(r.Context())

	session, err := h.checkout.CreateSession(r.Context(), user.UserID, user.Email)
	if err != nil {
		// Payments get no silent fallback: a failed create is a hard error.
		log.Printf("checkout create error user=%s err=%v", user.UserID, err)
		writeError(w, http.StatusBadGateway, "checkout_failed", "could not create checkout session", "")
		return
	}
	writeData(w, http.StatusOK, map[string]string{"id": session.ID, "url": session.URL})
}

func (h *Handler) handleWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", "unreadable body", "")
		return
	}

	event, err := h.checkout.VerifyAndDecode(body, r.Header.Get("Webhook-Signature"))
	if err != nil {
		if errors.Is(err, checkout.ErrBadSignature) {
			writeError(w, http.StatusUnauthorized, "unauthorized", "invalid webhook signature", "")
			return
		}
		writeError(w, http.StatusBadRequest, "validation_error", "invalid webhook payload", "")
		return
	}

	status := subscriptionStatus(event)
	if status == "" {
		// Unhandled event types are acknowledged so the provider stops retrying.
		writeData(w, http.StatusOK, map[string]string{"received": event.Type})
		return
	}

	userID := event.Data.Metadata["user_id"]
	if userID == "" {
		writeError(w, http.StatusBadRequest, "validation_error", "missing user_id metadata", "metadata.user_id")
		return
	}

	err = h.store.UpsertSubscription(r.Context(), store.SubscriptionUpdate{
		UserID:     userID,
		ExternalID: event.Data.ID,
		Status:     status,
		PlanID:     event.Data.PlanID,
		EndsAt:     event.Data.EndsAt,
	})
	if err != nil {
		h.writeInternalError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, map[string]string{"received": event.Type})
}

func subscriptionStatus(event checkout.WebhookEvent) string {
	switch event.Type {
	case "checkout.updated":
		if event.Data.Status == "succeeded" {
			return models.SubscriptionActive
		}
		return ""
	case "subscription.active", "subscription.created":
		return models.SubscriptionActive
	case "subscription.canceled", "subscription.revoked":
		return models.SubscriptionCanceled
	case "subscription.past_due":
		return models.SubscriptionPastDue
	default:
		return ""
	}
}

func (h *Handler) writeUpstreamError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, strava.ErrReauthRequired):
		writeError(w, http.StatusUnauthorized, "reauth_required", "Strava connection expired, please reconnect", "")
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusBadGateway, "upstream_unavailable", "Strava did not respond in time", "")
	default:
		log.Printf("upstream error path=%s err=%v", r.URL.Path, err)
		writeError(w, http.StatusBadGateway, "upstream_unavailable", "could not reach Strava", "")
	}
}

func (h *Handler) writeInternalError(w http.ResponseWriter, r *http.Request, err error) {
	log.Printf("internal error path=%s err=%v", r.URL.Path, err)
	writeError(w, http.StatusInternalServerError, "internal_error", "internal server error", "")
}

func validActivityType(activityType string) bool {
	for _, t := range models.GoalActivityTypes {
		if t == activityType {
			return true
		}
	}
	return false
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}

type successEnvelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data"`
	Message string `json:"message,omitempty"`
}

type errorEnvelope struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

func writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, successEnvelope{Success: true, Data: data})
}

func writeError(w http.ResponseWriter, status int, code, message, details string) {
	writeJSON(w, status, errorEnvelope{Success: false, Error: message, Code: code, Details: details})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}
