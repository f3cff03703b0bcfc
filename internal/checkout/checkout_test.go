package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestVerifyAndDecode(t *testing.T) {
	c := NewClient(Config{WebhookSecret: "whsec"})
	body := []byte(`{"type":"subscription.active","data":{"id":"sub-1","product_id":"prod-1","metadata":{"user_id":"u1"}}}`)

	event, err := c.VerifyAndDecode(body, c.Sign(body))
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if event.Type != "subscription.active" || event.Data.ID != "sub-1" || event.Data.PlanID != "prod-1" {
		t.Fatalf("unexpected event %+v", event)
	}
	if event.Data.Metadata["user_id"] != "u1" {
		t.Fatalf("missing metadata in %+v", event)
	}
}

func TestVerifyAndDecodeRejectsBadSignature(t *testing.T) {
	c := NewClient(Config{WebhookSecret: "whsec"})
	body := []byte(`{"type":"subscription.active"}`)

	if _, err := c.VerifyAndDecode(body, "deadbeef"); !errors.Is(err, ErrBadSignature) {
		t.Fatalf("expected ErrBadSignature, got %v", err)
	}

	// A signature computed with a different secret must also fail.
	other := NewClient(Config{WebhookSecret: "other"})
	if _, err := c.VerifyAndDecode(body, other.Sign(body)); !errors.Is(err, ErrBadSignature) {
		t.Fatalf("expected ErrBadSignature, got %v", err)
	}
}

func TestCreateSession(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/checkouts" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer polar-key" {
			t.Errorf("unexpected auth header %q", got)
		}
		var payload map[string]any
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		meta, _ := payload["metadata"].(map[string]any)
		if meta["user_id"] != "u1" {
			t.Errorf("checkout must carry the user id, got %v", payload)
		}
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(CheckoutSession{ID: "co-1", URL: "https://pay.example/co-1"})
	}))
	defer server.Close()

	c := NewClient(Config{APIURL: server.URL, APIKey: "polar-key", ProductID: "prod-1"})
	session, err := c.CreateSession(context.Background(), "u1", "rider@example.com")
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	if session.ID != "co-1" || session.URL != "https://pay.example/co-1" {
		t.Fatalf("unexpected session %+v", session)
	}
}

func TestCreateSessionErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer server.Close()

	c := NewClient(Config{APIURL: server.URL})
	if _, err := c.CreateSession(context.Background(), "u1", "rider@example.com"); err == nil {
		t.Fatal("expected error for non-2xx response")
	}
}
