package identity

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestVerifySession(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if r.URL.Path != "/internal/sessions/verify" {
			t.Errorf("path = %q, want /internal/sessions/verify", r.URL.Path)
		}
		var req map[string]string
		json.NewDecoder(r.Body).Decode(&req)
		if req["token"] != "session-abc" {
			t.Errorf("token = %q, want session-abc", req["token"])
		}
		json.NewEncoder(w).Encode(Principal{UserID: 42, Role: "owner"})
	}))
	defer server.Close()

	c := NewClient(Config{BaseURL: server.URL, ServiceSecret: "shh"})

	p, err := c.VerifySession(context.Background(), "session-abc")
	if err != nil {
		t.Fatalf("verify session: %v", err)
	}
	if p.UserID != 42 || p.Role != "owner" {
		t.Errorf("principal = %+v, want 42/owner", p)
	}

	// Second verify within the cache TTL skips the gateway
	if _, err := c.VerifySession(context.Background(), "session-abc"); err != nil {
		t.Fatalf("cached verify: %v", err)
	}
	if calls != 1 {
		t.Errorf("gateway calls = %d, want 1", calls)
	}
}

func TestVerifySessionCacheExpiry(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		json.NewEncoder(w).Encode(Principal{UserID: 42, Role: "tenant"})
	}))
	defer server.Close()

	c := NewClient(Config{BaseURL: server.URL, CacheTTL: 10 * time.Millisecond})

	c.VerifySession(context.Background(), "session-abc")
	time.Sleep(15 * time.Millisecond)
	c.VerifySession(context.Background(), "session-abc")

	if calls != 2 {
		t.Errorf("gateway calls = %d, want 2 after TTL expiry", calls)
	}
}

func TestVerifySessionRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	c := NewClient(Config{BaseURL: server.URL})

	if _, err := c.VerifySession(context.Background(), "bogus"); err == nil {
		t.Fatal("expected error for rejected session")
	}
}

func TestSetRoleAndVerified(t *testing.T) {
	var gotMethod, gotPath, gotAuth string
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	c := NewClient(Config{BaseURL: server.URL, ServiceSecret: "shh"})

	if err := c.SetRoleAndVerified(context.Background(), 42, "tenant", true); err != nil {
		t.Fatalf("set role and verified: %v", err)
	}
	if gotMethod != http.MethodPatch {
		t.Errorf("method = %q, want PATCH", gotMethod)
	}
	if gotPath != "/internal/users/42" {
		t.Errorf("path = %q, want /internal/users/42", gotPath)
	}
	if gotBody["role"] != "tenant" || gotBody["email_verified"] != true {
		t.Errorf("body = %v, want role=tenant email_verified=true", gotBody)
	}

	// The bearer token must be a valid HS256 JWT signed with the shared secret
	raw := strings.TrimPrefix(gotAuth, "Bearer ")
	token, err := jwt.ParseWithClaims(raw, &jwt.RegisteredClaims{}, func(t *jwt.Token) (any, error) {
		return []byte("shh"), nil
	})
	if err != nil || !token.Valid {
		t.Fatalf("service token invalid: %v", err)
	}
	claims := token.Claims.(*jwt.RegisteredClaims)
	if claims.Issuer != "overhill" {
		t.Errorf("issuer = %q, want overhill", claims.Issuer)
	}
}

func TestRetryOnServerError(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 2 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		json.NewEncoder(w).Encode(User{ID: 7, Name: "Pat", Email: "pat@example.com"})
	}))
	defer server.Close()

	c := NewClient(Config{BaseURL: server.URL})

	name, email, err := c.UserProfile(context.Background(), 7)
	if err != nil {
		t.Fatalf("user profile: %v", err)
	}
	if name != "Pat" || email != "pat@example.com" {
		t.Errorf("profile = %q/%q, want Pat/pat@example.com", name, email)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2 (one retry)", calls)
	}
}

func TestNoRetryOnClientError(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	c := NewClient(Config{BaseURL: server.URL})

	if _, err := c.GetUser(context.Background(), 7); err == nil {
		t.Fatal("expected error for 404")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1 (4xx is terminal)", calls)
	}
}
