package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/dukerupert/overhill/internal/auth"
	"github.com/dukerupert/overhill/internal/identity"
)

// sessionVerifier verifies a bearer token with the identity platform.
type sessionVerifier interface {
	VerifySession(ctx context.Context, token string) (*identity.Principal, error)
}

// RequireAuth validates the Authorization bearer token against the identity
// platform and populates AuthContext.
func RequireAuth(verifier sessionVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				unauthorized(w)
				return
			}

			principal, err := verifier.VerifySession(r.Context(), token)
			if err != nil || principal == nil {
				unauthorized(w)
				return
			}

			ac := auth.AuthContext{
				UserID: principal.UserID,
				Role:   principal.Role,
			}

			ctx := auth.WithAuth(r.Context(), ac)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{"error": "authentication required"})
}
