// Package identity is the HTTP client for the platform auth service. It is
// the only way this backend touches identity records; users are never stored
// locally.
package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sethvargo/go-retry"
)

// Config holds identity service configuration.
type Config struct {
	BaseURL       string
	ServiceSecret string
	// CacheTTL bounds how long a verified session is trusted without a
	// round trip. Defaults to 30s.
	CacheTTL time.Duration
}

// Principal is the authenticated identity behind a session token.
type Principal struct {
	UserID int64  `json:"user_id"`
	Role   string `json:"role"`
}

// User is an identity record as the auth service reports it.
type User struct {
	ID            int64  `json:"id"`
	Email         string `json:"email"`
	Name          string `json:"name"`
	Role          string `json:"role"`
	EmailVerified bool   `json:"email_verified"`
}

type cachedSession struct {
	principal Principal
	expiresAt time.Time
}

// Client talks to the identity service with short-lived signed service
// tokens. Transient faults are retried with bounded exponential backoff.
type Client struct {
	cfg        Config
	httpClient *http.Client

	mu       sync.Mutex
	sessions map[string]cachedSession
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

func NewClient(cfg Config, opts ...Option) *Client {
	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = 30 * time.Second
	}
	c := &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		sessions:   make(map[string]cachedSession),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Configured returns true if the service base URL is set.
func (c *Client) Configured() bool {
	return c.cfg.BaseURL != ""
}

// serviceToken mints a one-minute HS256 token identifying this service to
// the gateway.
func (c *Client) serviceToken() (string, error) {
	claims := jwt.RegisteredClaims{
		Issuer:    "overhill",
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(c.cfg.ServiceSecret))
	if err != nil {
		return "", fmt.Errorf("sign service token: %w", err)
	}
	return token, nil
}

// do sends one authenticated request, retrying network faults and 5xx
// responses up to twice. 4xx responses are terminal.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
	}

	backoff := retry.WithMaxRetries(2, retry.NewExponential(200*time.Millisecond))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		token, err := c.serviceToken()
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+token)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return retry.RetryableError(fmt.Errorf("identity request: %w", err))
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 500 {
			return retry.RetryableError(fmt.Errorf("identity service: status %d", resp.StatusCode))
		}
		if resp.StatusCode >= 400 {
			return fmt.Errorf("identity service: status %d", resp.StatusCode)
		}
		if out != nil {
			if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
				return fmt.Errorf("decode response: %w", err)
			}
		}
		return nil
	})
}

// VerifySession resolves a bearer session token to a principal, with a short
// in-memory cache so hot sessions don't hit the gateway on every request.
func (c *Client) VerifySession(ctx context.Context, token string) (*Principal, error) {
	now := time.Now()

	c.mu.Lock()
	if cached, ok := c.sessions[token]; ok && now.Before(cached.expiresAt) {
		p := cached.principal
		c.mu.Unlock()
		return &p, nil
	}
	c.mu.Unlock()

	var p Principal
	if err := c.do(ctx, http.MethodPost, "/internal/sessions/verify", map[string]string{"token": token}, &p); err != nil {
		return nil, fmt.Errorf("verify session: %w", err)
	}

	c.mu.Lock()
	c.sessions[token] = cachedSession{principal: p, expiresAt: now.Add(c.cfg.CacheTTL)}
	// Opportunistic prune so the map doesn't grow without bound.
	for k, v := range c.sessions {
		if now.After(v.expiresAt) {
			delete(c.sessions, k)
		}
	}
	c.mu.Unlock()

	return &p, nil
}

// SetRoleAndVerified updates an identity's role marker and verification flag
// in a single call.
func (c *Client) SetRoleAndVerified(ctx context.Context, userID int64, role string, verified bool) error {
	body := map[string]any{"role": role, "email_verified": verified}
	if err := c.do(ctx, http.MethodPatch, fmt.Sprintf("/internal/users/%d", userID), body, nil); err != nil {
		return fmt.Errorf("set role and verified: %w", err)
	}
	return nil
}

// GetUser fetches an identity record.
func (c *Client) GetUser(ctx context.Context, userID int64) (*User, error) {
	var u User
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/internal/users/%d", userID), nil, &u); err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}

// UserProfile returns the display name and email for an identity.
func (c *Client) UserProfile(ctx context.Context, userID int64) (string, string, error) {
	u, err := c.GetUser(ctx, userID)
	if err != nil {
		return "", "", err
	}
	return u.Name, u.Email, nil
}
