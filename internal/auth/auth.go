// Package auth provides authentication for the Armis API.
// It supports JWT authentication (using client credentials)
// and static API tokens.
package auth

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ArmisSecurity/armis-sarif/internal/logging"
)

// refreshWindow is how long before expiry a JWT is exchanged again.
const refreshWindow = 5 * time.Minute

// HeaderProvider supplies the Authorization header for API requests.
type HeaderProvider interface {
	GetAuthorizationHeader(ctx context.Context) (string, error)
}

// AuthConfig contains configuration for authentication.
type AuthConfig struct {
	// JWT auth credentials
	ClientID     string
	ClientSecret string
	AuthEndpoint string // Full URL to the authentication service

	// Static API token
	Token string

	Logger logging.Logger
}

// Mode reports which credentials the config carries: "jwt", "token" or "".
func (c AuthConfig) Mode() string {
	switch {
	case c.ClientID != "" || c.ClientSecret != "":
		return "jwt"
	case c.Token != "":
		return "token"
	}
	return ""
}

// JWTCredentials contains the JWT token and its expiry.
type JWTCredentials struct {
	Token     string
	ExpiresAt time.Time
}

// AuthProvider manages authentication tokens with automatic refresh.
// For JWT auth, tokens are refreshed when within 5 minutes of expiry.
type AuthProvider struct {
	config      AuthConfig
	credentials *JWTCredentials
	authClient  *AuthClient
	mu          sync.RWMutex
	static      bool
}

// NewAuthProvider creates an AuthProvider from configuration.
// Client credentials take priority over a static token. The first JWT
// exchange happens lazily on the first request.
func NewAuthProvider(config AuthConfig) (*AuthProvider, error) {
	p := &AuthProvider{config: config}

	// Partially configured client credentials must not fall back to the token.
	hasClientID := config.ClientID != ""
	hasClientSecret := config.ClientSecret != ""
	if hasClientID != hasClientSecret {
		return nil, fmt.Errorf("both --client-id and --client-secret must be provided for JWT authentication")
	}

	switch config.Mode() {
	case "jwt":
		if config.AuthEndpoint == "" {
			return nil, fmt.Errorf("--auth-endpoint is required when using client credentials")
		}
		authClient, err := NewAuthClient(config.AuthEndpoint, config.Logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create auth client: %w", err)
		}
		p.authClient = authClient
	case "token":
		p.static = true
	default:
		return nil, fmt.Errorf("authentication required: use --token flag or ARMIS_API_TOKEN environment variable")
	}

	return p, nil
}

// GetAuthorizationHeader returns the Authorization header value,
// "Bearer <token>" for both modes.
func (p *AuthProvider) GetAuthorizationHeader(ctx context.Context) (string, error) {
	if p.static {
		return "Bearer " + p.config.Token, nil
	}

	if err := p.refreshIfNeeded(ctx); err != nil {
		return "", fmt.Errorf("failed to refresh token: %w", err)
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	return "Bearer " + p.credentials.Token, nil
}

// GetRawToken returns the token without the "Bearer " prefix, exchanging
// client credentials first when needed.
func (p *AuthProvider) GetRawToken(ctx context.Context) (string, error) {
	header, err := p.GetAuthorizationHeader(ctx)
	if err != nil {
		return "", err
	}
	return strings.TrimPrefix(header, "Bearer "), nil
}

// IsStatic returns true if using a static API token.
func (p *AuthProvider) IsStatic() bool {
	return p.static
}

// exchangeCredentials exchanges client credentials for a JWT token.
// Uses double-checked locking to prevent a thundering herd of refreshes.
func (p *AuthProvider) exchangeCredentials(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.credentials != nil && time.Until(p.credentials.ExpiresAt) >= refreshWindow {
		return nil
	}

	token, err := p.authClient.Authenticate(ctx, p.config.ClientID, p.config.ClientSecret)
	if err != nil {
		return err
	}

	expiresAt, err := parseJWTExpiry(token)
	if err != nil {
		return fmt.Errorf("failed to parse JWT: %w", err)
	}

	p.credentials = &JWTCredentials{
		Token:     token,
		ExpiresAt: expiresAt,
	}

	return nil
}

// refreshIfNeeded refreshes the token if within the refresh window.
func (p *AuthProvider) refreshIfNeeded(ctx context.Context) error {
	p.mu.RLock()
	needsRefresh := p.credentials == nil ||
		time.Until(p.credentials.ExpiresAt) < refreshWindow
	p.mu.RUnlock()

	if !needsRefresh {
		return nil
	}

	return p.exchangeCredentials(ctx)
}

// parseJWTExpiry extracts the exp claim from a JWT without signature
// verification. The token came straight from the auth service over HTTPS and
// the API validates it server-side; the claim only drives local refresh.
//
// #nosec G104 -- JWT signature verification delegated to backend
func parseJWTExpiry(token string) (time.Time, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return time.Time{}, fmt.Errorf("invalid JWT format: expected 3 parts, got %d", len(parts))
	}

	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to decode JWT payload: %w", err)
	}

	var data struct {
		Exp float64 `json:"exp"` // some servers return fractional timestamps
	}
	if err := json.Unmarshal(payload, &data); err != nil {
		return time.Time{}, fmt.Errorf("failed to parse JWT payload: %w", err)
	}
	if data.Exp == 0 {
		return time.Time{}, fmt.Errorf("exp claim missing from JWT")
	}

	return time.Unix(int64(data.Exp), 0), nil
}
