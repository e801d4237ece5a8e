package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ArmisSecurity/armis-sarif/internal/logging"
)

const (
	// maxResponseSize limits auth response body to prevent memory exhaustion
	maxResponseSize = 1 << 20 // 1MB
)

// AuthClient handles authentication with an external auth service.
type AuthClient struct {
	endpoint   string
	httpClient *http.Client
	logger     logging.Logger
}

// NewAuthClient creates a new authentication client for the given endpoint.
// The endpoint must be a valid HTTPS URL (HTTP allowed only for localhost).
// Failed exchanges log the response body at debug level.
func NewAuthClient(endpoint string, logger logging.Logger) (*AuthClient, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("auth endpoint is required")
	}
	if logger == nil {
		logger = logging.Nop()
	}

	parsedURL, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid endpoint URL: %w", err)
	}

	if parsedURL.Scheme != "https" {
		host := parsedURL.Hostname()
		if host != "localhost" && host != "127.0.0.1" {
			return nil, fmt.Errorf("HTTPS required for non-localhost endpoint")
		}
	}

	return &AuthClient{
		endpoint: strings.TrimSuffix(endpoint, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger,
	}, nil
}

// authRequest is the request body for the authenticate endpoint.
type authRequest struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"` //nolint:gosec // G117: JSON field name, not a secret value
}

// authResponse is the response from the authenticate endpoint.
type authResponse struct {
	Token string `json:"token"`
	Error string `json:"error,omitempty"`
}

// Authenticate exchanges client credentials for a JWT token.
// Calls POST /api/v1/authenticate with client_id and client_secret.
func (c *AuthClient) Authenticate(ctx context.Context, clientID, clientSecret string) (string, error) {
	jsonBody, err := json.Marshal(authRequest{
		ClientID:     clientID,
		ClientSecret: clientSecret,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	authEndpoint := c.endpoint + "/api/v1/authenticate"
	req, err := http.NewRequestWithContext(ctx, "POST", authEndpoint, bytes.NewReader(jsonBody))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req) //nolint:gosec // G704: endpoint is validated config
	if err != nil {
		return "", fmt.Errorf("authentication request failed: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck // response body read-only

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		return "", fmt.Errorf("invalid credentials")
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.Debugf("auth failed with status %d, body: %s", resp.StatusCode, string(body))
		// Raw body stays out of the error to avoid leaking server details.
		return "", fmt.Errorf("authentication failed (status %d)", resp.StatusCode)
	}

	var authResp authResponse
	if err := json.Unmarshal(body, &authResp); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}

	if authResp.Error != "" {
		return "", fmt.Errorf("authentication failed: server returned an error")
	}

	if authResp.Token == "" {
		return "", fmt.Errorf("no token in response")
	}

	return authResp.Token, nil
}
