// Package testutil provides utilities for testing.
package testutil

import "context"

// TestAuthProvider is a simple auth provider for testing.
// It implements the api.AuthHeaderProvider interface.
type TestAuthProvider struct {
	Token string
	Err   error
}

// GetAuthorizationHeader returns a Bearer header with the configured token.
func (t *TestAuthProvider) GetAuthorizationHeader(_ context.Context) (string, error) {
	if t.Err != nil {
		return "", t.Err
	}
	return "Bearer " + t.Token, nil
}

// NewTestAuthProvider creates a test auth provider with the given token.
func NewTestAuthProvider(token string) *TestAuthProvider {
	return &TestAuthProvider{Token: token}
}
