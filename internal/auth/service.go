// Package auth wires the user store and token issuer into the login flow.
package auth

import (
	"fmt"
	"time"
)

// Service combines credential checks with token issuance. It satisfies
// both collaborator contracts the server consumes: login (credentials to
// token) and authentication (token to identity).
type Service struct {
	store  *Store
	issuer *TokenIssuer
}

// NewService builds a Service around an existing store, signing tokens
// with secret and expiring them after ttl.
func NewService(store *Store, secret string, ttl time.Duration) *Service {
	return &Service{
		store:  store,
		issuer: NewTokenIssuer(secret, ttl),
	}
}

// Login verifies the credentials and returns a bearer token for the user.
func (s *Service) Login(username, password string) (string, error) {
	if err := s.store.Authenticate(username, password); err != nil {
		return "", err
	}

	token, err := s.issuer.Issue(username)
	if err != nil {
		return "", fmt.Errorf("issuing token for %q: %w", username, err)
	}
	return token, nil
}

// Authenticate resolves a bearer token to the identity it names.
func (s *Service) Authenticate(token string) (string, error) {
	return s.issuer.Authenticate(token)
}
