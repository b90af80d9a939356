// Package auth keeps the in-memory user store backing credential checks.
package auth

import (
	"fmt"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// Store is an in-memory user repository with bcrypt-hashed passwords.
// Persistence is deliberately out of scope; users are seeded at startup.
type Store struct {
	mu    sync.RWMutex
	users map[string][]byte
}

// NewStore creates an empty user store.
func NewStore() *Store {
	return &Store{users: make(map[string][]byte)}
}

// Add hashes password and registers it for username, replacing any earlier
// entry.
func (s *Store) Add(username, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hashing password for %q: %w", username, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[username] = hash
	return nil
}

// Authenticate checks username/password against the store. A missing user
// and a wrong password are indistinguishable to the caller.
func (s *Store) Authenticate(username, password string) error {
	s.mu.RLock()
	hash, ok := s.users[username]
	s.mu.RUnlock()

	if !ok {
		return ErrUnauthenticated
	}
	if err := bcrypt.CompareHashAndPassword(hash, []byte(password)); err != nil {
		return ErrUnauthenticated
	}
	return nil
}
