package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// ErrNoToken is returned when no access token has been persisted.
var ErrNoToken = errors.New("no access token stored")

// storedToken mirrors the browser frontend's localStorage entry: a single
// bearer token persisted under the access_token key.
type storedToken struct {
	AccessToken string `json:"access_token"`
}

// TokenStore persists the API access token to a JSON file with 0600
// permissions. It is safe for concurrent use within one process.
type TokenStore struct {
	mu   sync.RWMutex
	path string

	// cached copy; empty string means not loaded or cleared
	token  string
	loaded bool
}

func NewTokenStore(path string) *TokenStore {
	return &TokenStore{path: path}
}

// Token returns the persisted access token, reading the file on first use.
// Implements the api.TokenSource contract.
func (s *TokenStore) Token() (string, error) {
	s.mu.RLock()
	if s.loaded {
		defer s.mu.RUnlock()
		if s.token == "" {
			return "", ErrNoToken
		}
		return s.token, nil
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		tok, err := s.readFile()
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return "", err
		}
		s.token = tok
		s.loaded = true
	}
	if s.token == "" {
		return "", ErrNoToken
	}
	return s.token, nil
}

// Save writes the token to disk and updates the in-memory copy.
func (s *TokenStore) Save(token string) error {
	if token == "" {
		return errors.New("refusing to save empty token")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("create token directory: %w", err)
	}

	data, err := json.Marshal(storedToken{AccessToken: token})
	if err != nil {
		return fmt.Errorf("marshal token: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0600); err != nil {
		return fmt.Errorf("write token file: %w", err)
	}

	s.token = token
	s.loaded = true
	return nil
}

// Clear removes the persisted token. Missing files are not an error.
func (s *TokenStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.token = ""
	s.loaded = true

	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove token file: %w", err)
	}
	return nil
}

// HasToken reports whether a token is currently available.
func (s *TokenStore) HasToken() bool {
	_, err := s.Token()
	return err == nil
}

func (s *TokenStore) readFile() (string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return "", err
	}
	var tok storedToken
	if err := json.Unmarshal(data, &tok); err != nil {
		return "", fmt.Errorf("parse token file %s: %w", s.path, err)
	}
	return tok.AccessToken, nil
}
