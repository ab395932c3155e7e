package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"fintrack/internal/api"
	"fintrack/internal/auth"
	"fintrack/internal/cache"
	"fintrack/internal/core"
	"fintrack/internal/log"
)

type loginRequest struct {
	IDToken string `json:"id_token"`
}

// LoginResult is the session the server opened for a verified Google
// identity.
type LoginResult struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresIn   int       `json:"expires_in"`
	UserID      uuid.UUID `json:"user_id"`
}

// Session manages the authenticated lifecycle: token exchange, identity
// lookup and teardown. Logout clears both the persisted token and the
// entire cache so no data survives into the next session.
type Session struct {
	api    *api.Client
	store  *cache.Store
	tokens *auth.TokenStore
	logger *log.Logger
}

func NewSession(apiClient *api.Client, store *cache.Store, tokens *auth.TokenStore, logger *log.Logger) *Session {
	if logger == nil {
		logger = log.New(log.DefaultConfig()).WithComponent(log.ComponentSession)
	}
	return &Session{api: apiClient, store: store, tokens: tokens, logger: logger}
}

// LoginWithGoogle exchanges a Google ID token for an API session and
// persists the access token. Sent unauthenticated: there is no session yet.
func (s *Session) LoginWithGoogle(ctx context.Context, idToken string) (LoginResult, error) {
	var result LoginResult
	if idToken == "" {
		return result, fmt.Errorf("empty ID token")
	}

	if err := s.api.Post(ctx, "/auth/google", loginRequest{IDToken: idToken}, &result, api.WithoutAuth()); err != nil {
		return result, err
	}
	if err := s.tokens.Save(result.AccessToken); err != nil {
		return result, fmt.Errorf("persist access token: %w", err)
	}

	s.logger.InfoContext(ctx, "logged in", "user_id", result.UserID.String())
	return result, nil
}

// Me returns the authenticated user. Deliberately uncached: it doubles as
// the session health check.
func (s *Session) Me(ctx context.Context) (core.UserProfile, error) {
	var out core.UserProfile
	err := s.api.Get(ctx, "/auth/me", &out)
	return out, err
}

// Logout tells the server, then clears the token and resets the cache.
// Local teardown happens even when the server call fails; an unreachable
// server must not pin a session to this machine.
func (s *Session) Logout(ctx context.Context) error {
	apiErr := s.api.Post(ctx, "/auth/logout", nil, nil)

	if err := s.tokens.Clear(); err != nil {
		return fmt.Errorf("clear access token: %w", err)
	}
	s.store.Reset(ctx)

	if apiErr != nil {
		s.logger.WarnContext(ctx, "server logout failed, local session cleared anyway", log.FieldError, apiErr)
	} else {
		s.logger.InfoContext(ctx, "logged out")
	}
	return nil
}

// LoggedIn reports whether an access token is available locally.
func (s *Session) LoggedIn() bool {
	return s.tokens.HasToken()
}
