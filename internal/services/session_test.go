package services

import (
	"context"
	"encoding/json"
	"net/http"
	"path/filepath"
	"testing"

	"github.com/google/uuid"

	"fintrack/internal/auth"
	"fintrack/internal/cache"
)

func TestSession_LoginSavesToken(t *testing.T) {
	userID := uuid.New()
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/auth/google" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("Authorization") != "" {
			t.Error("login must be sent unauthenticated")
		}
		var req loginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode login request: %v", err)
		}
		if req.IDToken != "google-id-token" {
			t.Errorf("IDToken = %q", req.IDToken)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(LoginResult{
			AccessToken: "issued-token",
			TokenType:   "bearer",
			ExpiresIn:   1800,
			UserID:      userID,
		})
	})

	env := newTestEnv(t, handler)
	tokens := auth.NewTokenStore(filepath.Join(t.TempDir(), "token.json"))
	svc := NewSession(env.api, env.store, tokens, nil)

	result, err := svc.LoginWithGoogle(context.Background(), "google-id-token")
	if err != nil {
		t.Fatalf("LoginWithGoogle: %v", err)
	}
	if result.UserID != userID {
		t.Errorf("UserID = %s, want %s", result.UserID, userID)
	}

	saved, err := tokens.Token()
	if err != nil {
		t.Fatalf("Token: %v", err)
	}
	if saved != "issued-token" {
		t.Errorf("saved token = %q", saved)
	}
	if !svc.LoggedIn() {
		t.Error("LoggedIn() should be true after login")
	}
}

func TestSession_LoginRejectsEmptyToken(t *testing.T) {
	env := newTestEnv(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("server must not be reached")
	}))
	tokens := auth.NewTokenStore(filepath.Join(t.TempDir(), "token.json"))
	svc := NewSession(env.api, env.store, tokens, nil)

	if _, err := svc.LoginWithGoogle(context.Background(), ""); err == nil {
		t.Fatal("expected error for empty ID token")
	}
}

func TestSession_LogoutClearsTokenAndCache(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/auth/logout" {
			t.Errorf("path = %q", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"message": "Successfully logged out"})
	})

	env := newTestEnv(t, handler)
	env.seed(t)
	tokens := auth.NewTokenStore(filepath.Join(t.TempDir(), "token.json"))
	if err := tokens.Save("issued-token"); err != nil {
		t.Fatalf("Save: %v", err)
	}
	svc := NewSession(env.api, env.store, tokens, nil)

	if err := svc.Logout(context.Background()); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if tokens.HasToken() {
		t.Error("token should be cleared after logout")
	}
	if keys := env.store.Keys(); len(keys) != 0 {
		t.Errorf("cache should be empty after logout, has %d keys", len(keys))
	}
}

func TestSession_LogoutClearsLocallyEvenWhenServerFails(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	env := newTestEnv(t, handler)
	env.store.Write(cache.GoalsKey(), "cached")
	tokens := auth.NewTokenStore(filepath.Join(t.TempDir(), "token.json"))
	if err := tokens.Save("issued-token"); err != nil {
		t.Fatalf("Save: %v", err)
	}
	svc := NewSession(env.api, env.store, tokens, nil)

	if err := svc.Logout(context.Background()); err != nil {
		t.Fatalf("Logout should succeed locally: %v", err)
	}
	if tokens.HasToken() {
		t.Error("token should be cleared even when the server call fails")
	}
	if keys := env.store.Keys(); len(keys) != 0 {
		t.Errorf("cache should be empty, has %d keys", len(keys))
	}
}
