package auth

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestTokenStore_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	store := NewTokenStore(path)

	if _, err := store.Token(); !errors.Is(err, ErrNoToken) {
		t.Fatalf("Token() on empty store = %v, want ErrNoToken", err)
	}

	if err := store.Save("abc123"); err != nil {
		t.Fatalf("Save: %v", err)
	}

	tok, err := store.Token()
	if err != nil {
		t.Fatalf("Token: %v", err)
	}
	if tok != "abc123" {
		t.Errorf("Token() = %q, want abc123", tok)
	}

	// A fresh store reading the same file sees the persisted token.
	fresh := NewTokenStore(path)
	tok, err = fresh.Token()
	if err != nil {
		t.Fatalf("Token from fresh store: %v", err)
	}
	if tok != "abc123" {
		t.Errorf("fresh Token() = %q, want abc123", tok)
	}
}

func TestTokenStore_FilePermissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	store := NewTokenStore(path)

	if err := store.Save("secret"); err != nil {
		t.Fatalf("Save: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("token file permissions = %o, want 600", perm)
	}
}

func TestTokenStore_Clear(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	store := NewTokenStore(path)

	if err := store.Save("abc123"); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := store.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}

	if store.HasToken() {
		t.Error("HasToken() after Clear should be false")
	}
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("token file should be removed, stat err = %v", err)
	}

	// Clearing twice is fine.
	if err := store.Clear(); err != nil {
		t.Errorf("second Clear: %v", err)
	}
}

func TestTokenStore_RejectsEmptyToken(t *testing.T) {
	store := NewTokenStore(filepath.Join(t.TempDir(), "token.json"))
	if err := store.Save(""); err == nil {
		t.Error("Save(\"\") should fail")
	}
}
