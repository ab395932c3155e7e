// fintrack-login runs the Google sign-in flow in the browser, exchanges
// the resulting ID token for an API session and persists the access token
// where the other fintrack binaries pick it up.
package main

import (
	"context"
	"fmt"
	stdlog "log"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"fintrack/internal/api"
	"fintrack/internal/auth"
	"fintrack/internal/cache"
	"fintrack/internal/config"
	"fintrack/internal/log"
	"fintrack/internal/services"
)

func main() {
	_ = godotenv.Load()

	logger := log.New(log.DefaultConfig()).WithComponent(log.ComponentSession)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}

	// Load OAuth client credentials
	var b []byte
	var err error
	switch {
	case cfg.GoogleOAuthClientJSON != "":
		b = []byte(cfg.GoogleOAuthClientJSON)
	case cfg.GoogleOAuthClientFile != "":
		b, err = os.ReadFile(cfg.GoogleOAuthClientFile)
		if err != nil {
			stdlog.Fatalf("read client file: %v", err)
		}
	default:
		stdlog.Fatalf("set GOOGLE_OAUTH_CLIENT_JSON or GOOGLE_OAUTH_CLIENT_FILE")
	}

	oauthCfg, err := google.ConfigFromJSON(b, "openid", "email", "profile")
	if err != nil {
		stdlog.Fatalf("oauth config: %v", err)
	}

	// Local server for redirect_uri http://localhost:<port>/callback.
	// The OAuth client must list this URI in its authorized redirect URIs.
	redirectPort := cfg.OAuthRedirectPort
	oauthCfg.RedirectURL = "http://localhost:" + redirectPort + "/callback"

	codeCh := make(chan string, 1)
	srv := &http.Server{Addr: ":" + redirectPort}
	http.HandleFunc("/callback", func(w http.ResponseWriter, r *http.Request) {
		if errStr := r.URL.Query().Get("error"); errStr != "" {
			http.Error(w, "OAuth error: "+errStr, http.StatusBadRequest)
			return
		}
		code := r.URL.Query().Get("code")
		fmt.Fprintln(w, "You may close this window and return to the terminal.")
		codeCh <- code
		go func() { time.Sleep(500 * time.Millisecond); _ = srv.Close() }()
	})
	go func() { _ = srv.ListenAndServe() }()

	url := oauthCfg.AuthCodeURL("state-token", oauth2.AccessTypeOffline)
	fmt.Printf("Open this URL to sign in with Google:\n%s\n", url)

	select {
	case code := <-codeCh:
		tok, err := oauthCfg.Exchange(context.Background(), code)
		if err != nil {
			stdlog.Fatalf("token exchange: %v", err)
		}

		idToken, ok := tok.Extra("id_token").(string)
		if !ok || idToken == "" {
			stdlog.Fatalf("Google response carried no ID token")
		}

		if err := exchangeForSession(cfg, logger, idToken); err != nil {
			stdlog.Fatalf("login: %v", err)
		}
		fmt.Printf("Logged in. Token saved to %s\n", cfg.TokenPath)

	case <-time.After(5 * time.Minute):
		stdlog.Fatalf("authorization timed out")
	case <-signalChan():
		stdlog.Fatalf("interrupted")
	}
}

// exchangeForSession trades the Google ID token for an API access token.
func exchangeForSession(cfg *config.Config, logger *log.Logger, idToken string) error {
	client, err := api.NewClient(cfg.APIBaseURL, api.WithLogger(logger.WithComponent(log.ComponentAPI)))
	if err != nil {
		return err
	}

	store := cache.NewStore()
	defer store.Close()
	tokens := auth.NewTokenStore(cfg.TokenPath)
	session := services.NewSession(client, store, tokens, logger)

	_, err = session.LoginWithGoogle(context.Background(), idToken)
	return err
}

func signalChan() <-chan os.Signal {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)
	return c
}
