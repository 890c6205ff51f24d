package bank

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/oauth2"

	"github.com/r3vrt/monzo-auto-sub000/internal/coreerr"
	"github.com/r3vrt/monzo-auto-sub000/internal/logging"
	"github.com/r3vrt/monzo-auto-sub000/internal/model"
)

// UserStore is the slice of internal/store.Store the Token Store needs;
// declared narrowly here so this package never imports internal/store
// directly (keeping the dependency direction leaves-first per §2).
type UserStore interface {
	GetUser(userID string) (model.User, bool, error)
	PutUser(model.User) error
	MarkNeedsReauth(userID string, needs bool) error
}

// Endpoint describes the bank's OAuth 2 authorization/token URLs.
type Endpoint struct {
	AuthURL  string
	TokenURL string
}

// TokenStore persists per-user bank API credentials and refreshes them on
// demand with retry semantics (spec.md §4.1, "Token Store").
type TokenStore struct {
	users    UserStore
	endpoint Endpoint
	log      logging.Logger
}

// NewTokenStore builds a Token Store over users, a Local Store-backed User
// accessor.
func NewTokenStore(users UserStore, endpoint Endpoint, log logging.Logger) *TokenStore {
	return &TokenStore{users: users, endpoint: endpoint, log: log.With("component", "token_store")}
}

// AuthCodeURL builds the authorization URL a surface adapter redirects the
// user to, per spec.md §6.
func (ts *TokenStore) AuthCodeURL(clientID, redirectURI, state string) string {
	cfg := ts.oauthConfig(clientID, "", redirectURI)
	return cfg.AuthCodeURL(state)
}

func (ts *TokenStore) oauthConfig(clientID, clientSecret, redirectURI string) oauth2.Config {
	return oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURI,
		Endpoint: oauth2.Endpoint{
			AuthURL:  ts.endpoint.AuthURL,
			TokenURL: ts.endpoint.TokenURL,
		},
	}
}

// ExchangeCodeForToken completes the authorization code exchange and
// persists the resulting user. The caller supplies the client
// credentials used to initiate the flow, since they are not yet on file
// for a brand-new user.
func (ts *TokenStore) ExchangeCodeForToken(ctx context.Context, clientID, clientSecret, redirectURI, code string) (model.User, error) {
	cfg := ts.oauthConfig(clientID, clientSecret, redirectURI)
	tok, err := cfg.Exchange(ctx, code)
	if err != nil {
		return model.User{}, fmt.Errorf("bank: exchange code: %w", coreerr.ErrAuthTransient)
	}
	return ts.saveToken(clientID, clientSecret, redirectURI, "", tok)
}

func (ts *TokenStore) saveToken(clientID, clientSecret, redirectURI, userID string, tok *oauth2.Token) (model.User, error) {
	expiresIn := int64(0)
	if !tok.Expiry.IsZero() {
		expiresIn = int64(time.Until(tok.Expiry).Seconds())
		if expiresIn < 0 {
			expiresIn = 0
		}
	}
	bankUserID := userID
	if v := tok.Extra("user_id"); v != nil {
		if s, ok := v.(string); ok && s != "" {
			bankUserID = s
		}
	}
	u := model.User{
		BankUserID:       bankUserID,
		AccessToken:      tok.AccessToken,
		RefreshToken:     tok.RefreshToken,
		TokenType:        tok.TokenType,
		ExpiresInSeconds: expiresIn,
		AcquiredAt:       time.Now().UTC(),
		ClientID:         clientID,
		ClientSecret:     clientSecret,
		RedirectURI:      redirectURI,
	}
	if existing, ok, _ := ts.users.GetUser(bankUserID); ok {
		// Preserve client credentials already on file if this call did
		// not itself establish them (e.g. a bare refresh).
		if clientID == "" {
			u.ClientID = existing.ClientID
			u.ClientSecret = existing.ClientSecret
			u.RedirectURI = existing.RedirectURI
		}
		if u.RefreshToken == "" {
			u.RefreshToken = existing.RefreshToken
		}
	}
	if err := ts.users.PutUser(u); err != nil {
		return model.User{}, fmt.Errorf("bank: persist user: %w", err)
	}
	return u, nil
}

// Refresh exchanges the stored refresh token for a new access token,
// persists it, and clears any prior needs-reauth flag. On a refresh
// failure it classifies the error per spec.md §4.1.
func (ts *TokenStore) Refresh(ctx context.Context, userID string) (model.User, error) {
	u, ok, err := ts.users.GetUser(userID)
	if err != nil {
		return model.User{}, err
	}
	if !ok {
		return model.User{}, fmt.Errorf("bank: unknown user %s", userID)
	}
	cfg := ts.oauthConfig(u.ClientID, u.ClientSecret, u.RedirectURI)
	src := cfg.TokenSource(ctx, &oauth2.Token{RefreshToken: u.RefreshToken})
	tok, err := src.Token()
	if err != nil {
		if isReauthError(err.Error()) {
			_ = ts.users.MarkNeedsReauth(userID, true)
			return model.User{}, fmt.Errorf("bank: refresh %s: %w", userID, coreerr.ErrReauthRequired)
		}
		return model.User{}, fmt.Errorf("bank: refresh %s: %w", userID, coreerr.ErrAuthTransient)
	}
	if tok.RefreshToken == "" {
		tok.RefreshToken = u.RefreshToken
	}
	saved, err := ts.saveToken(u.ClientID, u.ClientSecret, u.RedirectURI, userID, tok)
	if err != nil {
		return model.User{}, err
	}
	_ = ts.users.MarkNeedsReauth(userID, false)
	return saved, nil
}

// Get returns the current stored tokens for userID.
func (ts *TokenStore) Get(userID string) (model.User, bool, error) {
	return ts.users.GetUser(userID)
}
