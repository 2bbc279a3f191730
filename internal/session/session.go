// Package session owns the lifecycle of the logged-in user's credential pair:
// created at login, rotated on refresh, destroyed at logout.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"

	"github.com/florianilch/ledgerly/internal/tokensource"
	"github.com/florianilch/ledgerly/internal/tokenstore"
)

// ErrNotLoggedIn is returned when an operation needs credentials and none are stored.
var ErrNotLoggedIn = errors.New("not logged in")

// Obtainer exchanges a username and password for a token pair.
type Obtainer interface {
	Obtain(ctx context.Context, username, password string) (*tokensource.Pair, error)
}

// Session wraps a tokenstore.Store with the login, refresh and logout transitions.
// Every read goes to the store, so changes made by other processes sharing the
// same storage are picked up. Writes are serialized but otherwise last-write-wins.
type Session struct {
	store  tokenstore.Store
	tokens Obtainer

	writeMu sync.Mutex
}

// Compile-time check to ensure Session implements oauth2.TokenSource
var _ oauth2.TokenSource = (*Session)(nil)

// New creates a Session. tokens may be nil if Login is never called.
func New(store tokenstore.Store, tokens Obtainer) (*Session, error) {
	if store == nil {
		return nil, fmt.Errorf("missing token store")
	}

	return &Session{
		store:  store,
		tokens: tokens,
	}, nil
}

// Login authenticates against the token endpoint and replaces any stored pair.
func (s *Session) Login(ctx context.Context, username, password string) error {
	if s.tokens == nil {
		return errors.New("login not supported: no token endpoint configured")
	}

	pair, err := s.tokens.Obtain(ctx, username, password)
	if err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := s.store.Save(ctx, tokenstore.Credentials{
		AccessToken:  pair.Access,
		RefreshToken: pair.Refresh,
	}); err != nil {
		return fmt.Errorf("persisting credentials: %w", err)
	}

	slog.InfoContext(ctx, "logged in", "username", username)
	return nil
}

// Logout removes both tokens from storage.
func (s *Session) Logout(ctx context.Context) error {
	if err := s.Clear(ctx); err != nil {
		return err
	}
	slog.InfoContext(ctx, "logged out")
	return nil
}

// Credentials returns the stored pair. A missing pair is reported as the zero
// value without error; only storage failures are returned.
func (s *Session) Credentials(ctx context.Context) (tokenstore.Credentials, error) {
	creds, err := s.store.Load(ctx)
	if errors.Is(err, tokenstore.ErrNotFound) {
		return tokenstore.Credentials{}, nil
	}
	if err != nil {
		return tokenstore.Credentials{}, fmt.Errorf("loading credentials: %w", err)
	}
	return creds, nil
}

// Rotate stores a refreshed access token. An empty refreshToken keeps the
// currently stored refresh token (servers that don't rotate refresh tokens).
func (s *Session) Rotate(ctx context.Context, accessToken, refreshToken string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if refreshToken == "" {
		current, err := s.Credentials(ctx)
		if err != nil {
			return err
		}
		refreshToken = current.RefreshToken
	}

	if err := s.store.Save(ctx, tokenstore.Credentials{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	}); err != nil {
		return fmt.Errorf("persisting refreshed credentials: %w", err)
	}
	return nil
}

// Clear removes both tokens from storage.
func (s *Session) Clear(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := s.store.Clear(ctx); err != nil {
		return fmt.Errorf("clearing credentials: %w", err)
	}
	return nil
}

// Token returns the stored access token as an oauth2.Token. Expiry is taken
// from the JWT "exp" claim when present.
func (s *Session) Token() (*oauth2.Token, error) {
	// oauth2.TokenSource.Token() has no context parameter (legacy interface limitation)
	return s.token(context.Background())
}

func (s *Session) token(ctx context.Context) (*oauth2.Token, error) {
	creds, err := s.Credentials(ctx)
	if err != nil {
		return nil, err
	}
	if creds.AccessToken == "" {
		return nil, ErrNotLoggedIn
	}

	tok := &oauth2.Token{
		AccessToken:  creds.AccessToken,
		RefreshToken: creds.RefreshToken,
		TokenType:    "Bearer",
	}
	if claims, ok := parseClaims(creds.AccessToken); ok {
		if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
			tok.Expiry = exp.Time
		}
	}
	return tok, nil
}

// Status summarizes the stored session.
type Status struct {
	LoggedIn    bool       `json:"logged_in"`
	Refreshable bool       `json:"refreshable"`
	UserID      string     `json:"user_id,omitempty"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	Expired     bool       `json:"expired"`
}

// Status reports whether a pair is stored and, for JWT access tokens, who it
// belongs to and when it expires. Signatures are not verified.
func (s *Session) Status(ctx context.Context) (Status, error) {
	tok, err := s.token(ctx)
	if errors.Is(err, ErrNotLoggedIn) {
		return Status{}, nil
	}
	if err != nil {
		return Status{}, err
	}

	st := Status{
		LoggedIn:    true,
		Refreshable: tok.RefreshToken != "",
	}
	if !tok.Expiry.IsZero() {
		exp := tok.Expiry
		st.ExpiresAt = &exp
		st.Expired = time.Now().After(exp)
	}
	if claims, ok := parseClaims(tok.AccessToken); ok {
		st.UserID = userID(claims)
	}
	return st, nil
}

// parseClaims decodes a JWT without verifying its signature.
func parseClaims(token string) (jwt.MapClaims, bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, false
	}
	return claims, true
}

func userID(claims jwt.MapClaims) string {
	switch v := claims["user_id"].(type) {
	case string:
		return v
	case float64:
		return fmt.Sprintf("%.0f", v)
	}
	if sub, err := claims.GetSubject(); err == nil {
		return sub
	}
	return ""
}
