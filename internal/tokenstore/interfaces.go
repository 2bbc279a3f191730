package tokenstore

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned by Load when no credentials are stored.
	ErrNotFound = errors.New("no stored credentials")

	// ErrReadOnly is returned by Save and Clear on backends that cannot be written.
	ErrReadOnly = errors.New("credential storage is read-only")
)

// Credentials is the access/refresh token pair of a logged-in user.
// JSON keys match the storage keys used by the web client.
type Credentials struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken,omitempty"`
}

// IsZero reports whether neither token is set.
func (c Credentials) IsZero() bool {
	return c.AccessToken == "" && c.RefreshToken == ""
}

// Store reads and writes the credential pair to persistent storage.
type Store interface {
	// Load returns the stored credentials. Returns ErrNotFound if nothing is stored.
	Load(ctx context.Context) (Credentials, error)

	// Save replaces the stored credentials. Returns ErrReadOnly if the backend
	// cannot be written.
	Save(ctx context.Context, creds Credentials) error

	// Clear removes both tokens. Clearing an empty store is not an error.
	Clear(ctx context.Context) error
}
