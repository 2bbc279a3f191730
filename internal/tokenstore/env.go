package tokenstore

import (
	"context"
	"fmt"
	"os"
)

// EnvStore provides read-only access to credentials stored in environment variables.
// Suitable for short-lived automation; refreshed tokens cannot be persisted.
type EnvStore struct {
	accessKey  string
	refreshKey string
}

// Compile-time check to ensure EnvStore implements Store
var _ Store = (*EnvStore)(nil)

// NewEnvStore creates an EnvStore reading the access token from accessKey and,
// if refreshKey is non-empty, the refresh token from refreshKey.
func NewEnvStore(accessKey, refreshKey string) (*EnvStore, error) {
	if accessKey == "" {
		return nil, fmt.Errorf("environment key cannot be empty")
	}

	return &EnvStore{
		accessKey:  accessKey,
		refreshKey: refreshKey,
	}, nil
}

// Load returns the credentials from the environment. Returns ErrNotFound if the
// access token variable is unset or empty.
func (e *EnvStore) Load(ctx context.Context) (Credentials, error) {
	if err := ctx.Err(); err != nil {
		return Credentials{}, err
	}

	creds := Credentials{AccessToken: os.Getenv(e.accessKey)}
	if e.refreshKey != "" {
		creds.RefreshToken = os.Getenv(e.refreshKey)
	}
	if creds.AccessToken == "" {
		return Credentials{}, fmt.Errorf("environment variable %s is empty: %w", e.accessKey, ErrNotFound)
	}
	return creds, nil
}

// Save is not supported for environment variables.
func (e *EnvStore) Save(ctx context.Context, _ Credentials) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return ErrReadOnly
}

// Clear is not supported for environment variables.
func (e *EnvStore) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return ErrReadOnly
}
