package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/florianilch/ledgerly/internal/tokensource"
	"github.com/florianilch/ledgerly/internal/tokenstore"
)

type fakeObtainer struct {
	pair *tokensource.Pair
	err  error
}

func (f *fakeObtainer) Obtain(context.Context, string, string) (*tokensource.Pair, error) {
	return f.pair, f.err
}

func signedToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-key"))
	require.NoError(t, err)
	return s
}

func TestLoginLogout(t *testing.T) {
	ctx := context.Background()
	store := tokenstore.NewMemoryStore(tokenstore.Credentials{AccessToken: "old", RefreshToken: "old"})
	s, err := New(store, &fakeObtainer{pair: &tokensource.Pair{Access: "A1", Refresh: "R1"}})
	require.NoError(t, err)

	require.NoError(t, s.Login(ctx, "alice", "pw"))
	creds, err := s.Credentials(ctx)
	require.NoError(t, err)
	assert.Equal(t, tokenstore.Credentials{AccessToken: "A1", RefreshToken: "R1"}, creds)

	require.NoError(t, s.Logout(ctx))
	creds, err = s.Credentials(ctx)
	require.NoError(t, err)
	assert.True(t, creds.IsZero())
}

func TestLoginFailureKeepsStore(t *testing.T) {
	ctx := context.Background()
	store := tokenstore.NewMemoryStore(tokenstore.Credentials{AccessToken: "A0", RefreshToken: "R0"})
	s, err := New(store, &fakeObtainer{err: tokensource.ErrInvalidGrant})
	require.NoError(t, err)

	err = s.Login(ctx, "alice", "wrong")
	require.ErrorIs(t, err, tokensource.ErrInvalidGrant)

	creds, err := s.Credentials(ctx)
	require.NoError(t, err)
	assert.Equal(t, "A0", creds.AccessToken)
}

func TestLoginWithoutObtainer(t *testing.T) {
	s, err := New(tokenstore.NewMemoryStore(tokenstore.Credentials{}), nil)
	require.NoError(t, err)
	require.Error(t, s.Login(context.Background(), "alice", "pw"))
}

func TestRotate(t *testing.T) {
	ctx := context.Background()
	store := tokenstore.NewMemoryStore(tokenstore.Credentials{AccessToken: "A1", RefreshToken: "R1"})
	s, err := New(store, nil)
	require.NoError(t, err)

	// Server did not rotate the refresh token
	require.NoError(t, s.Rotate(ctx, "A2", ""))
	creds, _ := s.Credentials(ctx)
	assert.Equal(t, tokenstore.Credentials{AccessToken: "A2", RefreshToken: "R1"}, creds)

	// Server rotated the refresh token
	require.NoError(t, s.Rotate(ctx, "A3", "R3"))
	creds, _ = s.Credentials(ctx)
	assert.Equal(t, tokenstore.Credentials{AccessToken: "A3", RefreshToken: "R3"}, creds)
}

func TestRotateReadOnlyStore(t *testing.T) {
	t.Setenv("LEDGERLY_SESSION_TEST_ACCESS", "A1")
	store, err := tokenstore.NewEnvStore("LEDGERLY_SESSION_TEST_ACCESS", "")
	require.NoError(t, err)
	s, err := New(store, nil)
	require.NoError(t, err)

	err = s.Rotate(context.Background(), "A2", "R2")
	require.ErrorIs(t, err, tokenstore.ErrReadOnly)
}

func TestCredentialsStorageError(t *testing.T) {
	s, err := New(failingStore{}, nil)
	require.NoError(t, err)

	_, err = s.Credentials(context.Background())
	require.Error(t, err)
	assert.False(t, errors.Is(err, tokenstore.ErrNotFound))
}

func TestToken(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	access := signedToken(t, jwt.MapClaims{"user_id": 42, "exp": exp.Unix()})

	s, err := New(tokenstore.NewMemoryStore(tokenstore.Credentials{AccessToken: access, RefreshToken: "R1"}), nil)
	require.NoError(t, err)

	tok, err := s.Token()
	require.NoError(t, err)
	assert.Equal(t, access, tok.AccessToken)
	assert.Equal(t, "Bearer", tok.Type())
	assert.True(t, tok.Expiry.Equal(exp), "expiry %v, want %v", tok.Expiry, exp)
	assert.True(t, tok.Valid())

	empty, err := New(tokenstore.NewMemoryStore(tokenstore.Credentials{}), nil)
	require.NoError(t, err)
	_, err = empty.Token()
	require.ErrorIs(t, err, ErrNotLoggedIn)
}

func TestStatus(t *testing.T) {
	ctx := context.Background()

	t.Run("logged out", func(t *testing.T) {
		s, _ := New(tokenstore.NewMemoryStore(tokenstore.Credentials{}), nil)
		st, err := s.Status(ctx)
		require.NoError(t, err)
		assert.False(t, st.LoggedIn)
	})

	t.Run("jwt access token", func(t *testing.T) {
		access := signedToken(t, jwt.MapClaims{"user_id": 7, "exp": time.Now().Add(-time.Minute).Unix()})
		s, _ := New(tokenstore.NewMemoryStore(tokenstore.Credentials{AccessToken: access, RefreshToken: "R"}), nil)
		st, err := s.Status(ctx)
		require.NoError(t, err)
		assert.True(t, st.LoggedIn)
		assert.True(t, st.Refreshable)
		assert.Equal(t, "7", st.UserID)
		require.NotNil(t, st.ExpiresAt)
		assert.True(t, st.Expired)
	})

	t.Run("opaque access token", func(t *testing.T) {
		s, _ := New(tokenstore.NewMemoryStore(tokenstore.Credentials{AccessToken: "opaque"}), nil)
		st, err := s.Status(ctx)
		require.NoError(t, err)
		assert.True(t, st.LoggedIn)
		assert.False(t, st.Refreshable)
		assert.Nil(t, st.ExpiresAt)
		assert.Empty(t, st.UserID)
	})
}

type failingStore struct{}

func (failingStore) Load(context.Context) (tokenstore.Credentials, error) {
	return tokenstore.Credentials{}, errors.New("disk on fire")
}
func (failingStore) Save(context.Context, tokenstore.Credentials) error { return errors.New("disk on fire") }
func (failingStore) Clear(context.Context) error                        { return errors.New("disk on fire") }
