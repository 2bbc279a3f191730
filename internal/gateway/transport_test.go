package gateway

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/florianilch/ledgerly/internal/session"
	"github.com/florianilch/ledgerly/internal/tokensource"
	"github.com/florianilch/ledgerly/internal/tokenstore"
)

// fakeAPI is a finance API that accepts exactly one access token.
type fakeAPI struct {
	validToken    string
	refreshStatus int
	refreshBody   string
	apiStatus     int // status for authorized calls; defaults to 200

	apiCalls     atomic.Int32
	refreshCalls atomic.Int32

	mu          sync.Mutex
	authHeaders []string
	bodies      []string
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/api/token/refresh/" {
		f.refreshCalls.Add(1)
		w.WriteHeader(f.refreshStatus)
		_, _ = io.WriteString(w, f.refreshBody)
		return
	}

	f.apiCalls.Add(1)
	body, _ := io.ReadAll(r.Body)
	auth := r.Header.Get("Authorization")

	f.mu.Lock()
	f.authHeaders = append(f.authHeaders, auth)
	f.bodies = append(f.bodies, string(body))
	f.mu.Unlock()

	if f.validToken != "" && auth != "Bearer "+f.validToken {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"detail":"Given token not valid for any token type"}`)
		return
	}
	status := f.apiStatus
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	_, _ = io.WriteString(w, `{"ok":true}`)
}

func (f *fakeAPI) lastAuth() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.authHeaders) == 0 {
		return ""
	}
	return f.authHeaders[len(f.authHeaders)-1]
}

type harness struct {
	api        *fakeAPI
	server     *httptest.Server
	store      *tokenstore.MemoryStore
	client     *http.Client
	redirected atomic.Int32
}

func newHarness(t *testing.T, api *fakeAPI, creds tokenstore.Credentials, opts ...Option) *harness {
	t.Helper()
	h := &harness{api: api, store: tokenstore.NewMemoryStore(creds)}
	h.server = httptest.NewServer(api)
	t.Cleanup(h.server.Close)

	sess, err := session.New(h.store, nil)
	require.NoError(t, err)
	tokens, err := tokensource.New(h.server.URL + "/api")
	require.NoError(t, err)

	opts = append([]Option{WithRedirector(RedirectFunc(func(context.Context) {
		h.redirected.Add(1)
	}))}, opts...)
	tr, err := New(sess, tokens, opts...)
	require.NoError(t, err)

	h.client = &http.Client{Transport: tr}
	return h
}

func (h *harness) stored(t *testing.T) tokenstore.Credentials {
	t.Helper()
	creds, err := h.store.Load(context.Background())
	if errors.Is(err, tokenstore.ErrNotFound) {
		return tokenstore.Credentials{}
	}
	require.NoError(t, err)
	return creds
}

func (h *harness) get(t *testing.T, ctx context.Context) (*http.Response, error) {
	t.Helper()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.server.URL+"/api/transactions/", nil)
	require.NoError(t, err)
	return h.client.Do(req)
}

func TestAttachCredentials(t *testing.T) {
	t.Run("token stored", func(t *testing.T) {
		h := newHarness(t, &fakeAPI{}, tokenstore.Credentials{AccessToken: "A1", RefreshToken: "R1"})

		resp, err := h.get(t, context.Background())
		require.NoError(t, err)
		_ = resp.Body.Close()

		assert.Equal(t, "Bearer A1", h.api.lastAuth())
	})

	t.Run("no token stored", func(t *testing.T) {
		h := newHarness(t, &fakeAPI{}, tokenstore.Credentials{})

		resp, err := h.get(t, context.Background())
		require.NoError(t, err)
		_ = resp.Body.Close()

		assert.Empty(t, h.api.lastAuth())
	})

	t.Run("caller request is not modified", func(t *testing.T) {
		h := newHarness(t, &fakeAPI{}, tokenstore.Credentials{AccessToken: "A1"})

		req, err := http.NewRequest(http.MethodGet, h.server.URL+"/api/categories/", nil)
		require.NoError(t, err)
		resp, err := h.client.Do(req)
		require.NoError(t, err)
		_ = resp.Body.Close()

		assert.Empty(t, req.Header.Get("Authorization"))
	})
}

func TestRefreshAndRetry(t *testing.T) {
	api := &fakeAPI{
		validToken:    "A2",
		refreshStatus: http.StatusOK,
		refreshBody:   `{"access":"A2","refresh":"R2"}`,
	}
	h := newHarness(t, api, tokenstore.Credentials{AccessToken: "A1", RefreshToken: "R1"})

	resp, err := h.get(t, context.Background())
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"ok":true}`, string(body))

	assert.EqualValues(t, 1, api.refreshCalls.Load())
	assert.EqualValues(t, 2, api.apiCalls.Load())
	assert.Equal(t, "Bearer A2", api.lastAuth())
	assert.Equal(t, tokenstore.Credentials{AccessToken: "A2", RefreshToken: "R2"}, h.stored(t))
	assert.Zero(t, h.redirected.Load())

	// Later requests use the refreshed token without another refresh
	resp2, err := h.get(t, context.Background())
	require.NoError(t, err)
	_ = resp2.Body.Close()
	assert.Equal(t, http.StatusOK, resp2.StatusCode)
	assert.EqualValues(t, 1, api.refreshCalls.Load())
}

func TestRefreshWithoutRotationKeepsRefreshToken(t *testing.T) {
	api := &fakeAPI{
		validToken:    "A2",
		refreshStatus: http.StatusOK,
		refreshBody:   `{"access":"A2"}`,
	}
	h := newHarness(t, api, tokenstore.Credentials{AccessToken: "A1", RefreshToken: "R1"})

	resp, err := h.get(t, context.Background())
	require.NoError(t, err)
	_ = resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, tokenstore.Credentials{AccessToken: "A2", RefreshToken: "R1"}, h.stored(t))
}

func TestRetriedRequestIsNotRefreshedAgain(t *testing.T) {
	t.Run("second 401 after refresh", func(t *testing.T) {
		api := &fakeAPI{
			validToken:    "never-valid",
			refreshStatus: http.StatusOK,
			refreshBody:   `{"access":"A2","refresh":"R2"}`,
		}
		h := newHarness(t, api, tokenstore.Credentials{AccessToken: "A1", RefreshToken: "R1"})

		resp, err := h.get(t, context.Background())
		require.NoError(t, err)
		_ = resp.Body.Close()

		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		assert.EqualValues(t, 1, api.refreshCalls.Load())
		assert.EqualValues(t, 2, api.apiCalls.Load())
	})

	t.Run("request already marked retried", func(t *testing.T) {
		api := &fakeAPI{
			validToken:    "never-valid",
			refreshStatus: http.StatusOK,
			refreshBody:   `{"access":"A2"}`,
		}
		h := newHarness(t, api, tokenstore.Credentials{AccessToken: "A1", RefreshToken: "R1"})

		resp, err := h.get(t, WithAttempt(context.Background(), Retried))
		require.NoError(t, err)
		_ = resp.Body.Close()

		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		assert.Zero(t, api.refreshCalls.Load())
		assert.EqualValues(t, 1, api.apiCalls.Load())
		assert.Equal(t, tokenstore.Credentials{AccessToken: "A1", RefreshToken: "R1"}, h.stored(t))
	})
}

func TestNoRefreshToken(t *testing.T) {
	api := &fakeAPI{validToken: "A2", refreshStatus: http.StatusOK, refreshBody: `{"access":"A2"}`}
	h := newHarness(t, api, tokenstore.Credentials{AccessToken: "A1"})

	resp, err := h.get(t, context.Background())
	require.Error(t, err)
	assert.Nil(t, resp)

	var gwErr *Error
	require.ErrorAs(t, err, &gwErr)
	assert.Equal(t, KindUnauthorized, gwErr.Kind)
	assert.Equal(t, http.StatusUnauthorized, gwErr.StatusCode)
	assert.ErrorIs(t, err, ErrNoRefreshToken)
	assert.True(t, IsAuthFailure(err))

	assert.Zero(t, api.refreshCalls.Load())
	assert.True(t, h.stored(t).IsZero())
	assert.EqualValues(t, 1, h.redirected.Load())
}

func TestRefreshFailure(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		cause  error
	}{
		{
			name:   "refresh token rejected",
			status: http.StatusUnauthorized,
			body:   `{"detail":"Token is invalid or expired"}`,
			cause:  tokensource.ErrInvalidGrant,
		},
		{
			name:   "refresh endpoint down",
			status: http.StatusBadGateway,
			body:   `upstream unavailable`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &fakeAPI{validToken: "A2", refreshStatus: tt.status, refreshBody: tt.body}
			h := newHarness(t, api, tokenstore.Credentials{AccessToken: "A1", RefreshToken: "R1"})

			resp, err := h.get(t, context.Background())
			require.Error(t, err)
			assert.Nil(t, resp)
			assert.True(t, IsKind(err, KindRefresh), "err = %v", err)
			if tt.cause != nil {
				assert.ErrorIs(t, err, tt.cause)
			}

			assert.EqualValues(t, 1, api.refreshCalls.Load())
			assert.EqualValues(t, 1, api.apiCalls.Load())
			assert.True(t, h.stored(t).IsZero())
			assert.EqualValues(t, 1, h.redirected.Load())
		})
	}
}

func TestNon401PassesThrough(t *testing.T) {
	api := &fakeAPI{apiStatus: http.StatusInternalServerError, refreshStatus: http.StatusOK, refreshBody: `{"access":"A2"}`}
	creds := tokenstore.Credentials{AccessToken: "A1", RefreshToken: "R1"}
	h := newHarness(t, api, creds)

	resp, err := h.get(t, context.Background())
	require.NoError(t, err)
	_ = resp.Body.Close()

	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.EqualValues(t, 1, api.apiCalls.Load())
	assert.Zero(t, api.refreshCalls.Load())
	assert.Equal(t, creds, h.stored(t))
	assert.Zero(t, h.redirected.Load())
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func TestTransportErrorPassesThrough(t *testing.T) {
	netErr := errors.New("connection refused")
	creds := tokenstore.Credentials{AccessToken: "A1", RefreshToken: "R1"}
	store := tokenstore.NewMemoryStore(creds)
	sess, err := session.New(store, nil)
	require.NoError(t, err)
	tokens, err := tokensource.New("http://127.0.0.1:1")
	require.NoError(t, err)

	tr, err := New(sess, tokens, WithBase(roundTripFunc(func(*http.Request) (*http.Response, error) {
		return nil, netErr
	})))
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodGet, "http://finance.invalid/api/", nil)
	require.NoError(t, err)
	resp, err := tr.RoundTrip(req)
	assert.Nil(t, resp)
	assert.Same(t, netErr, err)

	got, _ := store.Load(context.Background())
	assert.Equal(t, creds, got)
}

func TestRequestBodyIsReplayed(t *testing.T) {
	tests := []struct {
		name string
		body func() io.Reader
	}{
		{name: "rewindable body", body: func() io.Reader { return strings.NewReader(`{"name":"Food"}`) }},
		{name: "one-shot body", body: func() io.Reader { return io.NopCloser(strings.NewReader(`{"name":"Food"}`)) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &fakeAPI{validToken: "A2", refreshStatus: http.StatusOK, refreshBody: `{"access":"A2"}`}
			h := newHarness(t, api, tokenstore.Credentials{AccessToken: "A1", RefreshToken: "R1"})

			req, err := http.NewRequest(http.MethodPost, h.server.URL+"/api/categories/", tt.body())
			require.NoError(t, err)
			resp, err := h.client.Do(req)
			require.NoError(t, err)
			_ = resp.Body.Close()

			assert.Equal(t, http.StatusOK, resp.StatusCode)
			api.mu.Lock()
			defer api.mu.Unlock()
			assert.Equal(t, []string{`{"name":"Food"}`, `{"name":"Food"}`}, api.bodies)
		})
	}
}

// countingRefresher blocks every call until release is closed.
type countingRefresher struct {
	calls   atomic.Int32
	release chan struct{}
}

func (c *countingRefresher) Refresh(ctx context.Context, _ string) (*tokensource.Pair, error) {
	c.calls.Add(1)
	select {
	case <-c.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return &tokensource.Pair{Access: "A2"}, nil
}

func TestConcurrentRefresh(t *testing.T) {
	run := func(t *testing.T, opts ...Option) int32 {
		api := &fakeAPI{validToken: "A2"}
		server := httptest.NewServer(api)
		defer server.Close()

		store := tokenstore.NewMemoryStore(tokenstore.Credentials{AccessToken: "A1", RefreshToken: "R1"})
		sess, err := session.New(store, nil)
		require.NoError(t, err)
		refresher := &countingRefresher{release: make(chan struct{})}
		tr, err := New(sess, refresher, opts...)
		require.NoError(t, err)
		client := &http.Client{Transport: tr}

		const callers = 2
		var wg sync.WaitGroup
		for range callers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				resp, err := client.Get(server.URL + "/api/transactions/")
				if assert.NoError(t, err) {
					_ = resp.Body.Close()
					assert.Equal(t, http.StatusOK, resp.StatusCode)
				}
			}()
		}

		// Give both callers time to hit the 401 and enter the refresh step
		require.Eventually(t, func() bool { return api.apiCalls.Load() == callers }, time.Second, 5*time.Millisecond)
		time.Sleep(100 * time.Millisecond)
		close(refresher.release)
		wg.Wait()

		return refresher.calls.Load()
	}

	t.Run("independent refreshes by default", func(t *testing.T) {
		assert.EqualValues(t, 2, run(t))
	})

	t.Run("single flight", func(t *testing.T) {
		assert.EqualValues(t, 1, run(t, WithSingleFlight()))
	})
}

func TestNewValidation(t *testing.T) {
	sess, err := session.New(tokenstore.NewMemoryStore(tokenstore.Credentials{}), nil)
	require.NoError(t, err)

	_, err = New(nil, &countingRefresher{})
	require.Error(t, err)
	_, err = New(sess, nil)
	require.Error(t, err)
}

func TestRetryTransport(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	base, err := NewRetryTransport(http.DefaultTransport, 0)
	require.NoError(t, err)
	assert.Same(t, http.DefaultTransport, base)

	_, err = NewRetryTransport(nil, -1)
	require.Error(t, err)

	rt, err := NewRetryTransport(nil, 2)
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodGet, server.URL, nil)
	require.NoError(t, err)
	resp, err := rt.RoundTrip(req)
	require.NoError(t, err)
	_ = resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 2, calls.Load())
}
