package tokensource

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Default endpoint paths relative to the API base URL.
const (
	DefaultLoginPath   = "/login/"
	DefaultRefreshPath = "/token/refresh/"
)

// maxErrorBody bounds how much of an error response is kept for diagnostics.
const maxErrorBody = 4 << 10

// ErrInvalidGrant indicates the endpoint rejected the supplied credentials
// (wrong username/password, or an expired or revoked refresh token).
var ErrInvalidGrant = errors.New("credentials rejected by token endpoint")

// EndpointError describes an unexpected response from a token endpoint.
type EndpointError struct {
	Endpoint   string
	StatusCode int
	Body       string
}

func (e *EndpointError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: unexpected status %d", e.Endpoint, e.StatusCode)
	}
	return fmt.Sprintf("%s: unexpected status %d: %s", e.Endpoint, e.StatusCode, e.Body)
}

// Pair is the token endpoint response. Refresh is empty when the server does
// not rotate refresh tokens.
type Pair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh,omitempty"`
}

// Option configures a Client.
type Option func(*config)

// config holds configuration for New.
type config struct {
	baseTransport http.RoundTripper
	timeout       time.Duration
	loginPath     string
	refreshPath   string
}

// WithTransport sets a custom base transport for token requests.
// If not provided, http.DefaultTransport is used.
func WithTransport(transport http.RoundTripper) Option {
	return func(c *config) {
		c.baseTransport = transport
	}
}

// WithTimeout bounds each token request. Defaults to 30 seconds.
func WithTimeout(timeout time.Duration) Option {
	return func(c *config) {
		c.timeout = timeout
	}
}

// WithLoginPath overrides DefaultLoginPath.
func WithLoginPath(path string) Option {
	return func(c *config) {
		c.loginPath = path
	}
}

// WithRefreshPath overrides DefaultRefreshPath.
func WithRefreshPath(path string) Option {
	return func(c *config) {
		c.refreshPath = path
	}
}

// Client obtains and refreshes token pairs.
type Client struct {
	loginURL   string
	refreshURL string
	httpClient *http.Client
}

// New creates a Client for the API rooted at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	cfg := &config{
		baseTransport: http.DefaultTransport,
		timeout:       30 * time.Second,
		loginPath:     DefaultLoginPath,
		refreshPath:   DefaultRefreshPath,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid base URL %q: scheme and host required", baseURL)
	}

	return &Client{
		loginURL:   Endpoint(base, cfg.loginPath).String(),
		refreshURL: Endpoint(base, cfg.refreshPath).String(),
		httpClient: &http.Client{
			Timeout:   cfg.timeout,
			Transport: cfg.baseTransport,
		},
	}, nil
}

// Obtain exchanges a username and password for a token pair.
func (c *Client) Obtain(ctx context.Context, username, password string) (*Pair, error) {
	body := map[string]string{"username": username, "password": password}

	pair, err := c.post(ctx, c.loginURL, body)
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	if pair.Refresh == "" {
		return nil, errors.New("login: response missing refresh token")
	}
	return pair, nil
}

// Refresh mints a new access token from refreshToken. Only HTTP 200 counts as
// success. The returned Pair carries a new refresh token only if the server
// rotated it.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*Pair, error) {
	if refreshToken == "" {
		return nil, errors.New("refresh: empty refresh token")
	}

	pair, err := c.post(ctx, c.refreshURL, map[string]string{"refresh": refreshToken})
	if err != nil {
		return nil, fmt.Errorf("refresh: %w", err)
	}
	return pair, nil
}

func (c *Client) post(ctx context.Context, endpoint string, payload any) (*Pair, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusBadRequest {
			return nil, fmt.Errorf("%w (status %d)", ErrInvalidGrant, resp.StatusCode)
		}
		return nil, &EndpointError{
			Endpoint:   endpoint,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(respBody)),
		}
	}

	var pair Pair
	if err := json.NewDecoder(resp.Body).Decode(&pair); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	if pair.Access == "" {
		return nil, errors.New("response missing access token")
	}
	return &pair, nil
}

// Endpoint joins path onto base, keeping exactly one slash between them and
// preserving a trailing slash on path.
func Endpoint(base *url.URL, path string) *url.URL {
	u := *base
	u.Path = strings.TrimRight(base.Path, "/") + "/" + strings.TrimLeft(path, "/")
	u.RawPath = ""
	return &u
}
