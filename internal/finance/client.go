// Package finance is a typed client for the personal-finance API: transactions,
// categories, budgets and reports.
//
// The client carries no credentials of its own. Authentication is the job of
// the *http.Client it is given, normally one whose transport is a
// gateway.Transport.
package finance

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"reflect"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/florianilch/ledgerly/internal/gateway"
	"github.com/florianilch/ledgerly/internal/tokensource"
)

// DefaultSignupPath is the registration endpoint relative to the API base URL.
const DefaultSignupPath = "/signup/"

// RequestIDHeader carries a per-call correlation id.
const RequestIDHeader = "X-Request-Id"

// ErrInvalidInput is wrapped by all client-side validation failures.
var ErrInvalidInput = errors.New("invalid input")

// Option configures a Client.
type Option func(*Client)

// WithSignupPath overrides the registration endpoint path.
func WithSignupPath(path string) Option {
	return func(c *Client) {
		c.signupPath = path
	}
}

// Client talks to the finance API.
type Client struct {
	base       *url.URL
	httpClient *http.Client
	validate   *validator.Validate
	signupPath string
}

// New creates a Client for the API rooted at baseURL.
// If httpClient is nil, http.DefaultClient is used.
func New(baseURL string, httpClient *http.Client, opts ...Option) (*Client, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("base URL %q must be absolute", baseURL)
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	c := &Client{
		base:       base,
		httpClient: httpClient,
		validate:   newValidator(),
		signupPath: DefaultSignupPath,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("trigger", func(fl validator.FieldLevel) bool {
		field := fl.Field()
		return field.Kind() == reflect.String && EmotionalTrigger(field.String()).Valid()
	})
	return v
}

func (c *Client) check(what string, in any) error {
	if err := c.validate.Struct(in); err != nil {
		return fmt.Errorf("%w %s: %w", ErrInvalidInput, what, err)
	}
	return nil
}

// do sends one JSON request and decodes the response into out (if non-nil).
// Non-2xx responses are returned as *gateway.Error.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshaling request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	endpoint := tokensource.Endpoint(c.base, path)
	if len(query) > 0 {
		endpoint.RawQuery = query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), body)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	requestID := uuid.NewString()
	req.Header.Set(RequestIDHeader, requestID)

	slog.DebugContext(ctx, "api request", "method", method, "path", endpoint.Path, "request_id", requestID)

	resp, err := c.httpClient.Do(req)
	if err := gateway.Classify(resp, err); err != nil {
		return fmt.Errorf("%s %s: %w", method, endpoint.Path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s %s response: %w", method, endpoint.Path, err)
	}
	return nil
}

// Signup registers a new user. It does not log in.
func (c *Client) Signup(ctx context.Context, in SignupInput) error {
	if err := c.check("signup", in); err != nil {
		return err
	}
	return c.do(ctx, http.MethodPost, c.signupPath, nil, in, nil)
}

func idPath(collection string, id int64) string {
	return fmt.Sprintf("/%s/%d/", collection, id)
}
