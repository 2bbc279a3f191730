package gateway

import (
	"fmt"
	"net/http"

	retry "github.com/appleboy/go-httpretry"
)

// retryTransport retries transient failures (network errors, 5xx, 429) of a
// single send. It sits below Transport so a 401 is never retried here.
type retryTransport struct {
	client *retry.Client
}

// NewRetryTransport wraps base with up to maxRetries retries of transient
// failures. A maxRetries of zero returns base unchanged.
func NewRetryTransport(base http.RoundTripper, maxRetries int) (http.RoundTripper, error) {
	if maxRetries < 0 {
		return nil, fmt.Errorf("max retries must not be negative, got %d", maxRetries)
	}
	if base == nil {
		base = http.DefaultTransport
	}
	if maxRetries == 0 {
		return base, nil
	}

	inner := &http.Client{
		Transport: base,
		// Redirects are followed by the outer client
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	client, err := retry.NewClient(
		retry.WithHTTPClient(inner),
		retry.WithMaxRetries(maxRetries),
	)
	if err != nil {
		return nil, fmt.Errorf("creating retry client: %w", err)
	}
	return &retryTransport{client: client}, nil
}

func (r *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	return r.client.DoWithContext(req.Context(), req)
}
