// Package gateway implements the authenticated HTTP transport used for every
// call to the finance API.
//
// The transport attaches the stored access token as a bearer credential. When
// the API answers 401 it refreshes the access token once, persists the new
// pair and replays the request. If there is no refresh token, or the refresh
// fails, the stored credentials are wiped and the LoginRedirector is notified.
//
//	tr, err := gateway.New(sess, tokens, gateway.WithRedirector(redirector))
//	client := &http.Client{Transport: tr}
package gateway

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"

	"github.com/florianilch/ledgerly/internal/tokensource"
	"github.com/florianilch/ledgerly/internal/tokenstore"
)

const tracerName = "github.com/florianilch/ledgerly/internal/gateway"

// CredentialStore is the session state the transport reads and mutates.
type CredentialStore interface {
	// Credentials returns the stored pair; the zero value if none is stored.
	Credentials(ctx context.Context) (tokenstore.Credentials, error)
	// Rotate stores a refreshed access token and, if non-empty, a rotated refresh token.
	Rotate(ctx context.Context, accessToken, refreshToken string) error
	// Clear removes both tokens.
	Clear(ctx context.Context) error
}

// Refresher mints a new access token from a refresh token.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (*tokensource.Pair, error)
}

// Option configures a Transport.
type Option func(*Transport)

// WithBase sets the transport used for the actual requests.
// If not provided, http.DefaultTransport is used.
func WithBase(base http.RoundTripper) Option {
	return func(t *Transport) {
		t.base = base
	}
}

// WithRedirector sets the callback run when the user has to log in again.
func WithRedirector(r LoginRedirector) Option {
	return func(t *Transport) {
		t.redirector = r
	}
}

// WithTracerProvider sets where refresh spans are recorded.
// If not provided, the global provider is used.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(t *Transport) {
		t.tracer = tp.Tracer(tracerName)
	}
}

// WithSingleFlight collapses concurrent refreshes of the same refresh token
// into one call to the refresh endpoint. Without it, requests that fail with
// 401 at the same time each refresh on their own.
func WithSingleFlight() Option {
	return func(t *Transport) {
		t.flight = &singleflight.Group{}
	}
}

// Transport is an http.RoundTripper that authenticates requests and recovers
// from access token expiry at most once per request.
type Transport struct {
	base       http.RoundTripper
	session    CredentialStore
	refresher  Refresher
	redirector LoginRedirector
	flight     *singleflight.Group
	tracer     trace.Tracer
}

// Compile-time check that Transport implements http.RoundTripper.
var _ http.RoundTripper = (*Transport)(nil)

// New creates a Transport backed by session and refresher.
func New(session CredentialStore, refresher Refresher, opts ...Option) (*Transport, error) {
	if session == nil {
		return nil, fmt.Errorf("missing credential store")
	}
	if refresher == nil {
		return nil, fmt.Errorf("missing refresher")
	}

	t := &Transport{
		base:       http.DefaultTransport,
		session:    session,
		refresher:  refresher,
		redirector: noopRedirector{},
		tracer:     otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// RoundTrip implements http.RoundTripper.
// Non-401 responses and network errors are returned untouched. A 401 on a
// Fresh request triggers one refresh and one replay; a 401 on a Retried
// request is returned as is.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	attempt := AttemptFromContext(ctx)

	body, rewind := req.Body, req.GetBody
	if attempt == Fresh {
		var err error
		body, rewind, err = replayableBody(req)
		if err != nil {
			return nil, err
		}
	}

	return t.send(req, body, rewind, attempt, t.accessToken(ctx))
}

func (t *Transport) send(
	req *http.Request,
	body io.ReadCloser,
	rewind func() (io.ReadCloser, error),
	attempt Attempt,
	accessToken string,
) (*http.Response, error) {
	ctx := req.Context()

	out := req.Clone(ctx)
	out.Body = body
	out.GetBody = rewind
	if accessToken != "" {
		(&oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"}).SetAuthHeader(out)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(out.Header))

	resp, err := t.base.RoundTrip(out)
	if err != nil || resp.StatusCode != http.StatusUnauthorized || attempt == Retried {
		return resp, err
	}

	drain(resp)
	slog.DebugContext(ctx, "access token rejected, refreshing", "method", req.Method, "path", req.URL.Path)

	newAccessToken, err := t.refreshSession(ctx)
	if err != nil {
		return nil, err
	}

	var retryBody io.ReadCloser = http.NoBody
	if rewind != nil {
		if retryBody, err = rewind(); err != nil {
			return nil, fmt.Errorf("rewinding request body: %w", err)
		}
	} else if req.Body == nil {
		retryBody = nil
	}

	retry := req.WithContext(WithAttempt(ctx, Retried))
	return t.send(retry, retryBody, rewind, Retried, newAccessToken)
}

// accessToken reads the current access token. Storage errors are logged and
// treated as "no token" so the request still goes out unauthenticated.
func (t *Transport) accessToken(ctx context.Context) string {
	creds, err := t.session.Credentials(ctx)
	if err != nil {
		slog.WarnContext(ctx, "failed to read credentials", "error", err)
		return ""
	}
	return creds.AccessToken
}

// refreshSession performs the refresh step of the protocol and returns the new
// access token. Any failure is terminal and wipes the stored credentials.
func (t *Transport) refreshSession(ctx context.Context) (string, error) {
	// Persisting must not be skipped because the caller stopped waiting
	persistCtx := context.WithoutCancel(ctx)

	creds, err := t.session.Credentials(ctx)
	if err != nil {
		t.expire(persistCtx, "credentials unreadable")
		return "", &Error{Kind: KindUnauthorized, StatusCode: http.StatusUnauthorized, Err: err}
	}
	if creds.RefreshToken == "" {
		t.expire(persistCtx, "no refresh token")
		return "", &Error{Kind: KindUnauthorized, StatusCode: http.StatusUnauthorized, Err: ErrNoRefreshToken}
	}

	pair, err := t.refresh(ctx, creds.RefreshToken)
	if err != nil {
		t.expire(persistCtx, "refresh failed")
		return "", &Error{Kind: KindRefresh, Err: err}
	}

	if err := t.session.Rotate(persistCtx, pair.Access, pair.Refresh); err != nil {
		// The replay still uses the new token; the next process start will have to refresh again
		slog.ErrorContext(ctx, "failed to persist refreshed credentials", "error", err)
	}

	slog.InfoContext(ctx, "access token refreshed", "rotated", pair.Refresh != "")
	return pair.Access, nil
}

func (t *Transport) refresh(ctx context.Context, refreshToken string) (*tokensource.Pair, error) {
	ctx, span := t.tracer.Start(ctx, "gateway.refresh", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	var (
		pair *tokensource.Pair
		err  error
	)
	if t.flight != nil {
		var (
			v      any
			shared bool
		)
		v, err, shared = t.flight.Do(refreshToken, func() (any, error) {
			return t.refresher.Refresh(ctx, refreshToken)
		})
		span.SetAttributes(attribute.Bool("refresh.shared", shared))
		if err == nil {
			pair = v.(*tokensource.Pair)
		}
	} else {
		pair, err = t.refresher.Refresh(ctx, refreshToken)
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "refresh failed")
		return nil, err
	}
	return pair, nil
}

// expire wipes the credentials and sends the user back to login.
func (t *Transport) expire(ctx context.Context, reason string) {
	if err := t.session.Clear(ctx); err != nil {
		slog.ErrorContext(ctx, "failed to clear credentials", "error", err)
	}
	slog.WarnContext(ctx, "session expired, login required", "reason", reason)
	t.redirector.RedirectToLogin(ctx)
}

// replayableBody returns the body for the first send and a function producing
// fresh copies for the replay. Bodies without GetBody are buffered.
func replayableBody(req *http.Request) (io.ReadCloser, func() (io.ReadCloser, error), error) {
	if req.Body == nil || req.Body == http.NoBody {
		return req.Body, nil, nil
	}
	if req.GetBody != nil {
		return req.Body, req.GetBody, nil
	}

	data, err := io.ReadAll(req.Body)
	_ = req.Body.Close()
	if err != nil {
		return nil, nil, fmt.Errorf("buffering request body: %w", err)
	}

	rewind := func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(data)), nil
	}
	body, _ := rewind()
	return body, rewind, nil
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
	_ = resp.Body.Close()
}
