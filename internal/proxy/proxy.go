// Package proxy serves the loopback session gateway: a small HTTP server that
// holds the user's session so browser front-ends can call the finance API
// without handling tokens themselves.
package proxy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/florianilch/ledgerly/internal/gateway"
	"github.com/florianilch/ledgerly/internal/session"
)

// DefaultLoginPath is where clients are sent when the session is gone.
const DefaultLoginPath = "/login"

// DefaultMaxBodyBytes caps request bodies forwarded to the finance API.
// The gateway transport buffers bodies so they can be replayed after a refresh.
const DefaultMaxBodyBytes int64 = 10 << 20

// apiPrefix is the path under which the finance API is exposed.
const apiPrefix = "/api"

const tracerName = "github.com/florianilch/ledgerly/internal/proxy"

// Session is the subset of session.Session the gateway needs.
type Session interface {
	Login(ctx context.Context, username, password string) error
	Logout(ctx context.Context) error
	Status(ctx context.Context) (session.Status, error)
}

// Option configures a Proxy.
type Option func(*Proxy)

// WithLoginPath sets the Location returned with auth failures.
func WithLoginPath(path string) Option {
	return func(p *Proxy) {
		p.loginPath = path
	}
}

// WithMaxBodyBytes limits the size of request bodies sent to /api/.
// Larger bodies are answered with 413.
func WithMaxBodyBytes(n int64) Option {
	return func(p *Proxy) {
		p.maxBodyBytes = n
	}
}

// WithTracerProvider sets where request spans are recorded.
// If not provided, the global provider is used.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(p *Proxy) {
		p.tracer = tp.Tracer(tracerName)
	}
}

// Proxy represents the session gateway server
type Proxy struct {
	mux          *http.ServeMux
	server       *http.Server
	addr         string
	session      Session
	loginPath    string
	maxBodyBytes int64
	tracer       trace.Tracer
}

// Compile-time check that Proxy implements http.Handler
var _ http.Handler = (*Proxy)(nil)

// New creates a session gateway forwarding /api/* to baseURL through
// transport, which is expected to authenticate the requests.
func New(sess Session, transport http.RoundTripper, baseURL string, opts ...Option) (*Proxy, error) {
	if sess == nil {
		return nil, errors.New("missing session")
	}
	upstream, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid upstream URL: %w", err)
	}
	if upstream.Scheme == "" || upstream.Host == "" {
		return nil, fmt.Errorf("upstream URL %q must be absolute", baseURL)
	}

	p := &Proxy{
		session:      sess,
		loginPath:    DefaultLoginPath,
		maxBodyBytes: DefaultMaxBodyBytes,
		tracer:       otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(p)
	}

	reverseProxyHandler := &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.Out.URL.Path = strings.TrimPrefix(pr.In.URL.Path, apiPrefix)
			pr.Out.URL.RawPath = ""
			pr.SetURL(upstream)
		},
		Transport:    &forwardTransport{Base: transport},
		ErrorHandler: p.proxyError,
	}

	logger := slog.Default()
	middlewares := []func(http.Handler) http.Handler{
		Tracing(p.tracer),
		Logging(logger),
		RequestID,
		Recovery,
	}

	mux := http.NewServeMux()
	mux.Handle("POST /login", applyMiddlewares(http.HandlerFunc(p.handleLogin), middlewares...))
	mux.Handle("POST /logout", applyMiddlewares(http.HandlerFunc(p.handleLogout), middlewares...))
	mux.Handle("GET /session", applyMiddlewares(http.HandlerFunc(p.handleSession), middlewares...))
	api := http.MaxBytesHandler(reverseProxyHandler, p.maxBodyBytes)
	mux.Handle(apiPrefix+"/", applyMiddlewares(api, middlewares...))

	p.mux = mux
	return p, nil
}

// ServeHTTP implements http.Handler interface
func (p *Proxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p.mux.ServeHTTP(w, r)
}

// proxyError answers failed upstream calls. A lost session becomes a 401
// pointing at the login page.
func (p *Proxy) proxyError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	if gateway.IsAuthFailure(err) {
		writeLoginRedirect(ctx, w, p.loginPath, "session expired, please log in again")
		return
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeJSONError(ctx, w, fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit), http.StatusRequestEntityTooLarge)
		return
	}
	if errors.Is(err, context.Canceled) {
		// Client went away, nobody to answer
		return
	}

	slog.ErrorContext(ctx, "upstream request failed", "error", err)
	writeJSONError(ctx, w, "finance API unavailable", http.StatusBadGateway)
}

// Start starts the HTTP server in the background and returns immediately.
// Returns a channel for runtime errors and a startup error if any.
//
// Startup errors (port in use, permission denied) are returned immediately.
// Runtime errors (network failures during operation) are sent to the error channel.
//
// The caller is responsible for calling Shutdown() to stop the server.
func (p *Proxy) Start(ctx context.Context, address string) (<-chan error, error) {
	// Create listener synchronously to catch port-in-use errors immediately
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", address, err)
	}

	p.addr = listener.Addr().String()
	p.server = &http.Server{
		Handler:           p,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      2 * time.Minute, // covers a refresh plus the replayed call
		IdleTimeout:       90 * time.Second,
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}

	errCh := make(chan error, 1)

	go func() {
		err := p.server.Serve(listener)
		// Only report error if not from graceful shutdown
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	return errCh, nil
}

// Addr returns the listening address once Start has succeeded.
func (p *Proxy) Addr() string {
	return p.addr
}

// Shutdown performs graceful shutdown of the HTTP server.
// Returns error if shutdown fails or times out.
func (p *Proxy) Shutdown(ctx context.Context) error {
	if p.server == nil {
		return nil
	}

	if err := p.server.Shutdown(ctx); err != nil {
		// Graceful shutdown failed - force close
		_ = p.server.Close()
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	return nil
}
