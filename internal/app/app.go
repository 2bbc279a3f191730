package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"golang.org/x/sync/errgroup"

	"github.com/florianilch/ledgerly/internal/finance"
	"github.com/florianilch/ledgerly/internal/gateway"
	"github.com/florianilch/ledgerly/internal/proxy"
	"github.com/florianilch/ledgerly/internal/session"
	"github.com/florianilch/ledgerly/internal/tokensource"
)

// Option configures an App.
type Option func(*options)

type options struct {
	redirector gateway.LoginRedirector
	base       http.RoundTripper
}

// WithRedirector sets what happens when the session is lost.
// By default a warning is logged.
func WithRedirector(r gateway.LoginRedirector) Option {
	return func(o *options) {
		o.redirector = r
	}
}

// WithBaseTransport replaces http.DefaultTransport for all outbound calls.
func WithBaseTransport(rt http.RoundTripper) Option {
	return func(o *options) {
		o.base = rt
	}
}

// App wires the session, the authenticated transport, the finance client and
// the session gateway, and orchestrates the gateway's lifecycle.
type App struct {
	cfg     *Config
	session *session.Session
	finance *finance.Client
	proxy   *proxy.Proxy
}

// New creates a new App instance. No I/O is performed.
func New(cfg *Config, opts ...Option) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	o := options{
		redirector: gateway.RedirectFunc(func(ctx context.Context) {
			slog.WarnContext(ctx, "login required")
		}),
		base: http.DefaultTransport,
	}
	for _, opt := range opts {
		opt(&o)
	}

	store, err := cfg.Session.NewTokenStore()
	if err != nil {
		return nil, fmt.Errorf("failed to create token store: %w", err)
	}

	// Token endpoints bypass the gateway so a refresh can never trigger another one
	tokens, err := tokensource.New(cfg.API.BaseURL,
		tokensource.WithTransport(o.base),
		tokensource.WithTimeout(cfg.API.Timeout),
		tokensource.WithLoginPath(cfg.API.LoginPath),
		tokensource.WithRefreshPath(cfg.API.RefreshPath),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create token client: %w", err)
	}

	sess, err := session.New(store, tokens)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	base, err := gateway.NewRetryTransport(o.base, cfg.API.MaxRetries)
	if err != nil {
		return nil, fmt.Errorf("failed to create retry transport: %w", err)
	}
	gatewayOpts := []gateway.Option{
		gateway.WithBase(base),
		gateway.WithRedirector(o.redirector),
	}
	if cfg.Session.SingleFlightRefresh {
		gatewayOpts = append(gatewayOpts, gateway.WithSingleFlight())
	}
	transport, err := gateway.New(sess, tokens, gatewayOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create gateway: %w", err)
	}

	financeClient, err := finance.New(cfg.API.BaseURL,
		&http.Client{Transport: transport, Timeout: cfg.API.Timeout},
		finance.WithSignupPath(cfg.API.SignupPath),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create finance client: %w", err)
	}

	proxyServer, err := proxy.New(sess, transport, cfg.API.BaseURL,
		proxy.WithMaxBodyBytes(cfg.Server.MaxBodyBytes),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create proxy: %w", err)
	}

	return &App{
		cfg:     cfg,
		session: sess,
		finance: financeClient,
		proxy:   proxyServer,
	}, nil
}

// Session returns the user's session.
func (a *App) Session() *session.Session {
	return a.session
}

// Finance returns the authenticated finance API client.
func (a *App) Finance() *finance.Client {
	return a.finance
}

// Start starts the session gateway and blocks until ctx is canceled or the
// server fails. Uses errgroup for runtime error monitoring and shutdown
// function collection for coordinated cleanup.
func (a *App) Start(ctx context.Context) error {
	g, gCtx := errgroup.WithContext(ctx)

	address := a.cfg.Address()
	var shutdownFuncs []func(context.Context) error

	// Startup phase: Start services
	slog.InfoContext(gCtx, "starting session gateway", "address", address, "upstream", a.cfg.API.BaseURL)
	proxyErrCh, err := a.proxy.Start(gCtx, address)
	if err != nil {
		return fmt.Errorf("session gateway startup failed: %w", err)
	}
	shutdownFuncs = append(shutdownFuncs, a.proxy.Shutdown)

	// Monitor runtime errors - errgroup cancels context on first error
	g.Go(func() error {
		select {
		case err := <-proxyErrCh:
			if err != nil {
				slog.ErrorContext(gCtx, "session gateway runtime error", "error", err)
				return fmt.Errorf("session gateway: %w", err)
			}
			return nil
		case <-gCtx.Done():
			return nil
		}
	})

	slog.InfoContext(gCtx, "application ready", "address", a.proxy.Addr())

	runtimeErr := g.Wait()

	slog.InfoContext(gCtx, "shutting down services")

	// Shutdown phase: Stop all services
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Shutdown.Timeout)
	defer cancel()

	var errs []error
	if runtimeErr != nil {
		errs = append(errs, fmt.Errorf("runtime: %w", runtimeErr))
	}

	for i := len(shutdownFuncs) - 1; i >= 0; i-- {
		if err := shutdownFuncs[i](shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "service shutdown failed", "error", err)
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	slog.Info("application stopped")
	return nil
}
