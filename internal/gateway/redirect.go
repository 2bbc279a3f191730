package gateway

import "context"

// LoginRedirector is notified when the session is gone for good and the user
// has to authenticate again. It is a side effect; the failed call still
// returns an error.
type LoginRedirector interface {
	RedirectToLogin(ctx context.Context)
}

// RedirectFunc adapts a function to LoginRedirector.
type RedirectFunc func(ctx context.Context)

func (f RedirectFunc) RedirectToLogin(ctx context.Context) {
	f(ctx)
}

type noopRedirector struct{}

func (noopRedirector) RedirectToLogin(context.Context) {}
