package gateway

import "context"

// Attempt marks whether a request is on its first send or is the single retry
// that follows a credential refresh.
type Attempt int

const (
	// Fresh is the first send of a request. A 401 may trigger a refresh.
	Fresh Attempt = iota
	// Retried is the replay after a refresh. A 401 is returned as is.
	Retried
)

func (a Attempt) String() string {
	switch a {
	case Fresh:
		return "fresh"
	case Retried:
		return "retried"
	default:
		return "unknown"
	}
}

type attemptKey struct{}

// WithAttempt returns a copy of ctx carrying a.
func WithAttempt(ctx context.Context, a Attempt) context.Context {
	return context.WithValue(ctx, attemptKey{}, a)
}

// AttemptFromContext returns the attempt stored in ctx, defaulting to Fresh.
func AttemptFromContext(ctx context.Context) Attempt {
	if a, ok := ctx.Value(attemptKey{}).(Attempt); ok {
		return a
	}
	return Fresh
}
