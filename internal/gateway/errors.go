package gateway

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// maxErrorBody bounds how much of an error response body is retained.
const maxErrorBody = 4 << 10

// ErrNoRefreshToken is wrapped by the Unauthorized error returned when an access
// token was rejected and there is no refresh token to recover with.
var ErrNoRefreshToken = errors.New("access token rejected and no refresh token stored")

// Kind categorizes a failed call.
type Kind int

const (
	// KindTransport is a network-level failure; no response was received.
	KindTransport Kind = iota + 1
	// KindUnauthorized is a 401 that could not be recovered by refreshing.
	KindUnauthorized
	// KindRefresh is a failure of the refresh endpoint. Credentials have been cleared.
	KindRefresh
	// KindStatus is any other non-2xx response.
	KindStatus
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindUnauthorized:
		return "unauthorized"
	case KindRefresh:
		return "refresh"
	case KindStatus:
		return "status"
	default:
		return "unknown"
	}
}

// Error is the failure of a call made through the gateway.
type Error struct {
	Kind Kind
	// StatusCode is set for KindUnauthorized and KindStatus.
	StatusCode int
	// Body holds the (truncated) response body for KindStatus.
	Body string
	// Err is the underlying cause, if any.
	Err error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.String())
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " (status %d)", e.StatusCode)
	}
	if e.Body != "" {
		b.WriteString(": ")
		b.WriteString(e.Body)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsKind reports whether err is, or wraps, an *Error of kind k.
func IsKind(err error, k Kind) bool {
	var gwErr *Error
	return errors.As(err, &gwErr) && gwErr.Kind == k
}

// IsAuthFailure reports whether err means the user has to log in again.
func IsAuthFailure(err error) bool {
	return IsKind(err, KindUnauthorized) || IsKind(err, KindRefresh)
}

// Classify turns the outcome of http.Client.Do into a tagged error.
// A nil error is returned for 2xx responses; the caller keeps ownership of
// resp.Body in that case. For non-2xx responses the body is read (bounded)
// and closed.
func Classify(resp *http.Response, err error) error {
	if err != nil {
		var gwErr *Error
		if errors.As(err, &gwErr) {
			return gwErr
		}
		return &Error{Kind: KindTransport, Err: err}
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	_ = resp.Body.Close()

	kind := KindStatus
	if resp.StatusCode == http.StatusUnauthorized {
		kind = KindUnauthorized
	}
	return &Error{
		Kind:       kind,
		StatusCode: resp.StatusCode,
		Body:       strings.TrimSpace(string(body)),
	}
}
