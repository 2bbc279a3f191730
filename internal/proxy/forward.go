package proxy

import "net/http"

// forwardedHeaders are the inbound headers passed on to the finance API.
// Credentials the browser may send (Authorization, Cookie) are never among
// them; the session's token is attached by the gateway transport instead.
var forwardedHeaders = map[string]bool{
	"Content-Type":    true,
	"Content-Length":  true,
	"Accept":          true,
	"Accept-Encoding": true,
	"Accept-Language": true,
	"X-Request-Id":    true,

	// W3C Trace Context for distributed tracing correlation.
	"Traceparent": true,
	"Tracestate":  true,
}

// forwardTransport is an http.RoundTripper that drops every inbound header
// not listed in forwardedHeaders before handing the request to Base.
type forwardTransport struct {
	Base http.RoundTripper
}

// Compile-time check that forwardTransport implements http.RoundTripper.
var _ http.RoundTripper = (*forwardTransport)(nil)

func (t *forwardTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}

	out := req.Clone(req.Context())
	out.Header = make(http.Header, len(req.Header))
	for key, values := range req.Header {
		if forwardedHeaders[http.CanonicalHeaderKey(key)] {
			out.Header[key] = values
		}
	}

	return base.RoundTrip(out)
}
