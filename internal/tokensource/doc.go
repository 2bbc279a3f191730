// Package tokensource talks to the finance API's token endpoints.
//
// The API issues a JWT access/refresh pair on login and mints a new access
// token (optionally rotating the refresh token) on refresh. Both endpoints
// take and return JSON:
//
//	POST /login/          {"username": "...", "password": "..."}  -> {"access": "...", "refresh": "..."}
//	POST /token/refresh/  {"refresh": "..."}                       -> {"access": "...", "refresh"?: "..."}
//
// # Transport
//
// The client must not be routed through the authenticating gateway, otherwise a
// failing refresh could trigger another refresh. Configure a custom base
// transport (e.g., for proxies or custom timeouts) with WithTransport:
//
//	c, err := tokensource.New(
//		"https://finance.example.com/api",
//		tokensource.WithTransport(customTransport),
//	)
package tokensource
