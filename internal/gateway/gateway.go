// Package gateway composes the outbound HTTP pipeline used for every call
// to the upstream APIs. The pipeline is an explicit middleware chain over
// http.RoundTripper, built once at startup: bearer attachment first, then
// the single-shot refresh-and-retry handler.
package gateway

import (
	"net/http"
	"strings"
	"time"
)

// Middleware decorates a RoundTripper.
type Middleware func(http.RoundTripper) http.RoundTripper

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

// Chain wraps base with the given middlewares; the first middleware is the
// outermost layer.
func Chain(base http.RoundTripper, mws ...Middleware) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	rt := base
	for i := len(mws) - 1; i >= 0; i-- {
		rt = mws[i](rt)
	}
	return rt
}

// NewHTTPClient returns an http.Client routing through the chained pipeline.
func NewHTTPClient(timeout time.Duration, base http.RoundTripper, mws ...Middleware) *http.Client {
	return &http.Client{
		Timeout:   timeout,
		Transport: Chain(base, mws...),
	}
}

// publicEndpoints never carry a bearer token and never trigger a refresh.
var publicEndpoints = []string{
	"/auth/login",
	"/auth/register",
	"/auth/refresh",
	"/auth/forgot-password",
	"/users/reset-password",
}

const refreshEndpoint = "/auth/refresh"

func isPublicEndpoint(path string) bool {
	for _, p := range publicEndpoints {
		if path == p || strings.HasSuffix(path, p) || strings.Contains(path, p+"/") || strings.Contains(path, p+"?") {
			return true
		}
	}
	return false
}

func isRefreshEndpoint(path string) bool {
	return strings.Contains(path, refreshEndpoint)
}
