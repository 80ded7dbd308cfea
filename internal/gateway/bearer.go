package gateway

import (
	"net/http"

	"github.com/matadmin/matadmin/internal/shared"
)

// Bearer returns the middleware attaching the session's access token to
// outgoing requests. Public endpoints and token-less sessions pass through
// unmodified. The session travels in the request context, placed there by
// the inbound session middleware.
func Bearer() Middleware {
	return func(next http.RoundTripper) http.RoundTripper {
		return roundTripFunc(func(req *http.Request) (*http.Response, error) {
			if isPublicEndpoint(req.URL.Path) {
				return next.RoundTrip(req)
			}
			sess := shared.SessionFromContext(req.Context())
			token := sess.AccessToken()
			if token == "" {
				return next.RoundTrip(req)
			}
			// Clone before mutating: RoundTrippers must not modify the
			// caller's request.
			authed := req.Clone(req.Context())
			authed.Header.Set("Authorization", "Bearer "+token)
			return next.RoundTrip(authed)
		})
	}
}
