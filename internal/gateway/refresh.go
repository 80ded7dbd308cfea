package gateway

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/matadmin/matadmin/internal/shared"
)

// classifyBodyLimit caps how much of a 401 body is read for classification.
const classifyBodyLimit = 64 << 10

// Refresher exchanges the session's refresh token for a new pair. A failed
// refresh clears the session, which is the forced logout the retry policy
// relies on.
type Refresher interface {
	Refresh(ctx context.Context, sess *shared.Session) (*shared.User, error)
}

// RefreshMetrics counts refresh attempts. Satisfied by observability.Metrics.
type RefreshMetrics interface {
	ObserveTokenRefresh(result string)
}

type noopRefreshMetrics struct{}

func (noopRefreshMetrics) ObserveTokenRefresh(string) {}

// RefreshRetry returns the middleware handling 401 responses from
// authenticated endpoints. A response classified as a token failure earns
// exactly one refresh followed by one replay of the original request; the
// replay goes through the inner layers again so the bearer middleware
// attaches the fresh token. A 401 on the replay propagates as-is because
// the replay never re-enters this handler.
//
// Install this middleware outside Bearer: Chain(base, RefreshRetry(...), Bearer()).
func RefreshRetry(refresher Refresher, logger *slog.Logger, metrics RefreshMetrics) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = noopRefreshMetrics{}
	}
	return func(next http.RoundTripper) http.RoundTripper {
		return roundTripFunc(func(req *http.Request) (*http.Response, error) {
			resp, err := next.RoundTrip(req)
			if err != nil || resp.StatusCode != http.StatusUnauthorized {
				return resp, err
			}
			if isPublicEndpoint(req.URL.Path) || isRefreshEndpoint(req.URL.Path) {
				return resp, nil
			}
			sess := shared.SessionFromContext(req.Context())
			if !sess.IsAuthenticated() {
				return resp, nil
			}

			body, readErr := io.ReadAll(io.LimitReader(resp.Body, classifyBodyLimit))
			_ = resp.Body.Close()
			if readErr != nil {
				body = nil
			}
			resp.Body = io.NopCloser(bytes.NewReader(body))

			if !isTokenFailure(body, resp.Header) {
				// Permission denial or an unmatched 401: the route policy
				// downstream decides, not the token machinery.
				return resp, nil
			}

			logger.Info("access token rejected upstream, refreshing",
				slog.String("path", req.URL.Path))
			if _, refreshErr := refresher.Refresh(req.Context(), sess); refreshErr != nil {
				metrics.ObserveTokenRefresh("failure")
				logger.Warn("token refresh failed, session cleared",
					slog.String("path", req.URL.Path), slog.Any("error", refreshErr))
				return nil, refreshErr
			}
			metrics.ObserveTokenRefresh("success")

			retry := req.Clone(req.Context())
			if req.GetBody != nil {
				replay, bodyErr := req.GetBody()
				if bodyErr != nil {
					return nil, bodyErr
				}
				retry.Body = replay
			}
			return next.RoundTrip(retry)
		})
	}
}
