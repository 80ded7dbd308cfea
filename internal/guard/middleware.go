package guard

import (
	"log/slog"
	"net/http"

	"github.com/matadmin/matadmin/internal/shared"
)

// Metrics counts guard redirects. Satisfied by observability.Metrics.
type Metrics interface {
	ObserveGuardRedirect(reason string)
}

type noopMetrics struct{}

func (noopMetrics) ObserveGuardRedirect(string) {}

// Middleware enforces the route policy on every request. It must be
// installed after the session middleware: the session in the request
// context is always fully hydrated by the time a decision is made, so no
// navigation is ever judged against an uninitialized session.
func (p *Policy) Middleware(logger *slog.Logger, metrics Metrics) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess := shared.SessionFromContext(r.Context())
			returnURL := r.URL.Query().Get(ReturnURLParam)

			decision := p.Decide(r.URL.Path, sess, returnURL)
			if decision.Allow {
				next.ServeHTTP(w, r)
				return
			}

			metrics.ObserveGuardRedirect(decision.Reason)
			logger.Debug("route redirected",
				slog.String("path", r.URL.Path),
				slog.String("to", decision.RedirectTo),
				slog.String("reason", decision.Reason),
				slog.Bool("authenticated", sess.IsAuthenticated()))
			http.Redirect(w, r, decision.RedirectTo, http.StatusSeeOther)
		})
	}
}
