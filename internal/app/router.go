package app

import (
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/matadmin/matadmin/internal/auth"
	"github.com/matadmin/matadmin/internal/authapi"
	"github.com/matadmin/matadmin/internal/guard"
	"github.com/matadmin/matadmin/internal/masterdata"
	"github.com/matadmin/matadmin/internal/materials"
	"github.com/matadmin/matadmin/internal/observability"
	"github.com/matadmin/matadmin/internal/shared"
	"github.com/matadmin/matadmin/internal/users"
	"github.com/matadmin/matadmin/internal/view"
	"github.com/matadmin/matadmin/web"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger            *slog.Logger
	Config            *Config
	Templates         *view.Engine
	SessionManager    *shared.SessionManager
	CSRFManager       *shared.CSRFManager
	AuthClient        *authapi.Client
	Policy            *guard.Policy
	AuthHandler       *auth.Handler
	MaterialsHandler  *materials.Handler
	MasterDataHandler *masterdata.Handler
	UsersHandler      *users.Handler
	Metrics           *observability.Metrics
}

// NewRouter constructs the chi.Router with application defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		CSRFManager:    params.CSRFManager,
		AuthClient:     params.AuthClient,
		Metrics:        params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	policy := params.Policy
	if policy == nil {
		policy = guard.DefaultPolicy()
	}
	r.Use(policy.Middleware(params.Logger, params.Metrics))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		sess := shared.SessionFromContext(r.Context())
		if sess == nil || !sess.IsAuthenticated() {
			http.Redirect(w, r, "/auth/login", http.StatusSeeOther)
			return
		}
		http.Redirect(w, r, policy.DefaultPath(), http.StatusSeeOther)
	})

	r.Get("/unauthorized", params.renderStatic("pages/unauthorized.html", "Not authorized"))
	r.Get("/404", params.renderStatic("pages/404.html", "Page not found"))
	r.Get("/500", params.renderStatic("pages/500.html", "Something went wrong"))
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/404", http.StatusSeeOther)
	})

	r.Route("/auth", params.AuthHandler.MountRoutes)
	r.Route("/materials", params.MaterialsHandler.MountRoutes)
	if params.MasterDataHandler != nil {
		r.Route("/cities", params.MasterDataHandler.MountRoutes)
	}
	if params.UsersHandler != nil {
		r.Route("/profile", params.UsersHandler.MountProfileRoutes)
		r.Route("/settings", params.UsersHandler.MountSettingsRoutes)
		r.Route("/admin", params.UsersHandler.MountAdminRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	staticFS, err := fs.Sub(web.Static, "static")
	if err != nil {
		params.Logger.Error("create static sub filesystem", slog.Any("error", err))
	} else {
		// Static files are served without session or CSRF handling.
		fileServer := http.StripPrefix("/static/", http.FileServer(http.FS(staticFS)))
		r.Handle("/static/*", staticCacheHandler(fileServer))
	}

	return r
}

func (p RouterParams) renderStatic(template, title string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := shared.SessionFromContext(r.Context())
		csrfToken, _ := p.CSRFManager.EnsureToken(r.Context(), sess)
		var flash *shared.FlashMessage
		if sess != nil {
			flash = sess.PopFlash()
		}
		data := view.WithSession(sess, view.TemplateData{
			Title:       title,
			CSRFToken:   csrfToken,
			Flash:       flash,
			CurrentPath: r.URL.Path,
		})
		if err := p.Templates.Render(w, template, data); err != nil {
			p.Logger.Error("render static page", slog.String("template", template), slog.Any("error", err))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
	}
}

// staticCacheHandler wraps a file server with Cache-Control headers.
func staticCacheHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "public, max-age=3600")
		next.ServeHTTP(w, r)
	})
}
