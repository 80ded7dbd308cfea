package masterdata

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/matadmin/matadmin/internal/platform/httpx"
	"github.com/matadmin/matadmin/internal/shared"
	"github.com/matadmin/matadmin/internal/view"
)

// Handler serves the read-only city and department reference pages.
type Handler struct {
	logger    *slog.Logger
	client    *Client
	templates *view.Engine
	csrf      *shared.CSRFManager
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, client *Client, templates *view.Engine, csrf *shared.CSRFManager) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, client: client, templates: templates, csrf: csrf}
}

// MountRoutes registers the reference routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.listCities)
}

type citiesPageData struct {
	Cities      []City
	Departments []Department
	Department  string
	Name        string
	Error       string
}

func (h *Handler) listCities(w http.ResponseWriter, r *http.Request) {
	data := citiesPageData{
		Department: strings.TrimSpace(r.URL.Query().Get("department")),
		Name:       strings.TrimSpace(r.URL.Query().Get("name")),
	}

	var cities []City
	var err error
	switch {
	case data.Department != "":
		cities, err = h.client.CitiesByDepartment(r.Context(), data.Department)
	case data.Name != "":
		cities, err = h.client.CitiesByName(r.Context(), data.Name)
	default:
		cities, err = h.client.Cities(r.Context())
	}
	if err != nil {
		h.logger.Error("list cities", slog.Any("error", err))
		sess := shared.SessionFromContext(r.Context())
		if !sess.IsAuthenticated() {
			http.Redirect(w, r, "/auth/login", http.StatusSeeOther)
			return
		}
		data.Error = httpx.UserSafeMessage(err)
	} else {
		data.Cities = cities
	}

	if departments, err := h.client.Departments(r.Context()); err == nil {
		data.Departments = departments
	} else {
		h.logger.Warn("list departments", slog.Any("error", err))
	}

	h.render(w, r, "pages/cities.html", "Cities", data)
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, template, title string, data any) {
	sess := shared.SessionFromContext(r.Context())
	csrfToken, _ := h.csrf.EnsureToken(r.Context(), sess)
	var flash *shared.FlashMessage
	if sess != nil {
		flash = sess.PopFlash()
	}
	viewData := view.WithSession(sess, view.TemplateData{
		Title:       title,
		CSRFToken:   csrfToken,
		Flash:       flash,
		CurrentPath: r.URL.Path,
		Data:        data,
	})
	if err := h.templates.Render(w, template, viewData); err != nil {
		h.logger.Error("render template", slog.String("template", template), slog.Any("error", err))
	}
}
