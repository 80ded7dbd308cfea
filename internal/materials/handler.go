package materials

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/matadmin/matadmin/internal/masterdata"
	"github.com/matadmin/matadmin/internal/platform/httpx"
	"github.com/matadmin/matadmin/internal/shared"
	"github.com/matadmin/matadmin/internal/users"
	"github.com/matadmin/matadmin/internal/view"
)

// Handler wires the material catalogue pages.
type Handler struct {
	logger    *slog.Logger
	client    *Client
	reference *masterdata.Client
	templates *view.Engine
	csrf      *shared.CSRFManager
	validate  *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, client *Client, reference *masterdata.Client, templates *view.Engine, csrf *shared.CSRFManager) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:    logger,
		client:    client,
		reference: reference,
		templates: templates,
		csrf:      csrf,
		validate:  validator.New(),
	}
}

// MountRoutes registers material routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Get("/search", h.search)
	r.Get("/data", h.listJSON)
	r.Get("/create", h.showCreate)
	r.Post("/create", h.handleCreate)
	r.Get("/edit/{id}", h.showEdit)
	r.Post("/edit/{id}", h.handleEdit)
	r.Post("/delete/{id}", h.handleDelete)
}

type materialForm struct {
	Name         string  `validate:"required,max=120"`
	Description  string  `validate:"max=1000"`
	Type         string  `validate:"required,oneof=ELECTRONICS FURNITURE MACHINERY RAW_MATERIAL VEHICLE"`
	Price        float64 `validate:"required,gt=0"`
	PurchaseDate string  `validate:"required,datetime=2006-01-02"`
	SaleDate     string  `validate:"omitempty,datetime=2006-01-02"`
	Status       string  `validate:"required,oneof=AVAILABLE RESERVED SOLD MAINTENANCE RETIRED"`
	CityCode     string  `validate:"required"`
}

type formErrors map[string]string

type listPageData struct {
	Materials  []Material
	Filters    Filters
	Reference  *masterdata.Reference
	Pagination shared.Pagination
	BaseQuery  string
	Searched   bool
	Error      string
}

type formPageData struct {
	Form      materialForm
	Errors    formErrors
	Reference *masterdata.Reference
	Types     []MaterialType
	Statuses  []MaterialStatus
	EditID    int64
}

func filtersFromQuery(r *http.Request) Filters {
	q := r.URL.Query()
	return Filters{
		Type:           q.Get("type"),
		CityCode:       q.Get("cityCode"),
		DepartmentCode: q.Get("departmentCode"),
		PurchaseDate:   q.Get("purchaseDate"),
		Name:           q.Get("name"),
	}.Normalize()
}

// list fetches the whole catalogue and narrows it locally with the quick
// filters, one upstream call per page view.
func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	data := listPageData{Filters: filtersFromQuery(r)}

	list, err := h.client.List(r.Context())
	if err != nil {
		h.logger.Error("list materials", slog.Any("error", err))
		if h.bounceIfLoggedOut(w, r) {
			return
		}
		data.Error = httpx.UserSafeMessage(err)
	} else {
		data.Materials, data.Pagination = h.paginate(r, FilterLocal(list, data.Filters))
		data.BaseQuery = baseQuery(r)
	}

	if ref, err := h.reference.Reference(r.Context()); err == nil {
		data.Reference = ref
	} else {
		h.logger.Warn("load reference data", slog.Any("error", err))
	}

	h.render(w, r, "pages/materials/list.html", "Materials", data, http.StatusOK)
}

// search delegates filtering to the upstream search endpoints.
func (h *Handler) search(w http.ResponseWriter, r *http.Request) {
	data := listPageData{Filters: filtersFromQuery(r), Searched: true}

	list, err := h.searchUpstream(r.Context(), data.Filters)
	if err != nil {
		h.logger.Error("search materials", slog.Any("error", err))
		if h.bounceIfLoggedOut(w, r) {
			return
		}
		data.Error = httpx.UserSafeMessage(err)
	} else {
		data.Materials, data.Pagination = h.paginate(r, list)
		data.BaseQuery = baseQuery(r)
	}

	if ref, err := h.reference.Reference(r.Context()); err == nil {
		data.Reference = ref
	}

	h.render(w, r, "pages/materials/list.html", "Materials", data, http.StatusOK)
}

// searchUpstream resolves the active filters against the narrowest search
// endpoint. Single-criterion lookups have dedicated routes upstream; the
// name criterion only exists as such a route, so a combined query goes
// through /materials/search and narrows by name locally.
func (h *Handler) searchUpstream(ctx context.Context, f Filters) ([]Material, error) {
	switch {
	case f.IsZero():
		return h.client.List(ctx)
	case f == Filters{Type: f.Type}:
		return h.client.ByType(ctx, f.Type)
	case f == Filters{CityCode: f.CityCode}:
		return h.client.ByCity(ctx, f.CityCode)
	case f == Filters{DepartmentCode: f.DepartmentCode}:
		return h.client.ByDepartment(ctx, f.DepartmentCode)
	case f == Filters{Name: f.Name}:
		return h.client.ByName(ctx, f.Name)
	}
	list, err := h.client.Search(ctx, f)
	if err != nil {
		return nil, err
	}
	if f.Name != "" {
		list = FilterLocal(list, Filters{Name: f.Name})
	}
	return list, nil
}

// listJSON backs the list page's script-driven filtering.
func (h *Handler) listJSON(w http.ResponseWriter, r *http.Request) {
	list, err := h.client.List(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, FilterLocal(list, filtersFromQuery(r)))
}

func (h *Handler) showCreate(w http.ResponseWriter, r *http.Request) {
	data := formPageData{
		Form:     materialForm{Status: string(StatusAvailable)},
		Errors:   formErrors{},
		Types:    Types(),
		Statuses: Statuses(),
	}
	h.attachReference(r, &data)
	h.render(w, r, "pages/materials/form.html", "New material", data, http.StatusOK)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	form, errs := h.parseForm(r)
	if len(errs) == 0 {
		if _, err := h.client.Create(r.Context(), form.toInput()); err != nil {
			if h.bounceIfLoggedOut(w, r) {
				return
			}
			errs = h.upstreamErrors(err)
		} else {
			h.redirectWithFlash(w, r, "/materials", "success", "Material created")
			return
		}
	}
	data := formPageData{Form: form, Errors: errs, Types: Types(), Statuses: Statuses()}
	h.attachReference(r, &data)
	h.render(w, r, "pages/materials/form.html", "New material", data, http.StatusBadRequest)
}

func (h *Handler) showEdit(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	mat, err := h.client.Get(r.Context(), id)
	if err != nil {
		h.logger.Error("load material", slog.Int64("id", id), slog.Any("error", err))
		if h.bounceIfLoggedOut(w, r) {
			return
		}
		h.redirectWithFlash(w, r, "/materials", "error", httpx.UserSafeMessage(err))
		return
	}
	data := formPageData{Form: formFromMaterial(mat), Errors: formErrors{}, Types: Types(), Statuses: Statuses(), EditID: id}
	h.attachReference(r, &data)
	h.render(w, r, "pages/materials/form.html", "Edit material", data, http.StatusOK)
}

func (h *Handler) handleEdit(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	form, errs := h.parseForm(r)
	if len(errs) == 0 {
		if _, err := h.client.Update(r.Context(), id, form.toInput()); err != nil {
			if h.bounceIfLoggedOut(w, r) {
				return
			}
			errs = h.upstreamErrors(err)
		} else {
			h.redirectWithFlash(w, r, "/materials", "success", "Material updated")
			return
		}
	}
	data := formPageData{Form: form, Errors: errs, Types: Types(), Statuses: Statuses(), EditID: id}
	h.attachReference(r, &data)
	h.render(w, r, "pages/materials/form.html", "Edit material", data, http.StatusBadRequest)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	if err := h.client.Delete(r.Context(), id); err != nil {
		h.logger.Error("delete material", slog.Int64("id", id), slog.Any("error", err))
		if h.bounceIfLoggedOut(w, r) {
			return
		}
		h.redirectWithFlash(w, r, "/materials", "error", httpx.UserSafeMessage(err))
		return
	}
	h.redirectWithFlash(w, r, "/materials", "success", "Material deleted")
}

func (h *Handler) parseForm(r *http.Request) (materialForm, formErrors) {
	errs := formErrors{}
	if err := r.ParseForm(); err != nil {
		errs["general"] = "Invalid form submission"
		return materialForm{}, errs
	}
	price, priceErr := strconv.ParseFloat(strings.TrimSpace(r.PostFormValue("price")), 64)
	form := materialForm{
		Name:         strings.TrimSpace(r.PostFormValue("name")),
		Description:  strings.TrimSpace(r.PostFormValue("description")),
		Type:         r.PostFormValue("type"),
		Price:        price,
		PurchaseDate: strings.TrimSpace(r.PostFormValue("purchaseDate")),
		SaleDate:     strings.TrimSpace(r.PostFormValue("saleDate")),
		Status:       r.PostFormValue("status"),
		CityCode:     r.PostFormValue("cityCode"),
	}
	if priceErr != nil {
		errs["Price"] = "Price must be a number"
	}
	if err := h.validate.Struct(form); err != nil {
		for _, fieldErr := range err.(validator.ValidationErrors) {
			errs[fieldErr.Field()] = formFieldMessage(fieldErr)
		}
	}
	if form.SaleDate != "" && form.PurchaseDate != "" {
		purchase, err1 := time.Parse(DateLayout, form.PurchaseDate)
		sale, err2 := time.Parse(DateLayout, form.SaleDate)
		if err1 == nil && err2 == nil && sale.Before(purchase) {
			errs["SaleDate"] = "Sale date cannot be before purchase date"
		}
	}
	return form, errs
}

func formFieldMessage(err validator.FieldError) string {
	switch err.Tag() {
	case "required":
		return "This field is required"
	case "gt":
		return "Must be greater than zero"
	case "datetime":
		return "Use the YYYY-MM-DD format"
	case "oneof":
		return "Not a valid choice"
	case "max":
		return "Too long"
	default:
		return "Invalid value"
	}
}

// upstreamErrors maps a 400 with field-level messages back onto the form.
func (h *Handler) upstreamErrors(err error) formErrors {
	errs := formErrors{}
	if apiErr, ok := httpx.AsAPIError(err); ok {
		for field, messages := range apiErr.Fields {
			if len(messages) > 0 {
				errs[field] = messages[0]
			}
		}
		if len(errs) == 0 {
			errs["general"] = apiErr.UserMessage()
		}
		return errs
	}
	errs["general"] = httpx.UserSafeMessage(err)
	return errs
}

func (f materialForm) toInput() MaterialInput {
	input := MaterialInput{
		Name:         f.Name,
		Description:  f.Description,
		Type:         MaterialType(f.Type),
		Price:        f.Price,
		PurchaseDate: f.PurchaseDate,
		Status:       MaterialStatus(f.Status),
		CityCode:     f.CityCode,
	}
	if f.SaleDate != "" {
		sale := f.SaleDate
		input.SaleDate = &sale
	}
	return input
}

func formFromMaterial(mat *Material) materialForm {
	form := materialForm{
		Name:         mat.Name,
		Description:  mat.Description,
		Type:         string(mat.Type),
		Price:        mat.Price,
		PurchaseDate: mat.PurchaseDate.String(),
		Status:       string(mat.Status),
		CityCode:     mat.City.Code,
	}
	if mat.SaleDate != nil {
		form.SaleDate = mat.SaleDate.String()
	}
	return form
}

// paginate cuts the filtered list into pages sized by the user's settings.
func (h *Handler) paginate(r *http.Request, list []Material) ([]Material, shared.Pagination) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	settings := users.LoadSettings(shared.SessionFromContext(r.Context()))
	pg := shared.NewPagination(page, settings.PageSize, len(list))
	if pg.TotalPages > 0 && pg.Page > pg.TotalPages {
		pg = shared.NewPagination(pg.TotalPages, pg.PerPage, pg.Total)
	}
	start := (pg.Page - 1) * pg.PerPage
	if start >= len(list) {
		return nil, pg
	}
	end := start + pg.PerPage
	if end > len(list) {
		end = len(list)
	}
	return list[start:end], pg
}

// baseQuery returns the current query string minus the page parameter, so
// pager links preserve the active filters.
func baseQuery(r *http.Request) string {
	q := r.URL.Query()
	q.Del("page")
	return q.Encode()
}

func (h *Handler) attachReference(r *http.Request, data *formPageData) {
	ref, err := h.reference.Reference(r.Context())
	if err != nil {
		h.logger.Warn("load reference data", slog.Any("error", err))
		return
	}
	data.Reference = ref
}

// bounceIfLoggedOut sends the browser to the login page when an upstream
// call ended with the session cleared (failed refresh). The caller must
// return immediately when true.
func (h *Handler) bounceIfLoggedOut(w http.ResponseWriter, r *http.Request) bool {
	sess := shared.SessionFromContext(r.Context())
	if sess.IsAuthenticated() {
		return false
	}
	http.Redirect(w, r, "/auth/login", http.StatusSeeOther)
	return true
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, template, title string, data any, status int) {
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
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	if err := h.templates.Render(w, template, viewData); err != nil {
		h.logger.Error("render template", slog.String("template", template), slog.Any("error", err))
	}
}

func (h *Handler) redirectWithFlash(w http.ResponseWriter, r *http.Request, location, kind, message string) {
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		sess.AddFlash(shared.FlashMessage{Kind: kind, Message: message})
	}
	http.Redirect(w, r, location, http.StatusSeeOther)
}
