package users

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/matadmin/matadmin/internal/authapi"
	"github.com/matadmin/matadmin/internal/platform/httpx"
	"github.com/matadmin/matadmin/internal/shared"
	"github.com/matadmin/matadmin/internal/view"
)

// Handler serves the profile, settings and admin account pages.
type Handler struct {
	logger    *slog.Logger
	client    *Client
	templates *view.Engine
	csrf      *shared.CSRFManager
	validator *validator.Validate
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, client *Client, templates *view.Engine, csrf *shared.CSRFManager) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, client: client, templates: templates, csrf: csrf, validator: validator.New()}
}

// MountProfileRoutes registers the signed-in user's own pages.
func (h *Handler) MountProfileRoutes(r chi.Router) {
	r.Get("/", h.showProfile)
	r.Post("/", h.handleProfileUpdate)
	r.Post("/password", h.handlePasswordChange)
}

// MountSettingsRoutes registers the preferences page.
func (h *Handler) MountSettingsRoutes(r chi.Router) {
	r.Get("/", h.showSettings)
	r.Post("/", h.handleSettingsUpdate)
}

// MountAdminRoutes registers the account listing. Access control happens
// in the route policy, not here.
func (h *Handler) MountAdminRoutes(r chi.Router) {
	r.Get("/users", h.listUsers)
}

type formErrors map[string]string

type profileForm struct {
	FirstName string `validate:"required,max=60"`
	LastName  string `validate:"required,max=60"`
	Email     string `validate:"required,email"`
}

type profilePageData struct {
	Form           profileForm
	Errors         formErrors
	PasswordErrors formErrors
}

type settingsPageData struct {
	Settings Settings
	Errors   formErrors
}

type usersPageData struct {
	Users []shared.User
	Error string
}

func (h *Handler) showProfile(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	form := profileForm{}
	if user := sess.User(); user != nil {
		form = profileForm{FirstName: user.FirstName, LastName: user.LastName, Email: user.Email}
	}
	data := profilePageData{Form: form, Errors: formErrors{}, PasswordErrors: formErrors{}}
	h.render(w, r, "pages/profile.html", "Profile", data, http.StatusOK)
}

func (h *Handler) handleProfileUpdate(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	sess := shared.SessionFromContext(r.Context())
	form := profileForm{
		FirstName: strings.TrimSpace(r.PostFormValue("firstName")),
		LastName:  strings.TrimSpace(r.PostFormValue("lastName")),
		Email:     strings.TrimSpace(r.PostFormValue("email")),
	}
	errors := formErrors{}
	if err := h.validator.Struct(form); err != nil {
		for _, fieldErr := range err.(validator.ValidationErrors) {
			errors[fieldErr.Field()] = fieldMessage(fieldErr)
		}
	}
	if len(errors) == 0 {
		_, err := h.client.UpdateProfile(r.Context(), sess, authapi.ProfileUpdate{
			FirstName: form.FirstName,
			LastName:  form.LastName,
			Email:     form.Email,
		})
		if err != nil {
			h.logger.Warn("update profile", slog.Any("error", err))
			if h.bounceIfLoggedOut(w, r) {
				return
			}
			errors = upstreamErrors(err)
		} else {
			h.redirectWithFlash(w, r, "/profile", "success", "Profile updated")
			return
		}
	}
	data := profilePageData{Form: form, Errors: errors, PasswordErrors: formErrors{}}
	h.render(w, r, "pages/profile.html", "Profile", data, http.StatusBadRequest)
}

func (h *Handler) handlePasswordChange(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	sess := shared.SessionFromContext(r.Context())
	change := authapi.PasswordChange{
		CurrentPassword: r.PostFormValue("currentPassword"),
		NewPassword:     r.PostFormValue("newPassword"),
		ConfirmPassword: r.PostFormValue("confirmPassword"),
	}
	errors := formErrors{}
	if change.CurrentPassword == "" {
		errors["CurrentPassword"] = "This field is required"
	}
	if len(change.NewPassword) < 8 {
		errors["NewPassword"] = "Password must be at least 8 characters"
	}
	if change.NewPassword != change.ConfirmPassword {
		errors["ConfirmPassword"] = "Passwords do not match"
	}
	if len(errors) == 0 {
		if err := h.client.ChangePassword(r.Context(), change); err != nil {
			h.logger.Warn("change password", slog.Any("error", err))
			if h.bounceIfLoggedOut(w, r) {
				return
			}
			errors = upstreamErrors(err)
		} else {
			h.redirectWithFlash(w, r, "/profile", "success", "Password changed")
			return
		}
	}
	form := profileForm{}
	if user := sess.User(); user != nil {
		form = profileForm{FirstName: user.FirstName, LastName: user.LastName, Email: user.Email}
	}
	data := profilePageData{Form: form, Errors: formErrors{}, PasswordErrors: errors}
	h.render(w, r, "pages/profile.html", "Profile", data, http.StatusBadRequest)
}

func (h *Handler) showSettings(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	data := settingsPageData{Settings: LoadSettings(sess), Errors: formErrors{}}
	h.render(w, r, "pages/settings.html", "Settings", data, http.StatusOK)
}

func (h *Handler) handleSettingsUpdate(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	sess := shared.SessionFromContext(r.Context())
	errors := formErrors{}

	settings := LoadSettings(sess)
	switch theme := r.PostFormValue("theme"); theme {
	case "light", "dark":
		settings.Theme = theme
	default:
		errors["Theme"] = "Not a valid choice"
	}
	switch lang := r.PostFormValue("language"); lang {
	case "en", "es", "fr":
		settings.Language = lang
	default:
		errors["Language"] = "Not a valid choice"
	}
	if size, err := strconv.Atoi(r.PostFormValue("pageSize")); err != nil || size < 5 || size > 100 {
		errors["PageSize"] = "Page size must be between 5 and 100"
	} else {
		settings.PageSize = size
	}
	settings.EmailNotifications = r.PostFormValue("emailNotifications") == "on"

	if len(errors) > 0 {
		data := settingsPageData{Settings: settings, Errors: errors}
		h.render(w, r, "pages/settings.html", "Settings", data, http.StatusBadRequest)
		return
	}
	if err := SaveSettings(sess, settings); err != nil {
		h.logger.Error("save settings", slog.Any("error", err))
	}
	h.redirectWithFlash(w, r, "/settings", "success", "Settings saved")
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	data := usersPageData{}
	users, err := h.client.List(r.Context())
	if err != nil {
		h.logger.Error("list users", slog.Any("error", err))
		if h.bounceIfLoggedOut(w, r) {
			return
		}
		data.Error = httpx.UserSafeMessage(err)
	} else {
		data.Users = users
	}
	h.render(w, r, "pages/users/list.html", "Users", data, http.StatusOK)
}

func fieldMessage(err validator.FieldError) string {
	switch err.Tag() {
	case "required":
		return "This field is required"
	case "email":
		return "Enter a valid email address"
	case "max":
		return "Too long"
	default:
		return "Invalid value"
	}
}

func upstreamErrors(err error) formErrors {
	errors := formErrors{}
	if apiErr, ok := httpx.AsAPIError(err); ok {
		for field, messages := range apiErr.Fields {
			if len(messages) > 0 {
				errors[field] = messages[0]
			}
		}
		if len(errors) == 0 {
			errors["general"] = apiErr.UserMessage()
		}
		return errors
	}
	errors["general"] = httpx.UserSafeMessage(err)
	return errors
}

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
