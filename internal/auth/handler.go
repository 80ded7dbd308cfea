// Package auth implements the login, registration and password-recovery
// pages. Credential checks happen in the remote auth API; this package
// only moves form input there and records the outcome in the session.
package auth

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/matadmin/matadmin/internal/authapi"
	"github.com/matadmin/matadmin/internal/guard"
	"github.com/matadmin/matadmin/internal/platform/httpx"
	"github.com/matadmin/matadmin/internal/shared"
	"github.com/matadmin/matadmin/internal/view"
)

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger         *slog.Logger
	client         *authapi.Client
	templates      *view.Engine
	sessionManager *shared.SessionManager
	csrfManager    *shared.CSRFManager
	validator      *validator.Validate
	defaultPath    string
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, client *authapi.Client, templates *view.Engine, sessions *shared.SessionManager, csrf *shared.CSRFManager, defaultPath string) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:         logger,
		client:         client,
		templates:      templates,
		sessionManager: sessions,
		csrfManager:    csrf,
		validator:      validator.New(),
		defaultPath:    defaultPath,
	}
}

// MountRoutes registers auth routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/login", h.showLogin)
	r.Post("/login", h.handleLogin)
	r.Get("/register", h.showRegister)
	r.Post("/register", h.handleRegister)
	r.Get("/forgot-password", h.showForgotPassword)
	r.Post("/forgot-password", h.handleForgotPassword)
	r.Get("/reset-password", h.showResetPassword)
	r.Post("/reset-password", h.handleResetPassword)
	r.Post("/logout", h.handleLogout)
}

type loginForm struct {
	UsernameOrEmail string `validate:"required"`
	Password        string `validate:"required"`
}

type loginPageData struct {
	Form      loginForm
	Errors    map[string]string
	ReturnURL string
}

type registerForm struct {
	Username        string `validate:"required,min=3,max=50"`
	Email           string `validate:"required,email"`
	FirstName       string `validate:"required,max=60"`
	LastName        string `validate:"required,max=60"`
	Password        string `validate:"required,min=8"`
	ConfirmPassword string `validate:"required,eqfield=Password"`
}

type registerPageData struct {
	Form   registerForm
	Errors map[string]string
}

type forgotPasswordPageData struct {
	Email  string
	Errors map[string]string
	Sent   bool
}

type resetPasswordPageData struct {
	Token  string
	Errors map[string]string
}

// safeReturnURL keeps redirects inside the application. Anything that is
// not a local absolute path is discarded.
func safeReturnURL(raw string) string {
	if raw == "" || !strings.HasPrefix(raw, "/") {
		return ""
	}
	if strings.HasPrefix(raw, "//") || strings.Contains(raw, "\\") {
		return ""
	}
	return raw
}

func (h *Handler) showLogin(w http.ResponseWriter, r *http.Request) {
	data := loginPageData{
		Form:      loginForm{},
		ReturnURL: safeReturnURL(r.URL.Query().Get(guard.ReturnURLParam)),
	}
	h.render(w, r, "pages/login.html", "Sign in", data, http.StatusOK)
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	sess := shared.SessionFromContext(r.Context())
	returnURL := safeReturnURL(r.PostFormValue(guard.ReturnURLParam))

	form := loginForm{
		UsernameOrEmail: strings.TrimSpace(r.PostFormValue("usernameOrEmail")),
		Password:        r.PostFormValue("password"),
	}
	errors := make(map[string]string)
	if err := h.validator.Struct(form); err != nil {
		for _, fieldErr := range err.(validator.ValidationErrors) {
			errors[fieldErr.Field()] = "This field is required"
		}
	}

	if len(errors) == 0 {
		user, err := h.client.Login(r.Context(), sess, form.UsernameOrEmail, form.Password)
		if err != nil {
			h.logger.Info("login rejected",
				slog.String("username", form.UsernameOrEmail),
				slog.Any("error", err))
			errors["general"] = httpx.UserSafeMessage(err)
		} else {
			if sess != nil {
				sess.AddFlash(shared.FlashMessage{Kind: "success", Message: "Welcome back, " + user.FullName()})
			}
			target := returnURL
			if target == "" {
				target = h.defaultPath
			}
			http.Redirect(w, r, target, http.StatusSeeOther)
			return
		}
	}

	data := loginPageData{Form: loginForm{UsernameOrEmail: form.UsernameOrEmail}, Errors: errors, ReturnURL: returnURL}
	h.render(w, r, "pages/login.html", "Sign in", data, http.StatusBadRequest)
}

func (h *Handler) showRegister(w http.ResponseWriter, r *http.Request) {
	data := registerPageData{Form: registerForm{}}
	h.render(w, r, "pages/register.html", "Create account", data, http.StatusOK)
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	sess := shared.SessionFromContext(r.Context())

	form := registerForm{
		Username:        strings.TrimSpace(r.PostFormValue("username")),
		Email:           strings.TrimSpace(r.PostFormValue("email")),
		FirstName:       strings.TrimSpace(r.PostFormValue("firstName")),
		LastName:        strings.TrimSpace(r.PostFormValue("lastName")),
		Password:        r.PostFormValue("password"),
		ConfirmPassword: r.PostFormValue("confirmPassword"),
	}
	errors := make(map[string]string)
	if err := h.validator.Struct(form); err != nil {
		for _, fieldErr := range err.(validator.ValidationErrors) {
			errors[fieldErr.Field()] = registerFieldMessage(fieldErr)
		}
	}

	if len(errors) == 0 {
		user, err := h.client.Register(r.Context(), sess, authapi.RegisterRequest{
			Username:        form.Username,
			Email:           form.Email,
			Password:        form.Password,
			ConfirmPassword: form.ConfirmPassword,
			FirstName:       form.FirstName,
			LastName:        form.LastName,
		})
		if err != nil {
			h.logger.Info("registration rejected", slog.Any("error", err))
			if apiErr, ok := httpx.AsAPIError(err); ok {
				for field, messages := range apiErr.Fields {
					if len(messages) > 0 {
						errors[field] = messages[0]
					}
				}
			}
			if len(errors) == 0 {
				errors["general"] = httpx.UserSafeMessage(err)
			}
		} else {
			if sess != nil {
				sess.AddFlash(shared.FlashMessage{Kind: "success", Message: "Account created, welcome " + user.FullName()})
			}
			http.Redirect(w, r, h.defaultPath, http.StatusSeeOther)
			return
		}
	}

	form.Password = ""
	form.ConfirmPassword = ""
	data := registerPageData{Form: form, Errors: errors}
	h.render(w, r, "pages/register.html", "Create account", data, http.StatusBadRequest)
}

func registerFieldMessage(err validator.FieldError) string {
	switch err.Tag() {
	case "required":
		return "This field is required"
	case "email":
		return "Enter a valid email address"
	case "min":
		return "Too short"
	case "max":
		return "Too long"
	case "eqfield":
		return "Passwords do not match"
	default:
		return "Invalid value"
	}
}

func (h *Handler) showForgotPassword(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "pages/forgot-password.html", "Forgot password", forgotPasswordPageData{}, http.StatusOK)
}

func (h *Handler) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	email := strings.TrimSpace(r.PostFormValue("email"))
	errors := make(map[string]string)
	if err := h.validator.Var(email, "required,email"); err != nil {
		errors["Email"] = "Enter a valid email address"
	}
	if len(errors) > 0 {
		h.render(w, r, "pages/forgot-password.html", "Forgot password",
			forgotPasswordPageData{Email: email, Errors: errors}, http.StatusBadRequest)
		return
	}

	// The outcome is presented identically whether or not the address is
	// known, so account existence does not leak.
	if err := h.client.ForgotPassword(r.Context(), email); err != nil {
		h.logger.Warn("forgot password", slog.Any("error", err))
	}
	h.render(w, r, "pages/forgot-password.html", "Forgot password",
		forgotPasswordPageData{Email: email, Sent: true}, http.StatusOK)
}

func (h *Handler) showResetPassword(w http.ResponseWriter, r *http.Request) {
	data := resetPasswordPageData{Token: r.URL.Query().Get("token")}
	h.render(w, r, "pages/reset-password.html", "Reset password", data, http.StatusOK)
}

func (h *Handler) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	req := authapi.PasswordReset{
		Token:           r.PostFormValue("token"),
		NewPassword:     r.PostFormValue("newPassword"),
		ConfirmPassword: r.PostFormValue("confirmPassword"),
	}
	errors := make(map[string]string)
	if req.Token == "" {
		errors["general"] = "The reset link is invalid or has expired"
	}
	if len(req.NewPassword) < 8 {
		errors["NewPassword"] = "Password must be at least 8 characters"
	}
	if req.NewPassword != req.ConfirmPassword {
		errors["ConfirmPassword"] = "Passwords do not match"
	}
	if len(errors) == 0 {
		if err := h.client.ResetPassword(r.Context(), req); err != nil {
			h.logger.Info("reset password rejected", slog.Any("error", err))
			errors["general"] = httpx.UserSafeMessage(err)
		} else {
			if sess := shared.SessionFromContext(r.Context()); sess != nil {
				sess.AddFlash(shared.FlashMessage{Kind: "success", Message: "Password updated, please sign in"})
			}
			http.Redirect(w, r, "/auth/login", http.StatusSeeOther)
			return
		}
	}
	h.render(w, r, "pages/reset-password.html", "Reset password",
		resetPasswordPageData{Token: req.Token, Errors: errors}, http.StatusBadRequest)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess != nil {
		h.client.Logout(r.Context(), sess)
		h.sessionManager.Destroy(sess)
	}
	http.Redirect(w, r, "/auth/login", http.StatusSeeOther)
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, template, title string, data any, status int) {
	sess := shared.SessionFromContext(r.Context())
	csrfToken, _ := h.csrfManager.EnsureToken(r.Context(), sess)
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
