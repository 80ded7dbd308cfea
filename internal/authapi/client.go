// Package authapi implements the client for the remote authentication API.
// It owns the session credential lifecycle: every success and failure path
// of login, refresh, verify and logout maps to a defined mutation of the
// session, so handlers never touch tokens directly.
package authapi

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/matadmin/matadmin/internal/platform/httpx"
	"github.com/matadmin/matadmin/internal/shared"
)

// Client issues requests against the auth API. Auth flow endpoints are
// public, so the client uses a plain HTTP client rather than the
// bearer/refresh gateway chain; Verify and Me attach the bearer themselves.
type Client struct {
	upstream *httpx.Upstream
	logger   *slog.Logger
}

// NewClient constructs a Client for the given base URL.
func NewClient(baseURL string, httpc *http.Client, logger *slog.Logger) *Client {
	if httpc == nil {
		httpc = &http.Client{Timeout: 15 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{upstream: httpx.NewUpstream(baseURL, httpc), logger: logger}
}

// Login exchanges credentials for a token pair. On success the pair and the
// user are persisted into the session; on failure the normalized message is
// recorded as the session error and a typed error is returned.
func (c *Client) Login(ctx context.Context, sess *shared.Session, usernameOrEmail, password string) (*shared.User, error) {
	env, err := c.upstream.Do(ctx, http.MethodPost, "/auth/login", nil, LoginRequest{
		UsernameOrEmail: usernameOrEmail,
		Password:        password,
	}, "")
	if err != nil {
		if apiErr, ok := httpx.AsAPIError(err); ok {
			sess.SetError(apiErr.UserMessage())
		}
		return nil, err
	}
	return c.adoptTokens(sess, env)
}

// Register creates a new account. The session is not authenticated by a
// successful registration; callers send the user to the login page.
func (c *Client) Register(ctx context.Context, sess *shared.Session, req RegisterRequest) (*shared.User, error) {
	env, err := c.upstream.Do(ctx, http.MethodPost, "/auth/register", nil, req, "")
	if err != nil {
		if apiErr, ok := httpx.AsAPIError(err); ok {
			sess.SetError(apiErr.UserMessage())
		}
		return nil, err
	}
	var user shared.User
	if err := json.Unmarshal(env.Data, &user); err != nil {
		return nil, fmt.Errorf("authapi: decode register response: %w", err)
	}
	return &user, nil
}

// Logout invalidates the refresh token server-side on a best-effort basis.
// The session credentials are always cleared, whatever the server said.
func (c *Client) Logout(ctx context.Context, sess *shared.Session) {
	if refresh := sess.RefreshToken(); refresh != "" {
		if _, err := c.upstream.Do(ctx, http.MethodPost, "/auth/logout", nil, map[string]string{"refreshToken": refresh}, sess.AccessToken()); err != nil {
			c.logger.Warn("server-side logout failed", slog.Any("error", err))
		}
	}
	sess.ClearCredentials()
}

// Refresh exchanges the stored refresh token for a new pair. A missing
// token fails fast; any upstream failure is terminal and clears the
// session. There is deliberately no retry here.
func (c *Client) Refresh(ctx context.Context, sess *shared.Session) (*shared.User, error) {
	refresh := sess.RefreshToken()
	if refresh == "" {
		sess.ClearCredentials()
		return nil, ErrNoRefreshToken
	}
	env, err := c.upstream.Do(ctx, http.MethodPost, "/auth/refresh", nil, map[string]string{"refreshToken": refresh}, "")
	if err != nil {
		sess.ClearCredentials()
		return nil, err
	}
	return c.adoptTokens(sess, env)
}

// Verify asks the auth API whether the stored token is still honored and
// reconciles the session user with the answer. Rejection clears the session.
func (c *Client) Verify(ctx context.Context, sess *shared.Session) (*shared.User, error) {
	return c.fetchUser(ctx, sess, "/auth/validate")
}

// Me fetches the current user profile. Rejection clears the session.
func (c *Client) Me(ctx context.Context, sess *shared.Session) (*shared.User, error) {
	return c.fetchUser(ctx, sess, "/auth/me")
}

// ForgotPassword requests a password-reset email.
func (c *Client) ForgotPassword(ctx context.Context, email string) error {
	_, err := c.upstream.Do(ctx, http.MethodPost, "/auth/forgot-password", nil, map[string]string{"email": email}, "")
	return err
}

// ResetPassword completes a password reset with an emailed token.
func (c *Client) ResetPassword(ctx context.Context, req PasswordReset) error {
	_, err := c.upstream.Do(ctx, http.MethodPost, "/users/reset-password", nil, req, "")
	return err
}

func (c *Client) fetchUser(ctx context.Context, sess *shared.Session, path string) (*shared.User, error) {
	env, err := c.upstream.Do(ctx, http.MethodGet, path, nil, nil, sess.AccessToken())
	if err != nil {
		sess.ClearCredentials()
		return nil, err
	}
	var user shared.User
	if err := json.Unmarshal(env.Data, &user); err != nil {
		sess.ClearCredentials()
		return nil, fmt.Errorf("authapi: decode user: %w", err)
	}
	sess.SetUser(&user)
	return &user, nil
}

func (c *Client) adoptTokens(sess *shared.Session, env *httpx.Envelope) (*shared.User, error) {
	var login LoginResponse
	if err := json.Unmarshal(env.Data, &login); err != nil {
		return nil, fmt.Errorf("authapi: decode token response: %w", err)
	}
	if login.User == nil || login.Tokens.AccessToken == "" {
		return nil, fmt.Errorf("authapi: token response missing user or access token")
	}
	sess.SetCredentials(login.User, login.Tokens.AccessToken, login.Tokens.RefreshToken)
	return login.User, nil
}
