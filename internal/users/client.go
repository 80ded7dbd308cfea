package users

import (
	"context"
	"net/http"

	"github.com/matadmin/matadmin/internal/authapi"
	"github.com/matadmin/matadmin/internal/platform/httpx"
	"github.com/matadmin/matadmin/internal/shared"
)

// Client calls the account endpoints of the auth API. Requests go through
// the authenticated outbound chain, so the bearer token and the refresh
// retry come for free.
type Client struct {
	upstream *httpx.Upstream
}

// NewClient constructs a Client over the given upstream.
func NewClient(upstream *httpx.Upstream) *Client {
	return &Client{upstream: upstream}
}

// UpdateProfile saves the user's profile and mirrors the result into the
// session so pages render the fresh identity immediately.
func (c *Client) UpdateProfile(ctx context.Context, sess *shared.Session, update authapi.ProfileUpdate) (*shared.User, error) {
	var user shared.User
	if err := c.upstream.DoJSON(ctx, http.MethodPut, "/users/profile", nil, update, &user); err != nil {
		return nil, err
	}
	if sess != nil {
		sess.SetUser(&user)
	}
	return &user, nil
}

// ChangePassword submits a password change for the signed-in user.
func (c *Client) ChangePassword(ctx context.Context, change authapi.PasswordChange) error {
	return c.upstream.DoJSON(ctx, http.MethodPut, "/users/change-password", nil, change, nil)
}

// List fetches every account, for the admin listing.
func (c *Client) List(ctx context.Context) ([]shared.User, error) {
	var users []shared.User
	if err := c.upstream.DoJSON(ctx, http.MethodGet, "/users", nil, nil, &users); err != nil {
		return nil, err
	}
	return users, nil
}
