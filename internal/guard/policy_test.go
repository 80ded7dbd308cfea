package guard_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/matadmin/matadmin/internal/guard"
	"github.com/matadmin/matadmin/internal/shared"
	_ "github.com/matadmin/matadmin/testing"
)

func sessionWithRoles(roles ...string) *shared.Session {
	sess := &shared.Session{}
	sess.SetCredentials(&shared.User{ID: 1, Username: "jdoe", Roles: roles}, "access", "refresh")
	return sess
}

func TestDecideUnauthenticated(t *testing.T) {
	policy := guard.DefaultPolicy()
	anon := &shared.Session{}

	cases := []struct {
		name     string
		path     string
		allow    bool
		redirect string
	}{
		{name: "login page is reachable", path: "/auth/login", allow: true},
		{name: "register page is reachable", path: "/auth/register", allow: true},
		{name: "reset password is public", path: "/auth/reset-password", allow: true},
		{name: "health endpoint is public", path: "/healthz", allow: true},
		{name: "static assets are public", path: "/static/css/app.css", allow: true},
		{name: "materials need auth", path: "/materials", redirect: "/auth/login?returnUrl=%2Fmaterials"},
		{name: "nested path carried in returnUrl", path: "/materials/edit/42", redirect: "/auth/login?returnUrl=%2Fmaterials%2Fedit%2F42"},
		{name: "admin needs auth before roles", path: "/admin/users", redirect: "/auth/login?returnUrl=%2Fadmin%2Fusers"},
		{name: "root falls back to default landing", path: "/", redirect: "/auth/login?returnUrl=%2Fmaterials"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			decision := policy.Decide(tc.path, anon, "")
			require.Equal(t, tc.allow, decision.Allow)
			if !tc.allow {
				require.Equal(t, tc.redirect, decision.RedirectTo)
				require.Equal(t, guard.ReasonLogin, decision.Reason)
			}
		})
	}
}

func TestDecideAuthenticatedOnAuthPages(t *testing.T) {
	policy := guard.DefaultPolicy()
	sess := sessionWithRoles(shared.RoleUser)

	decision := policy.Decide("/auth/login", sess, "")
	require.False(t, decision.Allow)
	require.Equal(t, "/materials", decision.RedirectTo)
	require.Equal(t, guard.ReasonAuthenticated, decision.Reason)

	// A stored return URL wins over the default landing page.
	decision = policy.Decide("/auth/login", sess, "/materials/edit/3")
	require.Equal(t, "/materials/edit/3", decision.RedirectTo)

	// External URLs are never honored.
	decision = policy.Decide("/auth/login", sess, "https://evil.example")
	require.Equal(t, "/materials", decision.RedirectTo)

	// Logout stays reachable while signed in.
	decision = policy.Decide("/auth/logout", sess, "")
	require.True(t, decision.Allow)
}

func TestDecideRoleRestrictions(t *testing.T) {
	policy := guard.DefaultPolicy()

	cases := []struct {
		name     string
		path     string
		roles    []string
		allow    bool
		redirect string
	}{
		{name: "user reads materials", path: "/materials", roles: []string{shared.RoleUser}, allow: true},
		{name: "user blocked from admin", path: "/admin", roles: []string{shared.RoleUser}, redirect: "/unauthorized"},
		{name: "user blocked from admin users", path: "/admin/users", roles: []string{shared.RoleUser}, redirect: "/unauthorized"},
		{name: "manager blocked from admin root", path: "/admin", roles: []string{shared.RoleManager}, redirect: "/unauthorized"},
		{name: "manager allowed on admin users", path: "/admin/users", roles: []string{shared.RoleManager}, allow: true},
		{name: "admin allowed everywhere", path: "/admin/users", roles: []string{shared.RoleAdmin}, allow: true},
		{name: "settings admin only", path: "/settings", roles: []string{shared.RoleManager}, redirect: "/unauthorized"},
		{name: "roles compared case-insensitively", path: "/admin", roles: []string{"admin"}, allow: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			decision := policy.Decide(tc.path, sessionWithRoles(tc.roles...), "")
			require.Equal(t, tc.allow, decision.Allow)
			if !tc.allow {
				require.Equal(t, tc.redirect, decision.RedirectTo)
				require.Equal(t, guard.ReasonRole, decision.Reason)
			}
		})
	}
}

func TestMatchPrefersLongestPrefix(t *testing.T) {
	policy := guard.NewPolicy([]guard.Rule{
		{Prefix: "/a", Kind: guard.Restricted, Roles: []string{shared.RoleAdmin}},
		{Prefix: "/a/b", Kind: guard.Public},
	}, "/auth/login", "/home", "/unauthorized")

	anon := &shared.Session{}
	require.True(t, policy.Decide("/a/b", anon, "").Allow)
	require.True(t, policy.Decide("/a/b/c", anon, "").Allow)
	require.False(t, policy.Decide("/a", anon, "").Allow)
	require.False(t, policy.Decide("/a/x", anon, "").Allow)
}

func TestMatchWholeSegmentsOnly(t *testing.T) {
	policy := guard.NewPolicy([]guard.Rule{
		{Prefix: "/static", Kind: guard.Public},
	}, "/auth/login", "/home", "/unauthorized")

	anon := &shared.Session{}
	require.True(t, policy.Decide("/static/app.css", anon, "").Allow)
	// "/staticfiles" is a different segment, not a child of "/static".
	require.False(t, policy.Decide("/staticfiles", anon, "").Allow)
}

func TestMiddlewareRedirects(t *testing.T) {
	policy := guard.DefaultPolicy()
	mw := policy.Middleware(nil, nil)

	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/materials", nil)
	req = req.WithContext(shared.ContextWithSession(req.Context(), &shared.Session{}))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	require.Equal(t, http.StatusSeeOther, res.Code)
	require.Equal(t, "/auth/login?returnUrl=%2Fmaterials", res.Header().Get("Location"))
}

func TestMiddlewareAllowsAuthenticated(t *testing.T) {
	policy := guard.DefaultPolicy()
	mw := policy.Middleware(nil, nil)

	var reached bool
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/materials", nil)
	req = req.WithContext(shared.ContextWithSession(req.Context(), sessionWithRoles(shared.RoleUser)))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	require.True(t, reached)
	require.Equal(t, http.StatusOK, res.Code)
}
