// Package guard decides, per inbound request, whether the routed page may
// be served to the current session. The policy is a static classification
// table consulted read-only; it never mutates session state.
package guard

import (
	"net/url"
	"sort"
	"strings"

	"github.com/matadmin/matadmin/internal/shared"
)

// RuleKind classifies a route prefix.
type RuleKind int

const (
	// Public routes are reachable without authentication.
	Public RuleKind = iota
	// AuthOnly routes (login, register) are hidden from authenticated users.
	AuthOnly
	// Restricted routes require one of the listed roles.
	Restricted
)

// Rule binds a route prefix to its access class.
type Rule struct {
	Prefix string
	Kind   RuleKind
	Roles  []string
}

// Redirect reasons reported in Decision.Reason.
const (
	ReasonLogin         = "login"
	ReasonRole          = "role"
	ReasonAuthenticated = "authenticated"
)

// Decision is the outcome of a policy check.
type Decision struct {
	Allow      bool
	RedirectTo string
	Reason     string
}

// Policy evaluates route rules with longest-prefix matching.
type Policy struct {
	rules            []Rule
	loginPath        string
	defaultPath      string
	unauthorizedPath string
}

// ReturnURLParam carries the originally requested path through the login
// redirect.
const ReturnURLParam = "returnUrl"

// NewPolicy builds a Policy from rules. Rules are ordered longest prefix
// first so the most specific classification wins; an exact match always
// beats a looser prefix.
func NewPolicy(rules []Rule, loginPath, defaultPath, unauthorizedPath string) *Policy {
	ordered := make([]Rule, len(rules))
	copy(ordered, rules)
	sort.SliceStable(ordered, func(i, j int) bool {
		return len(ordered[i].Prefix) > len(ordered[j].Prefix)
	})
	return &Policy{
		rules:            ordered,
		loginPath:        loginPath,
		defaultPath:      defaultPath,
		unauthorizedPath: unauthorizedPath,
	}
}

// DefaultPolicy returns the application's route classification table.
func DefaultPolicy() *Policy {
	return NewPolicy([]Rule{
		{Prefix: "/auth/login", Kind: AuthOnly},
		{Prefix: "/auth/register", Kind: AuthOnly},
		{Prefix: "/auth/forgot-password", Kind: AuthOnly},
		{Prefix: "/auth/reset-password", Kind: Public},
		{Prefix: "/auth/logout", Kind: Public},
		{Prefix: "/unauthorized", Kind: Public},
		{Prefix: "/404", Kind: Public},
		{Prefix: "/500", Kind: Public},
		{Prefix: "/healthz", Kind: Public},
		{Prefix: "/metrics", Kind: Public},
		{Prefix: "/static", Kind: Public},
		{Prefix: "/admin", Kind: Restricted, Roles: []string{shared.RoleAdmin}},
		{Prefix: "/admin/users", Kind: Restricted, Roles: []string{shared.RoleAdmin, shared.RoleManager}},
		{Prefix: "/users", Kind: Restricted, Roles: []string{shared.RoleAdmin, shared.RoleManager}},
		{Prefix: "/reports", Kind: Restricted, Roles: []string{shared.RoleAdmin, shared.RoleManager}},
		{Prefix: "/settings", Kind: Restricted, Roles: []string{shared.RoleAdmin}},
	}, "/auth/login", "/materials", "/unauthorized")
}

// DefaultPath is where authenticated users land without a return URL.
func (p *Policy) DefaultPath() string {
	return p.defaultPath
}

// match returns the most specific rule covering path, or nil. Prefixes
// match whole path segments only.
func (p *Policy) match(path string) *Rule {
	for i := range p.rules {
		rule := &p.rules[i]
		if path == rule.Prefix {
			return rule
		}
	}
	for i := range p.rules {
		rule := &p.rules[i]
		if strings.HasPrefix(path, rule.Prefix+"/") {
			return rule
		}
	}
	return nil
}

// Decide applies the policy to a target path. returnURL is the stored or
// requested landing path used when bouncing an authenticated user off an
// auth-only page.
func (p *Policy) Decide(path string, sess *shared.Session, returnURL string) Decision {
	rule := p.match(path)

	if rule != nil && rule.Kind == Public {
		return Decision{Allow: true}
	}

	if rule != nil && rule.Kind == AuthOnly {
		if !sess.IsAuthenticated() {
			return Decision{Allow: true}
		}
		target := returnURL
		if target == "" || !strings.HasPrefix(target, "/") {
			target = p.defaultPath
		}
		return Decision{RedirectTo: target, Reason: ReasonAuthenticated}
	}

	if !sess.IsAuthenticated() {
		return Decision{RedirectTo: p.loginRedirect(path), Reason: ReasonLogin}
	}

	if rule != nil && rule.Kind == Restricted && !sess.HasAnyRole(rule.Roles...) {
		return Decision{RedirectTo: p.unauthorizedPath, Reason: ReasonRole}
	}

	return Decision{Allow: true}
}

func (p *Policy) loginRedirect(requested string) string {
	target := requested
	if target == "" || target == "/" {
		target = p.defaultPath
	}
	return p.loginPath + "?" + ReturnURLParam + "=" + url.QueryEscape(target)
}
