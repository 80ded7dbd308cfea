package shared

import (
	"encoding/json"
	"strings"
	"time"
)

// Role names understood by the route policy and view helpers.
const (
	RoleAdmin   = "ADMIN"
	RoleManager = "MANAGER"
	RoleUser    = "USER"
)

// User is the authenticated principal as returned by the auth API.
// It is replaced wholesale on login, refresh and profile update and is
// never partially mutated elsewhere.
type User struct {
	ID          int64     `json:"id"`
	Username    string    `json:"username"`
	Email       string    `json:"email"`
	FirstName   string    `json:"firstName"`
	LastName    string    `json:"lastName"`
	Roles       []string  `json:"roles"`
	Permissions []string  `json:"permissions"`
	Active      bool      `json:"active"`
	LastLogin   time.Time `json:"lastLogin"`
	CreatedAt   time.Time `json:"createdAt"`
}

// UnmarshalJSON normalizes the upstream payload into the canonical shape.
// Older deployments of the auth API send a singular "role" field; it is
// folded into Roles here so the rest of the application only ever sees the
// plural form.
func (u *User) UnmarshalJSON(data []byte) error {
	type alias User
	aux := struct {
		*alias
		LegacyRole   string `json:"role"`
		LegacyActive *bool  `json:"isActive"`
		LastLogin    string `json:"lastLogin"`
		CreatedAt    string `json:"createdAt"`
	}{alias: (*alias)(u)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if len(u.Roles) == 0 && aux.LegacyRole != "" {
		u.Roles = []string{aux.LegacyRole}
	}
	if aux.LegacyActive != nil {
		u.Active = *aux.LegacyActive
	}
	u.LastLogin = parseUpstreamTime(aux.LastLogin)
	u.CreatedAt = parseUpstreamTime(aux.CreatedAt)
	return nil
}

// parseUpstreamTime accepts the timestamp shapes the upstream APIs emit.
func parseUpstreamTime(raw string) time.Time {
	if raw == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t
		}
	}
	return time.Time{}
}

// FullName joins first and last name, trimming when either is empty.
func (u *User) FullName() string {
	if u == nil {
		return ""
	}
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// HasRole reports whether the user holds the given role.
func (u *User) HasRole(role string) bool {
	if u == nil {
		return false
	}
	for _, r := range u.Roles {
		if strings.EqualFold(r, role) {
			return true
		}
	}
	return false
}

// HasAnyRole reports whether the user holds at least one of the roles.
func (u *User) HasAnyRole(roles ...string) bool {
	for _, r := range roles {
		if u.HasRole(r) {
			return true
		}
	}
	return false
}

// HasPermission reports whether the user holds the given permission.
func (u *User) HasPermission(perm string) bool {
	if u == nil {
		return false
	}
	for _, p := range u.Permissions {
		if strings.EqualFold(p, perm) {
			return true
		}
	}
	return false
}

// HasAnyPermission reports whether the user holds at least one of the permissions.
func (u *User) HasAnyPermission(perms ...string) bool {
	for _, p := range perms {
		if u.HasPermission(p) {
			return true
		}
	}
	return false
}
