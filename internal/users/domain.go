// Package users covers the signed-in user's own pages (profile, password,
// preferences) and the admin account listing. Account data lives in the
// remote auth API; preferences live in the server-side session.
package users

import (
	"encoding/json"

	"github.com/matadmin/matadmin/internal/shared"
)

// Settings are per-user UI preferences kept in the session.
type Settings struct {
	Theme              string `json:"theme"`
	Language           string `json:"language"`
	PageSize           int    `json:"pageSize"`
	EmailNotifications bool   `json:"emailNotifications"`
}

// DefaultSettings returns the preferences used before the user saves any.
func DefaultSettings() Settings {
	return Settings{Theme: "light", Language: "en", PageSize: 20, EmailNotifications: true}
}

// LoadSettings reads the stored preferences from the session, falling back
// to defaults when absent or corrupt.
func LoadSettings(sess *shared.Session) Settings {
	if sess == nil {
		return DefaultSettings()
	}
	raw := sess.Get(shared.SettingsSessionKey)
	if raw == "" {
		return DefaultSettings()
	}
	var s Settings
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return DefaultSettings()
	}
	if s.PageSize <= 0 {
		s.PageSize = DefaultSettings().PageSize
	}
	return s
}

// SaveSettings writes the preferences back into the session.
func SaveSettings(sess *shared.Session, s Settings) error {
	if sess == nil {
		return nil
	}
	data, err := json.Marshal(s)
	if err != nil {
		return err
	}
	sess.Set(shared.SettingsSessionKey, string(data))
	return nil
}
