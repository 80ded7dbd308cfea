package users

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/matadmin/matadmin/internal/shared"
	_ "github.com/matadmin/matadmin/testing"
)

func TestLoadSettingsDefaults(t *testing.T) {
	require.Equal(t, DefaultSettings(), LoadSettings(&shared.Session{}))
	require.Equal(t, DefaultSettings(), LoadSettings(nil))
}

func TestSettingsRoundTrip(t *testing.T) {
	sess := &shared.Session{}
	saved := Settings{Theme: "dark", Language: "fr", PageSize: 50, EmailNotifications: false}
	require.NoError(t, SaveSettings(sess, saved))
	require.Equal(t, saved, LoadSettings(sess))
}

func TestLoadSettingsCorruptFallsBack(t *testing.T) {
	sess := &shared.Session{}
	sess.Set(shared.SettingsSessionKey, "{not json")
	require.Equal(t, DefaultSettings(), LoadSettings(sess))
}

func TestLoadSettingsRepairsPageSize(t *testing.T) {
	sess := &shared.Session{}
	sess.Set(shared.SettingsSessionKey, `{"theme":"dark","language":"en","pageSize":0}`)
	got := LoadSettings(sess)
	require.Equal(t, "dark", got.Theme)
	require.Equal(t, DefaultSettings().PageSize, got.PageSize)
}
