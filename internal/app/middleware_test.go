package app

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/matadmin/matadmin/internal/authapi"
	"github.com/matadmin/matadmin/internal/shared"
	_ "github.com/matadmin/matadmin/testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func signedToken(t *testing.T, expiresIn time.Duration) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "7",
		"exp": time.Now().Add(expiresIn).Unix(),
	})
	signed, err := token.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return signed
}

func credentialedSession(t *testing.T, expiresIn time.Duration) *shared.Session {
	t.Helper()
	sess := &shared.Session{}
	sess.SetCredentials(&shared.User{Username: "jdoe", Roles: []string{shared.RoleUser}},
		signedToken(t, expiresIn), "refresh-1")
	return sess
}

func TestVerifiedRecently(t *testing.T) {
	sess := &shared.Session{}
	require.False(t, verifiedRecently(sess))

	sess.Set(shared.VerifiedAtSessionKey, time.Now().UTC().Format(time.RFC3339))
	require.True(t, verifiedRecently(sess))

	sess.Set(shared.VerifiedAtSessionKey, time.Now().Add(-2*verifyInterval).UTC().Format(time.RFC3339))
	require.False(t, verifiedRecently(sess))

	sess.Set(shared.VerifiedAtSessionKey, "not-a-timestamp")
	require.False(t, verifiedRecently(sess))
}

func TestHydrateRefreshesExpiredToken(t *testing.T) {
	fresh := signedToken(t, time.Hour)
	var refreshes atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/auth/refresh", r.URL.Path)
		refreshes.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"data":{
			"user":{"id":7,"username":"jdoe","roles":["USER"]},
			"tokens":{"accessToken":"` + fresh + `","refreshToken":"refresh-2"}}}`))
	}))
	defer srv.Close()

	sess := credentialedSession(t, -time.Minute)
	cfg := MiddlewareConfig{Logger: testLogger(), AuthClient: authapi.NewClient(srv.URL, srv.Client(), nil)}

	hydrateSession(context.Background(), cfg, sess)
	require.Equal(t, int32(1), refreshes.Load())
	require.Equal(t, fresh, sess.AccessToken())
	require.Equal(t, "refresh-2", sess.RefreshToken())
}

func TestHydrateClearsSessionWhenRefreshFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"success":false,"message":"Refresh token revoked","status":401}`))
	}))
	defer srv.Close()

	sess := credentialedSession(t, -time.Minute)
	cfg := MiddlewareConfig{Logger: testLogger(), AuthClient: authapi.NewClient(srv.URL, srv.Client(), nil)}

	hydrateSession(context.Background(), cfg, sess)
	require.False(t, sess.IsAuthenticated())
}

func TestHydrateVerifiesAndStampsSession(t *testing.T) {
	var verifies atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/auth/validate", r.URL.Path)
		verifies.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"data":{"id":7,"username":"jdoe","roles":["USER","MANAGER"]}}`))
	}))
	defer srv.Close()

	sess := credentialedSession(t, time.Hour)
	cfg := MiddlewareConfig{Logger: testLogger(), AuthClient: authapi.NewClient(srv.URL, srv.Client(), nil)}

	hydrateSession(context.Background(), cfg, sess)
	require.Equal(t, int32(1), verifies.Load())
	require.True(t, sess.IsManager())
	require.True(t, verifiedRecently(sess))

	// A second hydration inside the verify window stays local.
	hydrateSession(context.Background(), cfg, sess)
	require.Equal(t, int32(1), verifies.Load())
}

func TestHydrateSkipsAnonymousSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("unexpected upstream call for anonymous session")
	}))
	defer srv.Close()

	cfg := MiddlewareConfig{Logger: testLogger(), AuthClient: authapi.NewClient(srv.URL, srv.Client(), nil)}
	hydrateSession(context.Background(), cfg, &shared.Session{})
}
