package gateway_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/matadmin/matadmin/internal/gateway"
	"github.com/matadmin/matadmin/internal/shared"
	_ "github.com/matadmin/matadmin/testing"
)

type stubRefresher struct {
	calls    atomic.Int64
	newToken string
	err      error
}

func (s *stubRefresher) Refresh(ctx context.Context, sess *shared.Session) (*shared.User, error) {
	s.calls.Add(1)
	if s.err != nil {
		sess.ClearCredentials()
		return nil, s.err
	}
	user := &shared.User{ID: 7, Username: "jdoe"}
	sess.SetCredentials(user, s.newToken, "refresh-2")
	return user, nil
}

func authedSession(token string) *shared.Session {
	sess := &shared.Session{}
	sess.SetCredentials(&shared.User{ID: 7, Username: "jdoe"}, token, "refresh-1")
	return sess
}

func doRequest(t *testing.T, client *http.Client, sess *shared.Session, method, url string, body io.Reader) (*http.Response, error) {
	t.Helper()
	ctx := shared.ContextWithSession(context.Background(), sess)
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	require.NoError(t, err)
	return client.Do(req)
}

func TestExpiredTokenRefreshedAndReplayedOnce(t *testing.T) {
	var upstreamCalls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		upstreamCalls.Add(1)
		switch r.Header.Get("Authorization") {
		case "Bearer new-token":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"success":true,"data":[]}`))
		default:
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"success":false,"message":"Token expired","code":"TOKEN_EXPIRED"}`))
		}
	}))
	defer srv.Close()

	refresher := &stubRefresher{newToken: "new-token"}
	sess := authedSession("old-token")
	client := gateway.NewHTTPClient(5*time.Second, nil,
		gateway.RefreshRetry(refresher, nil, nil),
		gateway.Bearer(),
	)

	resp, err := doRequest(t, client, sess, http.MethodGet, srv.URL+"/materials", nil)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.EqualValues(t, 1, refresher.calls.Load())
	require.EqualValues(t, 2, upstreamCalls.Load())
	require.Equal(t, "new-token", sess.AccessToken())
}

func TestPermission401PassesThroughUntouched(t *testing.T) {
	const body = `{"success":false,"message":"Access denied","code":"INSUFFICIENT_PERMISSIONS"}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()

	refresher := &stubRefresher{newToken: "new-token"}
	sess := authedSession("old-token")
	client := gateway.NewHTTPClient(5*time.Second, nil,
		gateway.RefreshRetry(refresher, nil, nil),
		gateway.Bearer(),
	)

	resp, err := doRequest(t, client, sess, http.MethodGet, srv.URL+"/materials", nil)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.EqualValues(t, 0, refresher.calls.Load())

	// The classified body must be restored for the caller.
	got, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.JSONEq(t, body, string(got))
	require.True(t, sess.IsAuthenticated())
}

func TestSecond401AfterRefreshPropagates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"success":false,"message":"Token expired","code":"TOKEN_EXPIRED"}`))
	}))
	defer srv.Close()

	refresher := &stubRefresher{newToken: "new-token"}
	sess := authedSession("old-token")
	client := gateway.NewHTTPClient(5*time.Second, nil,
		gateway.RefreshRetry(refresher, nil, nil),
		gateway.Bearer(),
	)

	resp, err := doRequest(t, client, sess, http.MethodGet, srv.URL+"/materials", nil)
	require.NoError(t, err)
	defer resp.Body.Close()

	// Exactly one refresh: the replay's 401 reaches the caller as-is.
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.EqualValues(t, 1, refresher.calls.Load())
}

func TestRefreshFailureSurfacesAndSessionStaysCleared(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"success":false,"message":"Token expired","code":"TOKEN_EXPIRED"}`))
	}))
	defer srv.Close()

	refreshErr := errors.New("refresh token expired")
	refresher := &stubRefresher{err: refreshErr}
	sess := authedSession("old-token")
	client := gateway.NewHTTPClient(5*time.Second, nil,
		gateway.RefreshRetry(refresher, nil, nil),
		gateway.Bearer(),
	)

	_, err := doRequest(t, client, sess, http.MethodGet, srv.URL+"/materials", nil) //nolint:bodyclose
	require.Error(t, err)
	require.ErrorContains(t, err, "refresh token expired")
	require.EqualValues(t, 1, refresher.calls.Load())
	require.False(t, sess.IsAuthenticated())
}

func TestPublicEndpointNeverRefreshes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Empty(t, r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"success":false,"message":"Token expired","code":"TOKEN_EXPIRED"}`))
	}))
	defer srv.Close()

	refresher := &stubRefresher{newToken: "new-token"}
	sess := authedSession("old-token")
	client := gateway.NewHTTPClient(5*time.Second, nil,
		gateway.RefreshRetry(refresher, nil, nil),
		gateway.Bearer(),
	)

	resp, err := doRequest(t, client, sess, http.MethodPost, srv.URL+"/auth/login", strings.NewReader(`{}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.EqualValues(t, 0, refresher.calls.Load())
}

func TestUnauthenticatedSessionNeverRefreshes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"success":false,"message":"Token expired","code":"TOKEN_EXPIRED"}`))
	}))
	defer srv.Close()

	refresher := &stubRefresher{newToken: "new-token"}
	client := gateway.NewHTTPClient(5*time.Second, nil,
		gateway.RefreshRetry(refresher, nil, nil),
		gateway.Bearer(),
	)

	resp, err := doRequest(t, client, &shared.Session{}, http.MethodGet, srv.URL+"/materials", nil)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.EqualValues(t, 0, refresher.calls.Load())
}

func TestReplayResendsRequestBody(t *testing.T) {
	var bodies []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		bodies = append(bodies, string(data))
		if r.Header.Get("Authorization") == "Bearer new-token" {
			w.WriteHeader(http.StatusCreated)
			return
		}
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"success":false,"code":"TOKEN_EXPIRED","message":"Token expired"}`))
	}))
	defer srv.Close()

	refresher := &stubRefresher{newToken: "new-token"}
	sess := authedSession("old-token")
	client := gateway.NewHTTPClient(5*time.Second, nil,
		gateway.RefreshRetry(refresher, nil, nil),
		gateway.Bearer(),
	)

	const payload = `{"name":"Drill press"}`
	resp, err := doRequest(t, client, sess, http.MethodPost, srv.URL+"/materials", strings.NewReader(payload))
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusCreated, resp.StatusCode)
	require.Equal(t, []string{payload, payload}, bodies)
}
