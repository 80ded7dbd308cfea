package httpx_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/matadmin/matadmin/internal/platform/httpx"
	_ "github.com/matadmin/matadmin/testing"
)

func TestDoUnwrapsEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"message":"ok","data":{"id":3,"name":"Steel coil"}}`))
	}))
	defer srv.Close()

	up := httpx.NewUpstream(srv.URL, srv.Client())
	env, err := up.Do(context.Background(), http.MethodPost, "/materials", nil, map[string]string{"name": "Steel coil"}, "tok")
	require.NoError(t, err)
	require.True(t, env.Success)
	require.JSONEq(t, `{"id":3,"name":"Steel coil"}`, string(env.Data))
}

func TestDoJSONDecodesData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"data":[{"code":"NYC"},{"code":"BOS"}]}`))
	}))
	defer srv.Close()

	up := httpx.NewUpstream(srv.URL, srv.Client())
	var out []struct {
		Code string `json:"code"`
	}
	require.NoError(t, up.DoJSON(context.Background(), http.MethodGet, "/cities", nil, nil, &out))
	require.Len(t, out, 2)
	require.Equal(t, "NYC", out[0].Code)
}

func TestDoNormalizesEnvelopeFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"success":false,"message":"Validation failed","code":"VALIDATION","errors":{"name":["Name is required"]},"status":400}`))
	}))
	defer srv.Close()

	up := httpx.NewUpstream(srv.URL, srv.Client())
	_, err := up.Do(context.Background(), http.MethodPost, "/materials", nil, map[string]string{}, "")
	require.Error(t, err)

	apiErr, ok := httpx.AsAPIError(err)
	require.True(t, ok)
	require.Equal(t, http.StatusBadRequest, apiErr.Status)
	require.Equal(t, "VALIDATION", apiErr.Code)
	require.Equal(t, []string{"Name is required"}, apiErr.Fields["name"])
}

func TestDoFailureFlaggedInBodyOnly(t *testing.T) {
	// Some endpoints answer 200 with success=false and the real status in
	// the envelope.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":false,"message":"Account locked","status":403}`))
	}))
	defer srv.Close()

	up := httpx.NewUpstream(srv.URL, srv.Client())
	_, err := up.Do(context.Background(), http.MethodGet, "/auth/me", nil, nil, "")
	apiErr, ok := httpx.AsAPIError(err)
	require.True(t, ok)
	require.Equal(t, http.StatusForbidden, apiErr.Status)
	require.Equal(t, httpx.MsgAccountLocked, apiErr.UserMessage())
}

func TestDoToleratesNonEnvelopeErrorBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`<html>Bad Gateway</html>`))
	}))
	defer srv.Close()

	up := httpx.NewUpstream(srv.URL, srv.Client())
	_, err := up.Do(context.Background(), http.MethodGet, "/materials", nil, nil, "")
	apiErr, ok := httpx.AsAPIError(err)
	require.True(t, ok)
	require.Equal(t, http.StatusBadGateway, apiErr.Status)
}

func TestDoNetworkFailure(t *testing.T) {
	up := httpx.NewUpstream("http://127.0.0.1:0", nil)
	_, err := up.Do(context.Background(), http.MethodGet, "/materials", nil, nil, "")
	apiErr, ok := httpx.AsAPIError(err)
	require.True(t, ok)
	require.True(t, apiErr.IsNetwork())
	require.Equal(t, httpx.MsgConnectionError, apiErr.UserMessage())
}

func TestDoQueryEncoding(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "MACHINERY", r.URL.Query().Get("type"))
		require.Equal(t, "NYC", r.URL.Query().Get("cityCode"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"data":[]}`))
	}))
	defer srv.Close()

	up := httpx.NewUpstream(srv.URL, srv.Client())
	query := url.Values{"type": {"MACHINERY"}, "cityCode": {"NYC"}}
	_, err := up.Do(context.Background(), http.MethodGet, "/materials/search", query, nil, "")
	require.NoError(t, err)
}
