package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	apierrors "github.com/huy0357/Attendance-Management-System-sub000/internal/errors"
	"github.com/huy0357/Attendance-Management-System-sub000/internal/session"

	"github.com/stretchr/testify/require"
)

func TestReturnTo(t *testing.T) {
	t.Parallel()

	h := New(nil, Paths{})

	cases := map[string]string{
		"":                     "/dashboard",
		"/hrm?tab=1":           "/hrm?tab=1",
		"//evil.example":       "/dashboard",
		"/\\evil.example":      "/dashboard",
		"https://evil.example": "/dashboard",
		"/login":               "/dashboard",
		"/login?returnUrl=%2F": "/dashboard",
		"reports":              "/dashboard",
	}
	for in, want := range cases {
		require.Equal(t, want, h.returnTo(in), in)
	}
}

func TestLoginFailure(t *testing.T) {
	t.Parallel()

	cases := []struct {
		err  error
		st   int
		code string
	}{
		{fmt.Errorf("x: %w", session.ErrInvalidCredentials), http.StatusUnauthorized, "invalid_credentials"},
		{session.ErrAccountDisabled, http.StatusForbidden, "account_disabled"},
		{session.ErrUnreachable, http.StatusServiceUnavailable, "backend_unreachable"},
		{context.Canceled, apierrors.StatusClientClosedRequest, "canceled"},
		{session.ErrServerFault, http.StatusBadGateway, "backend_error"},
	}
	for _, tc := range cases {
		st, code, _ := loginFailure(tc.err)
		require.Equal(t, tc.st, st, tc.err.Error())
		require.Equal(t, tc.code, code)
	}
}

func TestNewProxy_RewritesToBackend(t *testing.T) {
	t.Parallel()

	var got *http.Request
	be := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Clone(context.Background())
		w.WriteHeader(http.StatusAccepted)
	}))
	t.Cleanup(be.Close)

	base, err := url.Parse(be.URL + "/api")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/attendance/today?team=7", nil)
	req.Header.Set("Cookie", "sid=1")
	rr := httptest.NewRecorder()
	NewProxy(base, "/api", http.DefaultTransport).ServeHTTP(rr, req)

	require.Equal(t, http.StatusAccepted, rr.Code)
	require.Equal(t, "/api/attendance/today", got.URL.Path)
	require.Equal(t, "team=7", got.URL.RawQuery)
	require.Empty(t, got.Header.Get("Cookie"))
}

func TestProxyError_SessionEnded(t *testing.T) {
	t.Parallel()

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/employees", nil)
	proxyError(rr, req, fmt.Errorf("refresh: %w", session.ErrRefreshRejected))
	require.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = httptest.NewRecorder()
	proxyError(rr, req, errors.New("dial tcp: refused"))
	require.Equal(t, http.StatusBadGateway, rr.Code)
}
