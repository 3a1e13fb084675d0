package http

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/huy0357/Attendance-Management-System-sub000/internal/clients"
	"github.com/huy0357/Attendance-Management-System-sub000/internal/config"
	"github.com/huy0357/Attendance-Management-System-sub000/internal/credentials"
	"github.com/huy0357/Attendance-Management-System-sub000/internal/guard"
	"github.com/huy0357/Attendance-Management-System-sub000/internal/http/handlers"
	"github.com/huy0357/Attendance-Management-System-sub000/internal/http/middleware"
	"github.com/huy0357/Attendance-Management-System-sub000/internal/mediator"
	"github.com/huy0357/Attendance-Management-System-sub000/internal/models"
	"github.com/huy0357/Attendance-Management-System-sub000/internal/navigation"
	"github.com/huy0357/Attendance-Management-System-sub000/internal/session"
	"github.com/huy0357/Attendance-Management-System-sub000/internal/storage/memory"

	"github.com/stretchr/testify/require"
)

// backend — REST бэкенд AMS: один действующий access-токен, ротация refresh.
type backend struct {
	mu        sync.Mutex
	access    string
	refresh   string
	rejectAll bool
	gen       int
	auths     []string
}

func (b *backend) expire() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.access = "expired-" + b.access
}

func (b *backend) revokeRefresh() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rejectAll = true
}

func (b *backend) issue(user, role string) models.AuthResponse {
	b.gen++
	b.access = "a" + string(rune('0'+b.gen))
	b.refresh = "r" + string(rune('0'+b.gen))

	return models.AuthResponse{
		AccessToken: b.access, RefreshToken: b.refresh, TokenType: "Bearer",
		ExpiresInSeconds: 900, Username: user, Role: role,
	}
}

func (b *backend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.auths = append(b.auths, r.Header.Get("Authorization"))

	write := func(code int, v any) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(v)
	}

	switch r.URL.Path {
	case "/api/auth/login":
		var in models.LoginRequest
		_ = json.NewDecoder(r.Body).Decode(&in)
		switch {
		case in.Password != "secret":
			write(http.StatusUnauthorized, models.BackendError{Status: 401, Message: "Bad credentials"})
		case in.Username == "admin":
			write(http.StatusOK, b.issue("admin", "ROLE_ADMIN"))
		default:
			write(http.StatusOK, b.issue(in.Username, "EMPLOYEE"))
		}
	case "/api/auth/refresh":
		var in models.RefreshRequest
		_ = json.NewDecoder(r.Body).Decode(&in)
		if b.rejectAll || in.RefreshToken != b.refresh {
			write(http.StatusUnauthorized, models.BackendError{Status: 401, Message: "Invalid refresh token"})
			return
		}
		write(http.StatusOK, b.issue("", ""))
	case "/api/auth/logout":
		w.WriteHeader(http.StatusNoContent)
	case "/api/employees":
		if r.Header.Get("Authorization") != "Bearer "+b.access {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		write(http.StatusOK, []map[string]any{{"id": 1}})
	case "/api/payroll/runs":
		write(http.StatusForbidden, models.BackendError{Status: 403, Message: "Access denied"})
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

type console struct {
	srv     *httptest.Server
	backend *backend
	mgr     *session.Manager
	client  *http.Client
}

func newConsole(t *testing.T) *console {
	t.Helper()

	b := &backend{}
	be := httptest.NewServer(b)
	t.Cleanup(be.Close)

	cfg := config.Config{
		API: config.APIConfig{BaseURL: be.URL + "/api", AuthPath: "/auth/", UserAgent: "amsctl-test"},
	}
	out := clients.Outgoing(nil, cfg, nil)

	ac, err := clients.NewAuthClient(cfg, out)
	require.NoError(t, err)

	store, err := credentials.Open(context.Background(), memory.New())
	require.NoError(t, err)

	mgr := session.New(store, ac, session.DefaultConfig())
	ac.AttachFrom(mgr)
	t.Cleanup(mgr.Close)

	marker, err := clients.AuthMarker(cfg)
	require.NoError(t, err)

	med := mediator.New(mgr, navigation.Contextual{}, mediator.Config{
		AuthPathMarker: marker,
		LoginPath:      "/login",
		ForbiddenPath:  "/unauthorized",
	}, nil)

	base, err := url.Parse(cfg.API.BaseURL)
	require.NoError(t, err)

	g := guard.Guards{
		Access: guard.AccessGuard{Session: mgr, LoginPath: "/login", ReturnParam: "returnUrl"},
		Role:   guard.RoleGuard{Session: mgr, DeniedPath: "/dashboard"},
		Routes: guard.NewRouteTable(guard.DefaultRoutes()),
	}

	h := NewRouter(mgr, Options{
		Paths:  handlers.Paths{Login: "/login", Landing: "/dashboard", Forbidden: "/unauthorized", ReturnParam: "returnUrl"},
		Guards: g,
		API:    handlers.NewProxy(base, "/api", med.RoundTripper(out)),
	})

	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	c := srv.Client()
	c.CheckRedirect = func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }

	return &console{srv: srv, backend: b, mgr: mgr, client: c}
}

func (c *console) get(t *testing.T, path string) *http.Response {
	t.Helper()

	resp, err := c.client.Get(c.srv.URL + path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })

	return resp
}

func (c *console) login(t *testing.T, user, pass, returnURL string) *http.Response {
	t.Helper()

	form := url.Values{"username": {user}, "password": {pass}}
	if returnURL != "" {
		form.Set("returnUrl", returnURL)
	}

	resp, err := c.client.PostForm(c.srv.URL+"/login", form)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })

	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()

	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestConsole_GuardedViewRequiresLogin(t *testing.T) {
	c := newConsole(t)

	resp := c.get(t, "/hrm/employees")
	require.Equal(t, http.StatusFound, resp.StatusCode)
	require.Equal(t, "/login?returnUrl=%2Fhrm%2Femployees", resp.Header.Get("Location"))

	// Вход возвращает на исходный адрес.
	resp = c.login(t, "admin", "secret", "/hrm/employees")
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	require.Equal(t, "/hrm/employees", resp.Header.Get("Location"))

	resp = c.get(t, "/hrm/employees")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	view := decode[models.View](t, resp)
	require.Equal(t, "Human resources", view.Title)
	require.Equal(t, "admin", view.User)
	require.Equal(t, "ROLE_ADMIN", view.Role)
}

func TestConsole_RoleMismatchGoesToDashboard(t *testing.T) {
	c := newConsole(t)

	resp := c.login(t, "ann", "secret", "")
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	require.Equal(t, "/dashboard", resp.Header.Get("Location"))

	resp = c.get(t, "/admin")
	require.Equal(t, http.StatusFound, resp.StatusCode)
	require.Equal(t, "/dashboard", resp.Header.Get("Location"))

	resp = c.get(t, "/attendance")
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestConsole_LoginFailures(t *testing.T) {
	c := newConsole(t)

	resp := c.login(t, "admin", "wrong", "")
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	require.Contains(t, string(body), "invalid_credentials")
	require.False(t, c.mgr.IsAuthenticated())

	resp = c.login(t, "", "", "")
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestConsole_ReturnURLMustBeLocal(t *testing.T) {
	c := newConsole(t)

	resp := c.login(t, "admin", "secret", "//evil.example/phish")
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	require.Equal(t, "/dashboard", resp.Header.Get("Location"))
}

func TestConsole_LoginJSON(t *testing.T) {
	c := newConsole(t)

	resp, err := c.client.Post(c.srv.URL+"/login?returnUrl=%2Freports", "application/json",
		strings.NewReader(`{"username":"admin","password":"secret"}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	require.Equal(t, "/reports", resp.Header.Get("Location"))

	// С сессией форма входа уводит дальше.
	resp = c.get(t, "/login")
	require.Equal(t, http.StatusFound, resp.StatusCode)
	require.Equal(t, "/dashboard", resp.Header.Get("Location"))
}

func TestConsole_WhoamiAndLogout(t *testing.T) {
	c := newConsole(t)

	me := decode[models.Whoami](t, c.get(t, "/whoami"))
	require.False(t, me.Authenticated)

	c.login(t, "admin", "secret", "")
	me = decode[models.Whoami](t, c.get(t, "/whoami"))
	require.True(t, me.Authenticated)
	require.Equal(t, "admin", me.Username)
	require.NotNil(t, me.ExpiresAt)

	resp, err := c.client.Post(c.srv.URL+"/logout", "", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	require.Equal(t, "/login", resp.Header.Get("Location"))
	require.False(t, c.mgr.IsAuthenticated())

	resp = c.get(t, "/dashboard")
	require.Equal(t, http.StatusFound, resp.StatusCode)
}

func TestConsole_ProxyRequiresSession(t *testing.T) {
	c := newConsole(t)

	resp := c.get(t, "/api/employees")
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Equal(t, "/login?returnUrl=%2Fapi%2Femployees", resp.Header.Get(middleware.HeaderNavigateTo))
}

func TestConsole_ProxyRecoversExpiredToken(t *testing.T) {
	c := newConsole(t)
	c.login(t, "admin", "secret", "")
	c.backend.expire()

	resp := c.get(t, "/api/employees")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Empty(t, resp.Header.Get(middleware.HeaderNavigateTo))

	creds, ok := c.mgr.Credentials()
	require.True(t, ok)
	require.Equal(t, "a2", creds.AccessToken)
	require.Equal(t, "r2", creds.RefreshToken)
	// Личность сохраняется, хотя refresh её не вернул.
	require.Equal(t, "admin", creds.Username)
}

func TestConsole_ProxyEndsSessionWhenRefreshRejected(t *testing.T) {
	c := newConsole(t)
	c.login(t, "admin", "secret", "")
	c.backend.expire()
	c.backend.revokeRefresh()

	resp := c.get(t, "/api/employees")
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Equal(t, "/login", resp.Header.Get(middleware.HeaderNavigateTo))
	require.False(t, c.mgr.IsAuthenticated())
}

func TestConsole_ProxyForbidden(t *testing.T) {
	c := newConsole(t)
	c.login(t, "admin", "secret", "")

	resp := c.get(t, "/api/payroll/runs")
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	require.Equal(t, "/unauthorized", resp.Header.Get(middleware.HeaderNavigateTo))
	require.True(t, c.mgr.IsAuthenticated())

	resp = c.get(t, "/unauthorized")
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestConsole_ProxyDoesNotForwardCallerAuthorization(t *testing.T) {
	c := newConsole(t)
	c.login(t, "admin", "secret", "")

	req, err := http.NewRequest(http.MethodGet, c.srv.URL+"/api/employees", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer forged")

	resp, err := c.client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	c.backend.mu.Lock()
	defer c.backend.mu.Unlock()
	require.Equal(t, "Bearer a1", c.backend.auths[len(c.backend.auths)-1])
}

func TestConsole_AuthEndpointsNotProxied(t *testing.T) {
	c := newConsole(t)
	c.login(t, "admin", "secret", "")

	resp, err := c.client.Post(c.srv.URL+"/api/auth/refresh", "application/json", strings.NewReader(`{}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestConsole_RootRedirectsToLanding(t *testing.T) {
	c := newConsole(t)

	resp := c.get(t, "/")
	require.Equal(t, http.StatusFound, resp.StatusCode)
	require.Equal(t, "/dashboard", resp.Header.Get("Location"))
}
