package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	apierrors "github.com/huy0357/Attendance-Management-System-sub000/internal/errors"
	"github.com/huy0357/Attendance-Management-System-sub000/internal/models"
	"github.com/huy0357/Attendance-Management-System-sub000/internal/pkg/log"
	"github.com/huy0357/Attendance-Management-System-sub000/internal/pkg/redact"
	"github.com/huy0357/Attendance-Management-System-sub000/internal/session"
)

// loginForm — описание формы входа для клиента консоли.
type loginForm struct {
	Fields    []string `json:"fields"`
	ReturnURL string   `json:"returnUrl,omitempty"`
}

// LoginForm — GET /login. С действующей сессией сразу уводит на экран по умолчанию.
func (h *Handlers) LoginForm(w http.ResponseWriter, r *http.Request) {
	if h.Session.IsAuthenticated() {
		http.Redirect(w, r, h.returnTo(r.URL.Query().Get(h.Paths.ReturnParam)), http.StatusFound)
		return
	}

	writeJSON(w, http.StatusOK, loginForm{
		Fields:    []string{"username", "password"},
		ReturnURL: r.URL.Query().Get(h.Paths.ReturnParam),
	})
}

// Login — POST /login (JSON или form). Успех - 303 на исходный адрес или экран по умолчанию.
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var in models.LoginRequest
	returnURL := r.URL.Query().Get(h.Paths.ReturnParam)

	if isJSON(r) {
		if err := decodeStrict(r, &in); err != nil {
			apierrors.WriteCode(w, r, http.StatusBadRequest, "invalid_argument", "invalid argument")
			return
		}
	} else {
		if err := r.ParseForm(); err != nil {
			apierrors.WriteCode(w, r, http.StatusBadRequest, "invalid_argument", "invalid argument")
			return
		}
		in.Username = r.PostForm.Get("username")
		in.Password = r.PostForm.Get("password")
		if v := r.PostForm.Get(h.Paths.ReturnParam); v != "" {
			returnURL = v
		}
	}

	if strings.TrimSpace(in.Username) == "" || in.Password == "" {
		apierrors.WriteCode(w, r, http.StatusBadRequest, "invalid_argument", "username and password are required")
		return
	}

	if _, err := h.Session.Login(r.Context(), in.Username, in.Password); err != nil {
		log.From(r.Context()).Info("console_login_failed",
			slog.String("username", redact.Username(in.Username)),
			slog.String("err", err.Error()),
		)
		st, code, msg := loginFailure(err)
		apierrors.WriteCode(w, r, st, code, msg)
		return
	}

	http.Redirect(w, r, h.returnTo(returnURL), http.StatusSeeOther)
}

// Logout — POST /logout. Всегда успешен; ведёт на экран входа.
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	h.Session.Logout(r.Context())
	http.Redirect(w, r, h.Paths.Login, http.StatusSeeOther)
}

// Whoami — GET /whoami: текущая сессия без токенов.
func (h *Handlers) Whoami(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.whoami())
}

// returnTo пропускает только локальные пути консоли; иначе - экран по умолчанию.
func (h *Handlers) returnTo(raw string) string {
	switch {
	case raw == "",
		!strings.HasPrefix(raw, "/"),
		strings.HasPrefix(raw, "//"),
		strings.HasPrefix(raw, "/\\"),
		raw == h.Paths.Login,
		strings.HasPrefix(raw, h.Paths.Login+"?"):
		return h.Paths.Landing
	}

	return raw
}

func loginFailure(err error) (int, string, string) {
	switch {
	case errors.Is(err, session.ErrInvalidCredentials):
		return http.StatusUnauthorized, "invalid_credentials", "invalid username or password"
	case errors.Is(err, session.ErrAccountDisabled):
		return http.StatusForbidden, "account_disabled", "account is inactive"
	case errors.Is(err, session.ErrUnreachable):
		return http.StatusServiceUnavailable, "backend_unreachable", "backend is unreachable"
	case errors.Is(err, context.Canceled):
		return apierrors.StatusClientClosedRequest, "canceled", "canceled"
	default:
		return http.StatusBadGateway, "backend_error", "login failed"
	}
}
