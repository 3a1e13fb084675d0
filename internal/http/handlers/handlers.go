package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/huy0357/Attendance-Management-System-sub000/internal/models"
)

// Session — то, что консоли нужно от менеджера сессии.
type Session interface {
	Login(ctx context.Context, username, password string) (models.Credentials, error)
	Logout(ctx context.Context)
	IsAuthenticated() bool
	Credentials() (models.Credentials, bool)
}

// Paths — адреса экранов консоли.
type Paths struct {
	Login       string
	Landing     string
	Forbidden   string
	ReturnParam string
}

// Handlers агрегирует зависимости консоли.
type Handlers struct {
	Session Session
	Paths   Paths
}

func New(s Session, p Paths) *Handlers {
	if p.Login == "" {
		p.Login = "/login"
	}
	if p.Landing == "" {
		p.Landing = "/dashboard"
	}
	if p.Forbidden == "" {
		p.Forbidden = "/unauthorized"
	}
	if p.ReturnParam == "" {
		p.ReturnParam = "returnUrl"
	}

	return &Handlers{Session: s, Paths: p}
}

// writeJSON — единый ответ JSON с нужным Content-Type.
// Ошибки выводим через apierrors.
func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

// decodeStrict — строгий JSON-декодер: запрещаем неизвестные поля.
func decodeStrict(r *http.Request, value any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(value)
}

func isJSON(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Content-Type"), "application/json")
}

func (h *Handlers) whoami() models.Whoami {
	c, ok := h.Session.Credentials()
	if !ok || !h.Session.IsAuthenticated() {
		return models.Whoami{}
	}

	out := models.Whoami{Authenticated: true, Username: c.Username, Role: c.Role}
	if c.HasExpiry() {
		exp := c.ExpiresAt
		out.ExpiresAt = &exp
	}

	return out
}
