package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync/atomic"

	"github.com/huy0357/Attendance-Management-System-sub000/internal/config"
	apierrors "github.com/huy0357/Attendance-Management-System-sub000/internal/errors"
	"github.com/huy0357/Attendance-Management-System-sub000/internal/models"
)

// TokenSource — текущий access-токен (обычно *session.Manager).
type TokenSource interface {
	AccessToken() string
}

// AuthClient — REST-транспорт эндпоинтов /auth бэкенда (login, refresh, logout).
// Идёт мимо посредника: на 401 от /auth повтора не бывает. Токен, если он
// есть, всё равно прикрепляется (см. AttachFrom).
type AuthClient struct {
	base   *url.URL
	hc     *http.Client
	tokens atomic.Pointer[TokenSource]
}

// NewAuthClient — rt обычно результат Outgoing.
func NewAuthClient(cfg config.Config, rt http.RoundTripper) (*AuthClient, error) {
	const op = "clients.NewAuthClient"

	base, err := baseURL(cfg.API.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &AuthClient{
		base: base.JoinPath(cfg.API.AuthPath),
		hc:   &http.Client{Transport: rt},
	}, nil
}

// AttachFrom задаёт источник токена. Менеджер сессии создаётся уже с
// транспортом, поэтому источник подключается после.
func (c *AuthClient) AttachFrom(src TokenSource) {
	if src == nil {
		c.tokens.Store(nil)
		return
	}
	c.tokens.Store(&src)
}

func (c *AuthClient) bearer() string {
	if src := c.tokens.Load(); src != nil {
		return (*src).AccessToken()
	}
	return ""
}

func (c *AuthClient) Login(ctx context.Context, in models.LoginRequest) (*models.AuthResponse, error) {
	const op = "clients.AuthClient.Login"

	var out models.AuthResponse
	if err := c.post(ctx, "login", in, &out); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &out, nil
}

func (c *AuthClient) Refresh(ctx context.Context, in models.RefreshRequest) (*models.AuthResponse, error) {
	const op = "clients.AuthClient.Refresh"

	var out models.AuthResponse
	if err := c.post(ctx, "refresh", in, &out); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &out, nil
}

func (c *AuthClient) Logout(ctx context.Context, in models.LogoutRequest) error {
	const op = "clients.AuthClient.Logout"

	if err := c.post(ctx, "logout", in, nil); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// post отправляет JSON и декодирует ответ в out (nil — тело игнорируется).
// Ответ вне 2xx возвращается как *apierrors.StatusError; битое тело успешного
// ответа тоже несёт StatusError с его статусом, чтобы не выглядеть как сетевая ошибка.
func (c *AuthClient) post(ctx context.Context, name string, in, out any) error {
	raw, err := json.Marshal(in)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base.JoinPath(name).String(), bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if tok := c.bearer(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return apierrors.FromResponse(resp)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		malformed := &apierrors.StatusError{
			Status:  resp.StatusCode,
			Reason:  "malformed_body",
			Message: "cannot decode auth response",
			Path:    req.URL.Path,
		}
		return fmt.Errorf("%w: %w", malformed, err)
	}

	return nil
}
