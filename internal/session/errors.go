package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	apierrors "github.com/huy0357/Attendance-Management-System-sub000/internal/errors"
)

var (
	// ErrInvalidCredentials — бэкенд отклонил логин/пароль (HTTP 401).
	ErrInvalidCredentials = errors.New("invalid username or password")
	// ErrAccountDisabled — учётная запись отключена (HTTP 403 на логине).
	ErrAccountDisabled = errors.New("account is disabled")
	// ErrUnreachable — ответа от бэкенда нет: сеть, DNS, таймаут.
	ErrUnreachable = errors.New("backend unreachable")
	// ErrServerFault — любой другой отказ сервера, включая ответ без токенов.
	ErrServerFault = errors.New("server fault")
	// ErrNoRefreshToken — обновлять нечем; к бэкенду не обращаемся.
	ErrNoRefreshToken = errors.New("no refresh token")
	// ErrRefreshRejected — бэкенд отклонил refresh-токен (HTTP 400/401/403).
	ErrRefreshRejected = errors.New("refresh token rejected")
	// ErrSessionEnded — обновление завершилось после выхода или новой сессии; результат отброшен.
	ErrSessionEnded = errors.New("session ended while refreshing")
	// ErrClosed — менеджер закрыт.
	ErrClosed = errors.New("session manager closed")
)

// loginError классифицирует ошибку транспорта логина.
func loginError(err error) error {
	switch st := apierrors.StatusOf(err); {
	case st == http.StatusUnauthorized:
		return ErrInvalidCredentials
	case st == http.StatusForbidden:
		return ErrAccountDisabled
	case st == 0 && errors.Is(err, context.Canceled):
		return context.Canceled
	case st == 0:
		return ErrUnreachable
	default:
		return ErrServerFault
	}
}

// refreshError классифицирует ошибку транспорта обновления.
func refreshError(err error) error {
	switch st := apierrors.StatusOf(err); {
	case st == http.StatusBadRequest, st == http.StatusUnauthorized, st == http.StatusForbidden:
		return ErrRefreshRejected
	case st == 0:
		return ErrUnreachable
	default:
		return ErrServerFault
	}
}

// wrap сохраняет и класс, и исходную ошибку в цепочке.
func wrap(op string, class, err error) error {
	if errors.Is(err, class) {
		return fmt.Errorf("%s: %w", op, err)
	}

	return fmt.Errorf("%s: %w: %w", op, class, err)
}

// resultLabel — метка результата для метрик.
func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, ErrAccountDisabled):
		return "account_disabled"
	case errors.Is(err, ErrRefreshRejected):
		return "rejected"
	case errors.Is(err, ErrUnreachable):
		return "unreachable"
	case errors.Is(err, ErrSessionEnded):
		return "session_ended"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "server_fault"
	}
}
