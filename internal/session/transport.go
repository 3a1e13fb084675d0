package session

import (
	"context"

	"github.com/huy0357/Attendance-Management-System-sub000/internal/models"
)

//go:generate mockgen -source=transport.go -destination=../../mocks/mock_transport.go -package=mocks

// Transport — эндпоинты /auth бэкенда.
// Ошибки со статусом ответа должны нести *errors.StatusError в цепочке;
// отсутствие статуса трактуется как недоступность бэкенда.
type Transport interface {
	// Login обменивает логин/пароль на набор токенов.
	Login(ctx context.Context, in models.LoginRequest) (*models.AuthResponse, error)
	// Refresh обменивает refresh-токен на новый набор (refresh-токен ротируется).
	Refresh(ctx context.Context, in models.RefreshRequest) (*models.AuthResponse, error)
	// Logout отзывает refresh-токен на бэкенде.
	Logout(ctx context.Context, in models.LogoutRequest) error
}
