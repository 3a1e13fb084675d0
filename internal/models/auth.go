// Модели REST-контракта /api/auth бэкенда AMS и набор учётных данных клиента.
package models

import (
	"strings"
	"time"
)

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type LogoutRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// AuthResponse — ответ login/refresh. Refresh-токен ротируется на каждом обновлении.
type AuthResponse struct {
	AccessToken      string `json:"accessToken"`
	RefreshToken     string `json:"refreshToken"`
	TokenType        string `json:"tokenType"`
	ExpiresInSeconds int64  `json:"expiresInSeconds"`
	Username         string `json:"username"`
	Role             string `json:"role"`
}

// Credentials — текущий набор учётных данных сессии.
// Нулевой ExpiresAt означает "срок истечения неизвестен".
type Credentials struct {
	AccessToken  string    `json:"-"`
	RefreshToken string    `json:"-"`
	Username     string    `json:"username"`
	Role         string    `json:"role"`
	ExpiresAt    time.Time `json:"expires_at,omitzero"`
}

// HasExpiry сообщает, известен ли срок истечения access-токена.
func (c Credentials) HasExpiry() bool { return !c.ExpiresAt.IsZero() }

// Complete — оба токена присутствуют.
func (c Credentials) Complete() bool {
	return strings.TrimSpace(c.AccessToken) != "" && strings.TrimSpace(c.RefreshToken) != ""
}
