package credentials

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var unverified = jwt.NewParser()

// TokenExpiry достаёт claim exp из access-токена без проверки подписи.
// Подпись проверяет бэкенд; клиенту нужен только ориентир для таймера.
// Любая ошибка разбора означает "срок неизвестен".
func TokenExpiry(token string) (time.Time, bool) {
	if token == "" {
		return time.Time{}, false
	}

	var claims jwt.RegisteredClaims
	if _, _, err := unverified.ParseUnverified(token, &claims); err != nil {
		return time.Time{}, false
	}

	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}

	return claims.ExpiresAt.Time, true
}

// ExpiresAt вычисляет момент истечения: явное время жизни от сервера
// (секунды от момента получения) важнее claim exp из токена.
func ExpiresAt(now time.Time, expiresInSeconds int64, accessToken string) time.Time {
	if expiresInSeconds > 0 {
		return now.Add(time.Duration(expiresInSeconds) * time.Second)
	}

	if exp, ok := TokenExpiry(accessToken); ok {
		return exp
	}

	return time.Time{}
}
