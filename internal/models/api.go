package models

import "time"

// BackendError — тело ошибки, которое отдаёт обработчик исключений бэкенда.
type BackendError struct {
	Timestamp time.Time `json:"timestamp"`
	Status    int       `json:"status"`
	Error     string    `json:"error"`
	Message   string    `json:"message"`
}

// Whoami — ответ консоли/CLI о текущей сессии (без токенов).
type Whoami struct {
	Authenticated bool       `json:"authenticated"`
	Username      string     `json:"username,omitempty"`
	Role          string     `json:"role,omitempty"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
}

// View — описание охраняемого экрана, который отдаёт консоль.
type View struct {
	Path  string   `json:"path"`
	Title string   `json:"title"`
	Roles []string `json:"roles,omitempty"`
	User  string   `json:"user"`
	Role  string   `json:"role"`
}
