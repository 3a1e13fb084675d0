package redact

import "strings"

// Username оставляет первые два символа логина.
func Username(s string) string {
	if len(s) <= 2 {
		return "***"
	}

	return s[:2] + "***"
}

// Tail показывает только последние четыре символа токена, чтобы различать ротацию в логах.
func Tail(tok string) string {
	tok = strings.TrimSpace(tok)
	if len(tok) <= 8 {
		return Token()
	}

	return "***" + tok[len(tok)-4:]
}

func Token() string    { return "[REDACTED_TOKEN]" }
func Password() string { return "[REDACTED_PASSWORD]" }
