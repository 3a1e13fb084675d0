package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/huy0357/Attendance-Management-System-sub000/internal/models"
)

// newTestBackend — минимальный REST бэкенд AMS для сквозных тестов CLI.
func newTestBackend(t *testing.T) string {
	t.Helper()

	write := func(w http.ResponseWriter, code int, v any) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(v)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var in models.LoginRequest
		_ = json.NewDecoder(r.Body).Decode(&in)
		if in.Password != "secret" {
			write(w, http.StatusUnauthorized, models.BackendError{Status: 401, Message: "Bad credentials"})
			return
		}
		write(w, http.StatusOK, models.AuthResponse{
			AccessToken: "a1", RefreshToken: "r1", TokenType: "Bearer",
			ExpiresInSeconds: 900, Username: in.Username, Role: "ADMIN",
		})
	})
	mux.HandleFunc("POST /api/auth/logout", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("GET /api/employees", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer a1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		write(w, http.StatusOK, []map[string]any{{"id": 1, "name": "Ann"}})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return srv.URL
}
