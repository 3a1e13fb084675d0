package handlers

import (
	"net/http"

	"github.com/huy0357/Attendance-Management-System-sub000/internal/guard"
	"github.com/huy0357/Attendance-Management-System-sub000/internal/models"
)

// View отдаёт описание охраняемого экрана. Допуск уже проверен мидлваром Guard.
func (h *Handlers) View(route guard.Route) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		me := h.whoami()
		writeJSON(w, http.StatusOK, models.View{
			Path:  r.URL.Path,
			Title: route.Title,
			Roles: route.Roles,
			User:  me.Username,
			Role:  me.Role,
		})
	}
}

// Unauthorized — экран недостатка прав.
func (h *Handlers) Unauthorized(w http.ResponseWriter, r *http.Request) {
	me := h.whoami()
	writeJSON(w, http.StatusOK, models.View{
		Path:  r.URL.Path,
		Title: "Access denied",
		User:  me.Username,
		Role:  me.Role,
	})
}

// Root уводит на экран по умолчанию.
func (h *Handlers) Root(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, h.Paths.Landing, http.StatusFound)
}
