package middleware

import (
	"net/http"

	"github.com/huy0357/Attendance-Management-System-sub000/internal/clients/interceptors"

	"github.com/google/uuid"
)

// RequestID обеспечивает наличие X-Request-Id:
//  1. берёт входящий заголовок, если он есть;
//  2. иначе генерирует uuid;
//  3. кладёт id в заголовки запроса и ответа и в контекст: исходящие вызовы
//     к бэкенду (включая повтор после обновления) пойдут с тем же id.
func RequestID() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get("X-Request-Id")
			if id == "" {
				id = uuid.NewString()
				r.Header.Set("X-Request-Id", id)
			}
			w.Header().Set("X-Request-Id", id)

			next.ServeHTTP(w, r.WithContext(interceptors.WithRequestID(r.Context(), id)))
		})
	}
}
