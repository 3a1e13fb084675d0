package middleware

import (
	"log/slog"
	"net/http"

	apierrors "github.com/huy0357/Attendance-Management-System-sub000/internal/errors"
	"github.com/huy0357/Attendance-Management-System-sub000/internal/guard"
	"github.com/huy0357/Attendance-Management-System-sub000/internal/pkg/log"
)

// Guard охраняет экраны консоли: Access -> Role. Отказ - 302 на Decision.Redirect.
func Guard(g guard.Guards) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			d := g.Evaluate(r.URL.RequestURI())
			if d.Allowed {
				next.ServeHTTP(w, r)
				return
			}

			log.From(r.Context()).Info("guard_denied",
				slog.String("path", r.URL.Path),
				slog.String("reason", d.Reason),
			)
			http.Redirect(w, r, d.Redirect.String(), http.StatusFound)
		})
	}
}

// RequireSession — только AccessGuard, без редиректа: 401 с X-Navigate-To.
// Для API-маршрутов, где редирект на HTML-экран бессмыслен.
func RequireSession(g guard.AccessGuard) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			d := g.Check(r.URL.RequestURI())
			if d.Allowed {
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set(HeaderNavigateTo, d.Redirect.String())
			apierrors.WriteCode(w, r, http.StatusUnauthorized, "unauthenticated", "login required")
		})
	}
}
