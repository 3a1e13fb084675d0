package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/huy0357/Attendance-Management-System-sub000/internal/guard"
	"github.com/huy0357/Attendance-Management-System-sub000/internal/http/handlers"
	"github.com/huy0357/Attendance-Management-System-sub000/internal/http/middleware"
)

// Options — параметры сборки роутера консоли.
type Options struct {
	Logger  *slog.Logger
	Timeout time.Duration
	Paths   handlers.Paths
	Guards  guard.Guards
	// API — обратный прокси к бэкенду; nil - маршрутов /api нет.
	API http.Handler
}

// NewRouter собирает http.Handler консоли на chi.
func NewRouter(s handlers.Session, opts Options) http.Handler {
	root := chi.NewRouter()

	// Middleware (внешний -> внутренний).
	root.Use(
		middleware.Recover(),
		middleware.RequestID(),          // до логирования: id попадает в attrs
		middleware.Navigation(),         // до логирования: общий statusWriter
		middleware.Logging(opts.Logger), // request-scoped логгер в контексте
	)
	if opts.Timeout > 0 {
		root.Use(middleware.Timeout(opts.Timeout))
	}

	h := handlers.New(s, opts.Paths)

	registerRoutes(root, h, opts)

	return root
}

// registerRoutes — единая точка регистрации маршрутов консоли.
func registerRoutes(r chi.Router, h *handlers.Handlers, opts Options) {
	r.Get("/", h.Root)
	r.Get(h.Paths.Login, h.LoginForm)
	r.Post(h.Paths.Login, h.Login)
	r.Post("/logout", h.Logout)
	r.Get("/whoami", h.Whoami)
	r.Get(h.Paths.Forbidden, h.Unauthorized)

	// Охраняемые экраны.
	r.Group(func(g chi.Router) {
		g.Use(middleware.Guard(opts.Guards))

		if opts.Guards.Routes == nil {
			return
		}
		for _, route := range opts.Guards.Routes.Routes() {
			if route.Path == "/" {
				continue
			}
			g.Get(route.Path, h.View(route))
			g.Get(route.Path+"/*", h.View(route))
		}
	})

	if opts.API == nil {
		return
	}

	r.Route("/api", func(api chi.Router) {
		api.Use(middleware.RequireSession(opts.Guards.Access))
		api.Handle("/auth/*", http.HandlerFunc(h.AuthBlocked))
		api.Handle("/*", opts.API)
	})
}
