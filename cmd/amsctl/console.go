package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/huy0357/Attendance-Management-System-sub000/internal/guard"
	consolehttp "github.com/huy0357/Attendance-Management-System-sub000/internal/http"
	"github.com/huy0357/Attendance-Management-System-sub000/internal/http/handlers"
	"github.com/huy0357/Attendance-Management-System-sub000/internal/navigation"
	"github.com/huy0357/Attendance-Management-System-sub000/internal/pkg/log"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func consoleCmd(opts *rootOptions) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "console",
		Short: "Serve the local admin console",
		Long: `Serve the AMS admin console on localhost.

Views are protected by the access and role guards; /api/* is proxied to the
backend with the session's bearer token. Prometheus metrics, /livez and
/healthz are served on a separate address.

Examples:
  amsctl console
  amsctl console --addr 127.0.0.1:4300`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConsole(opts, addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config)")

	return cmd
}

func runConsole(opts *rootOptions, addrOverride string) error {
	rootCtx, rootCancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer rootCancel()

	// Вне запроса консоли (проактивный таймер, CLI) переходы только логируются.
	nav := navigation.Contextual{Fallback: navigation.Func(func(ctx context.Context, to navigation.Target) {
		log.From(ctx).Info("navigation_outside_request", slog.String("to", to.String()))
	})}

	a, err := newApp(rootCtx, opts, nav, false)
	if err != nil {
		return err
	}
	defer a.close()

	lg := a.log
	cfg := a.cfg
	lg.Info("starting amsctl console", "env", cfg.Env)

	base, err := url.Parse(cfg.API.BaseURL)
	if err != nil {
		return fmt.Errorf("amsctl.runConsole: %w", err)
	}

	cc := cfg.Console
	g := guard.Guards{
		Access: guard.AccessGuard{Session: a.session, LoginPath: cc.LoginPath, ReturnParam: cc.ReturnParam},
		Role:   guard.RoleGuard{Session: a.session, DeniedPath: cc.RoleDeniedPath},
		Routes: guard.NewRouteTable(guard.RoutesFromConfig(cc.Routes)),
	}

	consoleHandler := consolehttp.NewRouter(a.session, consolehttp.Options{
		Logger:  lg,
		Timeout: cfg.Timeouts.Request * 2,
		Paths: handlers.Paths{
			Login:       cc.LoginPath,
			Landing:     cc.LandingPath,
			Forbidden:   cc.ForbiddenPath,
			ReturnParam: cc.ReturnParam,
		},
		Guards: g,
		API:    handlers.NewProxy(base, "/api", a.mediator.RoundTripper(a.outgoing)),
	})

	var ready int32 // 0 — not ready; 1 — ready

	mux := http.NewServeMux()
	mux.HandleFunc("/livez", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	var up upstreamChecker
	if a.upstream != nil {
		up = a.upstream
	}
	mux.HandleFunc("/healthz", readiness(&ready, up))
	mux.Handle("/metrics", promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{Registry: a.registry}))

	consoleAddr := cc.Addr()
	if addrOverride != "" {
		consoleAddr = addrOverride
	}

	servers := []*http.Server{
		{Addr: consoleAddr, Handler: otelhttp.NewHandler(consoleHandler, "amsctl.console"), ReadHeaderTimeout: 5 * time.Second},
		{Addr: cfg.Metrics.Addr(), Handler: mux, ReadHeaderTimeout: 5 * time.Second},
	}

	serveErrCh := make(chan error, len(servers))
	for _, srv := range servers {
		ln, err := net.Listen("tcp", srv.Addr)
		if err != nil {
			lg.Error("http_listen_failed", slog.String("addr", srv.Addr), slog.String("err", err.Error()))
			shutdown(lg, servers)
			return err
		}

		lg.Info("http_listen_start", slog.String("addr", srv.Addr))

		go func(srv *http.Server, ln net.Listener) {
			if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				serveErrCh <- err
			}
		}(srv, ln)
	}

	atomic.StoreInt32(&ready, 1)
	lg.Info("console_ready",
		slog.String("url", "http://"+consoleAddr+cc.LandingPath),
		slog.Bool("authenticated", a.session.IsAuthenticated()),
	)

	var serveErr error
	select {
	case <-rootCtx.Done():
		lg.Info("shutdown_requested")
	case serveErr = <-serveErrCh:
		lg.Error("http_serve_failed", slog.String("err", serveErr.Error()))
	}

	atomic.StoreInt32(&ready, 0)
	shutdown(lg, servers)

	lg.Info("console_stopped")

	return serveErr
}

// upstreamChecker — готовность внешней зависимости консоли.
type upstreamChecker interface {
	Check(ctx context.Context) error
}

// readiness: консоль поднята и, если настроен gRPC-апстрим, он SERVING.
func readiness(ready *int32, up upstreamChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if atomic.LoadInt32(ready) != 1 {
			http.Error(w, "not ready", http.StatusServiceUnavailable)
			return
		}

		if up != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()

			if err := up.Check(ctx); err != nil {
				log.From(ctx).Warn("upstream_not_ready", slog.String("err", err.Error()))
				http.Error(w, "upstream not ready", http.StatusServiceUnavailable)
				return
			}
		}

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}
}

func shutdown(lg *slog.Logger, servers []*http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for _, srv := range servers {
		if err := srv.Shutdown(ctx); err != nil {
			lg.Warn("http_shutdown_incomplete", slog.String("addr", srv.Addr), slog.String("err", err.Error()))
		}
	}
}
