package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/huy0357/Attendance-Management-System-sub000/internal/clients"
	"github.com/huy0357/Attendance-Management-System-sub000/internal/config"
	"github.com/huy0357/Attendance-Management-System-sub000/internal/credentials"
	"github.com/huy0357/Attendance-Management-System-sub000/internal/mediator"
	"github.com/huy0357/Attendance-Management-System-sub000/internal/metrics"
	"github.com/huy0357/Attendance-Management-System-sub000/internal/navigation"
	"github.com/huy0357/Attendance-Management-System-sub000/internal/session"
	"github.com/huy0357/Attendance-Management-System-sub000/internal/storage"
	"github.com/huy0357/Attendance-Management-System-sub000/internal/storage/file"
	"github.com/huy0357/Attendance-Management-System-sub000/internal/storage/memory"
	redisstore "github.com/huy0357/Attendance-Management-System-sub000/internal/storage/redis"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"google.golang.org/grpc"
)

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

type rootOptions struct {
	configPath string
	verbose    bool
}

// app — собранные зависимости одной команды.
type app struct {
	cfg      *config.Config
	log      *slog.Logger
	registry *prometheus.Registry
	metrics  *metrics.Metrics

	backend  storage.Backend
	session  *session.Manager
	outgoing http.RoundTripper
	mediator *mediator.Mediator
	api      *clients.APIClient

	// conn и upstream заданы, только если настроен api.grpc_addr.
	conn     *grpc.ClientConn
	upstream *clients.Upstream
}

// newApp загружает конфигурацию и собирает цепочку:
// storage -> credentials -> auth client -> session -> mediator -> api client
// (и gRPC-коннект, если задан api.grpc_addr).
// nav получает переходы, запрошенные посредником; nil - подсказки в stderr.
func newApp(ctx context.Context, opts *rootOptions, nav navigation.Navigator, quiet bool) (*app, error) {
	const op = "amsctl.newApp"

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if nav == nil {
		nav = cliNavigator(cfg.Console.LoginPath)
	}

	log := setupLogger(cfg.Env, quiet && !opts.verbose)
	slog.SetDefault(log)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	backend, err := openBackend(ctx, cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	store, err := credentials.Open(ctx, backend)
	if err != nil {
		_ = backend.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	out := clients.Outgoing(nil, *cfg, m)

	auth, err := clients.NewAuthClient(*cfg, out)
	if err != nil {
		_ = backend.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	mgr := session.New(store, auth, session.Config{
		RefreshLeeway:   cfg.Session.RefreshLeeway,
		MinRefreshDelay: cfg.Session.MinRefreshDelay,
		RefreshTimeout:  cfg.Session.RefreshTimeout,
		LogoutTimeout:   cfg.Session.LogoutTimeout,
	}, session.WithMetrics(m), session.WithLogger(log))
	auth.AttachFrom(mgr)

	marker, err := clients.AuthMarker(*cfg)
	if err != nil {
		mgr.Close()
		_ = backend.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	med := mediator.New(mgr, nav, mediator.Config{
		AuthPathMarker:   marker,
		AuthMethodPrefix: cfg.API.GRPCAuthPrefix,
		LoginPath:        cfg.Console.LoginPath,
		ForbiddenPath:    cfg.Console.ForbiddenPath,
	}, m)

	api, err := clients.NewAPIClient(*cfg, med.RoundTripper(out))
	if err != nil {
		mgr.Close()
		_ = backend.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var (
		conn     *grpc.ClientConn
		upstream *clients.Upstream
	)
	if cfg.API.GRPCAddr != "" {
		conn, err = clients.DialGRPC(*cfg, med, m)
		if err != nil {
			mgr.Close()
			_ = backend.Close()
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		upstream = clients.NewUpstream(conn, cfg.API.GRPCHealthService)
	}

	log.Debug("app_ready",
		slog.String("storage", cfg.Storage.Driver),
		slog.String("api", cfg.API.BaseURL),
		slog.String("grpc", cfg.API.GRPCAddr),
		slog.Bool("restored", mgr.IsAuthenticated()),
	)

	return &app{
		cfg:      cfg,
		log:      log,
		registry: reg,
		metrics:  m,
		backend:  backend,
		session:  mgr,
		outgoing: out,
		mediator: med,
		api:      api,
		conn:     conn,
		upstream: upstream,
	}, nil
}

// close дожидается фоновых уведомлений сессии и закрывает хранилище.
func (a *app) close() {
	if a.conn != nil {
		if err := a.conn.Close(); err != nil {
			a.log.Warn("grpc_close_failed", slog.String("err", err.Error()))
		}
	}
	a.session.Close()
	if err := a.backend.Close(); err != nil {
		a.log.Warn("storage_close_failed", slog.String("err", err.Error()))
	}
}

// openBackend выбирает хранилище учётных данных по конфигурации.
func openBackend(ctx context.Context, sc config.StorageConfig) (storage.Backend, error) {
	switch sc.Driver {
	case config.StorageMemory:
		return memory.New(), nil
	case config.StorageRedis:
		return redisstore.New(ctx, sc.RedisURL, sc.RedisKey)
	default:
		path := sc.FilePath
		if path == "" {
			dir, err := os.UserConfigDir()
			if err != nil {
				return nil, fmt.Errorf("resolve session file: %w", err)
			}
			path = filepath.Join(dir, "ams", "session.json")
		}
		return file.New(path)
	}
}

// setupLogger — как у сервисов: text для local, JSON для dev/prod.
// Пишет в stderr: stdout занят выводом команд. quiet поднимает порог до warn.
func setupLogger(env string, quiet bool) *slog.Logger {
	lvl := slog.LevelDebug
	if env == envProd {
		lvl = slog.LevelInfo
	}
	if quiet {
		lvl = slog.LevelWarn
	}

	switch env {
	case envDev, envProd:
		return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
	default:
		return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
	}
}
