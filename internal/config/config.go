// config - источник загрузки конфигурации клиента AMS (amsctl).
//
// Источники (по убыванию приоритета):
//  1. явный путь --config;
//  2. CONFIG_PATH;
//  3. ./local.yaml;
//  4. только ENV (cleanenv).
package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Драйверы хранилища учётных данных.
const (
	StorageFile   = "file"
	StorageMemory = "memory"
	StorageRedis  = "redis"
)

type Config struct {
	Env      string        `yaml:"env" env:"ENV" env-default:"local"`
	API      APIConfig     `yaml:"api"`
	Session  SessionConfig `yaml:"session"`
	Storage  StorageConfig `yaml:"storage"`
	Console  ConsoleConfig `yaml:"console"`
	Metrics  MetricsConfig `yaml:"metrics"`
	Timeouts TimeoutConfig `yaml:"timeouts"`
}

// APIConfig — REST-бэкенд AMS.
type APIConfig struct {
	BaseURL   string `yaml:"base_url"   env:"API_BASE_URL"   env-default:"http://localhost:8080/api"`
	AuthPath  string `yaml:"auth_path"  env:"API_AUTH_PATH"  env-default:"/auth/"`
	UserAgent string `yaml:"user_agent" env:"API_USER_AGENT" env-default:"amsctl"`
	// GRPCAddr — gRPC-апстрим AMS; пусто — не используется.
	GRPCAddr string `yaml:"grpc_addr" env:"API_GRPC_ADDR"`
	// GRPCAuthPrefix — методы сервиса аутентификации, которые посредник не восстанавливает.
	GRPCAuthPrefix    string `yaml:"grpc_auth_prefix"    env:"API_GRPC_AUTH_PREFIX"    env-default:"/ams.auth."`
	GRPCHealthService string `yaml:"grpc_health_service" env:"API_GRPC_HEALTH_SERVICE"`
}

// SessionConfig — параметры жизненного цикла сессии.
type SessionConfig struct {
	// RefreshLeeway — за сколько до истечения access-токена запускается проактивное обновление.
	RefreshLeeway time.Duration `yaml:"refresh_leeway"    env:"SESSION_REFRESH_LEEWAY"    env-default:"60s"`
	// MinRefreshDelay — нижняя граница задержки таймера.
	MinRefreshDelay time.Duration `yaml:"min_refresh_delay" env:"SESSION_MIN_REFRESH_DELAY" env-default:"1s"`
	// RefreshTimeout — предел для одного обращения к refresh; 0 — без ограничения.
	RefreshTimeout time.Duration `yaml:"refresh_timeout"   env:"SESSION_REFRESH_TIMEOUT"   env-default:"30s"`
	// LogoutTimeout — предел фонового уведомления бэкенда о выходе.
	LogoutTimeout time.Duration `yaml:"logout_timeout"    env:"SESSION_LOGOUT_TIMEOUT"    env-default:"5s"`
}

// StorageConfig — где переживают перезапуск учётные данные.
type StorageConfig struct {
	Driver   string `yaml:"driver"    env:"STORAGE_DRIVER"    env-default:"file"`
	FilePath string `yaml:"file_path" env:"STORAGE_FILE_PATH"`
	RedisURL string `yaml:"redis_url" env:"STORAGE_REDIS_URL" env-default:"redis://localhost:6379/0"`
	RedisKey string `yaml:"redis_key" env:"STORAGE_REDIS_KEY" env-default:"ams:session"`
}

// ConsoleConfig — локальная консоль с охраняемыми маршрутами.
type ConsoleConfig struct {
	Host           string        `yaml:"host"             env:"CONSOLE_HOST"             env-default:"127.0.0.1"`
	Port           string        `yaml:"port"             env:"CONSOLE_PORT"             env-default:"4200"`
	LoginPath      string        `yaml:"login_path"       env:"CONSOLE_LOGIN_PATH"       env-default:"/login"`
	LandingPath    string        `yaml:"landing_path"     env:"CONSOLE_LANDING_PATH"     env-default:"/dashboard"`
	ForbiddenPath  string        `yaml:"forbidden_path"   env:"CONSOLE_FORBIDDEN_PATH"   env-default:"/unauthorized"`
	RoleDeniedPath string        `yaml:"role_denied_path" env:"CONSOLE_ROLE_DENIED_PATH" env-default:"/dashboard"`
	ReturnParam    string        `yaml:"return_param"     env:"CONSOLE_RETURN_PARAM"     env-default:"returnUrl"`
	Routes         []RouteConfig `yaml:"routes"`
}

func (c ConsoleConfig) Addr() string { return net.JoinHostPort(c.Host, c.Port) }

// RouteConfig — охраняемый маршрут и допустимые роли (пусто — любая).
type RouteConfig struct {
	Path  string   `yaml:"path"`
	Roles []string `yaml:"roles"`
}

// MetricsConfig — отдельный HTTP для Prometheus.
type MetricsConfig struct {
	Host string `yaml:"host" env:"METRICS_HOST" env-default:"127.0.0.1"`
	Port string `yaml:"port" env:"METRICS_PORT" env-default:"50085"`
}

func (m MetricsConfig) Addr() string { return net.JoinHostPort(m.Host, m.Port) }

// TimeoutConfig — таймаут одной попытки HTTP-запроса к бэкенду.
type TimeoutConfig struct {
	Request time.Duration `yaml:"request" env:"REQUEST_TIMEOUT" env-default:"15s"`
}

// MustLoad — паника при ошибке загрузки.
func MustLoad(path string) *Config {
	cfg, err := Load(path)

	if err != nil {
		panic(err)
	}

	return cfg
}

func Load(path string) (*Config, error) {
	var cfg Config

	tryRead := func(p string) (*Config, error) {
		if p == "" {
			return nil, fmt.Errorf("empty config path")
		}

		if _, err := os.Stat(p); err != nil {
			return nil, fmt.Errorf("config file %q stat failed: %w", p, err)
		}

		if err := cleanenv.ReadConfig(p, &cfg); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}

		return validated(&cfg)
	}

	// 1) --config
	if path != "" {
		return tryRead(path)
	}

	// 2) CONFIG_PATH
	if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
		return tryRead(envPath)
	}

	// 3) ./local.yaml
	if _, err := os.Stat("local.yaml"); err == nil {
		return tryRead("local.yaml")
	}

	// 4) только ENV
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("config not found: provide --config, CONFIG_PATH, local.yaml or env vars: %w", err)
	}

	return validated(&cfg)
}

// validated проверяет значения, которые cleanenv не может проверить сам.
func validated(cfg *Config) (*Config, error) {
	u, err := url.Parse(cfg.API.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid config: api.base_url %q must be an absolute URL", cfg.API.BaseURL)
	}

	switch cfg.Storage.Driver {
	case StorageFile, StorageMemory, StorageRedis:
	default:
		return nil, fmt.Errorf("invalid config: unknown storage.driver %q", cfg.Storage.Driver)
	}

	if cfg.Session.RefreshLeeway < 0 || cfg.Session.MinRefreshDelay <= 0 {
		return nil, fmt.Errorf("invalid config: session.refresh_leeway must be >= 0 and session.min_refresh_delay > 0")
	}

	if cfg.Session.RefreshTimeout < 0 || cfg.Session.LogoutTimeout < 0 || cfg.Timeouts.Request < 0 {
		return nil, fmt.Errorf("invalid config: timeouts must not be negative")
	}

	for _, r := range cfg.Console.Routes {
		if r.Path == "" || r.Path[0] != '/' {
			return nil, fmt.Errorf("invalid config: console route %q must start with '/'", r.Path)
		}
	}

	return cfg, nil
}
