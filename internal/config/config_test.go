package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// Вспомогательные хелперы.
func writeFile(t *testing.T, dir, name, data string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))
	return path
}

func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

// Полный корректный YAML с заданными значениями (не зависящими от дефолтов).
const sampleYAML = `
env: "prod"
api:
  base_url: "https://ams.example.com/api"
  auth_path: "/auth/"
  user_agent: "amsctl-test"
  grpc_addr: "ams-grpc:9090"
  grpc_health_service: "ams.Attendance"
session:
  refresh_leeway: "30s"
  min_refresh_delay: "2s"
  refresh_timeout: "10s"
  logout_timeout: "1s"
storage:
  driver: "redis"
  redis_url: "redis://cache:6379/1"
  redis_key: "ams:test"
console:
  host: "0.0.0.0"
  port: "8088"
  role_denied_path: "/unauthorized"
  routes:
    - path: "/payroll"
      roles: ["ADMIN", "HR"]
    - path: "/dashboard"
metrics:
  port: "9100"
timeouts:
  request: "3s"
`

// Минимально валидный YAML.
const minimalYAML = `
api:
  base_url: "http://localhost:9999/api"
`

// Некорректный YAML — для проверки ошибок парсинга.
const brokenYAML = `
api:
  base_url: [unclosed
`

func TestLoad_WithExplicitPath_OK(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	cfgPath := writeFile(t, dir, "config.yaml", sampleYAML)

	cfg, err := Load(cfgPath)
	require.NoError(t, err)

	require.Equal(t, "prod", cfg.Env)
	require.Equal(t, "https://ams.example.com/api", cfg.API.BaseURL)
	require.Equal(t, "amsctl-test", cfg.API.UserAgent)
	require.Equal(t, "ams-grpc:9090", cfg.API.GRPCAddr)
	require.Equal(t, "ams.Attendance", cfg.API.GRPCHealthService)

	require.Equal(t, 30*time.Second, cfg.Session.RefreshLeeway)
	require.Equal(t, 2*time.Second, cfg.Session.MinRefreshDelay)
	require.Equal(t, 10*time.Second, cfg.Session.RefreshTimeout)
	require.Equal(t, time.Second, cfg.Session.LogoutTimeout)

	require.Equal(t, StorageRedis, cfg.Storage.Driver)
	require.Equal(t, "redis://cache:6379/1", cfg.Storage.RedisURL)
	require.Equal(t, "ams:test", cfg.Storage.RedisKey)

	require.Equal(t, "0.0.0.0:8088", cfg.Console.Addr())
	require.Equal(t, "/unauthorized", cfg.Console.RoleDeniedPath)
	require.Equal(t, "/login", cfg.Console.LoginPath)
	require.Len(t, cfg.Console.Routes, 2)
	require.Equal(t, []string{"ADMIN", "HR"}, cfg.Console.Routes[0].Roles)
	require.Empty(t, cfg.Console.Routes[1].Roles)

	require.Equal(t, "127.0.0.1:9100", cfg.Metrics.Addr())
	require.Equal(t, 3*time.Second, cfg.Timeouts.Request)
}

func TestLoad_Defaults(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	cfg, err := Load(writeFile(t, dir, "min.yaml", minimalYAML))
	require.NoError(t, err)

	require.Equal(t, "local", cfg.Env)
	require.Equal(t, "/auth/", cfg.API.AuthPath)
	require.Empty(t, cfg.API.GRPCAddr)
	require.Equal(t, "/ams.auth.", cfg.API.GRPCAuthPrefix)
	require.Equal(t, 60*time.Second, cfg.Session.RefreshLeeway)
	require.Equal(t, time.Second, cfg.Session.MinRefreshDelay)
	require.Equal(t, 30*time.Second, cfg.Session.RefreshTimeout)
	require.Equal(t, StorageFile, cfg.Storage.Driver)
	require.Equal(t, "/dashboard", cfg.Console.LandingPath)
	require.Equal(t, "/unauthorized", cfg.Console.ForbiddenPath)
	require.Equal(t, "/dashboard", cfg.Console.RoleDeniedPath)
	require.Equal(t, "returnUrl", cfg.Console.ReturnParam)
	require.Equal(t, 15*time.Second, cfg.Timeouts.Request)
}

func TestLoad_WithExplicitPath_FileDoesNotExist(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "stat failed")
}

func TestLoad_WithExplicitPath_BrokenYAML(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	cfgPath := writeFile(t, dir, "broken.yaml", brokenYAML)

	_, err := Load(cfgPath)
	require.Error(t, err)
	require.Contains(t, err.Error(), "failed to read config")
}

func TestLoad_InvalidValues(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"relative base url": "api:\n  base_url: \"/api\"\n",
		"unknown driver":    "storage:\n  driver: \"s3\"\n",
		"zero min delay":    "session:\n  min_refresh_delay: \"0s\"\n",
		"negative timeout":  "timeouts:\n  request: \"-1s\"\n",
		"bad route":         "console:\n  routes:\n    - path: \"admin\"\n",
	}

	for name, body := range cases {
		name, body := name, body
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			_, err := Load(writeFile(t, t.TempDir(), "c.yaml", body))
			require.Error(t, err)
			require.Contains(t, err.Error(), "invalid config")
		})
	}
}

func TestLoad_WithCONFIG_PATH_OK(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeFile(t, dir, "from_env_path.yaml", minimalYAML)

	t.Setenv("CONFIG_PATH", cfgPath)

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "http://localhost:9999/api", cfg.API.BaseURL)
}

func TestLoad_WithLocalYAML_OK(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	writeFile(t, ".", "local.yaml", sampleYAML)

	t.Setenv("CONFIG_PATH", "")
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "prod", cfg.Env)
}

func TestLoad_EnvOverlay(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeFile(t, dir, "c.yaml", minimalYAML)

	t.Setenv("STORAGE_DRIVER", "memory")
	t.Setenv("SESSION_REFRESH_LEEWAY", "5s")

	cfg, err := Load(cfgPath)
	require.NoError(t, err)
	require.Equal(t, StorageMemory, cfg.Storage.Driver)
	require.Equal(t, 5*time.Second, cfg.Session.RefreshLeeway)
}

func TestLoad_EnvOnly(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	t.Setenv("CONFIG_PATH", "")
	t.Setenv("API_BASE_URL", "http://env-host:8080/api")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "http://env-host:8080/api", cfg.API.BaseURL)
}

func TestMustLoad_PanicsOnError(t *testing.T) {
	t.Parallel()

	require.Panics(t, func() {
		MustLoad(filepath.Join(t.TempDir(), "nope.yaml"))
	})
}
