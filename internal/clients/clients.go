// clients — исходящие клиенты к бэкенду AMS: REST /auth (транспорт сессии),
// защищённый REST API через посредника и gRPC-коннект с той же цепочкой.
package clients

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/huy0357/Attendance-Management-System-sub000/internal/clients/interceptors"
	"github.com/huy0357/Attendance-Management-System-sub000/internal/config"
	"github.com/huy0357/Attendance-Management-System-sub000/internal/metrics"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Outgoing собирает цепочку исходящих HTTP-вызовов: metadata -> logging -> timeout.
// base == nil — http.DefaultTransport под otelhttp (span на каждую попытку).
func Outgoing(base http.RoundTripper, cfg config.Config, m *metrics.Metrics) http.RoundTripper {
	if base == nil {
		base = otelhttp.NewTransport(http.DefaultTransport)
	}

	return interceptors.Chain(base,
		interceptors.WithMetadata(cfg.API.UserAgent),
		interceptors.Logging(m),
		interceptors.WithTimeout(cfg.Timeouts.Request),
	)
}

// AuthMarker — префикс пути эндпоинтов /auth относительно корня сервера,
// например "/api/auth/". По нему посредник узнаёт login/refresh/logout.
func AuthMarker(cfg config.Config) (string, error) {
	base, err := baseURL(cfg.API.BaseURL)
	if err != nil {
		return "", err
	}

	p := base.JoinPath(cfg.API.AuthPath).Path
	if !strings.HasSuffix(p, "/") {
		p += "/"
	}

	return p, nil
}

func baseURL(raw string) (*url.URL, error) {
	const op = "clients.baseURL"

	u, err := url.Parse(strings.TrimRight(raw, "/"))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%s: base url must be absolute: %q", op, raw)
	}

	return u, nil
}
