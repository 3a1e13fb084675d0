// mediator — посредник аутентифицированных запросов.
//
// До отправки к запросу прикрепляется текущий access-токен (Bearer).
// После ответа:
//   - 401 вне эндпоинтов /auth - реактивное обновление (single-flight в сессии)
//     и ровно один повтор исходного запроса с новым токеном;
//   - 401 без refresh-токена или с неудачным обновлением - сессия завершается,
//     переход на экран входа;
//   - 403 вне эндпоинтов /auth - переход на экран недостатка прав, сессия не трогается.
//
// Та же логика доступна как http.RoundTripper и как gRPC UnaryClientInterceptor.
package mediator

import (
	"context"
	"errors"
	"log/slog"

	"github.com/huy0357/Attendance-Management-System-sub000/internal/metrics"
	"github.com/huy0357/Attendance-Management-System-sub000/internal/models"
	"github.com/huy0357/Attendance-Management-System-sub000/internal/navigation"
	"github.com/huy0357/Attendance-Management-System-sub000/internal/pkg/log"
)

// Session — то, что медиатору нужно от менеджера сессии.
type Session interface {
	AccessToken() string
	HasRefreshToken() bool
	Refresh(ctx context.Context) (models.Credentials, error)
	Invalidate(ctx context.Context, reason string)
}

// Config — пути навигации и признаки эндпоинтов аутентификации.
type Config struct {
	// AuthPathMarker — подстрока пути HTTP-запроса, отличающая login/refresh/logout.
	AuthPathMarker string
	// AuthMethodPrefix — префикс полного имени gRPC-метода сервиса аутентификации.
	AuthMethodPrefix string
	LoginPath        string
	ForbiddenPath    string
	// MaxReplayBody — сколько байт тела запроса держать в памяти для повтора.
	// Тело больше не буферизуется: после обновления такой запрос не повторяется.
	MaxReplayBody int64
}

// DefaultMaxReplayBody — предел буфера тела по умолчанию.
const DefaultMaxReplayBody = 8 << 20

// Исходы реакции на 401 (метки метрик).
const (
	outcomeRetried       = "retried"
	outcomeNoRefresh     = "no_refresh_token"
	outcomeRefreshFailed = "refresh_failed"
	outcomeAbandoned     = "abandoned"
)

type Mediator struct {
	session Session
	nav     navigation.Navigator
	cfg     Config
	metrics *metrics.Metrics
}

func New(s Session, nav navigation.Navigator, cfg Config, m *metrics.Metrics) *Mediator {
	if cfg.LoginPath == "" {
		cfg.LoginPath = "/login"
	}
	if cfg.ForbiddenPath == "" {
		cfg.ForbiddenPath = "/unauthorized"
	}
	if cfg.MaxReplayBody <= 0 {
		cfg.MaxReplayBody = DefaultMaxReplayBody
	}
	if nav == nil {
		nav = navigation.Func(func(context.Context, navigation.Target) {})
	}

	return &Mediator{session: s, nav: nav, cfg: cfg, metrics: m}
}

// renew — общая часть реакции на 401. Возвращает новый токен или ошибку,
// которую нужно отдать вызывающему; retry=false — повтора не будет.
func (m *Mediator) renew(ctx context.Context) (token string, retry bool, err error) {
	lg := log.From(ctx).With(slog.String("op", "mediator.renew"))

	if !m.session.HasRefreshToken() {
		m.metrics.Recovery(outcomeNoRefresh)
		lg.Info("unauthorized_without_refresh_token")
		m.endSession(ctx, "unauthorized")
		return "", false, nil
	}

	c, err := m.session.Refresh(ctx)
	if err != nil {
		// Вызывающий ушёл сам: сессию из-за этого не завершаем.
		if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
			m.metrics.Recovery(outcomeAbandoned)
			return "", false, err
		}

		m.metrics.Recovery(outcomeRefreshFailed)
		lg.Warn("reactive_refresh_failed", slog.String("err", err.Error()))
		m.endSession(ctx, "refresh_failed")
		return "", false, err
	}

	m.metrics.Recovery(outcomeRetried)
	return c.AccessToken, true, nil
}

func (m *Mediator) endSession(ctx context.Context, reason string) {
	m.session.Invalidate(ctx, reason)
	m.nav.Navigate(ctx, navigation.To(m.cfg.LoginPath))
}

func (m *Mediator) forbidden(ctx context.Context) {
	m.metrics.Forbidden()
	log.From(ctx).Info("forbidden_redirect")
	m.nav.Navigate(ctx, navigation.To(m.cfg.ForbiddenPath))
}
