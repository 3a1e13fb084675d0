// session — менеджер сессии клиента AMS.
//
// Manager владеет credentials.Store: логин, выход, проактивное обновление
// по таймеру и реактивное обновление в режиме single-flight. Все конкурентные
// вызовы Refresh получают результат одного и того же обращения к бэкенду.
//
// Каждое начало и конец сессии (Login, Logout, Invalidate) увеличивает эпоху.
// Обновление, начатое в старой эпохе, своего результата не записывает:
// поздний ответ refresh не воскрешает завершённую сессию.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/huy0357/Attendance-Management-System-sub000/internal/credentials"
	"github.com/huy0357/Attendance-Management-System-sub000/internal/metrics"
	"github.com/huy0357/Attendance-Management-System-sub000/internal/models"
	"github.com/huy0357/Attendance-Management-System-sub000/internal/pkg/log"
	"github.com/huy0357/Attendance-Management-System-sub000/internal/pkg/redact"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"
)

const tracerName = "github.com/huy0357/Attendance-Management-System-sub000/internal/session"

// Config — параметры жизненного цикла.
type Config struct {
	// RefreshLeeway — насколько раньше истечения срабатывает таймер.
	RefreshLeeway time.Duration
	// MinRefreshDelay — нижняя граница задержки таймера.
	MinRefreshDelay time.Duration
	// RefreshTimeout — предел одного обращения к refresh (0 — без предела).
	RefreshTimeout time.Duration
	// LogoutTimeout — предел фонового уведомления о выходе (0 — без предела).
	LogoutTimeout time.Duration
}

// DefaultConfig — значения по умолчанию.
func DefaultConfig() Config {
	return Config{
		RefreshLeeway:   60 * time.Second,
		MinRefreshDelay: time.Second,
		RefreshTimeout:  30 * time.Second,
		LogoutTimeout:   5 * time.Second,
	}
}

type Option func(*Manager)

// WithClock подменяет источник текущего времени.
func WithClock(now func() time.Time) Option { return func(m *Manager) { m.now = now } }

func WithMetrics(mt *metrics.Metrics) Option { return func(m *Manager) { m.metrics = mt } }

func WithLogger(l *slog.Logger) Option { return func(m *Manager) { m.logger = l } }

func WithTracer(t trace.Tracer) Option { return func(m *Manager) { m.tracer = t } }

type Manager struct {
	store     *credentials.Store
	transport Transport
	cfg       Config

	now     func() time.Time
	metrics *metrics.Metrics
	logger  *slog.Logger
	tracer  trace.Tracer

	flights singleflight.Group

	mu       sync.Mutex
	epoch    uint64
	timer    *time.Timer
	timerGen uint64
	closed   bool

	// bg — фоновые logout-уведомления и сработавшие таймеры.
	bg sync.WaitGroup
}

// New создаёт менеджер. Если в store уже есть восстановленная сессия,
// сразу взводится таймер проактивного обновления.
func New(store *credentials.Store, transport Transport, cfg Config, opts ...Option) *Manager {
	if cfg.MinRefreshDelay <= 0 {
		cfg.MinRefreshDelay = time.Second
	}

	m := &Manager{
		store:     store,
		transport: transport,
		cfg:       cfg,
		now:       time.Now,
		logger:    slog.Default(),
	}

	for _, opt := range opts {
		opt(m)
	}

	if m.tracer == nil {
		m.tracer = otel.Tracer(tracerName)
	}

	if c, ok := store.Get(); ok {
		m.mu.Lock()
		m.armLocked(c)
		m.mu.Unlock()
	}

	return m
}

// Login выполняет вход. При ошибке прежнее состояние не меняется.
func (m *Manager) Login(ctx context.Context, username, password string) (models.Credentials, error) {
	const op = "session.Login"

	ctx, span := m.tracer.Start(ctx, op)
	defer span.End()

	lg := log.From(ctx).With(slog.String("op", op), slog.String("username", redact.Username(username)))

	if m.isClosed() {
		return models.Credentials{}, fmt.Errorf("%s: %w", op, ErrClosed)
	}

	resp, err := m.transport.Login(ctx, models.LoginRequest{Username: username, Password: password})
	if err != nil {
		err = wrap(op, loginError(err), err)
		m.metrics.Login(resultLabel(err))
		fail(span, err)
		lg.Warn("login_failed", slog.String("err", err.Error()))
		return models.Credentials{}, err
	}

	next := fromResponse(m.now(), resp)
	if !next.Complete() {
		err := fmt.Errorf("%s: %w: %w", op, ErrServerFault, credentials.ErrIncomplete)
		m.metrics.Login(resultLabel(err))
		fail(span, err)
		lg.Error("login_response_incomplete")
		return models.Credentials{}, err
	}

	m.mu.Lock()
	m.epoch++
	m.persistLocked(ctx, next)
	m.armLocked(next)
	m.mu.Unlock()

	m.metrics.Login("ok")
	span.SetAttributes(attribute.String("ams.role", next.Role))
	lg.Info("login_ok", slog.String("role", next.Role))

	return next, nil
}

// Logout завершает сессию локально и без ожидания уведомляет бэкенд.
// Идемпотентен: повторный вызов ничего не отправляет.
func (m *Manager) Logout(ctx context.Context) {
	const op = "session.Logout"

	lg := log.From(ctx).With(slog.String("op", op))

	prev, had := m.end(ctx, "logout")
	if !had || prev.RefreshToken == "" {
		lg.Debug("logout_without_session")
		return
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.bg.Add(1)
	m.mu.Unlock()

	go func() {
		defer m.bg.Done()

		nctx := context.WithoutCancel(ctx)
		if m.cfg.LogoutTimeout > 0 {
			var cancel context.CancelFunc
			nctx, cancel = context.WithTimeout(nctx, m.cfg.LogoutTimeout)
			defer cancel()
		}

		if err := m.transport.Logout(nctx, models.LogoutRequest{RefreshToken: prev.RefreshToken}); err != nil {
			lg.Debug("logout_notify_failed", slog.String("err", err.Error()))
			return
		}

		lg.Debug("logout_notified")
	}()

	lg.Info("logout_ok")
}

// Invalidate завершает сессию без обращения к бэкенду: токены уже бесполезны.
func (m *Manager) Invalidate(ctx context.Context, reason string) {
	if _, had := m.end(ctx, reason); had {
		log.From(ctx).Info("session_invalidated", slog.String("reason", reason))
	}
}

// end стирает состояние, гасит таймер и открывает новую эпоху.
func (m *Manager) end(ctx context.Context, reason string) (models.Credentials, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.endLocked(ctx, reason)
}

func (m *Manager) endLocked(ctx context.Context, reason string) (models.Credentials, bool) {
	m.epoch++
	m.stopTimerLocked()

	prev, had := m.store.Get()
	if err := m.store.Clear(ctx); err != nil {
		log.From(ctx).Warn("credentials_clear_failed", slog.String("err", err.Error()))
	}

	if had {
		m.metrics.SessionEnded(reason)
	}

	return prev, had
}

// IsAuthenticated — есть access-токен и он не истёк (неизвестный срок считается действующим).
func (m *Manager) IsAuthenticated() bool {
	c, ok := m.store.Get()
	if !ok || c.AccessToken == "" {
		return false
	}

	return !c.HasExpiry() || m.now().Before(c.ExpiresAt)
}

// IsAccessTokenExpired считает токен истёкшим за leeway до фактического срока.
// Нет токена — истёк; срок неизвестен — не истёк.
func (m *Manager) IsAccessTokenExpired(leeway time.Duration) bool {
	c, ok := m.store.Get()
	if !ok || c.AccessToken == "" {
		return true
	}

	if !c.HasExpiry() {
		return false
	}

	return !m.now().Add(leeway).Before(c.ExpiresAt)
}

// Credentials — копия текущего набора.
func (m *Manager) Credentials() (models.Credentials, bool) { return m.store.Get() }

func (m *Manager) AccessToken() string {
	c, _ := m.store.Get()
	return c.AccessToken
}

func (m *Manager) HasRefreshToken() bool {
	c, ok := m.store.Get()
	return ok && c.RefreshToken != ""
}

func (m *Manager) Username() string {
	c, _ := m.store.Get()
	return c.Username
}

func (m *Manager) Role() string {
	c, _ := m.store.Get()
	return c.Role
}

// Close гасит таймер и ждёт фоновые операции. Состояние сессии сохраняется.
func (m *Manager) Close() {
	m.mu.Lock()
	m.closed = true
	m.stopTimerLocked()
	m.mu.Unlock()

	m.bg.Wait()
}

func (m *Manager) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.closed
}

// persistLocked записывает набор; сбой хранилища не отменяет сессию в памяти.
func (m *Manager) persistLocked(ctx context.Context, c models.Credentials) {
	if err := m.store.Set(ctx, c); err != nil {
		if errors.Is(err, credentials.ErrNotPersisted) {
			log.From(ctx).Warn("credentials_not_persisted", slog.String("err", err.Error()))
			return
		}

		log.From(ctx).Error("credentials_set_failed", slog.String("err", err.Error()))
	}
}

func (m *Manager) bgContext() context.Context {
	return log.Into(context.Background(), m.logger)
}

func (m *Manager) flightKey(epoch uint64) string { return "refresh:" + strconv.FormatUint(epoch, 10) }

func fromResponse(now time.Time, r *models.AuthResponse) models.Credentials {
	if r == nil {
		return models.Credentials{}
	}

	return models.Credentials{
		AccessToken:  r.AccessToken,
		RefreshToken: r.RefreshToken,
		Username:     r.Username,
		Role:         r.Role,
		ExpiresAt:    credentials.ExpiresAt(now, r.ExpiresInSeconds, r.AccessToken),
	}
}

func fail(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
