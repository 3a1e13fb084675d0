package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/huy0357/Attendance-Management-System-sub000/internal/credentials"
	"github.com/huy0357/Attendance-Management-System-sub000/internal/models"
	"github.com/huy0357/Attendance-Management-System-sub000/internal/pkg/log"
	"github.com/huy0357/Attendance-Management-System-sub000/internal/pkg/redact"

	"go.opentelemetry.io/otel/attribute"
)

// Refresh обновляет набор учётных данных.
//
// Поведение:
//   - refresh-токена нет - ErrNoRefreshToken без обращения к бэкенду;
//   - обновление уже идёт - вызывающий ждёт его результат, второго запроса нет;
//   - успех - новый набор (с ротированным refresh-токеном) записан, таймер перевзведён;
//   - ошибка - состояние не трогается, решать вызывающему;
//   - отмена ctx вызывающего прекращает только его ожидание, общее обновление продолжается.
func (m *Manager) Refresh(ctx context.Context) (models.Credentials, error) {
	const op = "session.Refresh"

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return models.Credentials{}, fmt.Errorf("%s: %w", op, ErrClosed)
	}
	epoch := m.epoch
	m.mu.Unlock()

	if !m.HasRefreshToken() {
		return models.Credentials{}, fmt.Errorf("%s: %w", op, ErrNoRefreshToken)
	}

	flightCtx := context.WithoutCancel(ctx)
	ch := m.flights.DoChan(m.flightKey(epoch), func() (any, error) {
		return m.refreshOnce(flightCtx, epoch)
	})

	done := m.metrics.RefreshWaiting()
	defer done()

	select {
	case res := <-ch:
		if res.Shared {
			m.metrics.RefreshShared()
		}

		if res.Err != nil {
			return models.Credentials{}, fmt.Errorf("%s: %w", op, res.Err)
		}

		return res.Val.(models.Credentials), nil

	case <-ctx.Done():
		return models.Credentials{}, fmt.Errorf("%s: %w", op, ctx.Err())
	}
}

// refreshOnce — тело единственного обращения к бэкенду.
func (m *Manager) refreshOnce(ctx context.Context, epoch uint64) (models.Credentials, error) {
	const op = "session.refreshOnce"

	ctx, span := m.tracer.Start(ctx, "session.Refresh")
	defer span.End()

	lg := log.From(ctx).With(slog.String("op", op))

	prev, ok := m.store.Get()
	if !ok || prev.RefreshToken == "" {
		return models.Credentials{}, ErrNoRefreshToken
	}

	tctx := ctx
	if m.cfg.RefreshTimeout > 0 {
		var cancel context.CancelFunc
		tctx, cancel = context.WithTimeout(ctx, m.cfg.RefreshTimeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := m.transport.Refresh(tctx, models.RefreshRequest{RefreshToken: prev.RefreshToken})
	if err != nil {
		err = wrap(op, refreshError(err), err)
		m.metrics.RefreshFlight(resultLabel(err))
		fail(span, err)
		lg.Warn("refresh_failed", slog.String("err", err.Error()), slog.Duration("dur", time.Since(start)))
		return models.Credentials{}, err
	}

	next := fromResponse(m.now(), resp)
	if !next.Complete() {
		err := fmt.Errorf("%s: %w: %w", op, ErrServerFault, credentials.ErrIncomplete)
		m.metrics.RefreshFlight(resultLabel(err))
		fail(span, err)
		lg.Error("refresh_response_incomplete")
		return models.Credentials{}, err
	}

	if next.Username == "" {
		next.Username = prev.Username
	}
	if next.Role == "" {
		next.Role = prev.Role
	}

	m.mu.Lock()
	if m.epoch != epoch || m.closed {
		m.mu.Unlock()
		m.metrics.RefreshFlight(resultLabel(ErrSessionEnded))
		lg.Info("refresh_discarded")
		return models.Credentials{}, ErrSessionEnded
	}
	m.persistLocked(ctx, next)
	m.armLocked(next)
	m.mu.Unlock()

	m.metrics.RefreshFlight("ok")
	span.SetAttributes(attribute.Bool("ams.refresh.rotated", next.RefreshToken != prev.RefreshToken))
	lg.Info("refresh_ok",
		slog.String("refresh", redact.Tail(next.RefreshToken)),
		slog.Duration("dur", time.Since(start)),
	)

	return next, nil
}

// armLocked перевзводит таймер проактивного обновления: срабатывание за
// RefreshLeeway до истечения, но не раньше чем через MinRefreshDelay.
// Без известного срока таймер не взводится. Взведён не более один таймер.
func (m *Manager) armLocked(c models.Credentials) {
	m.stopTimerLocked()

	if m.closed || !c.HasExpiry() {
		return
	}

	delay := c.ExpiresAt.Sub(m.now()) - m.cfg.RefreshLeeway
	if delay < m.cfg.MinRefreshDelay {
		delay = m.cfg.MinRefreshDelay
	}

	m.timerGen++
	gen := m.timerGen
	m.timer = time.AfterFunc(delay, func() { m.onTimer(gen) })
}

func (m *Manager) stopTimerLocked() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	// Уже сработавший, но не дошедший до блокировки таймер увидит чужое поколение.
	m.timerGen++
}

// onTimer — проактивное обновление. Любой отказ завершает сессию, повторов нет.
func (m *Manager) onTimer(gen uint64) {
	m.mu.Lock()
	if gen != m.timerGen || m.closed {
		m.mu.Unlock()
		return
	}
	m.timer = nil
	epoch := m.epoch
	m.bg.Add(1)
	m.mu.Unlock()

	defer m.bg.Done()

	ctx := m.bgContext()
	lg := log.From(ctx).With(slog.String("op", "session.onTimer"))

	_, err := m.Refresh(ctx)
	if err == nil {
		return
	}

	if errors.Is(err, ErrSessionEnded) || errors.Is(err, ErrClosed) {
		return
	}

	m.metrics.ProactiveFailure()
	lg.Warn("proactive_refresh_failed", slog.String("err", err.Error()))

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.epoch == epoch {
		m.endLocked(ctx, "proactive_refresh_failed")
	}
}

// armed сообщает, взведён ли таймер проактивного обновления.
func (m *Manager) armed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.timer != nil
}
