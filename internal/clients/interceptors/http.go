package interceptors

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/huy0357/Attendance-Management-System-sub000/internal/metrics"
	"github.com/huy0357/Attendance-Management-System-sub000/internal/pkg/log"

	"github.com/google/uuid"
)

// WithMetadata — добавляет в исходящий запрос заголовки:
//   - X-Request-Id (из контекста, из уже заданного заголовка или новый uuid),
//   - User-Agent (если передан параметром).
func WithMetadata(userAgent string) Middleware {
	return func(next http.RoundTripper) http.RoundTripper {
		return RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
			rid := requestIDFrom(req.Context())
			if rid == "" {
				rid = req.Header.Get("X-Request-Id")
			}
			if rid == "" {
				rid = uuid.NewString()
			}

			out := req.Clone(req.Context())
			out.Header.Set("X-Request-Id", rid)
			if userAgent != "" {
				out.Header.Set("User-Agent", userAgent)
			}

			return next.RoundTrip(out)
		})
	}
}

// WithTimeout навешивает таймаут d на одну попытку, если у контекста ещё нет дедлайна.
//
// Контракт:
//  1. d <= 0 — запрос не модифицируется;
//  2. у ctx уже есть deadline — оставляет как есть;
//  3. иначе — таймаут действует до закрытия тела ответа, а не до возврата RoundTrip.
func WithTimeout(d time.Duration) Middleware {
	return func(next http.RoundTripper) http.RoundTripper {
		return RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
			if d <= 0 {
				return next.RoundTrip(req)
			}
			if _, ok := req.Context().Deadline(); ok {
				return next.RoundTrip(req)
			}

			ctx, cancel := context.WithTimeout(req.Context(), d)
			resp, err := next.RoundTrip(req.WithContext(ctx))
			if err != nil || resp == nil || resp.Body == nil {
				cancel()
				return resp, err
			}

			resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
			return resp, nil
		})
	}
}

type cancelOnClose struct {
	io.ReadCloser
	once   sync.Once
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.once.Do(c.cancel)
	return err
}

// Logging — одна итоговая запись на попытку: msg="http_client", code, dur.
// Логгер берётся из контекста (pkg/log) и дополняется request_id/method/path.
// Не логирует тело и заголовки.
func Logging(m *metrics.Metrics) Middleware {
	return func(next http.RoundTripper) http.RoundTripper {
		return RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
			start := time.Now()

			l := log.From(req.Context()).With(
				slog.String("request_id", req.Header.Get("X-Request-Id")),
				slog.String("method", req.Method),
				slog.String("path", req.URL.Path),
			)

			resp, err := next.RoundTrip(req.WithContext(log.Into(req.Context(), l)))
			dur := time.Since(start)

			code := 0
			if resp != nil {
				code = resp.StatusCode
			}
			m.Request(req.Method, code, dur)

			if err != nil {
				l.Warn("http_client", slog.String("err", err.Error()), slog.Duration("dur", dur))
				return resp, err
			}

			l.Info("http_client", slog.Int("code", code), slog.Duration("dur", dur))
			return resp, nil
		})
	}
}
