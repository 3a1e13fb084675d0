package mediator

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/huy0357/Attendance-Management-System-sub000/internal/pkg/log"
)

// RoundTripper оборачивает next посредником. next получает уже
// подписанный запрос; повтор после обновления идёт через next же.
func (m *Mediator) RoundTripper(next http.RoundTripper) http.RoundTripper {
	if next == nil {
		next = http.DefaultTransport
	}

	return &roundTripper{m: m, next: next}
}

type roundTripper struct {
	m    *Mediator
	next http.RoundTripper
}

func (t *roundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	auth := t.isAuthEndpoint(req)

	// Дальше работаем только с копией: запрос вызывающего не меняется.
	out := req.Clone(ctx)
	replay := false
	if !auth {
		var err error
		if replay, err = buffer(out, t.m.cfg.MaxReplayBody); err != nil {
			return nil, err
		}
	}

	resp, err := t.next.RoundTrip(withBearer(out, t.m.session.AccessToken()))
	if err != nil || auth {
		return resp, err
	}

	switch resp.StatusCode {
	case http.StatusUnauthorized:
		return t.recover(out, resp, replay)
	case http.StatusForbidden:
		t.m.forbidden(ctx)
	}

	return resp, nil
}

// recover — реакция на 401: обновление и один повтор.
// Тело, которое нельзя отправить заново, не повторяется: сессия обновляется,
// вызывающий получает исходный 401.
func (t *roundTripper) recover(req *http.Request, resp *http.Response, replay bool) (*http.Response, error) {
	ctx := req.Context()

	token, retry, err := t.m.renew(ctx)
	if !retry {
		if err != nil {
			discard(resp)
			return nil, err
		}

		return resp, nil
	}

	if !replay {
		log.From(ctx).Warn("mediator_retry_skipped", slog.String("reason", "body_not_replayable"))
		return resp, nil
	}

	discard(resp)

	again, err := rewind(req)
	if err != nil {
		return nil, err
	}

	out, err := t.next.RoundTrip(withBearer(again, token))
	if err != nil {
		return nil, err
	}

	if out.StatusCode == http.StatusForbidden {
		t.m.forbidden(ctx)
	}

	return out, nil
}

func (t *roundTripper) isAuthEndpoint(req *http.Request) bool {
	marker := t.m.cfg.AuthPathMarker
	return marker != "" && req.URL != nil && strings.Contains(req.URL.Path, marker)
}

// withBearer возвращает копию запроса с токеном (или исходный, если токена нет).
func withBearer(req *http.Request, token string) *http.Request {
	if token == "" {
		return req
	}

	out := req.Clone(req.Context())
	out.Header.Set("Authorization", "Bearer "+token)
	return out
}

// buffer делает тело копии req пригодным для повтора, если оно не больше limit.
// false — повтор невозможен, тело отправится потоком как есть.
func buffer(req *http.Request, limit int64) (bool, error) {
	if req.Body == nil || req.Body == http.NoBody || req.GetBody != nil {
		return true, nil
	}

	raw, err := io.ReadAll(io.LimitReader(req.Body, limit+1))
	if err != nil {
		_ = req.Body.Close()
		return false, fmt.Errorf("mediator: buffer request body: %w", err)
	}

	if int64(len(raw)) > limit {
		req.Body = struct {
			io.Reader
			io.Closer
		}{io.MultiReader(bytes.NewReader(raw), req.Body), req.Body}
		return false, nil
	}

	_ = req.Body.Close()
	req.Body = io.NopCloser(bytes.NewReader(raw))
	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(raw)), nil
	}

	return true, nil
}

func rewind(req *http.Request) (*http.Request, error) {
	out := req.Clone(req.Context())
	if req.GetBody == nil {
		return out, nil
	}

	body, err := req.GetBody()
	if err != nil {
		return nil, fmt.Errorf("mediator: rewind request body: %w", err)
	}
	out.Body = body

	return out, nil
}

func discard(resp *http.Response) {
	if resp == nil || resp.Body == nil {
		return
	}

	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	_ = resp.Body.Close()
}
