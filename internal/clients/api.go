package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/huy0357/Attendance-Management-System-sub000/internal/config"
	apierrors "github.com/huy0357/Attendance-Management-System-sub000/internal/errors"
)

var (
	// ErrUnauthorized — итоговый 401: обновление не помогло или невозможно, сессия завершена.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden — 403: прав недостаточно, сессия сохраняется.
	ErrForbidden = errors.New("forbidden")
)

// APIClient — защищённый REST API бэкенда. Транспорт должен включать посредника,
// иначе запросы уйдут без Bearer.
type APIClient struct {
	base *url.URL
	hc   *http.Client
}

func NewAPIClient(cfg config.Config, rt http.RoundTripper) (*APIClient, error) {
	const op = "clients.NewAPIClient"

	base, err := baseURL(cfg.API.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &APIClient{base: base, hc: &http.Client{Transport: rt}}, nil
}

func (c *APIClient) Get(ctx context.Context, path string, out any) error {
	return c.Do(ctx, http.MethodGet, path, nil, out)
}

func (c *APIClient) Post(ctx context.Context, path string, in, out any) error {
	return c.Do(ctx, http.MethodPost, path, in, out)
}

func (c *APIClient) Put(ctx context.Context, path string, in, out any) error {
	return c.Do(ctx, http.MethodPut, path, in, out)
}

func (c *APIClient) Delete(ctx context.Context, path string) error {
	return c.Do(ctx, http.MethodDelete, path, nil, nil)
}

// Do выполняет запрос к path относительно базового URL (query допускается).
// in != nil кодируется в JSON; out != nil заполняется из тела 2xx.
// Ошибки: ErrUnauthorized / ErrForbidden вместе с *apierrors.StatusError,
// прочие статусы вне 2xx — только *apierrors.StatusError.
func (c *APIClient) Do(ctx context.Context, method, path string, in, out any) error {
	const op = "clients.APIClient.Do"

	target, err := c.resolve(path)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return fmt.Errorf("%s: %w: %w", op, ErrUnauthorized, apierrors.FromResponse(resp))
	case resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%s: %w: %w", op, ErrForbidden, apierrors.FromResponse(resp))
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return fmt.Errorf("%s: %w", op, apierrors.FromResponse(resp))
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%s: decode: %w", op, err)
	}

	return nil
}

func (c *APIClient) resolve(path string) (string, error) {
	ref, err := url.Parse(strings.TrimPrefix(path, "/"))
	if err != nil {
		return "", err
	}
	if ref.IsAbs() || ref.Host != "" {
		return "", fmt.Errorf("path must be relative to the api base: %q", path)
	}

	u := c.base.JoinPath(ref.Path)
	u.RawQuery = ref.RawQuery

	return u.String(), nil
}
