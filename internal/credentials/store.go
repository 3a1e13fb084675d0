// credentials — единственный владелец изменяемого состояния сессии.
//
// Store держит набор учётных данных в памяти и синхронно дублирует его в
// storage.Backend под фиксированными ключами ams.*, чтобы сессия переживала
// перезапуск. Токены и личность записываются и стираются только целиком.
package credentials

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/huy0357/Attendance-Management-System-sub000/internal/models"
	"github.com/huy0357/Attendance-Management-System-sub000/internal/pkg/log"
	"github.com/huy0357/Attendance-Management-System-sub000/internal/storage"
)

// Ключи персистентного хранилища.
const (
	KeyAccessToken  = "ams.accessToken"
	KeyRefreshToken = "ams.refreshToken"
	KeyUsername     = "ams.username"
	KeyRole         = "ams.role"
	// KeyExpiresAt — unix-время в миллисекундах.
	KeyExpiresAt = "ams.expiresAt"
)

var (
	// ErrIncomplete — попытка записать набор без access- или refresh-токена.
	// Это ошибка программиста, а не сервера.
	ErrIncomplete = errors.New("credentials: access and refresh tokens are both required")
	// ErrNotPersisted — состояние в памяти обновлено, но записать его в хранилище не удалось.
	ErrNotPersisted = errors.New("credentials: not persisted")
)

// PersistTimeout ограничивает запись в хранилище. Запись не зависит от отмены
// контекста вызывающего: выход из сессии обязан стереть и сохранённую копию.
const PersistTimeout = 5 * time.Second

type Store struct {
	mu      sync.RWMutex
	backend storage.Backend
	cur     *models.Credentials
}

// Open создаёт Store и восстанавливает сохранённое состояние.
// Неполный или повреждённый сохранённый набор отбрасывается и стирается.
func Open(ctx context.Context, backend storage.Backend) (*Store, error) {
	const op = "credentials.Open"

	lg := log.From(ctx)
	s := &Store{backend: backend}

	kv, err := backend.Load(ctx)
	if err != nil {
		if !errors.Is(err, storage.ErrCorrupted) {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		lg.Warn("stored_credentials_corrupted", slog.String("op", op), slog.String("err", err.Error()))
		kv = nil
	}

	c, ok := decode(kv)
	switch {
	case ok:
		s.cur = &c
	case len(kv) > 0 || err != nil:
		lg.Warn("stored_credentials_discarded", slog.String("op", op))
		if cerr := backend.Clear(ctx); cerr != nil {
			lg.Warn("stored_credentials_clear_failed", slog.String("op", op), slog.String("err", cerr.Error()))
		}
	}

	return s, nil
}

// Get возвращает копию текущего набора; false — сессии нет.
func (s *Store) Get() (models.Credentials, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.cur == nil {
		return models.Credentials{}, false
	}

	return *s.cur, true
}

// Set атомарно заменяет набор. Без любого из токенов — ErrIncomplete, состояние не трогается.
// Ошибка хранилища возвращается обёрнутой в ErrNotPersisted: в памяти набор уже новый.
func (s *Store) Set(ctx context.Context, c models.Credentials) error {
	const op = "credentials.Set"

	if !c.Complete() {
		return fmt.Errorf("%s: %w", op, ErrIncomplete)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cp := c
	s.cur = &cp

	pctx, cancel := persistContext(ctx)
	defer cancel()

	if err := s.backend.Save(pctx, encode(c)); err != nil {
		return fmt.Errorf("%s: %w: %w", op, ErrNotPersisted, err)
	}

	return nil
}

// Clear стирает набор. Повторный вызов безопасен.
func (s *Store) Clear(ctx context.Context) error {
	const op = "credentials.Clear"

	s.mu.Lock()
	defer s.mu.Unlock()

	s.cur = nil

	pctx, cancel := persistContext(ctx)
	defer cancel()

	if err := s.backend.Clear(pctx); err != nil {
		return fmt.Errorf("%s: %w: %w", op, ErrNotPersisted, err)
	}

	return nil
}

func persistContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), PersistTimeout)
}

func encode(c models.Credentials) map[string]string {
	kv := map[string]string{
		KeyAccessToken:  c.AccessToken,
		KeyRefreshToken: c.RefreshToken,
		KeyUsername:     c.Username,
		KeyRole:         c.Role,
	}

	if c.HasExpiry() {
		kv[KeyExpiresAt] = strconv.FormatInt(c.ExpiresAt.UnixMilli(), 10)
	}

	return kv
}

func decode(kv map[string]string) (models.Credentials, bool) {
	c := models.Credentials{
		AccessToken:  kv[KeyAccessToken],
		RefreshToken: kv[KeyRefreshToken],
		Username:     kv[KeyUsername],
		Role:         kv[KeyRole],
	}

	if !c.Complete() {
		return models.Credentials{}, false
	}

	if ms, err := strconv.ParseInt(kv[KeyExpiresAt], 10, 64); err == nil && ms > 0 {
		c.ExpiresAt = time.UnixMilli(ms)
	} else if exp, ok := TokenExpiry(c.AccessToken); ok {
		c.ExpiresAt = exp
	}

	return c, true
}
