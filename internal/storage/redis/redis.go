// redis — хранилище учётных данных в Redis Hash под одним ключом.
// Позволяет нескольким экземплярам amsctl на одной машине/в одном окружении
// разделять сессию.
package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const defaultKey = "ams:session"

type Storage struct {
	rdb *redis.Client
	key string
}

// New создаёт клиент Redis из URL (например, redis://:pass@host:6379/0).
// Если key пустой — используется "ams:session".
func New(ctx context.Context, redisURL, key string) (*Storage, error) {
	const op = "storage.redis.New"

	if key == "" {
		key = defaultKey
	}

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	rdb := redis.NewClient(opt)

	// Fail-fast на старте.
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Storage{rdb: rdb, key: key}, nil
}

// NewFromClient оборачивает готовый клиент.
func NewFromClient(rdb *redis.Client, key string) *Storage {
	if key == "" {
		key = defaultKey
	}

	return &Storage{rdb: rdb, key: key}
}

func (s *Storage) Load(ctx context.Context) (map[string]string, error) {
	m, err := s.rdb.HGetAll(ctx, s.key).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("storage.redis.Load: %w", err)
	}

	if m == nil {
		m = map[string]string{}
	}

	return m, nil
}

// Save заменяет хэш целиком: DEL + HSET в одной транзакции.
func (s *Storage) Save(ctx context.Context, kv map[string]string) error {
	pipe := s.rdb.TxPipeline()
	pipe.Del(ctx, s.key)
	if len(kv) > 0 {
		pipe.HSet(ctx, s.key, kv)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("storage.redis.Save: %w", err)
	}

	return nil
}

func (s *Storage) Clear(ctx context.Context) error {
	if err := s.rdb.Del(ctx, s.key).Err(); err != nil {
		return fmt.Errorf("storage.redis.Clear: %w", err)
	}

	return nil
}

func (s *Storage) Close() error { return s.rdb.Close() }
