// memory — хранилище в памяти процесса; используется в тестах и с driver=memory.
package memory

import (
	"context"
	"maps"
	"sync"
)

type Storage struct {
	mu   sync.Mutex
	data map[string]string
	// saves считает вызовы Save (для тестов).
	saves int
}

func New() *Storage { return &Storage{data: map[string]string{}} }

// NewWith создаёт хранилище с заранее записанным содержимым.
func NewWith(kv map[string]string) *Storage {
	s := New()
	maps.Copy(s.data, kv)
	return s
}

func (s *Storage) Load(ctx context.Context) (map[string]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return maps.Clone(s.data), nil
}

func (s *Storage) Save(ctx context.Context, kv map[string]string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.data = maps.Clone(kv)
	if s.data == nil {
		s.data = map[string]string{}
	}
	s.saves++

	return nil
}

func (s *Storage) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.data = map[string]string{}
	return nil
}

func (s *Storage) Close() error { return nil }

// Saves — число успешных Save.
func (s *Storage) Saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.saves
}
