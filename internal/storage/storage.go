package storage

import (
	"context"
	"errors"
)

var (
	// ErrCorrupted — сохранённое состояние не читается; вызывающий трактует его как пустое.
	ErrCorrupted = errors.New("stored state is corrupted")
)

// Backend — персистентное key-value хранилище, переживающее перезапуск клиента.
// Запись заменяет весь набор ключей одной операцией: частично записанного
// набора учётных данных снаружи не видно.
type Backend interface {
	// Load возвращает все сохранённые пары (пустую карту, если ничего нет).
	Load(ctx context.Context) (map[string]string, error)
	// Save атомарно заменяет содержимое на kv.
	Save(ctx context.Context, kv map[string]string) error
	// Clear удаляет всё содержимое. Повторный вызов — не ошибка.
	Clear(ctx context.Context) error
	// Close освобождает ресурсы.
	Close() error
}
