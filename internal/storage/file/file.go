// file — хранилище в JSON-файле с правами 0600.
// Запись идёт во временный файл рядом и затем rename, поэтому читатель
// видит либо старое, либо новое содержимое целиком.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/huy0357/Attendance-Management-System-sub000/internal/storage"
)

type Storage struct {
	mu   sync.Mutex
	path string
}

// New создаёт хранилище; каталог создаётся при первой записи.
func New(path string) (*Storage, error) {
	if path == "" {
		return nil, errors.New("file storage: empty path")
	}

	return &Storage{path: filepath.Clean(path)}, nil
}

func (s *Storage) Path() string { return s.path }

func (s *Storage) Load(ctx context.Context) (map[string]string, error) {
	const op = "storage.file.Load"

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	kv := map[string]string{}
	if len(raw) == 0 {
		return kv, nil
	}

	if err := json.Unmarshal(raw, &kv); err != nil {
		return nil, fmt.Errorf("%s: %w: %v", op, storage.ErrCorrupted, err)
	}

	return kv, nil
}

func (s *Storage) Save(ctx context.Context, kv map[string]string) error {
	const op = "storage.file.Save"

	if err := ctx.Err(); err != nil {
		return err
	}

	raw, err := json.MarshalIndent(kv, "", "  ")
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	tmp, err := os.CreateTemp(dir, ".session-*.tmp")
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	tmpName := tmp.Name()

	cleanup := func() { _ = os.Remove(tmpName) }

	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("%s: %w", op, err)
	}

	if _, err := tmp.Write(raw); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		cleanup()
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (s *Storage) Clear(ctx context.Context) error {
	const op = "storage.file.Clear"

	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (s *Storage) Close() error { return nil }
