// navigation — решение "куда перевести пользователя", отделённое от того,
// кто его исполняет: CLI печатает подсказку, консоль отдаёт редирект.
package navigation

import (
	"context"
	"net/url"
	"sync"
)

// Target — путь экрана и необязательные query-параметры.
type Target struct {
	Path  string
	Query url.Values
}

func To(path string) Target { return Target{Path: path} }

// With возвращает копию с добавленным параметром.
func (t Target) With(key, val string) Target {
	q := url.Values{}
	for k, v := range t.Query {
		q[k] = append([]string(nil), v...)
	}
	q.Set(key, val)

	return Target{Path: t.Path, Query: q}
}

func (t Target) String() string {
	if len(t.Query) == 0 {
		return t.Path
	}

	return t.Path + "?" + t.Query.Encode()
}

func (t Target) IsZero() bool { return t.Path == "" }

// Navigator исполняет переход.
type Navigator interface {
	Navigate(ctx context.Context, to Target)
}

// Func — адаптер функции к Navigator.
type Func func(ctx context.Context, to Target)

func (f Func) Navigate(ctx context.Context, to Target) { f(ctx, to) }

// Recorder запоминает переходы.
type Recorder struct {
	mu      sync.Mutex
	targets []Target
}

func (r *Recorder) Navigate(_ context.Context, to Target) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.targets = append(r.targets, to)
}

// Last — последний переход.
func (r *Recorder) Last() (Target, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.targets) == 0 {
		return Target{}, false
	}

	return r.targets[len(r.targets)-1], true
}

func (r *Recorder) All() []Target {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]Target(nil), r.targets...)
}

type slotKey struct{}

// Slot — переход, запрошенный в рамках одного запроса.
type Slot struct {
	mu     sync.Mutex
	target Target
	set    bool
}

func (s *Slot) Target() (Target, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.target, s.set
}

// WithSlot кладёт в контекст пустой Slot.
func WithSlot(ctx context.Context) (context.Context, *Slot) {
	s := &Slot{}
	return context.WithValue(ctx, slotKey{}, s), s
}

// Contextual пишет переход в Slot из контекста, а без него — в Fallback.
type Contextual struct {
	Fallback Navigator
}

func (c Contextual) Navigate(ctx context.Context, to Target) {
	if s, ok := ctx.Value(slotKey{}).(*Slot); ok && s != nil {
		s.mu.Lock()
		s.target, s.set = to, true
		s.mu.Unlock()
		return
	}

	if c.Fallback != nil {
		c.Fallback.Navigate(ctx, to)
	}
}
