package middleware

import (
	"net/http"

	"github.com/huy0357/Attendance-Management-System-sub000/internal/navigation"
)

// HeaderNavigateTo — куда консоль предлагает перейти после ответа
// (сессия завершена посредником, недостаточно прав и т.п.).
const HeaderNavigateTo = "X-Navigate-To"

// Navigation открывает на время запроса слот навигации. Если за время обработки
// кто-то (обычно посредник) запросил переход, цель попадает в X-Navigate-To.
// Мидлвар должен стоять до Logging: они делят один statusWriter.
func Navigation() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, slot := navigation.WithSlot(r.Context())

			sw := newStatusWriter(w)
			sw.beforeHeader = func(h http.Header) {
				if to, ok := slot.Target(); ok {
					h.Set(HeaderNavigateTo, to.String())
				}
			}

			next.ServeHTTP(sw, r.WithContext(ctx))
		})
	}
}
