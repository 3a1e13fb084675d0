// interceptors — цепочка обработки исходящих запросов к бэкенду AMS.
//
// Для HTTP это декораторы http.RoundTripper, для gRPC — unary-интерсепторы
// с тем же порядком: metadata -> logging -> timeout. Bearer-токен сюда не
// входит: его прикрепляет посредник (internal/mediator), который стоит снаружи
// цепочки и повторяет запрос после обновления.
package interceptors

import (
	"context"
	"net/http"
)

type CtxKey string

const CtxRequestID CtxKey = "request_id"

// WithRequestID кладёт request id в контекст: все попытки запроса пойдут с ним.
func WithRequestID(ctx context.Context, rid string) context.Context {
	return context.WithValue(ctx, CtxRequestID, rid)
}

func requestIDFrom(ctx context.Context) string {
	if v := ctx.Value(CtxRequestID); v != nil {
		if rid, _ := v.(string); rid != "" {
			return rid
		}
	}

	return ""
}

// Middleware — декоратор http.RoundTripper.
type Middleware func(http.RoundTripper) http.RoundTripper

// RoundTripperFunc — адаптер функции к http.RoundTripper.
type RoundTripperFunc func(*http.Request) (*http.Response, error)

func (f RoundTripperFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

// Chain собирает цепочку: первый middleware — самый внешний.
func Chain(base http.RoundTripper, mws ...Middleware) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}

	rt := base
	for i := len(mws) - 1; i >= 0; i-- {
		rt = mws[i](rt)
	}

	return rt
}
