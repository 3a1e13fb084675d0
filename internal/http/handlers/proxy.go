package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"

	apierrors "github.com/huy0357/Attendance-Management-System-sub000/internal/errors"
	"github.com/huy0357/Attendance-Management-System-sub000/internal/pkg/log"
	"github.com/huy0357/Attendance-Management-System-sub000/internal/session"
)

// NewProxy — обратный прокси /api/* консоли к REST-бэкенду.
// prefix снимается с пути и заменяется путём base. Транспорт rt должен включать
// посредника: он прикрепляет Bearer, обновляет токен на 401 и запрашивает переход.
// Входящие Authorization и Cookie не пробрасываются.
func NewProxy(base *url.URL, prefix string, rt http.RoundTripper) *httputil.ReverseProxy {
	return &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.Out.URL.Path = strings.TrimPrefix(pr.In.URL.Path, prefix)
			pr.Out.URL.RawPath = ""
			pr.SetURL(base)
			pr.Out.Host = base.Host
			pr.Out.Header.Del("Authorization")
			pr.Out.Header.Del("Cookie")
		},
		Transport:    rt,
		ErrorHandler: proxyError,
	}
}

// proxyError: завершённая посредником сессия - 401, прочее - по общему маппингу.
func proxyError(w http.ResponseWriter, r *http.Request, err error) {
	log.From(r.Context()).Warn("proxy_failed", slog.String("path", r.URL.Path), slog.String("err", err.Error()))

	switch {
	case errors.Is(err, session.ErrRefreshRejected),
		errors.Is(err, session.ErrNoRefreshToken),
		errors.Is(err, session.ErrSessionEnded):
		apierrors.WriteCode(w, r, http.StatusUnauthorized, "session_expired", "session expired")
	case errors.Is(err, session.ErrUnreachable):
		apierrors.WriteCode(w, r, http.StatusServiceUnavailable, "backend_unreachable", "backend is unreachable")
	default:
		apierrors.WriteError(w, r, err)
	}
}

// AuthBlocked закрывает /api/auth/* на прокси: вход и выход идут через /login и /logout.
func (h *Handlers) AuthBlocked(w http.ResponseWriter, r *http.Request) {
	apierrors.WriteCode(w, r, http.StatusNotFound, "not_found", "use "+h.Paths.Login)
}
