// errors стандартизирует ошибки на границе с бэкендом AMS и ответы локальной консоли.
//
// В одну сторону он превращает не-2xx ответ бэкенда (тело вида
// {timestamp,status,error,message}) в *StatusError, сохраняя HTTP-статус,
// по которому сессия и медиатор принимают решения (401/403/...).
// В другую — даёт консоли корректный HTTP-статус и краткое безопасное message.
package errors

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/huy0357/Attendance-Management-System-sub000/internal/models"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Нестандартный код часто используемый для "клиент закрыл соединение".
const StatusClientClosedRequest = 499

// Предел чтения тела ошибки.
const maxErrorBody = 64 << 10

// StatusError — бэкенд ответил статусом вне 2xx.
type StatusError struct {
	Status  int
	Reason  string
	Message string
	Path    string
}

func (e *StatusError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Reason
	}
	if msg == "" {
		msg = http.StatusText(e.Status)
	}

	if e.Path != "" {
		return fmt.Sprintf("%s: status %d: %s", e.Path, e.Status, msg)
	}

	return fmt.Sprintf("status %d: %s", e.Status, msg)
}

// FromResponse читает тело ответа (не более 64 KiB) и строит *StatusError.
// Тело не закрывает. Непарсящееся тело сохраняется в Message как есть (обрезанное).
func FromResponse(resp *http.Response) *StatusError {
	se := &StatusError{Status: resp.StatusCode}
	if resp.Request != nil && resp.Request.URL != nil {
		se.Path = resp.Request.URL.Path
	}

	if resp.Body == nil {
		return se
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil || len(raw) == 0 {
		return se
	}

	var env models.BackendError
	if err := json.Unmarshal(raw, &env); err == nil && (env.Message != "" || env.Error != "") {
		se.Reason = env.Error
		se.Message = env.Message
		return se
	}

	txt := strings.TrimSpace(string(raw))
	if len(txt) > 200 {
		txt = txt[:200]
	}
	se.Message = txt

	return se
}

// StatusOf возвращает HTTP-статус из цепочки ошибки или 0, если ответа не было
// (сетевая ошибка, отмена и т.п.).
func StatusOf(err error) int {
	var se *StatusError
	if stderrors.As(err, &se) {
		return se.Status
	}

	return 0
}

// APIError — единый формат ошибок консоли.
// Code — короткий стабильный код для машиночитаемой обработки.
// Message — безопасное человекочитаемое описание.
// RequestID — прокидывается из X-Request-Id, если есть (для трассировки).
type APIError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// ErrorResponse — корневой объект в ответе.
type ErrorResponse struct {
	Error APIError `json:"error"`
}

// ToHTTP конвертирует ошибку в HTTP-статус и унифицированный ответ.
//
// Поведение:
//   - err == nil - программная ошибка вызова: 500/internal;
//   - *StatusError - статус бэкенда сохраняется, code выводится из статуса;
//   - gRPC-статус - маппим через baseFromGRPC();
//   - отмена/дедлайн контекста - 499/504;
//   - прочее - 502/bad_gateway: до бэкенда не достучались.
func ToHTTP(err error) (int, ErrorResponse) {
	if err == nil {
		return http.StatusInternalServerError, resp("internal", "internal error")
	}

	var se *StatusError
	if stderrors.As(err, &se) {
		code := strings.ReplaceAll(strings.ToLower(http.StatusText(se.Status)), " ", "_")
		if code == "" {
			code = "upstream_error"
		}
		return se.Status, resp(code, strings.ToLower(http.StatusText(se.Status)))
	}

	if st, ok := status.FromError(err); ok && st.Code() != codes.Unknown {
		httpStatus, code, msg := baseFromGRPC(st.Code())
		return httpStatus, resp(code, msg)
	}

	switch {
	case stderrors.Is(err, context.Canceled):
		return StatusClientClosedRequest, resp("canceled", "canceled")
	case stderrors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, resp("deadline_exceeded", "deadline exceeded")
	}

	return http.StatusBadGateway, resp("bad_gateway", "backend unreachable")
}

// FromGRPC возвращает HTTP-статус, соответствующий gRPC-коду ошибки (0 для nil).
func FromGRPC(err error) int {
	if err == nil {
		return 0
	}

	st, ok := status.FromError(err)
	if !ok {
		return 0
	}

	httpStatus, _, _ := baseFromGRPC(st.Code())
	return httpStatus
}

// WriteError — хелпер для HTTP-хендлеров.
// Пишет корректный статус/тело, добавляет request_id из заголовка, если он есть.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	st, body := ToHTTP(err)
	Write(w, r, st, body)
}

// WriteCode пишет ошибку с явным статусом и кодом.
func WriteCode(w http.ResponseWriter, r *http.Request, st int, code, msg string) {
	Write(w, r, st, resp(code, msg))
}

func Write(w http.ResponseWriter, r *http.Request, st int, body ErrorResponse) {
	if rid := r.Header.Get("X-Request-Id"); rid != "" {
		body.Error.RequestID = rid
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(st)
	_ = json.NewEncoder(w).Encode(body)
}

func resp(code, msg string) ErrorResponse {
	return ErrorResponse{Error: APIError{Code: code, Message: msg}}
}

// baseFromGRPC — базовый маппинг gRPC -> HTTP/код/сообщение.
//   - InvalidArgument -> 400
//   - NotFound -> 404
//   - AlreadyExists, Aborted -> 409
//   - FailedPrecondition -> 412
//   - Unauthenticated -> 401 (медиатор запускает обновление токена)
//   - PermissionDenied -> 403 (медиатор уводит на экран недостатка прав)
//   - ResourceExhausted -> 429
//   - Canceled -> 499
//   - DeadlineExceeded -> 504
//   - Unavailable -> 503
//   - Unimplemented -> 501
//   - прочее -> 500/internal
func baseFromGRPC(c codes.Code) (int, string, string) {
	switch c {
	case codes.OK:
		return http.StatusOK, "ok", "ok"
	case codes.InvalidArgument:
		return http.StatusBadRequest, "invalid_argument", "invalid argument"
	case codes.NotFound:
		return http.StatusNotFound, "not_found", "not found"
	case codes.AlreadyExists:
		return http.StatusConflict, "already_exists", "already exists"
	case codes.FailedPrecondition:
		return http.StatusPreconditionFailed, "failed_precondition", "failed precondition"
	case codes.Unauthenticated:
		return http.StatusUnauthorized, "unauthenticated", "unauthenticated"
	case codes.PermissionDenied:
		return http.StatusForbidden, "permission_denied", "permission denied"
	case codes.ResourceExhausted:
		return http.StatusTooManyRequests, "resource_exhausted", "resource exhausted"
	case codes.Aborted:
		return http.StatusConflict, "aborted", "aborted"
	case codes.Canceled:
		return StatusClientClosedRequest, "canceled", "canceled"
	case codes.DeadlineExceeded:
		return http.StatusGatewayTimeout, "deadline_exceeded", "deadline exceeded"
	case codes.Unavailable:
		return http.StatusServiceUnavailable, "unavailable", "service unavailable"
	case codes.Unimplemented:
		return http.StatusNotImplemented, "unimplemented", "unimplemented"
	default:
		return http.StatusInternalServerError, "internal", "internal error"
	}
}
