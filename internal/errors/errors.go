// errors стандартизирует ответы об ошибках HTTP-слоя auth-сервиса.
// На вход принимает ошибку сервисного слоя, на выход даёт:
//   - корректный HTTP-статус;
//   - краткое безопасное message без утечки деталей;
//   - для ошибок валидации: описание по полям.
//
// Источник истинности по доменным ошибкам: internal/service.
package errors

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/pribylovaa/clinic-auth-service/internal/pkg/log"
	"github.com/pribylovaa/clinic-auth-service/internal/service"
)

// Нестандартный код, часто используемый для "клиент закрыл соединение".
const StatusClientClosedRequest = 499

// Ошибки транспорта, не имеющие аналога в сервисном слое.
var (
	// ErrNotFound - маршрут не найден.
	ErrNotFound = errors.New("route not found")
	// ErrMethodNotAllowed - метод не поддерживается маршрутом.
	ErrMethodNotAllowed = errors.New("method not allowed")
	// ErrUnauthenticated - нет или некорректны учётные данные запроса (cookie, Bearer).
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrRateLimited - превышен лимит запросов.
	ErrRateLimited = errors.New("rate limited")
)

// APIError - единый формат для фронта.
// Code - короткий стабильный код для машиночитаемой обработки.
// Message - безопасное человекочитаемое описание.
// Details - ошибки по полям для invalid_argument.
// RequestID - из X-Request-Id (для трассировки).
type APIError struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Details   map[string]string `json:"details,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
}

// ErrorResponse - корневой объект в ответе.
type ErrorResponse struct {
	Error APIError `json:"error"`
}

// ToHTTP конвертирует ошибку сервисного слоя в HTTP-статус и тело ответа.
//
// Поведение:
//   - err == nil - программная ошибка вызова: 500/internal;
//   - ValidationError / ErrInvalidInput - 400/invalid_argument (+ details);
//   - ErrEmailTaken - 409/already_exists;
//   - ErrInvalidCredentials, ErrInvalidToken, ErrUnauthenticated - 401/unauthenticated;
//   - context.DeadlineExceeded - 504, context.Canceled - 499;
//   - прочее - 500/internal без деталей.
func ToHTTP(err error) (int, ErrorResponse) {
	if err == nil {
		return http.StatusInternalServerError, response("internal", "internal error")
	}

	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		resp := response("invalid_argument", "invalid argument")
		resp.Error.Details = verr.Fields
		return http.StatusBadRequest, resp
	case errors.Is(err, service.ErrInvalidInput):
		return http.StatusBadRequest, response("invalid_argument", "invalid argument")
	case errors.Is(err, service.ErrEmailTaken):
		return http.StatusConflict, response("already_exists", "email already in use")
	case errors.Is(err, service.ErrInvalidCredentials),
		errors.Is(err, service.ErrInvalidToken),
		errors.Is(err, ErrUnauthenticated):
		return http.StatusUnauthorized, response("unauthenticated", "unauthenticated")
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound, response("not_found", "not found")
	case errors.Is(err, ErrMethodNotAllowed):
		return http.StatusMethodNotAllowed, response("method_not_allowed", "method not allowed")
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, response("resource_exhausted", "too many requests")
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, response("deadline_exceeded", "deadline exceeded")
	case errors.Is(err, context.Canceled):
		return StatusClientClosedRequest, response("canceled", "canceled")
	default:
		return http.StatusInternalServerError, response("internal", "internal error")
	}
}

// WriteError - хелпер для HTTP-хендлеров.
// Пишет статус и тело, добавляет request_id из контекста или заголовка.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	status, resp := ToHTTP(err)

	rid := log.RequestID(r.Context())
	if rid == "" {
		rid = r.Header.Get("X-Request-Id")
	}
	resp.Error.RequestID = rid

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

func response(code, msg string) ErrorResponse {
	return ErrorResponse{Error: APIError{Code: code, Message: msg}}
}
