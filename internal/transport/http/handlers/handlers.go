// handlers реализует REST-эндпойнты auth-сервиса поверх service.Service.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/google/uuid"

	apierrors "github.com/pribylovaa/clinic-auth-service/internal/errors"
	"github.com/pribylovaa/clinic-auth-service/internal/models"
	"github.com/pribylovaa/clinic-auth-service/internal/service"
)

// maxBodyBytes ограничивает размер JSON-тела запроса.
const maxBodyBytes = 1 << 20

// AuthService - операции сервисного слоя, нужные хендлерам.
type AuthService interface {
	Register(ctx context.Context, in service.RegisterInput) (*models.PublicUser, error)
	Login(ctx context.Context, email, password string) (*models.PublicUser, *models.TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (*models.TokenPair, error)
	Me(ctx context.Context, userID uuid.UUID) (*models.PublicUser, error)
}

// OutcomeObserver учитывает исходы операций (см. internal/metrics).
type OutcomeObserver interface {
	ObserveOutcome(operation, outcome string)
}

// Handlers агрегирует зависимости хендлеров.
type Handlers struct {
	svc     AuthService
	cookie  CookieOptions
	metrics OutcomeObserver
}

// New создаёт Handlers. metrics может быть nil.
func New(svc AuthService, cookie CookieOptions, metrics OutcomeObserver) *Handlers {
	return &Handlers{svc: svc, cookie: cookie, metrics: metrics}
}

// fail пишет ошибку и учитывает исход операции.
func (h *Handlers) fail(w http.ResponseWriter, r *http.Request, operation string, err error) {
	if h.metrics != nil {
		_, resp := apierrors.ToHTTP(err)
		h.metrics.ObserveOutcome(operation, resp.Error.Code)
	}
	apierrors.WriteError(w, r, err)
}

// ok пишет успешный ответ и учитывает исход операции.
func (h *Handlers) ok(w http.ResponseWriter, operation string, status int, value any) {
	if h.metrics != nil {
		h.metrics.ObserveOutcome(operation, "ok")
	}
	writeJSON(w, status, value)
}

// writeJSON - единый ответ JSON с нужным Content-Type.
func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

// decodeStrict - строгий JSON-декодер: неизвестные поля и хвост после объекта запрещены.
// Любая ошибка разбора сворачивается в service.ErrInvalidInput.
func decodeStrict(w http.ResponseWriter, r *http.Request, value any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()

	if err := dec.Decode(value); err != nil {
		return service.ErrInvalidInput
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return service.ErrInvalidInput
	}

	return nil
}
