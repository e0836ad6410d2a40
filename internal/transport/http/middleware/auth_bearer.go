package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	apierrors "github.com/pribylovaa/clinic-auth-service/internal/errors"
	"github.com/pribylovaa/clinic-auth-service/internal/pkg/log"
)

// AccessTokenValidator проверяет access-токен и возвращает ID пользователя.
type AccessTokenValidator interface {
	ValidateAccessToken(ctx context.Context, accessToken string) (uuid.UUID, error)
}

type userIDKey struct{}

// AuthBearer требует заголовок "Authorization: Bearer <access>".
// Без токена или с невалидным токеном отвечает 401; иначе кладёт ID
// пользователя в контекст (см. UserID).
func AuthBearer(v AccessTokenValidator) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearer(r.Header.Get("Authorization"))
			if !ok {
				log.From(r.Context()).Debug("bearer_missing", slog.String("path", r.URL.Path))
				apierrors.WriteError(w, r, apierrors.ErrUnauthenticated)
				return
			}

			uid, err := v.ValidateAccessToken(r.Context(), token)
			if err != nil {
				apierrors.WriteError(w, r, err)
				return
			}

			ctx := context.WithValue(r.Context(), userIDKey{}, uid)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserID возвращает ID пользователя, установленный AuthBearer.
func UserID(ctx context.Context) (uuid.UUID, bool) {
	uid, ok := ctx.Value(userIDKey{}).(uuid.UUID)
	return uid, ok
}

func bearer(header string) (string, bool) {
	const prefix = "bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}

	token := strings.TrimSpace(header[len(prefix):])
	return token, token != ""
}
