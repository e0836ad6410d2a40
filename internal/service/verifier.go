package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/pribylovaa/clinic-auth-service/internal/models"
	"github.com/pribylovaa/clinic-auth-service/internal/pkg/log"
	"github.com/pribylovaa/clinic-auth-service/internal/pkg/redact"
	"github.com/pribylovaa/clinic-auth-service/internal/storage"
)

// Verifier - способ установить личность клиента.
// Все варианты возвращают одинаковый models.Identity.
type Verifier interface {
	Verify(ctx context.Context, s *Service) (*models.Identity, error)
}

// Credentials - проверка по email и паролю.
type Credentials struct {
	Email    string
	Password string
}

func (c Credentials) Verify(ctx context.Context, s *Service) (*models.Identity, error) {
	return s.VerifyCredentials(ctx, c.Email, c.Password)
}

// RefreshSession - проверка по предъявленному refresh-токену.
type RefreshSession struct {
	Token string
}

func (r RefreshSession) Verify(ctx context.Context, s *Service) (*models.Identity, error) {
	return s.VerifyRefreshSession(ctx, r.Token)
}

// Authenticate устанавливает личность выбранным способом.
func (s *Service) Authenticate(ctx context.Context, v Verifier) (*models.Identity, error) {
	return v.Verify(ctx, s)
}

// VerifyCredentials находит пользователя по email и сверяет пароль.
// Неизвестный email и неверный пароль неразличимы для вызывающего.
func (s *Service) VerifyCredentials(ctx context.Context, email, password string) (*models.Identity, error) {
	const op = "service.verifier.VerifyCredentials"

	lg := log.From(ctx)

	user, err := s.storage.UserCredentialsByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			lg.Error("credentials_lookup_failed",
				slog.String("op", op),
				slog.String("err", err.Error()),
			)
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		// Сравнение с фиктивным хэшем выравнивает время ответа.
		s.hasher.Verify(password, s.dummy())
		lg.Warn("credentials_rejected",
			slog.String("op", op),
			slog.String("email", redact.Email(email)),
			slog.String("reason", "unknown_email"),
		)
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}

	if !s.hasher.Verify(password, user.PasswordHash) {
		lg.Warn("credentials_rejected",
			slog.String("op", op),
			slog.String("email", redact.Email(email)),
			slog.String("reason", "password_mismatch"),
		)
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}

	return &models.Identity{
		UserID: user.ID,
		User:   user.Public(),
	}, nil
}

// VerifyRefreshSession проверяет refresh-токен: подпись и срок, наличие живой
// записи по token_id и совпадение токена с сохранённым хэшем.
// Все три причины отказа неразличимы для вызывающего.
func (s *Service) VerifyRefreshSession(ctx context.Context, token string) (*models.Identity, error) {
	const op = "service.verifier.VerifyRefreshSession"

	lg := log.From(ctx)

	claims, err := s.codec.VerifyRefreshToken(token)
	if err != nil {
		lg.Warn("refresh_rejected",
			slog.String("op", op),
			slog.String("reason", "token_invalid"),
			slog.String("token_fp", redact.Fingerprint(token)),
			slog.String("err", err.Error()),
		)
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}

	rec, err := s.storage.RefreshTokenByID(ctx, claims.TokenID)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			lg.Error("refresh_lookup_failed",
				slog.String("op", op),
				slog.String("err", err.Error()),
			)
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		lg.Warn("refresh_rejected",
			slog.String("op", op),
			slog.String("reason", "record_absent"),
			slog.String("user_id", claims.UserID.String()),
			slog.String("token_id", claims.TokenID.String()),
		)
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}

	if rec.UserID != claims.UserID || !s.hasher.Verify(token, rec.TokenHash) {
		lg.Warn("refresh_rejected",
			slog.String("op", op),
			slog.String("reason", "hash_mismatch"),
			slog.String("token_fp", redact.Fingerprint(token)),
			slog.String("user_id", claims.UserID.String()),
			slog.String("token_id", claims.TokenID.String()),
		)
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}

	return &models.Identity{
		UserID:  claims.UserID,
		TokenID: claims.TokenID,
	}, nil
}

// dummy возвращает фиктивный хэш той же стоимости, что и настоящие.
func (s *Service) dummy() string {
	s.dummyOnce.Do(func() {
		h, err := s.hasher.Hash("dummy-password-for-timing")
		if err == nil {
			s.dummyHash = h
		}
	})

	return s.dummyHash
}
