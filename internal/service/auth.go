package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/pribylovaa/clinic-auth-service/internal/models"
	"github.com/pribylovaa/clinic-auth-service/internal/pkg/log"
	"github.com/pribylovaa/clinic-auth-service/internal/pkg/redact"
	"github.com/pribylovaa/clinic-auth-service/internal/storage"
)

// RegisterInput - данные регистрации, уже прошедшие проверку формата.
type RegisterInput struct {
	Name     string
	Surname  string
	Email    string
	Password string
}

// Register создаёт пользователя с ролью user. Сессию не открывает.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*models.PublicUser, error) {
	const op = "service.auth.Register"

	lg := log.From(ctx)

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	user, err := s.storage.SaveUser(ctx, models.NewUser{
		Name:         in.Name,
		Surname:      in.Surname,
		Email:        in.Email,
		PasswordHash: hash,
	})
	if err != nil {
		if errors.Is(err, storage.ErrAlreadyExists) {
			return nil, fmt.Errorf("%s: %w", op, ErrEmailTaken)
		}

		lg.Error("save_user_failed",
			slog.String("op", op),
			slog.String("err", err.Error()),
		)
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	lg.Info("user_registered",
		slog.String("user_id", user.ID.String()),
		slog.String("email", redact.Email(user.Email)),
	)

	return user, nil
}

// Login проверяет email и пароль и открывает новую сессию.
func (s *Service) Login(ctx context.Context, email, password string) (*models.PublicUser, *models.TokenPair, error) {
	const op = "service.auth.Login"

	id, err := s.Authenticate(ctx, Credentials{Email: email, Password: password})
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}

	pair, err := s.EstablishSession(ctx, id)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}

	return id.User, pair, nil
}

// Refresh меняет refresh-токен на новую пару токенов.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*models.TokenPair, error) {
	const op = "service.auth.Refresh"

	pair, err := s.RotateSession(ctx, refreshToken)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return pair, nil
}

// ValidateAccessToken проверяет access-токен и возвращает ID пользователя.
func (s *Service) ValidateAccessToken(ctx context.Context, accessToken string) (uuid.UUID, error) {
	const op = "service.auth.ValidateAccessToken"

	uid, err := s.codec.VerifyAccessToken(accessToken)
	if err != nil {
		log.From(ctx).Debug("access_token_rejected",
			slog.String("op", op),
			slog.String("err", err.Error()),
		)
		return uuid.Nil, fmt.Errorf("%s: %w", op, err)
	}

	return uid, nil
}

// Me возвращает публичный профиль пользователя по ID.
// Отсутствие пользователя в хранилище - ErrInvalidCredentials. При включённом
// кэше профиль может отдаваться из Redis до истечения profileTTL без обращения к БД.
func (s *Service) Me(ctx context.Context, userID uuid.UUID) (*models.PublicUser, error) {
	const op = "service.auth.Me"

	lg := log.From(ctx)

	if s.pcache != nil {
		u, ok, err := s.pcache.Get(ctx, userID)
		if err != nil {
			lg.Warn("profile_cache_get_failed",
				slog.String("op", op),
				slog.String("err", err.Error()),
			)
		}
		if ok {
			return u, nil
		}
	}

	user, err := s.storage.UserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if s.pcache != nil {
		if err := s.pcache.Set(ctx, user, s.profileTTL); err != nil {
			lg.Warn("profile_cache_set_failed",
				slog.String("op", op),
				slog.String("err", err.Error()),
			)
		}
	}

	return user, nil
}
