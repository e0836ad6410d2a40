package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/pribylovaa/clinic-auth-service/internal/models"
	"github.com/pribylovaa/clinic-auth-service/internal/pkg/log"
	"github.com/pribylovaa/clinic-auth-service/internal/storage"
)

// Жизненный цикл сессии:
//
//	[нет сессии] --вход--> [активна: T0]
//	[активна: Ti] --refresh(Ti), валиден--> [активна: Ti+1], Ti недействителен
//	[активна: Ti] --refresh(Ti), невалиден/истёк/повтор--> ErrInvalidCredentials

// EstablishSession открывает новую сессию для подтверждённой личности:
// выпускает пару токенов и сохраняет запись refresh-токена.
func (s *Service) EstablishSession(ctx context.Context, id *models.Identity) (*models.TokenPair, error) {
	const op = "service.session.EstablishSession"

	lg := log.From(ctx)

	pair, rec, err := s.mint(id.UserID)
	if err != nil {
		lg.Error("token_issue_failed",
			slog.String("op", op),
			slog.String("err", err.Error()),
		)
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := s.storage.SaveRefreshToken(ctx, rec); err != nil {
		lg.Error("save_refresh_token_failed",
			slog.String("op", op),
			slog.String("err", err.Error()),
		)
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	lg.Info("session_established",
		slog.String("user_id", id.UserID.String()),
		slog.String("token_id", rec.TokenID.String()),
	)

	return pair, nil
}

// RotateSession меняет предъявленный refresh-токен на новую пару.
// Старая запись удаляется в той же транзакции, что вставляет новую;
// при сбое хранилища старая сессия остаётся действительной.
func (s *Service) RotateSession(ctx context.Context, presented string) (*models.TokenPair, error) {
	const op = "service.session.RotateSession"

	lg := log.From(ctx)

	id, err := s.Authenticate(ctx, RefreshSession{Token: presented})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	pair, rec, err := s.mint(id.UserID)
	if err != nil {
		lg.Error("token_issue_failed",
			slog.String("op", op),
			slog.String("err", err.Error()),
		)
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := s.storage.RotateRefreshToken(ctx, id.TokenID, rec); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			// Запись забрала параллельная ротация тем же токеном.
			lg.Warn("refresh_replay_detected",
				slog.String("op", op),
				slog.String("user_id", id.UserID.String()),
				slog.String("token_id", id.TokenID.String()),
			)
			return nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
		}

		lg.Error("refresh_rotate_failed",
			slog.String("op", op),
			slog.String("err", err.Error()),
		)
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	lg.Info("refresh_rotated",
		slog.String("user_id", id.UserID.String()),
		slog.String("old_token_id", id.TokenID.String()),
		slog.String("token_id", rec.TokenID.String()),
	)

	return pair, nil
}

// mint выпускает пару токенов с новым token_id и готовит запись для хранилища.
func (s *Service) mint(userID uuid.UUID) (*models.TokenPair, *models.RefreshToken, error) {
	const op = "service.session.mint"

	access, accessExp, err := s.codec.IssueAccessToken(userID)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}

	tokenID := uuid.New()
	refresh, refreshExp, err := s.codec.IssueRefreshToken(userID, tokenID)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}

	hash, err := s.hasher.Hash(refresh)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}

	pair := &models.TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
	}

	rec := &models.RefreshToken{
		TokenID:   tokenID,
		UserID:    userID,
		TokenHash: hash,
		ExpiresAt: refreshExp,
	}

	return pair, rec, nil
}
