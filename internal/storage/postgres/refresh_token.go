package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"

	"github.com/pribylovaa/clinic-auth-service/internal/models"
	"github.com/pribylovaa/clinic-auth-service/internal/storage"
)

// SaveRefreshToken сохраняет новый refresh-токен в БД.
func (s *Storage) SaveRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	const op = "storage.postgres.SaveRefreshToken"

	if err := insertRefreshToken(ctx, s.db, token); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// RefreshTokenByID находит живую запись по token_id.
// Истёкшие записи считаются отсутствующими.
func (s *Storage) RefreshTokenByID(ctx context.Context, tokenID uuid.UUID) (*models.RefreshToken, error) {
	const op = "storage.postgres.RefreshTokenByID"

	query := `
        SELECT id, token_id, user_id, token_hash, expires_at, created_at
        FROM refresh_tokens
        WHERE token_id = $1 AND expires_at > NOW()
    `

	var token models.RefreshToken
	if err := pgxscan.Get(ctx, s.db, &token, query, tokenID); err != nil {
		return nil, fmt.Errorf("%s: %w", op, notFound(err))
	}

	return &token, nil
}

// RotateRefreshToken атомарно заменяет запись oldTokenID на next.
// Если старой записи уже нет (её забрала параллельная ротация),
// вставка откатывается и возвращается storage.ErrNotFound.
func (s *Storage) RotateRefreshToken(ctx context.Context, oldTokenID uuid.UUID, next *models.RefreshToken) error {
	const op = "storage.postgres.RotateRefreshToken"

	err := s.withTx(ctx, func(ctx context.Context, tx storage.Executor) error {
		if err := insertRefreshToken(ctx, tx, next); err != nil {
			return err
		}

		return deleteRefreshToken(ctx, tx, oldTokenID)
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// DeleteExpiredTokens удаляет все просроченные токены.
func (s *Storage) DeleteExpiredTokens(ctx context.Context, now time.Time) (int64, error) {
	const op = "storage.postgres.DeleteExpiredTokens"

	query := `
        DELETE FROM refresh_tokens
        WHERE expires_at <= $1
    `

	tag, err := s.db.Exec(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return tag.RowsAffected(), nil
}

func insertRefreshToken(ctx context.Context, ex storage.Executor, token *models.RefreshToken) error {
	query := `
        INSERT INTO refresh_tokens (token_id, user_id, token_hash, expires_at)
        VALUES ($1, $2, $3, $4)
        RETURNING id, created_at
    `

	return ex.QueryRow(ctx, query,
		token.TokenID,
		token.UserID,
		token.TokenHash,
		token.ExpiresAt,
	).Scan(&token.ID, &token.CreatedAt)
}

func deleteRefreshToken(ctx context.Context, ex storage.Executor, tokenID uuid.UUID) error {
	query := `
        DELETE FROM refresh_tokens
        WHERE token_id = $1
    `

	tag, err := ex.Exec(ctx, query, tokenID)
	if err != nil {
		return err
	}

	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}

	return nil
}
