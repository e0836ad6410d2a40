//go:generate mockgen -destination=../../mocks/mock_storage.go -package=mocks github.com/pribylovaa/clinic-auth-service/internal/storage Storage

package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/pribylovaa/clinic-auth-service/internal/models"
)

var (
	// ErrNotFound - запись не найдена (пользователь/живой refresh-токен).
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists - нарушение уникальности (email).
	ErrAlreadyExists = errors.New("already exists")
)

// Executor - то, на чём выполняются запросы: пул соединений
// или соединение, привязанное к транзакции (*pgxpool.Pool и pgx.Tx).
type Executor interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// UserStorage выполняет операции над пользователями.
type UserStorage interface {
	// SaveUser создаёт пользователя с ролью user; ErrAlreadyExists, если email занят.
	SaveUser(ctx context.Context, user models.NewUser) (*models.PublicUser, error)
	// UserCredentialsByEmail находит пользователя вместе с хэшем пароля (путь логина).
	UserCredentialsByEmail(ctx context.Context, email string) (*models.User, error)
	// UserByEmail находит публичную проекцию пользователя по email.
	UserByEmail(ctx context.Context, email string) (*models.PublicUser, error)
	// UserByID находит публичную проекцию пользователя по ID.
	UserByID(ctx context.Context, id uuid.UUID) (*models.PublicUser, error)
}

// RefreshTokenStorage выполняет операции над refresh-токенами.
type RefreshTokenStorage interface {
	// SaveRefreshToken сохраняет запись нового refresh-токена.
	SaveRefreshToken(ctx context.Context, token *models.RefreshToken) error
	// RefreshTokenByID находит живую (не истёкшую) запись по token_id.
	RefreshTokenByID(ctx context.Context, tokenID uuid.UUID) (*models.RefreshToken, error)
	// RotateRefreshToken в одной транзакции сохраняет next и удаляет запись oldTokenID.
	// ErrNotFound, если старая запись уже удалена: транзакция откатывается.
	RotateRefreshToken(ctx context.Context, oldTokenID uuid.UUID, next *models.RefreshToken) error
	// DeleteExpiredTokens удаляет все просроченные токены и возвращает их число.
	DeleteExpiredTokens(ctx context.Context, now time.Time) (int64, error)
}

// Storage задает контракт работы с БД.
type Storage interface {
	UserStorage
	RefreshTokenStorage
	Close()
}
