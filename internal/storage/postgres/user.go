package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/pribylovaa/clinic-auth-service/internal/models"
	"github.com/pribylovaa/clinic-auth-service/internal/storage"
)

// SaveUser создает нового пользователя с ролью user.
// Уникальность email обеспечивает ограничение в БД, а не предварительная проверка.
func (s *Storage) SaveUser(ctx context.Context, user models.NewUser) (*models.PublicUser, error) {
	const op = "storage.postgres.SaveUser"

	query := `
        INSERT INTO users (id, name, surname, email, password_hash, role)
        VALUES ($1, $2, $3, $4, $5, $6)
        RETURNING id, email, role
    `

	var out models.PublicUser
	err := pgxscan.Get(ctx, s.db, &out, query,
		uuid.New(),
		user.Name,
		user.Surname,
		user.Email,
		user.PasswordHash,
		models.RoleUser,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrAlreadyExists)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &out, nil
}

// UserCredentialsByEmail находит пользователя по email вместе с хэшем пароля.
func (s *Storage) UserCredentialsByEmail(ctx context.Context, email string) (*models.User, error) {
	const op = "storage.postgres.UserCredentialsByEmail"

	query := `
        SELECT id, name, surname, email, password_hash, role, created_at
        FROM users
        WHERE email = $1
    `

	var user models.User
	if err := pgxscan.Get(ctx, s.db, &user, query, email); err != nil {
		return nil, fmt.Errorf("%s: %w", op, notFound(err))
	}

	return &user, nil
}

// UserByEmail находит публичную проекцию пользователя по email.
func (s *Storage) UserByEmail(ctx context.Context, email string) (*models.PublicUser, error) {
	const op = "storage.postgres.UserByEmail"

	user, err := selectPublicUser(ctx, s.db, "email = $1", email)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return user, nil
}

// UserByID находит публичную проекцию пользователя по ID.
func (s *Storage) UserByID(ctx context.Context, id uuid.UUID) (*models.PublicUser, error) {
	const op = "storage.postgres.UserByID"

	user, err := selectPublicUser(ctx, s.db, "id = $1", id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return user, nil
}

func selectPublicUser(ctx context.Context, ex storage.Executor, where string, arg any) (*models.PublicUser, error) {
	query := `SELECT id, email, role FROM users WHERE ` + where

	var user models.PublicUser
	if err := pgxscan.Get(ctx, ex, &user, query, arg); err != nil {
		return nil, notFound(err)
	}

	return &user, nil
}

// notFound заменяет «нет строк» на storage.ErrNotFound.
func notFound(err error) error {
	if pgxscan.NotFound(err) {
		return storage.ErrNotFound
	}

	return err
}
