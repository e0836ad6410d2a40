package models

import (
	"time"

	"github.com/google/uuid"
)

// RefreshToken - запись о выданном refresh-токене.
//
// TokenID вшит в полезную нагрузку подписанного токена и служит ключом поиска;
// сам токен в хранилище не попадает, хранится только TokenHash.
type RefreshToken struct {
	ID        int64     `db:"id"`
	TokenID   uuid.UUID `db:"token_id"`
	UserID    uuid.UUID `db:"user_id"`
	TokenHash string    `db:"token_hash"`
	ExpiresAt time.Time `db:"expires_at"`
	CreatedAt time.Time `db:"created_at"`
}
