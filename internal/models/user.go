package models

import (
	"time"

	"github.com/google/uuid"
)

// Role - метка роли пользователя. Сервис только переносит её, не применяя политик доступа.
type Role string

const (
	RoleUser      Role = "user"
	RoleDoctor    Role = "doctor"
	RoleSecretary Role = "secretary"
)

// Valid сообщает, входит ли роль в известный набор.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleDoctor, RoleSecretary:
		return true
	default:
		return false
	}
}

// User - модель пользователя в системе.
// PasswordHash заполняется только на пути логина (UserCredentialsByEmail).
type User struct {
	ID           uuid.UUID `db:"id"`
	Name         string    `db:"name"`
	Surname      string    `db:"surname"`
	Email        string    `db:"email"`
	PasswordHash string    `db:"password_hash"`
	Role         Role      `db:"role"`
	CreatedAt    time.Time `db:"created_at"`
}

// Public возвращает несекретную проекцию пользователя.
func (u *User) Public() *PublicUser {
	return &PublicUser{
		ID:    u.ID,
		Email: u.Email,
		Role:  u.Role,
	}
}

// PublicUser - несекретная проекция пользователя {id, email, role}.
type PublicUser struct {
	ID    uuid.UUID `db:"id" json:"id"`
	Email string    `db:"email" json:"email"`
	Role  Role      `db:"role" json:"role"`
}

// NewUser - данные для создания пользователя.
type NewUser struct {
	Name         string
	Surname      string
	Email        string
	PasswordHash string
}
