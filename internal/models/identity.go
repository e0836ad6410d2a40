package models

import "github.com/google/uuid"

// Identity - нормализованный результат проверки подлинности.
// Для проверки по паролю заполнен User, для проверки refresh-сессии - TokenID.
type Identity struct {
	UserID  uuid.UUID
	TokenID uuid.UUID
	User    *PublicUser
}
