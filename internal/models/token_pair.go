package models

import "time"

// TokenPair - пара токенов, выдаваемая при входе и ротации.
//
// Описание:
//   - AccessToken - короткоживущий JWT для доступа к API;
//   - RefreshToken - долгоживущий JWT с {userId, tokenId}; клиент получает его
//     через cookie, на сервере хранится только его хэш;
//   - AccessExpiresAt / RefreshExpiresAt - моменты истечения (UTC).
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}
