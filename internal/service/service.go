// service содержит бизнес-логику auth-сервиса:
// регистрацию, проверку подлинности (пароль или refresh-сессия),
// выпуск пары токенов и атомарную ротацию refresh-токенов.
//
// Основные аспекты:
//   - Service не хранит состояние запроса; экземпляр безопасен для
//     конкурентного использования при потокобезопасном хранилище.
//   - Любая ошибка проверки подлинности сворачивается в ErrInvalidCredentials,
//     чтобы по ответу нельзя было перебирать аккаунты и токены.
//   - Ошибки хранилища пробрасываются как есть и маппятся транспортом в 500.
package service

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pribylovaa/clinic-auth-service/internal/cache"
	"github.com/pribylovaa/clinic-auth-service/internal/storage"
	"github.com/pribylovaa/clinic-auth-service/internal/tokens"
)

var (
	// ErrInvalidCredentials - любая неудача проверки подлинности: неизвестный email,
	// неверный пароль, поддельный/истёкший/неизвестный/уже использованный refresh-токен.
	// Транспорт: HTTP 401.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrEmailTaken - e-mail уже занят другим пользователем.
	// Транспорт: HTTP 409.
	ErrEmailTaken = errors.New("email already taken")

	// ErrInvalidInput - некорректные входные данные (см. ValidationError).
	// Транспорт: HTTP 400.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidToken - access-токен некорректен или истёк.
	// Транспорт: HTTP 401.
	ErrInvalidToken = tokens.ErrInvalidToken
)

// ValidationError - ошибка входных данных с описанием по полям.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}

	return "invalid input: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error { return ErrInvalidInput }

// SecretHasher - односторонний хэш секретов.
type SecretHasher interface {
	Hash(plain string) (string, error)
	Verify(plain, hash string) bool
}

// TokenCodec - выпуск и проверка подписанных токенов.
type TokenCodec interface {
	IssueAccessToken(userID uuid.UUID) (string, time.Time, error)
	IssueRefreshToken(userID, tokenID uuid.UUID) (string, time.Time, error)
	VerifyRefreshToken(token string) (*tokens.RefreshClaims, error)
	VerifyAccessToken(token string) (uuid.UUID, error)
}

// Service описывает бизнес-логику auth-сервиса.
type Service struct {
	storage storage.Storage
	codec   TokenCodec
	hasher  SecretHasher

	pcache     cache.ProfileCache // может быть nil, если кэш не сконфигурирован
	profileTTL time.Duration

	dummyOnce sync.Once
	dummyHash string
}

// New создаёт новый экземпляр Service.
func New(storage storage.Storage, codec TokenCodec, hasher SecretHasher) *Service {
	return &Service{
		storage: storage,
		codec:   codec,
		hasher:  hasher,
	}
}

// SetProfileCache устанавливает кэш профилей (опционально).
func (s *Service) SetProfileCache(c cache.ProfileCache, ttl time.Duration) {
	s.pcache = c
	s.profileTTL = ttl
}
