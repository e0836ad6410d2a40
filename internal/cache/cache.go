// cache - кэш публичных профилей пользователей в Redis.
//
// Профиль после регистрации не меняется, поэтому запись живёт до истечения TTL.
// Кэш необязателен: сервис работает и без него.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/pribylovaa/clinic-auth-service/internal/models"
)

// ProfileCache - минимальный контракт кэша профилей.
type ProfileCache interface {
	// Get возвращает профиль и признак его наличия в кэше.
	Get(ctx context.Context, id uuid.UUID) (*models.PublicUser, bool, error)
	// Set сохраняет профиль с TTL.
	Set(ctx context.Context, u *models.PublicUser, ttl time.Duration) error
	// Close закрывает клиент Redis.
	Close() error
}

type redisCache struct {
	rdb    *redis.Client
	prefix string
}

// NewRedisCache создаёт клиент Redis из URL (например, redis://:pass@host:6379/0).
// Если prefix пустой - используется "auth:user:".
func NewRedisCache(ctx context.Context, redisURL, prefix string) (ProfileCache, error) {
	const op = "cache.NewRedisCache"

	if prefix == "" {
		prefix = "auth:user:"
	}

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	rdb := redis.NewClient(opt)

	// Fail-fast на старте.
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &redisCache{rdb: rdb, prefix: prefix}, nil
}

func (c *redisCache) key(id uuid.UUID) string { return c.prefix + id.String() }

// Храним как Redis Hash с полями: email, role.
func (c *redisCache) Get(ctx context.Context, id uuid.UUID) (*models.PublicUser, bool, error) {
	m, err := c.rdb.HGetAll(ctx, c.key(id)).Result()
	if err != nil {
		return nil, false, err
	}

	if len(m) == 0 {
		return nil, false, nil
	}

	role := models.Role(m["role"])
	if m["email"] == "" || !role.Valid() {
		return nil, false, nil
	}

	return &models.PublicUser{
		ID:    id,
		Email: m["email"],
		Role:  role,
	}, true, nil
}

func (c *redisCache) Set(ctx context.Context, u *models.PublicUser, ttl time.Duration) error {
	kv := map[string]string{
		"email": u.Email,
		"role":  string(u.Role),
	}

	pipe := c.rdb.TxPipeline()
	pipe.HSet(ctx, c.key(u.ID), kv)
	pipe.Expire(ctx, c.key(u.ID), ttl)

	_, err := pipe.Exec(ctx)
	return err
}

func (c *redisCache) Close() error { return c.rdb.Close() }
