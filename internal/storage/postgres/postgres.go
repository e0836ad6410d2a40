package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pribylovaa/clinic-auth-service/internal/config"
	"github.com/pribylovaa/clinic-auth-service/internal/storage"
)

// Storage - клиент PostgreSQL поверх ограниченного пула соединений.
// Создаётся явно в main и передаётся зависимым компонентам.
type Storage struct {
	db             *pgxpool.Pool
	acquireTimeout time.Duration
}

// New создает пул соединений к PostgreSQL и проверяет доступность базы.
func New(ctx context.Context, cfg config.DBConfig) (*Storage, error) {
	const op = "storage.postgres.New"

	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MaxConnIdleTime > 0 {
		poolCfg.MaxConnIdleTime = cfg.MaxConnIdleTime
	}
	if cfg.ConnectTimeout > 0 {
		poolCfg.ConnConfig.ConnectTimeout = cfg.ConnectTimeout
	}

	db, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := db.Ping(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Storage{db: db, acquireTimeout: cfg.AcquireTimeout}, nil
}

// Ping проверяет доступность базы (readiness).
func (s *Storage) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close закрывает пул соединений.
func (s *Storage) Close() {
	s.db.Close()
}

// Проверка на соответствие интерфейсу Storage.
var _ storage.Storage = (*Storage)(nil)

// Пул и транзакция взаимозаменяемы как Executor.
var _ storage.Executor = (*pgxpool.Pool)(nil)
