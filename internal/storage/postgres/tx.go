package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/pribylovaa/clinic-auth-service/internal/storage"
)

// withTx берёт из пула одно соединение, открывает на нём транзакцию и
// передаёт её в fn как storage.Executor. Коммит - при успехе, откат - при
// ошибке или панике (панику пробрасываем дальше). Соединение возвращается
// в пул на любом пути выхода.
//
// Ожидание свободного соединения ограничено acquireTimeout.
func (s *Storage) withTx(ctx context.Context, fn func(ctx context.Context, ex storage.Executor) error) (err error) {
	const op = "storage.postgres.withTx"

	acqCtx, cancel := ctx, context.CancelFunc(func() {})
	if s.acquireTimeout > 0 {
		acqCtx, cancel = context.WithTimeout(ctx, s.acquireTimeout)
	}
	conn, err := s.db.Acquire(acqCtx)
	cancel()
	if err != nil {
		return fmt.Errorf("%s: acquire: %w", op, err)
	}
	defer conn.Release()

	tx, err := conn.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("%s: begin: %w", op, err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(context.WithoutCancel(ctx))
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback(context.WithoutCancel(ctx))
			return
		}
		if cerr := tx.Commit(ctx); cerr != nil {
			err = fmt.Errorf("%s: commit: %w", op, cerr)
		}
	}()

	return fn(ctx, tx)
}
