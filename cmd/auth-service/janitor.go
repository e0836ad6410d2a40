package main

import (
	"context"
	"log/slog"
	"time"
)

// expiredTokenDeleter - часть хранилища, нужная фоновой очистке.
type expiredTokenDeleter interface {
	DeleteExpiredTokens(ctx context.Context, now time.Time) (int64, error)
}

// startRefreshJanitor периодически удаляет просроченные refresh-токены.
// onDeleted получает число удалённых записей (может быть nil).
// Возвращённый канал закрывается после остановки по ctx.
func startRefreshJanitor(ctx context.Context, st expiredTokenDeleter, log *slog.Logger, period time.Duration, onDeleted func(int64)) <-chan struct{} {
	done := make(chan struct{})
	if period <= 0 {
		close(done)
		return done
	}

	go func() {
		defer close(done)

		t := time.NewTicker(period)
		defer t.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				n, err := st.DeleteExpiredTokens(ctx, time.Now().UTC())
				if err != nil {
					log.Error("refresh_janitor_failed", slog.String("err", err.Error()))
					continue
				}
				if onDeleted != nil {
					onDeleted(n)
				}
				if n > 0 {
					log.Info("refresh_janitor_deleted", slog.Int64("count", n))
				}
			}
		}
	}()

	return done
}
