// migrations содержит SQL-миграции схемы в формате goose, встроенные в бинарник.
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

//go:embed *.sql
var FS embed.FS

// Up применяет все миграции к базе по DSN.
func Up(ctx context.Context, dsn string) error {
	const op = "migrations.Up"

	db, err := goose.OpenDBWithDriver("pgx", dsn)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer db.Close()

	if err := UpDB(ctx, db); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// UpDB применяет все миграции через уже открытое соединение.
func UpDB(ctx context.Context, db *sql.DB) error {
	const op = "migrations.UpDB"

	provider, err := goose.NewProvider(goose.DialectPostgres, db, FS)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}
