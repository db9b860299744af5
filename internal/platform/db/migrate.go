package db

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
)

// Migrate applies every pending migration found in migrations.
// The *sql.DB bridge is closed afterwards; the pool stays open.
func Migrate(pool *pgxpool.Pool, migrations fs.FS) error {
	if pool == nil {
		return errors.New("platform/db: migrate: pool is required")
	}

	source, err := iofs.New(migrations, ".")
	if err != nil {
		return fmt.Errorf("platform/db: migration source: %w", err)
	}

	sqlDB := stdlib.OpenDBFromPool(pool)
	defer func() {
		_ = sqlDB.Close()
	}()

	driver, err := postgres.WithInstance(sqlDB, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("platform/db: migration driver: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("platform/db: migrator: %w", err)
	}

	if err := migrator.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("platform/db: apply migrations: %w", err)
	}
	return nil
}
