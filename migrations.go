package registration

import (
	"context"
	"embed"
	"io/fs"

	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
	"github.com/uptrace/bun/migrate"
)

//go:embed data/sql/migrations
var migrationsFS embed.FS

// GetMigrationsFS returns the migration files for this package
func GetMigrationsFS() embed.FS {
	return migrationsFS
}

// MigrationsDir returns the embedded directory holding the migrations for
// the dialect of db.
func MigrationsDir(db *bun.DB) string {
	if db != nil && db.Dialect().Name() == dialect.PG {
		return "data/sql/migrations/postgres"
	}
	return "data/sql/migrations/sqlite"
}

// NewMigrations discovers the SQL migrations matching the dialect of db.
func NewMigrations(db *bun.DB) (*migrate.Migrations, error) {
	sub, err := fs.Sub(migrationsFS, MigrationsDir(db))
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "migrations directory not found")
	}

	migrations := migrate.NewMigrations()
	if err := migrations.Discover(sub); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to discover migrations")
	}
	return migrations, nil
}

// Migrate applies pending migrations and returns the applied group.
func Migrate(ctx context.Context, db *bun.DB) (*migrate.MigrationGroup, error) {
	migrations, err := NewMigrations(db)
	if err != nil {
		return nil, err
	}

	migrator := migrate.NewMigrator(db, migrations)
	if err := migrator.Init(ctx); err != nil {
		return nil, storeError(err, "failed to initialize migrations")
	}

	group, err := migrator.Migrate(ctx)
	if err != nil {
		return nil, storeError(err, "failed to apply migrations")
	}
	return group, nil
}
