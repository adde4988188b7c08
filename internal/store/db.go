// Package store bootstraps the local record store: it opens the SQLite
// database, applies the embedded migrations and wires the entity
// repositories to the device cipher.
package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/fieldtrack/assetsync/internal/cryptox"
	"github.com/fieldtrack/assetsync/internal/dbx"
	"github.com/fieldtrack/assetsync/internal/logging"
	"github.com/fieldtrack/assetsync/internal/store/assets"
	"github.com/fieldtrack/assetsync/internal/store/conflicts"
	"github.com/fieldtrack/assetsync/internal/store/migrations"
	"github.com/fieldtrack/assetsync/internal/store/operations"
	"github.com/pressly/goose/v3"

	_ "modernc.org/sqlite"
)

// Repositories bundles the wired record store.
type Repositories struct {
	Assets     assets.Repository
	Operations operations.Repository
	Conflicts  conflicts.Repository
	DB         *sql.DB

	cipher *cryptox.Cipher
	log    logging.Logger
}

// NewRepositories wires the entity repositories over an already opened and
// migrated database.
func NewRepositories(db *sql.DB, cipher *cryptox.Cipher, log logging.Logger) *Repositories {
	return &Repositories{
		Assets:     assets.NewSQLiteRepository(db, cipher, log),
		Operations: operations.NewSQLiteRepository(db, cipher, log),
		Conflicts:  conflicts.NewSQLiteRepository(db, cipher, log),
		DB:         db,
		cipher:     cipher,
		log:        log,
	}
}

// WithTx runs fn against a transaction-scoped view of the repositories,
// committing on success and rolling back on error or panic. The view has no
// DB handle; nesting WithTx is not supported.
func (r *Repositories) WithTx(ctx context.Context, fn func(tx *Repositories) error) error {
	return dbx.WithTx(ctx, r.DB, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return fn(&Repositories{
			Assets:     assets.NewSQLiteRepository(tx, r.cipher, r.log),
			Operations: operations.NewSQLiteRepository(tx, r.cipher, r.log),
			Conflicts:  conflicts.NewSQLiteRepository(tx, r.cipher, r.log),
			cipher:     r.cipher,
			log:        r.log,
		})
	})
}

// RunMigrations applies the embedded goose migrations to db.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	return goose.UpContext(ctx, db, ".")
}

// Open opens the SQLite database at dsn, migrates it and returns the wired
// repositories. The caller owns the returned DB handle.
func Open(ctx context.Context, dsn string, cipher *cryptox.Cipher, log logging.Logger) (*Repositories, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return NewRepositories(db, cipher, log), nil
}
