package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"
)

// Connect opens a connection pool to the PostgreSQL database that stores
// recordings and metric series. maxConns caps open connections (25 when not
// positive) and a fifth of them are kept idle.
func Connect(ctx context.Context, databaseURL string, maxConns int) (*sql.DB, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("postgres open: %w", err)
	}
	if maxConns <= 0 {
		maxConns = 25
	}
	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns(max(maxConns/5, 1))

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	return db, nil
}

// upMigrations lists the *.up.sql files of dir in the order they apply.
func upMigrations(dir string) ([]string, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.up.sql"))
	if err != nil {
		return nil, fmt.Errorf("list migrations: %w", err)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no migrations in %s", dir)
	}
	sort.Strings(paths)
	return paths, nil
}

// Migrate applies every *.up.sql file in dir, in file name order, each in its
// own transaction. Migrations are rerun on every start and must be written
// with IF NOT EXISTS guards.
func Migrate(ctx context.Context, db *sql.DB, dir string) error {
	paths, err := upMigrations(dir)
	if err != nil {
		return err
	}
	for _, path := range paths {
		stmt, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read migration: %w", err)
		}
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin migration: %w", err)
		}
		if _, err := tx.ExecContext(ctx, string(stmt)); err != nil {
			tx.Rollback()
			return fmt.Errorf("apply %s: %w", filepath.Base(path), err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit %s: %w", filepath.Base(path), err)
		}
		log.Debug().Str("migration", filepath.Base(path)).Msg("Migration applied")
	}
	return nil
}
