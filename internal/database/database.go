// Package database provides helpers for connecting to PostgreSQL and running
// migrations. Two responsibilities live here:
//  1. Opening a database connection using GORM
//  2. Applying versioned SQL migration files to keep the schema up to date
package database

import (
	// The migrate package reads and applies versioned SQL migration files.
	"github.com/golang-migrate/migrate/v4"
	// Blank imports register drivers with the migrate library as a side effect.
	// This registers the postgres database driver:
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	// This registers the "file://" source driver so migrate can read .sql files:
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Connect opens a connection to the PostgreSQL database using the given DSN
// and returns the GORM handle used for all queries.
//
// TranslateError maps driver-specific errors onto GORM's portable ones, so a
// unique-index violation surfaces as gorm.ErrDuplicatedKey and handlers can
// turn it into a 409 without sniffing pq error codes.
func Connect(dsn string) (*gorm.DB, error) {
	return gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
}

// RunMigrations applies any pending "up" migrations from the migrations/
// directory. The migrate library tracks applied versions in the
// schema_migrations table, so reruns are no-ops.
func RunMigrations(dsn string) error {
	m, err := migrate.New("file://migrations", dsn)
	if err != nil {
		return err
	}

	// migrate.ErrNoChange means everything is already applied — not an error.
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return err
	}

	return nil
}
