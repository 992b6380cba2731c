// Package db keeps the harness bookkeeping in SQLite through GORM: one row
// per phase run and one per batch transaction it submitted.
package db

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/apetrovskiy/neon-evm/harness/store"
)

const (
	// InMemorySQLiteDSN opens a database that lives as long as its connection.
	InMemorySQLiteDSN = ":memory:"

	fileDSNParams = "?_journal_mode=WAL&_busy_timeout=5000"
	dirPerm       = 0o750
)

// schemaModels are migrated when a database is opened with migration on.
var schemaModels = []any{
	&store.BenchRun{},
	&store.SubmittedTransaction{},
}

// DB owns the GORM handle.
type DB struct {
	client *gorm.DB
}

// OpenFileDB opens or creates <dir>/<filename> in WAL mode.
func OpenFileDB(dir, filename string, migrateSchema bool) (*DB, error) {
	path, err := prepareFilePath(dir, filename)
	if err != nil {
		return nil, errors.Wrap(err, "failed to prepare database path")
	}
	return openSQLite(path+fileDSNParams, migrateSchema)
}

// OpenInMemoryDB opens a throwaway database, used by tests.
func OpenInMemoryDB(migrateSchema bool) (*DB, error) {
	return openSQLite(InMemorySQLiteDSN, migrateSchema)
}

func openSQLite(dsn string, migrateSchema bool) (*DB, error) {
	client, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open SQLite database %s", dsn)
	}

	// one connection: in-memory data survives and writers never contend
	sqlDB, err := client.DB()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get underlying sql.DB")
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)

	if migrateSchema {
		if err := client.AutoMigrate(schemaModels...); err != nil {
			_ = sqlDB.Close()
			return nil, errors.Wrap(err, "failed to migrate run schema")
		}
	}
	return &DB{client: client}, nil
}

// Client exposes the GORM handle for ad hoc queries.
func (d *DB) Client() *gorm.DB {
	return d.client
}

// Close releases the connection.
func (d *DB) Close() error {
	sqlDB, err := d.client.DB()
	if err != nil {
		return errors.Wrap(err, "failed to get underlying sql.DB")
	}
	return errors.Wrap(sqlDB.Close(), "failed to close database")
}

func prepareFilePath(dir, filename string) (string, error) {
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return "", errors.Wrapf(err, "failed to create %s", dir)
	}
	return filepath.Join(dir, filename), nil
}
