// Package orm is a gorm-backed store for local runs against SQLite.
package orm

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/dtroode/kurisync/internal/model"
)

type DB struct {
	*gorm.DB
	now func() time.Time
}

// OpenSQLite opens the database file at dsn and migrates the schema.
func OpenSQLite(dsn string) (*DB, error) {
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	db := NewWithDB(gdb)
	if err := db.Migrate(); err != nil {
		return nil, err
	}

	return db, nil
}

// NewWithDB wraps an already opened gorm handle without migrating it.
func NewWithDB(gdb *gorm.DB) *DB {
	return &DB{
		DB:  gdb,
		now: func() time.Time { return time.Now().UTC() },
	}
}

func (d *DB) Migrate() error {
	if err := d.AutoMigrate(&userRow{}, &ledgerRow{}, &statusRow{}); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

func (d *DB) Ping(ctx context.Context) error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (d *DB) Close() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func isTransient(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, driver.ErrBadConn) {
		return true
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.Code == sqlite3.ErrBusy || liteErr.Code == sqlite3.ErrLocked
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "40001" || pgErr.Code == "40P01"
	}
	return false
}

func wrapError(action string, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.ErrNotFound
	}
	if isTransient(err) {
		return fmt.Errorf("%w: failed to %s: %w", model.ErrStoreTransient, action, err)
	}
	return fmt.Errorf("failed to %s: %w", action, err)
}

func orEmpty[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return slices.Clone(s)
}
