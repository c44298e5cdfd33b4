package orm

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/dtroode/kurisync/internal/model"
)

func newMockDB(t *testing.T) (*DB, sqlmock.Sqlmock) {
	t.Helper()

	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	gdb, err := gorm.Open(postgres.New(postgres.Config{Conn: conn}), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	return NewWithDB(gdb), mock
}

func TestUserRepository_GetByAddress_NotFound(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery(`SELECT \* FROM "users"`).
		WillReturnRows(sqlmock.NewRows([]string{"wallet_address"}))

	_, err := NewUserRepository(db).GetByAddress(context.Background(), "0xabc")

	assert.ErrorIs(t, err, model.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerRepository_List_Transient(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery(`SELECT \* FROM "ledgers"`).
		WillReturnError(&pgconn.PgError{Code: "40001"})

	_, err := NewLedgerRepository(db).List(context.Background())

	assert.ErrorIs(t, err, model.ErrStoreTransient)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStatusRepository_Upsert_RollsBack(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM "user_ledger_statuses"`).
		WillReturnError(context.DeadlineExceeded)
	mock.ExpectRollback()

	_, err := NewStatusRepository(db).Upsert(context.Background(), model.StatusPatch{UserAddress: "0xu", ContractAddress: "0xl"})

	assert.ErrorIs(t, err, model.ErrStoreTransient)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWrapError(t *testing.T) {
	tests := []struct {
		name          string
		err           error
		wantNotFound  bool
		wantTransient bool
	}{
		{name: "record not found", err: gorm.ErrRecordNotFound, wantNotFound: true},
		{name: "sqlite busy", err: sqlite3.Error{Code: sqlite3.ErrBusy}, wantTransient: true},
		{name: "sqlite locked", err: sqlite3.Error{Code: sqlite3.ErrLocked}, wantTransient: true},
		{name: "sqlite constraint", err: sqlite3.Error{Code: sqlite3.ErrConstraint}},
		{name: "deadlock", err: &pgconn.PgError{Code: "40P01"}, wantTransient: true},
		{name: "other", err: errors.New("boom")},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			err := wrapError("x", tt.err)
			assert.Equal(t, tt.wantNotFound, errors.Is(err, model.ErrNotFound))
			assert.Equal(t, tt.wantTransient, errors.Is(err, model.ErrStoreTransient))
		})
	}
}
