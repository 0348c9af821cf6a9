package common

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/escrow-market/internal/logger"
)

type row struct {
	ID   string `db:"id"`
	Name string `db:"name"`
}

var errMissing = errors.New("missing")

func newMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	raw, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { raw.Close() })
	return sqlx.NewDb(raw, "sqlmock"), mock
}

func TestGetByID(t *testing.T) {
	db, mock := newMock(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM things WHERE id = $1")).WithArgs("a").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow("a", "first"))
	got, err := GetByID[row](context.Background(), db, "things", "a", errMissing)
	require.NoError(t, err)
	assert.Equal(t, "first", got.Name)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM things WHERE id = $1")).WithArgs("b").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}))
	_, err = GetByID[row](context.Background(), db, "things", "b", errMissing)
	assert.ErrorIs(t, err, errMissing)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBatchInserter_FlushesByBatchSize(t *testing.T) {
	db, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO things (id, name) VALUES ($1, $2), ($3, $4)")).
		WithArgs("a", "1", "b", "2").WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO things (id, name) VALUES ($1, $2)")).
		WithArgs("c", "3").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := WithTransaction(context.Background(), db, func(tx *sqlx.Tx) error {
		bi := NewBatchInserter(tx, "INSERT INTO things (id, name)", 2, 2)
		for _, r := range [][]any{{"a", "1"}, {"b", "2"}, {"c", "3"}} {
			if err := bi.Add(context.Background(), r...); err != nil {
				return err
			}
		}
		return bi.Flush(context.Background())
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBatchInserter_WrongFieldCount(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectRollback()

	err := WithTransaction(context.Background(), db, func(tx *sqlx.Tx) error {
		return NewBatchInserter(tx, "INSERT INTO things (id, name)", 2, 10).Add(context.Background(), "only-one")
	})
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTransaction_RollbackOnError(t *testing.T) {
	logger.Silence()
	db, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectRollback()

	err := WithTransaction(context.Background(), db, func(*sqlx.Tx) error { return errMissing })
	assert.ErrorIs(t, err, errMissing)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTransaction_RollbackOnPanic(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectRollback()

	assert.Panics(t, func() {
		_ = WithTransaction(context.Background(), db, func(*sqlx.Tx) error { panic("boom") })
	})
	assert.NoError(t, mock.ExpectationsWereMet())
}
