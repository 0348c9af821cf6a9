package common

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/escrow-market/internal/logger"
)

// GetByID читает строку таблицы по первичному ключу.
// q может быть как *sqlx.DB, так и *sqlx.Tx.
func GetByID[T any](ctx context.Context, q sqlx.QueryerContext, table string, id any, notFoundErr error) (*T, error) {
	return GetByField[T](ctx, q, table, "id", id, notFoundErr)
}

// GetByField читает одну строку по значению колонки. sql.ErrNoRows заменяется на notFoundErr.
func GetByField[T any](ctx context.Context, q sqlx.QueryerContext, table, field string, value any, notFoundErr error) (*T, error) {
	var entity T
	query := "SELECT * FROM " + table + " WHERE " + field + " = $1"

	if err := sqlx.GetContext(ctx, q, &entity, query, value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFoundErr
		}
		return nil, fmt.Errorf("get %s by %s: %w", table, field, err)
	}
	return &entity, nil
}

// BatchInserter копит строки и вставляет их одним INSERT на batchSize строк.
type BatchInserter struct {
	tx          *sqlx.Tx
	query       string
	batchSize   int
	fieldsCount int
	values      []any
	rows        int
}

// NewBatchInserter создаёт вставщик. baseQuery без VALUES:
// "INSERT INTO transactions (user_id, amount)".
func NewBatchInserter(tx *sqlx.Tx, baseQuery string, fieldsCount, batchSize int) *BatchInserter {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &BatchInserter{
		tx:          tx,
		query:       baseQuery,
		batchSize:   batchSize,
		fieldsCount: fieldsCount,
		values:      make([]any, 0, batchSize*fieldsCount),
	}
}

// Add добавляет строку и сбрасывает батч, когда он заполнен.
func (bi *BatchInserter) Add(ctx context.Context, row ...any) error {
	if len(row) != bi.fieldsCount {
		return fmt.Errorf("batch insert: ожидалось %d полей, получено %d", bi.fieldsCount, len(row))
	}

	bi.values = append(bi.values, row...)
	bi.rows++
	if bi.rows >= bi.batchSize {
		return bi.Flush(ctx)
	}
	return nil
}

// Flush вставляет накопленные строки.
func (bi *BatchInserter) Flush(ctx context.Context) error {
	if bi.rows == 0 {
		return nil
	}

	if _, err := bi.tx.ExecContext(ctx, bi.statement(), bi.values...); err != nil {
		return fmt.Errorf("batch insert: %w", err)
	}

	bi.values = bi.values[:0]
	bi.rows = 0
	return nil
}

// statement собирает "base VALUES ($1, $2), ($3, $4)".
func (bi *BatchInserter) statement() string {
	var b strings.Builder
	b.WriteString(bi.query)
	b.WriteString(" VALUES ")
	n := 1
	for i := 0; i < bi.rows; i++ {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('(')
		for j := 0; j < bi.fieldsCount; j++ {
			if j > 0 {
				b.WriteString(", ")
			}
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			n++
		}
		b.WriteByte(')')
	}
	return b.String()
}

// WithTransaction выполняет fn в транзакции. Ошибка или panic в fn откатывают её.
func WithTransaction(ctx context.Context, db *sqlx.DB, fn func(*sqlx.Tx) error) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			logger.Log.WithError(rbErr).Error("не удалось откатить транзакцию")
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
