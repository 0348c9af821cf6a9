package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/escrow-market/internal/models"
	"github.com/ignatzorin/escrow-market/internal/repository/common"
)

type WalletRepository struct {
	db *sqlx.DB
}

func NewWalletRepository(db *sqlx.DB) *WalletRepository {
	return &WalletRepository{db: db}
}

// GetByUserID возвращает кошелёк пользователя. Кошелёк не создаётся при чтении.
func (r *WalletRepository) GetByUserID(ctx context.Context, userID uuid.UUID) (*models.Wallet, error) {
	return common.GetByField[models.Wallet](ctx, r.db, "wallets", "user_id", userID, ErrWalletNotFound)
}

// ListTransactions возвращает историю транзакций пользователя.
func (r *WalletRepository) ListTransactions(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Transaction, error) {
	var transactions []models.Transaction
	err := r.db.SelectContext(ctx, &transactions, `
		SELECT id, user_id, deal_id, payout_request_id, type, amount, description, created_at
		FROM transactions WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("wallet repository: list transactions %w", err)
	}
	return transactions, nil
}

// PurchaseBoost списывает цену буста и продлевает boosted_until в одной транзакции.
// Активный буст продлевается от текущей даты окончания, истёкший от now.
func (r *WalletRepository) PurchaseBoost(ctx context.Context, userID uuid.UUID, price float64, days int, now time.Time) (*models.BoostPurchase, error) {
	var result models.BoostPurchase

	err := common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		if err := debitWallet(ctx, tx, userID, price); err != nil {
			return err
		}

		var until time.Time
		err := tx.GetContext(ctx, &until, `
			UPDATE users
			SET boosted_until = GREATEST(COALESCE(boosted_until, $2), $2) + make_interval(days => $3),
			    updated_at = NOW()
			WHERE id = $1
			RETURNING boosted_until
		`, userID, now, days)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrUserNotFound
			}
			return fmt.Errorf("wallet repository: extend boost %w", err)
		}

		if err := appendTransactions(ctx, tx, ledgerEntry{
			UserID:      userID,
			Type:        models.TransactionTypeFee,
			Amount:      price,
			Description: fmt.Sprintf("Profile boost for %d days", days),
		}); err != nil {
			return err
		}

		var wallet models.Wallet
		if err := tx.GetContext(ctx, &wallet, `SELECT * FROM wallets WHERE user_id = $1`, userID); err != nil {
			return fmt.Errorf("wallet repository: reload wallet %w", err)
		}

		result = models.BoostPurchase{
			Charged:      price,
			Currency:     wallet.Currency,
			BoostedUntil: until,
			Days:         days,
			Balance:      wallet.Balance,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &result, nil
}
