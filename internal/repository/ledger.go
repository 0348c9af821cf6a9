package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/escrow-market/internal/models"
	"github.com/ignatzorin/escrow-market/internal/pkg/money"
	"github.com/ignatzorin/escrow-market/internal/repository/common"
)

var (
	ErrWalletNotFound    = errors.New("wallet not found")
	ErrInsufficientFunds = errors.New("insufficient funds")
)

// ledgerEntry строка журнала транзакций, пишется только вместе с изменением кошелька.
type ledgerEntry struct {
	UserID          uuid.UUID
	DealID          *uuid.UUID
	PayoutRequestID *uuid.UUID
	Type            string
	Amount          float64
	Description     string
}

// ensureWallet создаёт пустой кошелёк, если его ещё нет.
func ensureWallet(ctx context.Context, tx *sqlx.Tx, userID uuid.UUID) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO wallets (user_id, balance, pending, currency)
		VALUES ($1, 0, 0, $2)
		ON CONFLICT (user_id) DO NOTHING
	`, userID, money.DefaultCurrency)
	if err != nil {
		return fmt.Errorf("ledger: ensure wallet %w", err)
	}
	return nil
}

// creditWallet увеличивает баланс относительно текущего значения.
func creditWallet(ctx context.Context, tx *sqlx.Tx, userID uuid.UUID, amount float64) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE wallets SET balance = balance + $2, updated_at = NOW()
		WHERE user_id = $1
	`, userID, amount)
	if err != nil {
		return fmt.Errorf("ledger: credit wallet %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("ledger: credit wallet rows %w", err)
	}
	if rows == 0 {
		return ErrWalletNotFound
	}
	return nil
}

// debitWallet списывает сумму одним условным UPDATE, баланс не уходит в минус.
func debitWallet(ctx context.Context, tx *sqlx.Tx, userID uuid.UUID, amount float64) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE wallets SET balance = balance - $2, updated_at = NOW()
		WHERE user_id = $1 AND balance >= $2
	`, userID, amount)
	if err != nil {
		return fmt.Errorf("ledger: debit wallet %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("ledger: debit wallet rows %w", err)
	}
	if rows > 0 {
		return nil
	}

	var exists bool
	if err := tx.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM wallets WHERE user_id = $1)`, userID); err != nil {
		return fmt.Errorf("ledger: debit wallet lookup %w", err)
	}
	if !exists {
		return ErrWalletNotFound
	}
	return ErrInsufficientFunds
}

// appendTransactions дописывает строки журнала одной вставкой.
func appendTransactions(ctx context.Context, tx *sqlx.Tx, entries ...ledgerEntry) error {
	if len(entries) == 0 {
		return nil
	}

	inserter := common.NewBatchInserter(tx,
		"INSERT INTO transactions (user_id, deal_id, payout_request_id, type, amount, description)",
		6, len(entries))
	for _, e := range entries {
		if err := inserter.Add(ctx, e.UserID, e.DealID, e.PayoutRequestID, e.Type, e.Amount, e.Description); err != nil {
			return fmt.Errorf("ledger: append transaction %w", err)
		}
	}
	if err := inserter.Flush(ctx); err != nil {
		return fmt.Errorf("ledger: append transaction %w", err)
	}
	return nil
}

// releaseEntries строки журнала для выплаты исполнителю по сделке.
func releaseEntries(receiverID, dealID uuid.UUID, base float64, split money.Split) []ledgerEntry {
	id := dealID
	return []ledgerEntry{
		{UserID: receiverID, DealID: &id, Type: models.TransactionTypeEscrowRelease, Amount: base, Description: fmt.Sprintf("Release funds for deal %s", dealID)},
		{UserID: receiverID, DealID: &id, Type: models.TransactionTypeCredit, Amount: split.NetForUser, Description: fmt.Sprintf("Net payout for deal %s", dealID)},
		{UserID: receiverID, DealID: &id, Type: models.TransactionTypeFee, Amount: split.Fee, Description: fmt.Sprintf("Platform commission for deal %s", dealID)},
	}
}
