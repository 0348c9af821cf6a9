package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/escrow-market/internal/models"
	"github.com/ignatzorin/escrow-market/internal/repository/common"
)

var (
	ErrPayoutNotFound = errors.New("payout request not found")
	// ErrPayoutStateChanged заявка уже не в статусе pending.
	ErrPayoutStateChanged = errors.New("payout request state changed")
)

type PayoutRepository struct {
	db *sqlx.DB
}

func NewPayoutRepository(db *sqlx.DB) *PayoutRepository {
	return &PayoutRepository{db: db}
}

// Create создаёт заявку на выплату, списывает сумму с кошелька и пишет
// строки withdrawal и fee. Баланс перепроверяется внутри транзакции.
func (r *PayoutRepository) Create(ctx context.Context, userID uuid.UUID, amount, fee float64) (*models.PayoutRequest, error) {
	var payout models.PayoutRequest

	err := common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		if err := debitWallet(ctx, tx, userID, amount); err != nil {
			return err
		}

		err := tx.GetContext(ctx, &payout, `
			INSERT INTO payout_requests (user_id, amount, fee, status)
			VALUES ($1, $2, $3, $4)
			RETURNING *
		`, userID, amount, fee, models.PayoutStatusPending)
		if err != nil {
			return fmt.Errorf("payout repository: create %w", err)
		}

		payoutID := payout.ID
		return appendTransactions(ctx, tx,
			ledgerEntry{
				UserID:          userID,
				PayoutRequestID: &payoutID,
				Type:            models.TransactionTypeWithdrawal,
				Amount:          amount,
				Description:     fmt.Sprintf("Payout request #%s", payoutID),
			},
			ledgerEntry{
				UserID:          userID,
				PayoutRequestID: &payoutID,
				Type:            models.TransactionTypeFee,
				Amount:          fee,
				Description:     fmt.Sprintf("Payout fee for request #%s", payoutID),
			},
		)
	})
	if err != nil {
		return nil, err
	}

	return &payout, nil
}

func (r *PayoutRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.PayoutRequest, error) {
	return common.GetByID[models.PayoutRequest](ctx, r.db, "payout_requests", id, ErrPayoutNotFound)
}

// MarkProcessed переводит заявку pending -> processed.
func (r *PayoutRepository) MarkProcessed(ctx context.Context, id uuid.UUID) (*models.PayoutRequest, error) {
	var payout models.PayoutRequest
	err := r.db.GetContext(ctx, &payout, `
		UPDATE payout_requests SET status = $2, processed_at = NOW()
		WHERE id = $1 AND status = $3
		RETURNING *
	`, id, models.PayoutStatusProcessed, models.PayoutStatusPending)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPayoutStateChanged
		}
		return nil, fmt.Errorf("payout repository: mark processed %w", err)
	}
	return &payout, nil
}

func (r *PayoutRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.PayoutRequest, error) {
	var payouts []models.PayoutRequest
	err := r.db.SelectContext(ctx, &payouts, `
		SELECT * FROM payout_requests WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("payout repository: list by user %w", err)
	}
	return payouts, nil
}
