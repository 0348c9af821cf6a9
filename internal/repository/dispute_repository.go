package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/ignatzorin/escrow-market/internal/models"
	"github.com/ignatzorin/escrow-market/internal/pkg/money"
	"github.com/ignatzorin/escrow-market/internal/repository/common"
)

var (
	ErrDisputeNotFound = errors.New("dispute not found")
	// ErrDisputeAlreadyOpen по сделке уже есть открытый спор.
	ErrDisputeAlreadyOpen = errors.New("dispute already open")
	// ErrDisputeStateChanged спор уже решён параллельным запросом.
	ErrDisputeStateChanged = errors.New("dispute state changed")
	// ErrDealNotFunded решение с зачислением исполнителю по неоплаченной сделке.
	ErrDealNotFunded = errors.New("deal not funded")
)

// DisputeSettlement описывает, как закрыть спор.
type DisputeSettlement struct {
	Resolution   string
	Amount       *float64
	DealStatus   string
	ResolvedByID uuid.UUID
	ResolvedAt   time.Time
	// ReleaseAmount сумма строки escrow_release.
	ReleaseAmount float64
	// Credit зачисление исполнителю, nil при возврате клиенту.
	// Применяется только к оплаченной сделке.
	Credit *money.Split
}

type DisputeRepository struct {
	db *sqlx.DB
}

func NewDisputeRepository(db *sqlx.DB) *DisputeRepository {
	return &DisputeRepository{db: db}
}

// Open создаёт спор и переводит сделку в статус dispute.
func (r *DisputeRepository) Open(ctx context.Context, d *models.Dispute) error {
	return common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE deals SET status = $2, updated_at = NOW()
			WHERE id = $1 AND status = ANY($3)
		`, d.DealID, models.DealStatusDispute, pq.Array([]string{models.DealStatusCreated, models.DealStatusEscrowed}))
		if err != nil {
			return fmt.Errorf("dispute repository: freeze deal %w", err)
		}
		rows, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("dispute repository: freeze deal rows %w", err)
		}
		if rows == 0 {
			return ErrDealStateChanged
		}

		err = tx.QueryRowxContext(ctx, `
			INSERT INTO disputes (deal_id, user_id, title, description, status)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id, created_at
		`, d.DealID, d.UserID, d.Title, d.Description, models.DisputeStatusOpen).Scan(&d.ID, &d.CreatedAt)
		if err != nil {
			if isUniqueViolation(err) {
				return ErrDisputeAlreadyOpen
			}
			return fmt.Errorf("dispute repository: create %w", err)
		}
		d.Status = models.DisputeStatusOpen
		return nil
	})
}

func (r *DisputeRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Dispute, error) {
	return common.GetByID[models.Dispute](ctx, r.db, "disputes", id, ErrDisputeNotFound)
}

func (r *DisputeRepository) ListByDeal(ctx context.Context, dealID uuid.UUID) ([]models.Dispute, error) {
	var disputes []models.Dispute
	err := r.db.SelectContext(ctx, &disputes, `
		SELECT * FROM disputes WHERE deal_id = $1 ORDER BY created_at DESC
	`, dealID)
	if err != nil {
		return nil, fmt.Errorf("dispute repository: list by deal %w", err)
	}
	return disputes, nil
}

// Resolve закрывает спор, переводит сделку в итоговый статус и пишет журнал.
// Зачисление исполнителю возможно только по оплаченной сделке (ErrDealNotFunded).
func (r *DisputeRepository) Resolve(ctx context.Context, id uuid.UUID, s DisputeSettlement) (*models.Dispute, *models.Deal, error) {
	var (
		dispute models.Dispute
		deal    models.Deal
	)

	err := common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		err := tx.GetContext(ctx, &dispute, `
			UPDATE disputes
			SET status = $2, resolution = $3, amount = $4, resolved_by_id = $5, resolved_at = $6
			WHERE id = $1 AND status = $7
			RETURNING *
		`, id, models.DisputeStatusResolved, s.Resolution, s.Amount, s.ResolvedByID, s.ResolvedAt, models.DisputeStatusOpen)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrDisputeStateChanged
			}
			return fmt.Errorf("dispute repository: resolve %w", err)
		}

		// Строка сделки блокируется, чтобы оплата не пришла между проверкой и зачислением.
		err = tx.GetContext(ctx, &deal, `SELECT * FROM deals WHERE id = $1 FOR UPDATE`, dispute.DealID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrDealStateChanged
			}
			return fmt.Errorf("dispute repository: lock deal %w", err)
		}
		if deal.Status != models.DealStatusDispute {
			return ErrDealStateChanged
		}
		if s.Credit != nil && !deal.IsFunded() {
			return ErrDealNotFunded
		}

		err = tx.GetContext(ctx, &deal, `
			UPDATE deals SET status = $2, updated_at = NOW()
			WHERE id = $1 AND status = $3
			RETURNING *
		`, dispute.DealID, s.DealStatus, models.DealStatusDispute)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrDealStateChanged
			}
			return fmt.Errorf("dispute repository: settle deal %w", err)
		}

		if s.Credit == nil {
			// Неоплаченная сделка закрывается без проводок: возвращать нечего.
			if !deal.IsFunded() {
				return nil
			}
			dealID := deal.ID
			return appendTransactions(ctx, tx, ledgerEntry{
				UserID:      deal.SenderID,
				DealID:      &dealID,
				Type:        models.TransactionTypeEscrowRelease,
				Amount:      s.ReleaseAmount,
				Description: fmt.Sprintf("Dispute %s resolved: %s", id, s.Resolution),
			})
		}

		if err := ensureWallet(ctx, tx, deal.ReceiverID); err != nil {
			return err
		}
		if err := creditWallet(ctx, tx, deal.ReceiverID, s.Credit.NetForUser); err != nil {
			return err
		}
		entries := releaseEntries(deal.ReceiverID, deal.ID, s.ReleaseAmount, *s.Credit)
		entries[0].Description = fmt.Sprintf("Dispute %s resolved: %s", id, s.Resolution)
		return appendTransactions(ctx, tx, entries...)
	})
	if err != nil {
		return nil, nil, err
	}

	return &dispute, &deal, nil
}
