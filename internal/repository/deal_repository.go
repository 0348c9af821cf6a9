package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/escrow-market/internal/models"
	"github.com/ignatzorin/escrow-market/internal/pkg/money"
	"github.com/ignatzorin/escrow-market/internal/repository/common"
)

var (
	ErrDealNotFound = errors.New("deal not found")
	// ErrDealStateChanged сделка уже не в том статусе, из которого выполнялся переход.
	ErrDealStateChanged = errors.New("deal state changed")
)

type DealRepository struct {
	db *sqlx.DB
}

func NewDealRepository(db *sqlx.DB) *DealRepository {
	return &DealRepository{db: db}
}

// Create сохраняет сделку в статусе created.
func (r *DealRepository) Create(ctx context.Context, d *models.Deal) error {
	query := `
		INSERT INTO deals (project_id, proposal_id, sender_id, receiver_id, amount, currency, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at
	`
	if err := r.db.QueryRowxContext(ctx, query,
		d.ProjectID, d.ProposalID, d.SenderID, d.ReceiverID, d.Amount, d.Currency, d.Status,
	).Scan(&d.ID, &d.CreatedAt, &d.UpdatedAt); err != nil {
		return fmt.Errorf("deal repository: create %w", err)
	}
	return nil
}

// Delete удаляет сделку, по которой не удалось создать платёж.
// Удаляются только сделки в статусе created.
func (r *DealRepository) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM deals WHERE id = $1 AND status = $2`, id, models.DealStatusCreated)
	if err != nil {
		return fmt.Errorf("deal repository: delete %w", err)
	}
	return nil
}

func (r *DealRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Deal, error) {
	return common.GetByID[models.Deal](ctx, r.db, "deals", id, ErrDealNotFound)
}

// SetEscrowPaymentID сохраняет идентификатор платежа во внешнем шлюзе.
func (r *DealRepository) SetEscrowPaymentID(ctx context.Context, id uuid.UUID, paymentID string) (*models.Deal, error) {
	var deal models.Deal
	err := r.db.GetContext(ctx, &deal, `
		UPDATE deals SET escrow_payment_id = $2, updated_at = NOW() WHERE id = $1 RETURNING *
	`, id, paymentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDealNotFound
		}
		return nil, fmt.Errorf("deal repository: set escrow payment %w", err)
	}
	return &deal, nil
}

// MarkFunded фиксирует поступление оплаты. Сделка created переходит в escrowed,
// сделка в споре остаётся в dispute, но получает отметку escrowed_at.
// Возвращает false, если оплата уже учтена, сделка закрыта или не существует.
func (r *DealRepository) MarkFunded(ctx context.Context, id uuid.UUID) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE deals
		SET status = CASE WHEN status = $2 THEN $3 ELSE status END,
			escrowed_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND escrowed_at IS NULL AND status IN ($2, $4)
	`, id, models.DealStatusCreated, models.DealStatusEscrowed, models.DealStatusDispute)
	if err != nil {
		return false, fmt.Errorf("deal repository: mark funded %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("deal repository: mark funded rows %w", err)
	}
	return rows > 0, nil
}

// Release подтверждает сделку: статус released, зачисление исполнителю и три
// строки журнала. Всё или ничего.
func (r *DealRepository) Release(ctx context.Context, id uuid.UUID, split money.Split) (*models.Deal, error) {
	var deal models.Deal

	err := common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		err := tx.GetContext(ctx, &deal, `
			UPDATE deals SET status = $2, updated_at = NOW()
			WHERE id = $1 AND status = $3
			RETURNING *
		`, id, models.DealStatusReleased, models.DealStatusEscrowed)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrDealStateChanged
			}
			return fmt.Errorf("deal repository: release status %w", err)
		}

		if err := ensureWallet(ctx, tx, deal.ReceiverID); err != nil {
			return err
		}
		if err := creditWallet(ctx, tx, deal.ReceiverID, split.NetForUser); err != nil {
			return err
		}
		return appendTransactions(ctx, tx, releaseEntries(deal.ReceiverID, deal.ID, deal.Amount, split)...)
	})
	if err != nil {
		return nil, err
	}

	return &deal, nil
}

// ListByUser возвращает сделки, где пользователь клиент или исполнитель.
func (r *DealRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Deal, error) {
	var deals []models.Deal
	err := r.db.SelectContext(ctx, &deals, `
		SELECT * FROM deals
		WHERE sender_id = $1 OR receiver_id = $1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("deal repository: list by user %w", err)
	}
	return deals, nil
}

// ListReleasedWithSkills возвращает завершённые сделки вместе с навыками проекта.
func (r *DealRepository) ListReleasedWithSkills(ctx context.Context) ([]models.ReleasedDealRecord, error) {
	var records []models.ReleasedDealRecord
	err := r.db.SelectContext(ctx, &records, `
		SELECT d.receiver_id, d.amount, COALESCE(p.skills, '{}') AS project_skills
		FROM deals d
		LEFT JOIN projects p ON p.id = d.project_id
		WHERE d.status = $1
	`, models.DealStatusReleased)
	if err != nil {
		return nil, fmt.Errorf("deal repository: list released %w", err)
	}
	return records, nil
}
