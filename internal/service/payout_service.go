package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/escrow-market/internal/config"
	"github.com/ignatzorin/escrow-market/internal/logger"
	"github.com/ignatzorin/escrow-market/internal/models"
	"github.com/ignatzorin/escrow-market/internal/pkg/apperror"
	"github.com/ignatzorin/escrow-market/internal/pkg/money"
	"github.com/ignatzorin/escrow-market/internal/queue"
	"github.com/ignatzorin/escrow-market/internal/repository"
)

type PayoutRepository interface {
	Create(ctx context.Context, userID uuid.UUID, amount, fee float64) (*models.PayoutRequest, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.PayoutRequest, error)
	MarkProcessed(ctx context.Context, id uuid.UUID) (*models.PayoutRequest, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.PayoutRequest, error)
}

// PayoutService заявки на вывод средств с кошелька.
type PayoutService struct {
	users    UserRepository
	wallets  WalletRepository
	payouts  PayoutRepository
	notifier Notifier
	billing  config.Billing
}

func NewPayoutService(users UserRepository, wallets WalletRepository, payouts PayoutRepository, notifier Notifier, billing config.Billing) *PayoutService {
	return &PayoutService{
		users:    users,
		wallets:  wallets,
		payouts:  payouts,
		notifier: notifier,
		billing:  billing,
	}
}

// CreatePayoutRequest списывает сумму с кошелька и создаёт заявку.
// Комиссия вывода записывается в журнал, но с баланса не списывается.
func (s *PayoutService) CreatePayoutRequest(ctx context.Context, userID uuid.UUID, amount float64) (*models.PayoutRequest, error) {
	if !validAmount(amount) {
		return nil, apperror.Validation("сумма должна быть положительной, не более двух знаков после запятой")
	}

	wallet, err := s.wallets.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrWalletNotFound) {
			return nil, apperror.ErrWalletNotFound
		}
		return nil, apperror.Internal(err, "не удалось загрузить кошелёк")
	}
	if wallet.Balance < amount {
		return nil, apperror.InvalidState("недостаточно средств")
	}

	fee := money.Fee(amount, s.billing.PayoutFeeRate)
	req, err := s.payouts.Create(ctx, userID, amount, fee)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrInsufficientFunds):
			return nil, apperror.InvalidState("недостаточно средств")
		case errors.Is(err, repository.ErrWalletNotFound):
			return nil, apperror.ErrWalletNotFound
		}
		return nil, apperror.Internal(err, "не удалось создать заявку на вывод")
	}

	logger.Log.WithFields(logrus.Fields{
		"payout_id": req.ID,
		"user_id":   userID,
		"amount":    amount,
		"fee":       fee,
	}).Info("создана заявка на вывод")
	return req, nil
}

// ProcessPayout отмечает заявку исполненной. Только для администраторов.
func (s *PayoutService) ProcessPayout(ctx context.Context, payoutID, adminID uuid.UUID) (*models.PayoutRequest, error) {
	if _, err := requireAdmin(ctx, s.users, adminID, "обрабатывать выплаты может только администратор"); err != nil {
		return nil, err
	}

	req, err := s.payouts.GetByID(ctx, payoutID)
	if err != nil {
		if errors.Is(err, repository.ErrPayoutNotFound) {
			return nil, apperror.ErrPayoutNotFound
		}
		return nil, apperror.Internal(err, "не удалось загрузить заявку")
	}
	if req.Status != models.PayoutStatusPending {
		return nil, apperror.InvalidState("заявка уже обработана")
	}

	processed, err := s.payouts.MarkProcessed(ctx, payoutID)
	if err != nil {
		if errors.Is(err, repository.ErrPayoutStateChanged) {
			return nil, apperror.InvalidState("заявка уже обработана")
		}
		return nil, apperror.Internal(err, "не удалось обработать заявку")
	}

	logger.Log.WithFields(logrus.Fields{
		"payout_id": payoutID,
		"admin_id":  adminID,
	}).Info("заявка на вывод обработана")

	pushBestEffort(ctx, s.notifier, queue.PushJob{
		UserID: processed.UserID,
		Title:  "Выплата отправлена",
		Body:   fmt.Sprintf("Заявка на вывод %.2f обработана", processed.Amount),
		Data:   map[string]any{"payout_id": processed.ID.String()},
	})
	return processed, nil
}

// ListMyPayouts заявки пользователя, новые первыми.
func (s *PayoutService) ListMyPayouts(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.PayoutRequest, error) {
	if offset < 0 {
		offset = 0
	}
	list, err := s.payouts.ListByUser(ctx, userID, pageLimit(limit), offset)
	if err != nil {
		return nil, apperror.Internal(err, "не удалось загрузить заявки")
	}
	return list, nil
}
