package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/escrow-market/internal/config"
	"github.com/ignatzorin/escrow-market/internal/logger"
	"github.com/ignatzorin/escrow-market/internal/models"
	"github.com/ignatzorin/escrow-market/internal/pkg/apperror"
	"github.com/ignatzorin/escrow-market/internal/pkg/money"
	"github.com/ignatzorin/escrow-market/internal/repository"
)

// BoostService продажа продвижения профиля исполнителя за счёт кошелька.
type BoostService struct {
	users   UserRepository
	wallets WalletRepository
	billing config.Billing
	now     func() time.Time
}

func NewBoostService(users UserRepository, wallets WalletRepository, billing config.Billing) *BoostService {
	return &BoostService{users: users, wallets: wallets, billing: billing, now: time.Now}
}

// Offer текущая цена и длительность продвижения.
func (s *BoostService) Offer() models.BoostOffer {
	return models.BoostOffer{
		Price:    s.billing.BoostPrice,
		Days:     s.billing.BoostDays,
		Currency: money.DefaultCurrency,
	}
}

// PurchaseBoost списывает цену с кошелька и продлевает продвижение.
// Активное продвижение продлевается от текущей даты окончания.
func (s *BoostService) PurchaseBoost(ctx context.Context, userID uuid.UUID) (*models.BoostPurchase, error) {
	user, err := loadUser(ctx, s.users, userID)
	if err != nil {
		return nil, err
	}
	if user.Role != models.RoleFreelancer {
		return nil, apperror.Forbidden("продвижение доступно только исполнителям")
	}

	wallet, err := s.wallets.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrWalletNotFound) {
			return nil, apperror.ErrWalletNotFound
		}
		return nil, apperror.Internal(err, "не удалось загрузить кошелёк")
	}
	if wallet.Balance < s.billing.BoostPrice {
		return nil, apperror.InvalidState("недостаточно средств")
	}

	purchase, err := s.wallets.PurchaseBoost(ctx, userID, s.billing.BoostPrice, s.billing.BoostDays, s.now().UTC())
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrInsufficientFunds):
			return nil, apperror.InvalidState("недостаточно средств")
		case errors.Is(err, repository.ErrWalletNotFound):
			return nil, apperror.ErrWalletNotFound
		case errors.Is(err, repository.ErrUserNotFound):
			return nil, apperror.ErrUserNotFound
		}
		return nil, apperror.Internal(err, "не удалось оформить продвижение")
	}

	logger.Log.WithFields(logrus.Fields{
		"user_id":       userID,
		"charged":       purchase.Charged,
		"boosted_until": purchase.BoostedUntil,
	}).Info("продвижение профиля оплачено")
	return purchase, nil
}
