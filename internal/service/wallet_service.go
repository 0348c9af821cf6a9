package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/escrow-market/internal/models"
	"github.com/ignatzorin/escrow-market/internal/pkg/apperror"
	"github.com/ignatzorin/escrow-market/internal/pkg/money"
	"github.com/ignatzorin/escrow-market/internal/repository"
)

type WalletRepository interface {
	GetByUserID(ctx context.Context, userID uuid.UUID) (*models.Wallet, error)
	ListTransactions(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Transaction, error)
	PurchaseBoost(ctx context.Context, userID uuid.UUID, price float64, days int, now time.Time) (*models.BoostPurchase, error)
}

type WalletService struct {
	wallets WalletRepository
}

func NewWalletService(wallets WalletRepository) *WalletService {
	return &WalletService{wallets: wallets}
}

// GetWallet возвращает кошелёк. Пока первого зачисления не было, отдаётся
// пустой кошелёк без записи в БД.
func (s *WalletService) GetWallet(ctx context.Context, userID uuid.UUID) (*models.Wallet, error) {
	wallet, err := s.wallets.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrWalletNotFound) {
			return &models.Wallet{UserID: userID, Currency: money.DefaultCurrency}, nil
		}
		return nil, apperror.Internal(err, "не удалось загрузить кошелёк")
	}
	return wallet, nil
}

// ListTransactions журнал операций, новые первыми.
func (s *WalletService) ListTransactions(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Transaction, error) {
	if offset < 0 {
		offset = 0
	}
	txs, err := s.wallets.ListTransactions(ctx, userID, pageLimit(limit), offset)
	if err != nil {
		return nil, apperror.Internal(err, "не удалось загрузить операции")
	}
	return txs, nil
}
