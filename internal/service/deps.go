package service

import (
	"context"
	"errors"
	"math"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/escrow-market/internal/logger"
	"github.com/ignatzorin/escrow-market/internal/models"
	"github.com/ignatzorin/escrow-market/internal/payment"
	"github.com/ignatzorin/escrow-market/internal/pkg/apperror"
	"github.com/ignatzorin/escrow-market/internal/pkg/money"
	"github.com/ignatzorin/escrow-market/internal/queue"
	"github.com/ignatzorin/escrow-market/internal/repository"
)

// Лимиты постраничной выдачи.
const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

// UserRepository чтение пользователей.
type UserRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	ListByRole(ctx context.Context, role string) ([]models.User, error)
	SetGatewayCustomerID(ctx context.Context, id uuid.UUID, customerID string) error
}

// EscrowGateway внешний платёжный шлюз.
type EscrowGateway interface {
	CreateCustomer(ctx context.Context, user *models.User) (string, error)
	CreatePaymentIntent(ctx context.Context, amountMinor int64, currency, customerID string, metadata map[string]string) (*payment.Intent, error)
	ConstructEvent(payload []byte, signature string) (*payment.Event, error)
}

// Notifier фоновая отправка уведомлений. Ошибки не влияют на результат операции.
type Notifier interface {
	EnqueueEmail(ctx context.Context, job queue.EmailJob) error
	EnqueuePush(ctx context.Context, job queue.PushJob) error
}

// pageLimit подставляет размер страницы по умолчанию и ограничивает его сверху.
func pageLimit(limit int) int {
	if limit <= 0 {
		return defaultPageLimit
	}
	if limit > maxPageLimit {
		return maxPageLimit
	}
	return limit
}

// loadUser читает пользователя и переводит ошибки хранилища в AppError.
func loadUser(ctx context.Context, users UserRepository, id uuid.UUID) (*models.User, error) {
	user, err := users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, apperror.ErrUserNotFound
		}
		return nil, apperror.Internal(err, "не удалось загрузить пользователя")
	}
	return user, nil
}

// requireAdmin проверяет роль по данным из БД, а не из токена.
func requireAdmin(ctx context.Context, users UserRepository, id uuid.UUID, message string) (*models.User, error) {
	user, err := users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, apperror.Forbidden(message)
		}
		return nil, apperror.Internal(err, "не удалось загрузить пользователя")
	}
	if user.Role != models.RoleAdmin {
		return nil, apperror.Forbidden(message)
	}
	return user, nil
}

// pushBestEffort ставит уведомление в очередь и только логирует ошибку.
func pushBestEffort(ctx context.Context, n Notifier, job queue.PushJob) {
	if n == nil {
		return
	}
	if err := n.EnqueuePush(ctx, job); err != nil {
		logger.Log.WithFields(logrus.Fields{
			"user_id": job.UserID,
			"title":   job.Title,
		}).WithError(err).Warn("не удалось поставить уведомление в очередь")
	}
}

// emailBestEffort ставит письмо в очередь и только логирует ошибку.
func emailBestEffort(ctx context.Context, n Notifier, job queue.EmailJob) {
	if n == nil {
		return
	}
	if err := n.EnqueueEmail(ctx, job); err != nil {
		logger.Log.WithFields(logrus.Fields{
			"to":      job.To,
			"subject": job.Subject,
		}).WithError(err).Warn("не удалось поставить письмо в очередь")
	}
}

// validAmount положительная конечная сумма не точнее копейки.
func validAmount(v float64) bool {
	if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		return false
	}
	return money.Round2(v) == v
}
