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
	"github.com/ignatzorin/escrow-market/internal/payment"
	"github.com/ignatzorin/escrow-market/internal/pkg/apperror"
	"github.com/ignatzorin/escrow-market/internal/pkg/money"
	"github.com/ignatzorin/escrow-market/internal/queue"
	"github.com/ignatzorin/escrow-market/internal/repository"
)

type DealRepository interface {
	Create(ctx context.Context, d *models.Deal) error
	Delete(ctx context.Context, id uuid.UUID) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Deal, error)
	SetEscrowPaymentID(ctx context.Context, id uuid.UUID, paymentID string) (*models.Deal, error)
	MarkFunded(ctx context.Context, id uuid.UUID) (bool, error)
	Release(ctx context.Context, id uuid.UUID, split money.Split) (*models.Deal, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Deal, error)
}

// CreateDealInput параметры новой сделки.
type CreateDealInput struct {
	ProposalID uuid.UUID
	Amount     float64
	Currency   string
}

// DealService ведёт жизненный цикл эскроу-сделки.
type DealService struct {
	users    UserRepository
	deals    DealRepository
	projects ProjectRepository
	gateway  EscrowGateway
	notifier Notifier
	billing  config.Billing
}

func NewDealService(users UserRepository, deals DealRepository, projects ProjectRepository, gateway EscrowGateway, notifier Notifier, billing config.Billing) *DealService {
	return &DealService{
		users:    users,
		deals:    deals,
		projects: projects,
		gateway:  gateway,
		notifier: notifier,
		billing:  billing,
	}
}

// CreateDeal создаёт сделку по предложению и платёж в шлюзе.
// Если после записи сделки шлюз или БД отказали, сделка удаляется.
func (s *DealService) CreateDeal(ctx context.Context, clientID uuid.UUID, in CreateDealInput) (*models.CreatedDeal, error) {
	if !validAmount(in.Amount) {
		return nil, apperror.Validation("сумма должна быть положительной, не более двух знаков после запятой")
	}
	currency, ok := money.NormalizeCurrency(in.Currency)
	if !ok {
		return nil, apperror.Validation(fmt.Sprintf("валюта %s не поддерживается", currency))
	}

	client, err := loadUser(ctx, s.users, clientID)
	if err != nil {
		return nil, err
	}
	if client.Role != models.RoleClient {
		return nil, apperror.Forbidden("создавать сделки может только клиент")
	}

	proposal, err := s.projects.GetProposal(ctx, in.ProposalID)
	if err != nil {
		if errors.Is(err, repository.ErrProposalNotFound) {
			return nil, apperror.ErrProposalNotFound
		}
		return nil, apperror.Internal(err, "не удалось загрузить предложение")
	}
	project, err := s.projects.GetByID(ctx, proposal.ProjectID)
	if err != nil {
		if errors.Is(err, repository.ErrProjectNotFound) {
			return nil, apperror.ErrProjectNotFound
		}
		return nil, apperror.Internal(err, "не удалось загрузить проект")
	}
	if project.ClientID != clientID {
		return nil, apperror.Forbidden("проект принадлежит другому клиенту")
	}

	deal := &models.Deal{
		ProjectID:  project.ID,
		ProposalID: proposal.ID,
		SenderID:   clientID,
		ReceiverID: proposal.FreelancerID,
		Amount:     in.Amount,
		Currency:   currency,
		Status:     models.DealStatusCreated,
	}
	if err := s.deals.Create(ctx, deal); err != nil {
		return nil, apperror.Internal(err, "не удалось создать сделку")
	}

	log := logger.Log.WithFields(logrus.Fields{
		"deal_id":   deal.ID,
		"client_id": clientID,
	})

	customerID, err := s.ensureCustomer(ctx, client)
	if err != nil {
		s.discard(ctx, deal.ID)
		log.WithError(err).Error("не удалось получить клиента платёжного шлюза")
		return nil, apperror.Upstream(err, "платёжный шлюз недоступен")
	}

	intent, err := s.gateway.CreatePaymentIntent(ctx, money.ToMinorUnits(deal.Amount), deal.Currency, customerID, map[string]string{
		payment.MetadataDealID: deal.ID.String(),
	})
	if err != nil {
		s.discard(ctx, deal.ID)
		log.WithError(err).Error("не удалось создать платёж")
		return nil, apperror.Upstream(err, "платёжный шлюз недоступен")
	}

	updated, err := s.deals.SetEscrowPaymentID(ctx, deal.ID, intent.ID)
	if err != nil {
		s.discard(ctx, deal.ID)
		log.WithError(err).Error("не удалось сохранить идентификатор платежа")
		return nil, apperror.Upstream(err, "не удалось завершить создание сделки")
	}

	log.WithField("payment_id", intent.ID).Info("сделка создана")
	return &models.CreatedDeal{Deal: updated, ClientSecret: intent.ClientSecret}, nil
}

// ensureCustomer возвращает сохранённого клиента шлюза или создаёт нового.
func (s *DealService) ensureCustomer(ctx context.Context, user *models.User) (string, error) {
	if user.GatewayCustomerID != nil && *user.GatewayCustomerID != "" {
		return *user.GatewayCustomerID, nil
	}
	customerID, err := s.gateway.CreateCustomer(ctx, user)
	if err != nil {
		return "", err
	}
	if err := s.users.SetGatewayCustomerID(ctx, user.ID, customerID); err != nil {
		return "", fmt.Errorf("save gateway customer: %w", err)
	}
	return customerID, nil
}

// discard удаляет незавершённую сделку. Отмена запроса не должна мешать откату.
func (s *DealService) discard(ctx context.Context, dealID uuid.UUID) {
	if err := s.deals.Delete(context.WithoutCancel(ctx), dealID); err != nil {
		logger.Log.WithField("deal_id", dealID).WithError(err).Error("не удалось удалить незавершённую сделку")
	}
}

// HandleWebhook проверяет подпись события шлюза и применяет его.
func (s *DealService) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	event, err := s.gateway.ConstructEvent(payload, signature)
	if err != nil {
		return apperror.Integrity(err, "неверная подпись webhook")
	}

	log := logger.Log.WithFields(logrus.Fields{
		"event_id":   event.ID,
		"event_type": event.Type,
	})
	if event.Type != payment.EventPaymentIntentSucceeded {
		log.Debug("событие шлюза пропущено")
		return nil
	}

	dealID, err := uuid.Parse(event.DealID)
	if err != nil {
		log.WithField("deal_id", event.DealID).Warn("событие оплаты без корректного идентификатора сделки")
		return nil
	}
	return s.HandlePaymentSucceeded(ctx, dealID)
}

// HandlePaymentSucceeded учитывает оплату: created -> escrowed, а сделка в споре
// получает отметку об оплате и остаётся замороженной до решения.
// Повторная доставка события ничего не меняет.
func (s *DealService) HandlePaymentSucceeded(ctx context.Context, dealID uuid.UUID) error {
	log := logger.Log.WithField("deal_id", dealID)

	funded, err := s.deals.MarkFunded(ctx, dealID)
	if err != nil {
		return apperror.Internal(err, "не удалось обновить статус сделки")
	}

	deal, err := s.deals.GetByID(ctx, dealID)
	if err != nil {
		if errors.Is(err, repository.ErrDealNotFound) {
			log.Warn("оплата по неизвестной сделке")
			return nil
		}
		return apperror.Internal(err, "не удалось загрузить сделку")
	}
	log = log.WithField("status", deal.Status)

	if !funded {
		if deal.IsFunded() {
			log.Info("оплата уже учтена")
		} else {
			// Спор закрыт возвратом до поступления денег, платёж нужно вернуть вручную.
			log.Warn("оплата по закрытой сделке, требуется возврат клиенту")
		}
		return nil
	}

	if deal.Status == models.DealStatusDispute {
		log.Info("оплата поступила во время спора")
		return nil
	}

	log.Info("средства зарезервированы")
	pushBestEffort(ctx, s.notifier, queue.PushJob{
		UserID: deal.ReceiverID,
		Title:  "Сделка оплачена",
		Body:   fmt.Sprintf("Клиент зарезервировал %.2f %s, можно приступать к работе", deal.Amount, deal.Currency),
		Data:   map[string]any{"deal_id": deal.ID.String(), "status": deal.Status},
	})
	return nil
}

// ConfirmDeal подтверждает выполнение и переводит средства исполнителю за вычетом комиссии.
func (s *DealService) ConfirmDeal(ctx context.Context, dealID, clientID uuid.UUID) (*models.ReleasedDeal, error) {
	deal, err := s.getDeal(ctx, dealID)
	if err != nil {
		return nil, err
	}
	if deal.SenderID != clientID {
		return nil, apperror.Forbidden("подтвердить сделку может только клиент")
	}
	if deal.Status != models.DealStatusEscrowed {
		return nil, apperror.InvalidState(fmt.Sprintf("сделка в статусе %s не может быть подтверждена", deal.Status))
	}

	split := money.Commission(deal.Amount, s.billing.CommissionRate)
	released, err := s.deals.Release(ctx, dealID, split)
	if err != nil {
		if errors.Is(err, repository.ErrDealStateChanged) {
			return nil, apperror.InvalidState("статус сделки изменился")
		}
		return nil, apperror.Internal(err, "не удалось завершить сделку")
	}

	logger.Log.WithFields(logrus.Fields{
		"deal_id":      dealID,
		"platform_fee": split.Fee,
		"net":          split.NetForUser,
	}).Info("сделка завершена")

	pushBestEffort(ctx, s.notifier, queue.PushJob{
		UserID: released.ReceiverID,
		Title:  "Средства зачислены",
		Body:   fmt.Sprintf("На ваш кошелёк зачислено %.2f %s", split.NetForUser, released.Currency),
		Data:   map[string]any{"deal_id": released.ID.String(), "status": released.Status},
	})

	return &models.ReleasedDeal{
		Deal:             released,
		PlatformFee:      split.Fee,
		FreelancerAmount: split.NetForUser,
	}, nil
}

// GetDeal возвращает сделку участнику или администратору.
func (s *DealService) GetDeal(ctx context.Context, dealID, userID uuid.UUID) (*models.Deal, error) {
	deal, err := s.getDeal(ctx, dealID)
	if err != nil {
		return nil, err
	}
	if deal.IsParticipant(userID) {
		return deal, nil
	}
	if _, err := requireAdmin(ctx, s.users, userID, "нет доступа к сделке"); err != nil {
		return nil, err
	}
	return deal, nil
}

// ListMyDeals сделки, где пользователь клиент или исполнитель.
func (s *DealService) ListMyDeals(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Deal, error) {
	if offset < 0 {
		offset = 0
	}
	deals, err := s.deals.ListByUser(ctx, userID, pageLimit(limit), offset)
	if err != nil {
		return nil, apperror.Internal(err, "не удалось загрузить сделки")
	}
	return deals, nil
}

func (s *DealService) getDeal(ctx context.Context, id uuid.UUID) (*models.Deal, error) {
	deal, err := s.deals.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrDealNotFound) {
			return nil, apperror.ErrDealNotFound
		}
		return nil, apperror.Internal(err, "не удалось загрузить сделку")
	}
	return deal, nil
}
