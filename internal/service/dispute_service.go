package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/escrow-market/internal/config"
	"github.com/ignatzorin/escrow-market/internal/logger"
	"github.com/ignatzorin/escrow-market/internal/models"
	"github.com/ignatzorin/escrow-market/internal/pkg/apperror"
	"github.com/ignatzorin/escrow-market/internal/pkg/money"
	"github.com/ignatzorin/escrow-market/internal/queue"
	"github.com/ignatzorin/escrow-market/internal/repository"
	"github.com/ignatzorin/escrow-market/internal/validation"
)

type DisputeRepository interface {
	Open(ctx context.Context, d *models.Dispute) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Dispute, error)
	ListByDeal(ctx context.Context, dealID uuid.UUID) ([]models.Dispute, error)
	Resolve(ctx context.Context, id uuid.UUID, s repository.DisputeSettlement) (*models.Dispute, *models.Deal, error)
}

// AdminContacts куда отправлять уведомления о новых спорах.
type AdminContacts struct {
	Email  string
	UserID *uuid.UUID
}

// ResolveDisputeInput решение администратора.
type ResolveDisputeInput struct {
	Resolution string
	Amount     *float64
}

// DisputeService открывает и разрешает споры по сделкам.
type DisputeService struct {
	users    UserRepository
	deals    DealRepository
	disputes DisputeRepository
	notifier Notifier
	billing  config.Billing
	admins   AdminContacts
	now      func() time.Time
}

func NewDisputeService(users UserRepository, deals DealRepository, disputes DisputeRepository, notifier Notifier, billing config.Billing, admins AdminContacts) *DisputeService {
	return &DisputeService{
		users:    users,
		deals:    deals,
		disputes: disputes,
		notifier: notifier,
		billing:  billing,
		admins:   admins,
		now:      time.Now,
	}
}

// CreateDispute открывает спор и замораживает сделку.
func (s *DisputeService) CreateDispute(ctx context.Context, dealID, userID uuid.UUID, title, description string) (*models.Dispute, error) {
	title = strings.TrimSpace(title)
	description = strings.TrimSpace(description)
	if err := validation.ValidateDispute(title, description); err != nil {
		return nil, apperror.Validation(err.Error())
	}

	deal, err := s.deals.GetByID(ctx, dealID)
	if err != nil {
		if errors.Is(err, repository.ErrDealNotFound) {
			return nil, apperror.ErrDealNotFound
		}
		return nil, apperror.Internal(err, "не удалось загрузить сделку")
	}
	if !deal.IsParticipant(userID) {
		return nil, apperror.Forbidden("открыть спор может только участник сделки")
	}
	if _, ok := models.DisputableDealStatuses[deal.Status]; !ok {
		return nil, apperror.InvalidState(fmt.Sprintf("по сделке в статусе %s нельзя открыть спор", deal.Status))
	}

	d := &models.Dispute{
		DealID:      dealID,
		UserID:      userID,
		Title:       title,
		Description: description,
		Status:      models.DisputeStatusOpen,
	}
	if err := s.disputes.Open(ctx, d); err != nil {
		switch {
		case errors.Is(err, repository.ErrDealStateChanged):
			return nil, apperror.InvalidState("статус сделки изменился")
		case errors.Is(err, repository.ErrDisputeAlreadyOpen):
			return nil, apperror.InvalidState("по сделке уже открыт спор")
		}
		return nil, apperror.Internal(err, "не удалось открыть спор")
	}

	logger.Log.WithFields(logrus.Fields{
		"dispute_id": d.ID,
		"deal_id":    dealID,
		"user_id":    userID,
	}).Info("открыт спор")

	s.notifyAdmins(ctx, d, deal)
	return d, nil
}

func (s *DisputeService) notifyAdmins(ctx context.Context, d *models.Dispute, deal *models.Deal) {
	text := fmt.Sprintf("Спор по сделке %s на сумму %.2f %s: %s", deal.ID, deal.Amount, deal.Currency, d.Title)

	if s.admins.Email != "" {
		emailBestEffort(ctx, s.notifier, queue.EmailJob{
			To:      s.admins.Email,
			Subject: "Открыт новый спор",
			Text:    text + "\n\n" + d.Description,
		})
	}

	recipients := map[uuid.UUID]struct{}{}
	if s.admins.UserID != nil {
		recipients[*s.admins.UserID] = struct{}{}
	}
	admins, err := s.users.ListByRole(ctx, models.RoleAdmin)
	if err != nil {
		logger.Log.WithError(err).Warn("не удалось получить список администраторов")
	}
	for _, a := range admins {
		recipients[a.ID] = struct{}{}
	}
	for id := range recipients {
		pushBestEffort(ctx, s.notifier, queue.PushJob{
			UserID: id,
			Title:  "Открыт новый спор",
			Body:   text,
			Data:   map[string]any{"dispute_id": d.ID.String(), "deal_id": deal.ID.String()},
		})
	}
}

// ResolveDispute закрывает спор решением администратора и двигает сделку в терминальный статус.
func (s *DisputeService) ResolveDispute(ctx context.Context, disputeID, adminID uuid.UUID, in ResolveDisputeInput) (*models.ResolvedDispute, error) {
	if _, err := requireAdmin(ctx, s.users, adminID, "разрешать споры может только администратор"); err != nil {
		return nil, err
	}

	dispute, err := s.disputes.GetByID(ctx, disputeID)
	if err != nil {
		if errors.Is(err, repository.ErrDisputeNotFound) {
			return nil, apperror.ErrDisputeNotFound
		}
		return nil, apperror.Internal(err, "не удалось загрузить спор")
	}
	if dispute.Status != models.DisputeStatusOpen {
		return nil, apperror.InvalidState("спор уже разрешён")
	}
	if _, ok := models.ValidResolutions[in.Resolution]; !ok {
		return nil, apperror.Validation("решение должно быть release, return или partial")
	}

	deal, err := s.deals.GetByID(ctx, dispute.DealID)
	if err != nil {
		if errors.Is(err, repository.ErrDealNotFound) {
			return nil, apperror.ErrDealNotFound
		}
		return nil, apperror.Internal(err, "не удалось загрузить сделку")
	}

	settlement := repository.DisputeSettlement{
		Resolution:    in.Resolution,
		DealStatus:    models.DealStatusCancelled,
		ResolvedByID:  adminID,
		ResolvedAt:    s.now().UTC(),
		ReleaseAmount: deal.Amount,
	}

	if in.Resolution != models.ResolutionReturn && !deal.IsFunded() {
		return nil, apperror.InvalidState("сделка не оплачена, возможен только возврат")
	}

	switch in.Resolution {
	case models.ResolutionRelease:
		split := money.Commission(deal.Amount, s.billing.CommissionRate)
		settlement.DealStatus = models.DealStatusReleased
		settlement.Credit = &split
	case models.ResolutionPartial:
		if in.Amount == nil || math.IsNaN(*in.Amount) || *in.Amount <= 0 || *in.Amount >= deal.Amount || money.Round2(*in.Amount) != *in.Amount {
			return nil, apperror.Validation(fmt.Sprintf("частичная сумма должна быть больше 0 и меньше %.2f", deal.Amount))
		}
		amount := *in.Amount
		split := money.Commission(amount, s.billing.CommissionRate)
		settlement.Amount = &amount
		settlement.ReleaseAmount = amount
		settlement.Credit = &split
	}

	resolved, updatedDeal, err := s.disputes.Resolve(ctx, disputeID, settlement)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrDisputeStateChanged):
			return nil, apperror.InvalidState("спор уже разрешён")
		case errors.Is(err, repository.ErrDealStateChanged):
			return nil, apperror.InvalidState("сделка не находится в статусе спора")
		case errors.Is(err, repository.ErrDealNotFunded):
			return nil, apperror.InvalidState("сделка не оплачена, возможен только возврат")
		}
		return nil, apperror.Internal(err, "не удалось разрешить спор")
	}

	result := &models.ResolvedDispute{Dispute: resolved, Deal: updatedDeal}
	if settlement.Credit != nil {
		result.PlatformFee = settlement.Credit.Fee
		result.FreelancerAmount = settlement.Credit.NetForUser
	}

	logger.Log.WithFields(logrus.Fields{
		"dispute_id": disputeID,
		"deal_id":    deal.ID,
		"resolution": in.Resolution,
		"admin_id":   adminID,
	}).Info("спор разрешён")

	for _, id := range []uuid.UUID{updatedDeal.SenderID, updatedDeal.ReceiverID} {
		pushBestEffort(ctx, s.notifier, queue.PushJob{
			UserID: id,
			Title:  "Спор разрешён",
			Body:   fmt.Sprintf("Решение по сделке %s: %s", updatedDeal.ID, in.Resolution),
			Data:   map[string]any{"dispute_id": disputeID.String(), "deal_id": updatedDeal.ID.String(), "status": updatedDeal.Status},
		})
	}

	return result, nil
}

// GetDispute доступен участникам сделки и администраторам.
func (s *DisputeService) GetDispute(ctx context.Context, disputeID, userID uuid.UUID) (*models.Dispute, error) {
	dispute, err := s.disputes.GetByID(ctx, disputeID)
	if err != nil {
		if errors.Is(err, repository.ErrDisputeNotFound) {
			return nil, apperror.ErrDisputeNotFound
		}
		return nil, apperror.Internal(err, "не удалось загрузить спор")
	}
	if err := s.checkDealAccess(ctx, dispute.DealID, userID); err != nil {
		return nil, err
	}
	return dispute, nil
}

// ListDealDisputes история споров по сделке.
func (s *DisputeService) ListDealDisputes(ctx context.Context, dealID, userID uuid.UUID) ([]models.Dispute, error) {
	if err := s.checkDealAccess(ctx, dealID, userID); err != nil {
		return nil, err
	}
	disputes, err := s.disputes.ListByDeal(ctx, dealID)
	if err != nil {
		return nil, apperror.Internal(err, "не удалось загрузить споры")
	}
	return disputes, nil
}

func (s *DisputeService) checkDealAccess(ctx context.Context, dealID, userID uuid.UUID) error {
	deal, err := s.deals.GetByID(ctx, dealID)
	if err != nil {
		if errors.Is(err, repository.ErrDealNotFound) {
			return apperror.ErrDealNotFound
		}
		return apperror.Internal(err, "не удалось загрузить сделку")
	}
	if deal.IsParticipant(userID) {
		return nil
	}
	_, err = requireAdmin(ctx, s.users, userID, "нет доступа к спору")
	return err
}
