package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/escrow-market/internal/config"
	"github.com/ignatzorin/escrow-market/internal/logger"
	"github.com/ignatzorin/escrow-market/internal/models"
	"github.com/ignatzorin/escrow-market/internal/pkg/apperror"
	"github.com/ignatzorin/escrow-market/internal/queue"
	"github.com/ignatzorin/escrow-market/internal/ranking"
	"github.com/ignatzorin/escrow-market/internal/repository"
	"github.com/ignatzorin/escrow-market/internal/validation"
)

// DefaultMaxProposals лимит откликов, если клиент его не задал.
const DefaultMaxProposals = 100

type ProjectRepository interface {
	Create(ctx context.Context, p *models.Project) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Project, error)
	CreateProposal(ctx context.Context, p *models.Proposal) error
	GetProposal(ctx context.Context, id uuid.UUID) (*models.Proposal, error)
	HasProposal(ctx context.Context, projectID, freelancerID uuid.UUID) (bool, error)
	CountProposals(ctx context.Context, projectID uuid.UUID) (int, error)
	ListProposals(ctx context.Context, projectID uuid.UUID) ([]models.Proposal, error)
	CreateInvite(ctx context.Context, inv *models.ProjectInvite, limit int) (int, error)
	ListInvites(ctx context.Context, projectID uuid.UUID) ([]models.ProjectInvite, error)
}

// ReleasedDealLister история завершённых сделок для ранжирования.
type ReleasedDealLister interface {
	ListReleasedWithSkills(ctx context.Context) ([]models.ReleasedDealRecord, error)
}

// CreateProjectInput форма проекта с необязательным брифом автоматизации.
type CreateProjectInput struct {
	Title          string
	Description    string
	Budget         float64
	Skills         []string
	MaxProposals   *int
	AutomationType string
	BotStage       string
	Integrations   []string
	MainGoal       string
	DeadlineDays   *int
	SupportNeeded  *bool
}

// CreateProposalInput отклик исполнителя.
type CreateProposalInput struct {
	Content string
	Price   *float64
}

// InviteInput приглашение исполнителя в проект.
type InviteInput struct {
	FreelancerID uuid.UUID
	Message      string
}

// TopExecutors рекомендованные исполнители для проекта.
type TopExecutors struct {
	ProjectID       uuid.UUID          `json:"project_id"`
	TotalCandidates int                `json:"total_candidates"`
	InviteQuota     models.InviteQuota `json:"invite_quota"`
	Recommended     []ranking.Ranked   `json:"recommended"`
}

// InviteList приглашения проекта и остаток лимита.
type InviteList struct {
	Invites []models.ProjectInvite `json:"invites"`
	Quota   models.InviteQuota     `json:"quota"`
}

// InviteResult созданное приглашение и обновлённый лимит.
type InviteResult struct {
	Invite *models.ProjectInvite `json:"invite"`
	Quota  models.InviteQuota    `json:"quota"`
}

// ProjectService проекты, отклики, подбор и приглашение исполнителей.
type ProjectService struct {
	users    UserRepository
	projects ProjectRepository
	deals    ReleasedDealLister
	notifier Notifier
	limits   config.InviteLimits
	now      func() time.Time
}

func NewProjectService(users UserRepository, projects ProjectRepository, deals ReleasedDealLister, notifier Notifier, billing config.Billing) *ProjectService {
	return &ProjectService{
		users:    users,
		projects: projects,
		deals:    deals,
		notifier: notifier,
		limits:   billing.InviteLimits,
		now:      time.Now,
	}
}

// CreateProject создаёт проект клиента с автоматическими тегами навыков.
func (s *ProjectService) CreateProject(ctx context.Context, clientID uuid.UUID, in CreateProjectInput) (*models.Project, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	for _, check := range []error{
		validation.ValidateProjectTitle(in.Title),
		validation.ValidateProjectDescription(in.Description),
		validation.ValidateBudget(in.Budget),
		validation.ValidateSkills(in.Skills),
	} {
		if check != nil {
			return nil, apperror.Validation(check.Error())
		}
	}
	if in.MaxProposals != nil && *in.MaxProposals < 1 {
		return nil, apperror.Validation("лимит откликов должен быть не меньше 1")
	}
	if in.DeadlineDays != nil && *in.DeadlineDays < 1 {
		return nil, apperror.Validation("срок должен быть не меньше 1 дня")
	}
	if in.AutomationType != "" {
		if _, ok := automationTypes[in.AutomationType]; !ok {
			return nil, apperror.Validation(fmt.Sprintf("неизвестный тип автоматизации %s", in.AutomationType))
		}
	}

	user, err := loadUser(ctx, s.users, clientID)
	if err != nil {
		return nil, err
	}
	if user.Role != models.RoleClient {
		return nil, apperror.Forbidden("создавать проекты может только клиент")
	}

	description := in.Description
	if brief := buildAutomationBrief(in); brief != "" {
		description = description + "\n\n" + brief
	}

	project := &models.Project{
		ClientID:     clientID,
		Title:        in.Title,
		Description:  description,
		Budget:       in.Budget,
		Skills:       buildProjectTags(in),
		MaxProposals: in.MaxProposals,
	}
	if err := s.projects.Create(ctx, project); err != nil {
		return nil, apperror.Internal(err, "не удалось создать проект")
	}

	logger.Log.WithFields(logrus.Fields{
		"project_id": project.ID,
		"client_id":  clientID,
		"skills":     len(project.Skills),
	}).Info("создан проект")
	return project, nil
}

// GetProject публичная карточка проекта.
func (s *ProjectService) GetProject(ctx context.Context, projectID uuid.UUID) (*models.Project, error) {
	return s.getProject(ctx, projectID)
}

// CreateProposal бесплатный отклик исполнителя, один на проект.
func (s *ProjectService) CreateProposal(ctx context.Context, freelancerID, projectID uuid.UUID, in CreateProposalInput) (*models.Proposal, error) {
	in.Content = strings.TrimSpace(in.Content)
	if err := validation.ValidateProposalContent(in.Content); err != nil {
		return nil, apperror.Validation(err.Error())
	}
	if in.Price != nil && !validAmount(*in.Price) {
		return nil, apperror.Validation("цена должна быть положительной")
	}

	user, err := loadUser(ctx, s.users, freelancerID)
	if err != nil {
		return nil, err
	}
	if user.Role != models.RoleFreelancer {
		return nil, apperror.Forbidden("откликаться могут только исполнители")
	}

	project, err := s.getProject(ctx, projectID)
	if err != nil {
		return nil, err
	}

	exists, err := s.projects.HasProposal(ctx, projectID, freelancerID)
	if err != nil {
		return nil, apperror.Internal(err, "не удалось проверить отклик")
	}
	if exists {
		return nil, apperror.Conflict("вы уже откликнулись на этот проект")
	}

	limit := DefaultMaxProposals
	if project.MaxProposals != nil {
		limit = *project.MaxProposals
	}
	count, err := s.projects.CountProposals(ctx, projectID)
	if err != nil {
		return nil, apperror.Internal(err, "не удалось посчитать отклики")
	}
	if count >= limit {
		return nil, apperror.InvalidState("достигнут лимит откликов на проект")
	}

	proposal := &models.Proposal{
		ProjectID:    projectID,
		FreelancerID: freelancerID,
		Content:      in.Content,
		Price:        in.Price,
	}
	if err := s.projects.CreateProposal(ctx, proposal); err != nil {
		if errors.Is(err, repository.ErrProposalExists) {
			return nil, apperror.Conflict("вы уже откликнулись на этот проект")
		}
		return nil, apperror.Internal(err, "не удалось создать отклик")
	}

	pushBestEffort(ctx, s.notifier, queue.PushJob{
		UserID: project.ClientID,
		Title:  "Новый отклик",
		Body:   fmt.Sprintf("%s откликнулся на проект %q", user.DisplayName, project.Title),
		Data:   map[string]any{"project_id": projectID.String(), "proposal_id": proposal.ID.String()},
	})
	return proposal, nil
}

// ListProjectProposals отклики на проект, видны только владельцу.
func (s *ProjectService) ListProjectProposals(ctx context.Context, clientID, projectID uuid.UUID) ([]models.Proposal, error) {
	if _, err := s.ownedProject(ctx, clientID, projectID); err != nil {
		return nil, err
	}
	list, err := s.projects.ListProposals(ctx, projectID)
	if err != nil {
		return nil, apperror.Internal(err, "не удалось загрузить отклики")
	}
	return list, nil
}

// GetTopExecutors ранжирует исполнителей под проект.
func (s *ProjectService) GetTopExecutors(ctx context.Context, clientID, projectID uuid.UUID, limit int) (*TopExecutors, error) {
	project, err := s.ownedProject(ctx, clientID, projectID)
	if err != nil {
		return nil, err
	}
	client, err := loadUser(ctx, s.users, clientID)
	if err != nil {
		return nil, err
	}

	freelancers, err := s.users.ListByRole(ctx, models.RoleFreelancer)
	if err != nil {
		return nil, apperror.Internal(err, "не удалось загрузить исполнителей")
	}
	released, err := s.deals.ListReleasedWithSkills(ctx)
	if err != nil {
		return nil, apperror.Internal(err, "не удалось загрузить историю сделок")
	}
	invites, err := s.projects.ListInvites(ctx, projectID)
	if err != nil {
		return nil, apperror.Internal(err, "не удалось загрузить приглашения")
	}

	candidates := make([]ranking.Candidate, 0, len(freelancers))
	for _, f := range freelancers {
		candidates = append(candidates, ranking.Candidate{ID: f.ID, Name: f.DisplayName, BoostedUntil: f.BoostedUntil})
	}
	deals := make([]ranking.CompletedDeal, 0, len(released))
	for _, d := range released {
		deals = append(deals, ranking.CompletedDeal{ReceiverID: d.ReceiverID, Amount: d.Amount, ProjectSkills: d.ProjectSkills})
	}
	invited := make(map[uuid.UUID]struct{}, len(invites))
	for _, inv := range invites {
		invited[inv.FreelancerID] = struct{}{}
	}

	recommended := ranking.Rank(ranking.Input{
		ProjectSkills: project.Skills,
		Budget:        project.Budget,
		Candidates:    candidates,
		Deals:         deals,
		Invited:       invited,
		Now:           s.now(),
		Limit:         limit,
	})

	return &TopExecutors{
		ProjectID:       projectID,
		TotalCandidates: len(candidates),
		InviteQuota:     models.NewInviteQuota(client.Plan, s.limits.For(client.Plan), len(invites)),
		Recommended:     recommended,
	}, nil
}

// ListInvites приглашения проекта вместе с остатком лимита тарифа.
func (s *ProjectService) ListInvites(ctx context.Context, clientID, projectID uuid.UUID) (*InviteList, error) {
	if _, err := s.ownedProject(ctx, clientID, projectID); err != nil {
		return nil, err
	}
	client, err := loadUser(ctx, s.users, clientID)
	if err != nil {
		return nil, err
	}
	invites, err := s.projects.ListInvites(ctx, projectID)
	if err != nil {
		return nil, apperror.Internal(err, "не удалось загрузить приглашения")
	}
	return &InviteList{
		Invites: invites,
		Quota:   models.NewInviteQuota(client.Plan, s.limits.For(client.Plan), len(invites)),
	}, nil
}

// InviteFreelancer приглашает исполнителя в проект в пределах лимита тарифа клиента.
func (s *ProjectService) InviteFreelancer(ctx context.Context, clientID, projectID uuid.UUID, in InviteInput) (*InviteResult, error) {
	if err := validation.ValidateInviteMessage(strings.TrimSpace(in.Message)); err != nil {
		return nil, apperror.Validation(err.Error())
	}

	project, err := s.ownedProject(ctx, clientID, projectID)
	if err != nil {
		return nil, err
	}
	client, err := loadUser(ctx, s.users, clientID)
	if err != nil {
		return nil, err
	}

	freelancer, err := s.users.GetByID(ctx, in.FreelancerID)
	if err != nil && !errors.Is(err, repository.ErrUserNotFound) {
		return nil, apperror.Internal(err, "не удалось загрузить исполнителя")
	}
	if freelancer == nil || freelancer.Role != models.RoleFreelancer {
		return nil, apperror.NotFound("исполнитель не найден")
	}

	invite := &models.ProjectInvite{
		ProjectID:    projectID,
		ClientID:     clientID,
		FreelancerID: in.FreelancerID,
	}
	if msg := strings.TrimSpace(in.Message); msg != "" {
		invite.Message = &msg
	}

	limit := s.limits.For(client.Plan)
	used, err := s.projects.CreateInvite(ctx, invite, limit)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrInviteExists):
			return nil, apperror.Conflict("исполнитель уже приглашён в проект")
		case errors.Is(err, repository.ErrInviteQuotaExceeded):
			return nil, apperror.InvalidState(fmt.Sprintf("лимит приглашений тарифа %s исчерпан (%d)", models.NormalizePlan(client.Plan), limit))
		case errors.Is(err, repository.ErrProjectNotFound):
			return nil, apperror.ErrProjectNotFound
		}
		return nil, apperror.Internal(err, "не удалось создать приглашение")
	}

	logger.Log.WithFields(logrus.Fields{
		"project_id":    projectID,
		"freelancer_id": in.FreelancerID,
		"used":          used,
		"limit":         limit,
	}).Info("исполнитель приглашён")

	pushBestEffort(ctx, s.notifier, queue.PushJob{
		UserID: in.FreelancerID,
		Title:  "Приглашение в проект",
		Body:   fmt.Sprintf("Вас пригласили в проект %q", project.Title),
		Data:   map[string]any{"project_id": projectID.String(), "invite_id": invite.ID.String()},
	})

	return &InviteResult{
		Invite: invite,
		Quota:  models.NewInviteQuota(client.Plan, limit, used),
	}, nil
}

func (s *ProjectService) getProject(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	project, err := s.projects.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrProjectNotFound) {
			return nil, apperror.ErrProjectNotFound
		}
		return nil, apperror.Internal(err, "не удалось загрузить проект")
	}
	return project, nil
}

func (s *ProjectService) ownedProject(ctx context.Context, clientID, projectID uuid.UUID) (*models.Project, error) {
	project, err := s.getProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if project.ClientID != clientID {
		return nil, apperror.Forbidden("проект принадлежит другому клиенту")
	}
	return project, nil
}
