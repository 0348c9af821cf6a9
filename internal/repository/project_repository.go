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
	ErrProjectNotFound  = errors.New("project not found")
	ErrProposalNotFound = errors.New("proposal not found")
	ErrProposalExists   = errors.New("proposal already exists")
	ErrInviteExists     = errors.New("invite already exists")

	// ErrInviteQuotaExceeded лимит приглашений по тарифу исчерпан.
	ErrInviteQuotaExceeded = errors.New("invite quota exceeded")
)

// ProjectRepository работает с проектами, откликами и приглашениями.
type ProjectRepository struct {
	db *sqlx.DB
}

func NewProjectRepository(db *sqlx.DB) *ProjectRepository {
	return &ProjectRepository{db: db}
}

func (r *ProjectRepository) Create(ctx context.Context, p *models.Project) error {
	query := `
		INSERT INTO projects (client_id, title, description, budget, skills, max_proposals)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at
	`
	if err := r.db.QueryRowxContext(ctx, query,
		p.ClientID, p.Title, p.Description, p.Budget, p.Skills, p.MaxProposals,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return fmt.Errorf("project repository: create %w", err)
	}
	return nil
}

func (r *ProjectRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	return common.GetByID[models.Project](ctx, r.db, "projects", id, ErrProjectNotFound)
}

// CreateProposal сохраняет отклик. Повтор по паре (проект, исполнитель) даёт ErrProposalExists.
func (r *ProjectRepository) CreateProposal(ctx context.Context, p *models.Proposal) error {
	query := `
		INSERT INTO proposals (project_id, freelancer_id, content, price)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`
	if err := r.db.QueryRowxContext(ctx, query, p.ProjectID, p.FreelancerID, p.Content, p.Price).
		Scan(&p.ID, &p.CreatedAt); err != nil {
		if isUniqueViolation(err) {
			return ErrProposalExists
		}
		return fmt.Errorf("project repository: create proposal %w", err)
	}
	return nil
}

func (r *ProjectRepository) GetProposal(ctx context.Context, id uuid.UUID) (*models.Proposal, error) {
	return common.GetByID[models.Proposal](ctx, r.db, "proposals", id, ErrProposalNotFound)
}

// HasProposal проверяет, откликался ли исполнитель на проект.
func (r *ProjectRepository) HasProposal(ctx context.Context, projectID, freelancerID uuid.UUID) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `
		SELECT EXISTS(SELECT 1 FROM proposals WHERE project_id = $1 AND freelancer_id = $2)
	`, projectID, freelancerID)
	if err != nil {
		return false, fmt.Errorf("project repository: has proposal %w", err)
	}
	return exists, nil
}

func (r *ProjectRepository) CountProposals(ctx context.Context, projectID uuid.UUID) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM proposals WHERE project_id = $1`, projectID); err != nil {
		return 0, fmt.Errorf("project repository: count proposals %w", err)
	}
	return count, nil
}

func (r *ProjectRepository) ListProposals(ctx context.Context, projectID uuid.UUID) ([]models.Proposal, error) {
	var proposals []models.Proposal
	err := r.db.SelectContext(ctx, &proposals, `
		SELECT * FROM proposals WHERE project_id = $1 ORDER BY created_at DESC
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("project repository: list proposals %w", err)
	}
	return proposals, nil
}

// CreateInvite сохраняет приглашение в пределах лимита тарифа. Строка проекта
// блокируется, поэтому параллельные приглашения не превышают лимит.
// Возвращает число приглашений по проекту с учётом нового.
func (r *ProjectRepository) CreateInvite(ctx context.Context, inv *models.ProjectInvite, limit int) (int, error) {
	var used int

	err := common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		var projectID uuid.UUID
		if err := tx.GetContext(ctx, &projectID, `SELECT id FROM projects WHERE id = $1 FOR UPDATE`, inv.ProjectID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrProjectNotFound
			}
			return fmt.Errorf("project repository: lock project %w", err)
		}

		var invited bool
		if err := tx.GetContext(ctx, &invited, `
			SELECT EXISTS(SELECT 1 FROM project_invites WHERE project_id = $1 AND freelancer_id = $2)
		`, inv.ProjectID, inv.FreelancerID); err != nil {
			return fmt.Errorf("project repository: check invite %w", err)
		}
		if invited {
			return ErrInviteExists
		}

		if err := tx.GetContext(ctx, &used, `SELECT COUNT(*) FROM project_invites WHERE project_id = $1`, inv.ProjectID); err != nil {
			return fmt.Errorf("project repository: count invites %w", err)
		}
		if used >= limit {
			return ErrInviteQuotaExceeded
		}

		err := tx.QueryRowxContext(ctx, `
			INSERT INTO project_invites (project_id, client_id, freelancer_id, message)
			VALUES ($1, $2, $3, $4)
			RETURNING id, created_at
		`, inv.ProjectID, inv.ClientID, inv.FreelancerID, inv.Message).Scan(&inv.ID, &inv.CreatedAt)
		if err != nil {
			if isUniqueViolation(err) {
				return ErrInviteExists
			}
			return fmt.Errorf("project repository: create invite %w", err)
		}
		used++
		return nil
	})
	if err != nil {
		return 0, err
	}

	return used, nil
}

func (r *ProjectRepository) ListInvites(ctx context.Context, projectID uuid.UUID) ([]models.ProjectInvite, error) {
	var invites []models.ProjectInvite
	err := r.db.SelectContext(ctx, &invites, `
		SELECT * FROM project_invites WHERE project_id = $1 ORDER BY created_at DESC
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("project repository: list invites %w", err)
	}
	return invites, nil
}
