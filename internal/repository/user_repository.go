package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/escrow-market/internal/models"
	"github.com/ignatzorin/escrow-market/internal/repository/common"
)

// ErrUserNotFound возвращается, когда запись пользователя не найдена.
var ErrUserNotFound = errors.New("user not found")

// UserRepository отвечает за чтение пользователей и их платёжных ссылок.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository создаёт экземпляр репозитория.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// GetByID возвращает пользователя по идентификатору.
func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return common.GetByID[models.User](ctx, r.db, "users", id, ErrUserNotFound)
}

// ListByRole возвращает всех пользователей с указанной ролью.
func (r *UserRepository) ListByRole(ctx context.Context, role string) ([]models.User, error) {
	var users []models.User
	query := `
		SELECT id, email, display_name, role, plan, boosted_until, gateway_customer_id, created_at, updated_at
		FROM users
		WHERE role = $1
		ORDER BY created_at
	`
	if err := r.db.SelectContext(ctx, &users, query, role); err != nil {
		return nil, fmt.Errorf("user repository: list by role %w", err)
	}
	return users, nil
}

// SetGatewayCustomerID сохраняет идентификатор клиента во внешнем платёжном шлюзе.
func (r *UserRepository) SetGatewayCustomerID(ctx context.Context, id uuid.UUID, customerID string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE users SET gateway_customer_id = $2, updated_at = NOW() WHERE id = $1
	`, id, customerID)
	if err != nil {
		return fmt.Errorf("user repository: set gateway customer %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("user repository: set gateway customer rows %w", err)
	}
	if rows == 0 {
		return ErrUserNotFound
	}
	return nil
}
