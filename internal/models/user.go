package models

import (
	"time"

	"github.com/google/uuid"
)

// User описывает сущность пользователя платформы.
type User struct {
	ID                uuid.UUID  `db:"id" json:"id"`
	Email             string     `db:"email" json:"email"`
	DisplayName       string     `db:"display_name" json:"display_name"`
	Role              string     `db:"role" json:"role"`
	Plan              string     `db:"plan" json:"plan"`
	BoostedUntil      *time.Time `db:"boosted_until" json:"boosted_until,omitempty"`
	GatewayCustomerID *string    `db:"gateway_customer_id" json:"-"`
	CreatedAt         time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time  `db:"updated_at" json:"updated_at"`
}

// IsBoosted сообщает, активен ли буст профиля на момент now.
func (u *User) IsBoosted(now time.Time) bool {
	return u.BoostedUntil != nil && u.BoostedUntil.After(now)
}
