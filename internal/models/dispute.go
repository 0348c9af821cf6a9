package models

import (
	"time"

	"github.com/google/uuid"
)

type Dispute struct {
	ID           uuid.UUID  `db:"id" json:"id"`
	DealID       uuid.UUID  `db:"deal_id" json:"deal_id"`
	UserID       uuid.UUID  `db:"user_id" json:"user_id"`
	Title        string     `db:"title" json:"title"`
	Description  string     `db:"description" json:"description"`
	Status       string     `db:"status" json:"status"`
	Resolution   *string    `db:"resolution" json:"resolution,omitempty"`
	Amount       *float64   `db:"amount" json:"amount,omitempty"`
	ResolvedByID *uuid.UUID `db:"resolved_by_id" json:"resolved_by_id,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	ResolvedAt   *time.Time `db:"resolved_at" json:"resolved_at,omitempty"`
}

// ResolvedDispute результат решения спора.
type ResolvedDispute struct {
	Dispute          *Dispute `json:"dispute"`
	Deal             *Deal    `json:"deal"`
	PlatformFee      float64  `json:"platform_fee"`
	FreelancerAmount float64  `json:"freelancer_amount"`
}
