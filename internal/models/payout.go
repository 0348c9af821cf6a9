package models

import (
	"time"

	"github.com/google/uuid"
)

type PayoutRequest struct {
	ID          uuid.UUID  `db:"id" json:"id"`
	UserID      uuid.UUID  `db:"user_id" json:"user_id"`
	Amount      float64    `db:"amount" json:"amount"`
	Fee         float64    `db:"fee" json:"fee"`
	Status      string     `db:"status" json:"status"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	ProcessedAt *time.Time `db:"processed_at" json:"processed_at,omitempty"`
}
