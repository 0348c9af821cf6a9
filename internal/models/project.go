package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Project описывает проект клиента.
type Project struct {
	ID           uuid.UUID      `db:"id" json:"id"`
	ClientID     uuid.UUID      `db:"client_id" json:"client_id"`
	Title        string         `db:"title" json:"title"`
	Description  string         `db:"description" json:"description"`
	Budget       float64        `db:"budget" json:"budget"`
	Skills       pq.StringArray `db:"skills" json:"skills"`
	MaxProposals *int           `db:"max_proposals" json:"max_proposals,omitempty"`
	CreatedAt    time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at" json:"updated_at"`
}

// Proposal представляет отклик исполнителя на проект.
type Proposal struct {
	ID           uuid.UUID `db:"id" json:"id"`
	ProjectID    uuid.UUID `db:"project_id" json:"project_id"`
	FreelancerID uuid.UUID `db:"freelancer_id" json:"freelancer_id"`
	Content      string    `db:"content" json:"content"`
	Price        *float64  `db:"price" json:"price,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// ProjectInvite приглашение исполнителя в проект.
type ProjectInvite struct {
	ID           uuid.UUID `db:"id" json:"id"`
	ProjectID    uuid.UUID `db:"project_id" json:"project_id"`
	ClientID     uuid.UUID `db:"client_id" json:"client_id"`
	FreelancerID uuid.UUID `db:"freelancer_id" json:"freelancer_id"`
	Message      *string   `db:"message" json:"message,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// InviteQuota лимит приглашений по проекту.
type InviteQuota struct {
	Plan      string `json:"plan"`
	Limit     int    `json:"limit"`
	Used      int    `json:"used"`
	Remaining int    `json:"remaining"`
}

// NewInviteQuota считает остаток приглашений.
func NewInviteQuota(plan string, limit, used int) InviteQuota {
	remaining := limit - used
	if remaining < 0 {
		remaining = 0
	}
	return InviteQuota{Plan: NormalizePlan(plan), Limit: limit, Used: used, Remaining: remaining}
}
