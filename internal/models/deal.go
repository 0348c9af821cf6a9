package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Deal защищённая сделка между клиентом и исполнителем.
type Deal struct {
	ID              uuid.UUID  `db:"id" json:"id"`
	ProjectID       uuid.UUID  `db:"project_id" json:"project_id"`
	ProposalID      uuid.UUID  `db:"proposal_id" json:"proposal_id"`
	SenderID        uuid.UUID  `db:"sender_id" json:"sender_id"`
	ReceiverID      uuid.UUID  `db:"receiver_id" json:"receiver_id"`
	Amount          float64    `db:"amount" json:"amount"`
	Currency        string     `db:"currency" json:"currency"`
	Status          string     `db:"status" json:"status"`
	EscrowPaymentID *string    `db:"escrow_payment_id" json:"escrow_payment_id,omitempty"`
	EscrowedAt      *time.Time `db:"escrowed_at" json:"escrowed_at,omitempty"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updated_at"`
}

// IsFunded сообщает, поступила ли оплата по сделке.
func (d *Deal) IsFunded() bool {
	return d.EscrowedAt != nil
}

// IsParticipant сообщает, является ли пользователь стороной сделки.
func (d *Deal) IsParticipant(userID uuid.UUID) bool {
	return d.SenderID == userID || d.ReceiverID == userID
}

// CreatedDeal результат создания сделки: сделка и секрет для оплаты на клиенте.
type CreatedDeal struct {
	Deal         *Deal  `json:"deal"`
	ClientSecret string `json:"client_secret"`
}

// ReleasedDeal сделка после подтверждения с рассчитанной комиссией.
type ReleasedDeal struct {
	*Deal
	PlatformFee      float64 `json:"platform_fee"`
	FreelancerAmount float64 `json:"freelancer_amount"`
}

// ReleasedDealRecord завершённая сделка с навыками проекта, вход для ранжирования.
type ReleasedDealRecord struct {
	ReceiverID    uuid.UUID      `db:"receiver_id"`
	Amount        float64        `db:"amount"`
	ProjectSkills pq.StringArray `db:"project_skills"`
}
