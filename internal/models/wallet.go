package models

import (
	"time"

	"github.com/google/uuid"
)

// Типы транзакций
const (
	TransactionTypeEscrowRelease = "escrow_release"
	TransactionTypeCredit        = "credit"
	TransactionTypeFee           = "fee"
	TransactionTypeWithdrawal    = "withdrawal"
)

// Wallet представляет кошелёк пользователя.
type Wallet struct {
	ID        uuid.UUID `db:"id" json:"id"`
	UserID    uuid.UUID `db:"user_id" json:"user_id"`
	Balance   float64   `db:"balance" json:"balance"`
	Pending   float64   `db:"pending" json:"pending"`
	Currency  string    `db:"currency" json:"currency"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Transaction неизменяемая запись журнала движения средств.
type Transaction struct {
	ID              uuid.UUID  `db:"id" json:"id"`
	UserID          uuid.UUID  `db:"user_id" json:"user_id"`
	DealID          *uuid.UUID `db:"deal_id" json:"deal_id,omitempty"`
	PayoutRequestID *uuid.UUID `db:"payout_request_id" json:"payout_request_id,omitempty"`
	Type            string     `db:"type" json:"type"`
	Amount          float64    `db:"amount" json:"amount"`
	Description     string     `db:"description" json:"description"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
}

// BoostPurchase результат покупки буста профиля.
type BoostPurchase struct {
	Charged      float64   `json:"charged"`
	Currency     string    `json:"currency"`
	BoostedUntil time.Time `json:"boosted_until"`
	Days         int       `json:"days"`
	Balance      float64   `json:"balance"`
}

// BoostOffer текущие условия буста.
type BoostOffer struct {
	Price    float64 `json:"price"`
	Days     int     `json:"days"`
	Currency string  `json:"currency"`
}
