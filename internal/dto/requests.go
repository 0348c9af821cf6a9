package dto

import (
	"github.com/google/uuid"
)

// CreateDealRequest represents the request to open an escrow deal for a proposal
type CreateDealRequest struct {
	ProposalID uuid.UUID `json:"proposal_id" binding:"required"`
	Amount     float64   `json:"amount" binding:"required,gt=0"`
	Currency   string    `json:"currency"`
}

// CreateDisputeRequest represents the request to dispute a deal
type CreateDisputeRequest struct {
	Title       string `json:"title" binding:"required,max=200"`
	Description string `json:"description" binding:"required,max=5000"`
}

// ResolveDisputeRequest represents an admin decision on a dispute
type ResolveDisputeRequest struct {
	Resolution string   `json:"resolution" binding:"required,oneof=release return partial"`
	Amount     *float64 `json:"amount"`
}

// CreatePayoutRequest represents the request to withdraw wallet funds
type CreatePayoutRequest struct {
	Amount float64 `json:"amount" binding:"required,gt=0"`
}

// CreateProjectRequest represents the request to post a project
type CreateProjectRequest struct {
	Title          string   `json:"title" binding:"required,max=200"`
	Description    string   `json:"description" binding:"required"`
	Budget         float64  `json:"budget" binding:"gte=0"`
	Skills         []string `json:"skills"`
	MaxProposals   *int     `json:"max_proposals" binding:"omitempty,min=1"`
	AutomationType string   `json:"automation_type" binding:"omitempty,oneof=telegram_bot telegram_mini_app automation_pipeline ai_assistant integration"`
	BotStage       string   `json:"bot_stage"`
	Integrations   []string `json:"integrations"`
	MainGoal       string   `json:"main_goal"`
	DeadlineDays   *int     `json:"deadline_days" binding:"omitempty,min=1"`
	SupportNeeded  *bool    `json:"support_needed"`
}

// CreateProposalRequest represents a freelancer's proposal
type CreateProposalRequest struct {
	Content string   `json:"content" binding:"required"`
	Price   *float64 `json:"price" binding:"omitempty,gt=0"`
}

// InviteFreelancerRequest represents the request to invite a freelancer to a project
type InviteFreelancerRequest struct {
	FreelancerID uuid.UUID `json:"freelancer_id" binding:"required"`
	Message      string    `json:"message" binding:"max=2000"`
}
