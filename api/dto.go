/*
dto.go - Data Transfer Objects for API requests and responses

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

Validation happens in handlers; DTOs are pure data carriers.
*/
package api

import (
	"time"

	"github.com/skillswap/credit-engine/connection"
	"github.com/skillswap/credit-engine/credit"
	"github.com/skillswap/credit-engine/matchmaking"
	"github.com/skillswap/credit-engine/skill"
)

// ErrorResponse is the JSON shape of every error reply.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// SKILLS
// =============================================================================

type SkillDTO struct {
	ID          string   `json:"id"`
	OwnerID     string   `json:"owner_id"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Price       float64  `json:"price"`
	Tags        []string `json:"tags"`
	CreatedAt   string   `json:"created_at"`
}

type CreateSkillRequest struct {
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Price       float64  `json:"price"`
	Tags        []string `json:"tags,omitempty"`
}

func toSkillDTO(sk skill.Skill) SkillDTO {
	tags := sk.Tags
	if tags == nil {
		tags = []string{}
	}
	return SkillDTO{
		ID:          sk.ID,
		OwnerID:     sk.OwnerID,
		Title:       sk.Title,
		Description: sk.Description,
		Price:       sk.Price.Float64(),
		Tags:        tags,
		CreatedAt:   sk.CreatedAt.Format(time.RFC3339),
	}
}

// =============================================================================
// CONNECTIONS
// =============================================================================

type ConnectionDTO struct {
	ID        string  `json:"id"`
	SkillID   string  `json:"skill_id"`
	LearnerID string  `json:"learner_id"`
	TeacherID string  `json:"teacher_id"`
	Price     float64 `json:"price"`
	Status    string  `json:"status"`
	Message   string  `json:"message,omitempty"`
	CreatedAt string  `json:"created_at"`
	UpdatedAt string  `json:"updated_at"`
}

type CreateConnectionRequest struct {
	SkillID string `json:"skill_id"`
	Message string `json:"message,omitempty"`
}

type UpdateConnectionRequest struct {
	Status string `json:"status"`
}

// UpdateConnectionResponse carries the updated connection and, when this
// call performed the acceptance charge, the transfer outcome.
type UpdateConnectionResponse struct {
	Connection ConnectionDTO `json:"connection"`
	Transfer   *TransferDTO  `json:"transfer,omitempty"`
}

type TransferDTO struct {
	PayerBalance float64 `json:"payer_balance"`
	PayeeBalance float64 `json:"payee_balance"`
	Amount       float64 `json:"amount"`
}

func toConnectionDTO(c connection.Connection) ConnectionDTO {
	return ConnectionDTO{
		ID:        c.ID,
		SkillID:   c.SkillID,
		LearnerID: c.LearnerID,
		TeacherID: c.TeacherID,
		Price:     c.Price.Float64(),
		Status:    string(c.Status),
		Message:   c.Message,
		CreatedAt: c.CreatedAt.Format(time.RFC3339),
		UpdatedAt: c.UpdatedAt.Format(time.RFC3339),
	}
}

// =============================================================================
// CREDITS
// =============================================================================

type BalanceDTO struct {
	AccountID string  `json:"account_id"`
	Balance   float64 `json:"balance"`
}

type TransactionDTO struct {
	ID        string            `json:"id"`
	Kind      string            `json:"kind"`
	Amount    float64           `json:"amount"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt string            `json:"created_at"`
}

type GrantRequest struct {
	Amount float64 `json:"amount"`
	Reason string  `json:"reason,omitempty"`
}

func toTransactionDTO(tx credit.Transaction) TransactionDTO {
	return TransactionDTO{
		ID:        string(tx.ID),
		Kind:      string(tx.Kind),
		Amount:    tx.Amount.Float64(),
		Metadata:  tx.Metadata,
		CreatedAt: tx.CreatedAt.Format(time.RFC3339),
	}
}

// =============================================================================
// MATCHMAKING
// =============================================================================

type MatchDTO struct {
	Skill SkillDTO `json:"skill"`
	Score float64  `json:"score"`
}

type SearchRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit,omitempty"`
}

func toMatchDTOs(matches []matchmaking.Match) []MatchDTO {
	dtos := make([]MatchDTO, len(matches))
	for i, m := range matches {
		dtos[i] = MatchDTO{Skill: toSkillDTO(m.Skill), Score: m.Score}
	}
	return dtos
}
