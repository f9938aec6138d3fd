package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/ignatzorin/rental-backend/internal/domain/valueobject"
)

type Dispute struct {
	ID           uuid.UUID                 `db:"id" json:"id"`
	ContractID   uuid.UUID                 `db:"contract_id" json:"contract_id"`
	RaisedBy     uuid.UUID                 `db:"raised_by" json:"raised_by"`
	RespondentID uuid.UUID                 `db:"respondent_id" json:"respondent_id"`
	Category     string                    `db:"category" json:"category"`
	Title        string                    `db:"title" json:"title"`
	Description  string                    `db:"description" json:"description"`
	Evidence     pq.StringArray            `db:"evidence" json:"evidence"`
	Status       valueobject.DisputeStatus `db:"status" json:"status"`

	ResolutionDecidedBy *uuid.UUID `db:"resolution_decided_by" json:"resolution_decided_by,omitempty"`
	ResolutionDecision  *string    `db:"resolution_decision" json:"resolution_decision,omitempty"`
	ResolutionAction    *string    `db:"resolution_action" json:"resolution_action,omitempty"`
	ResolutionAmount    *float64   `db:"resolution_amount" json:"resolution_amount,omitempty"`
	ResolvedAt          *time.Time `db:"resolved_at" json:"resolved_at,omitempty"`

	EscalatedBy      *uuid.UUID `db:"escalated_by" json:"escalated_by,omitempty"`
	EscalationReason *string    `db:"escalation_reason" json:"escalation_reason,omitempty"`
	EscalatedAt      *time.Time `db:"escalated_at" json:"escalated_at,omitempty"`

	ClosedAt  *time.Time `db:"closed_at" json:"closed_at,omitempty"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt time.Time  `db:"updated_at" json:"updated_at"`

	Messages []DisputeMessage `db:"-" json:"messages,omitempty"`
}

// DisputeMessage - сообщение в переписке по спору.
type DisputeMessage struct {
	ID          uuid.UUID      `db:"id" json:"id"`
	DisputeID   uuid.UUID      `db:"dispute_id" json:"dispute_id"`
	SenderID    uuid.UUID      `db:"sender_id" json:"sender_id"`
	Body        string         `db:"body" json:"body"`
	Attachments pq.StringArray `db:"attachments" json:"attachments"`
	ReadBy      pq.StringArray `db:"read_by" json:"read_by"`
	CreatedAt   time.Time      `db:"created_at" json:"created_at"`
}

// IsReadBy - прочитал ли пользователь сообщение.
func (m DisputeMessage) IsReadBy(userID uuid.UUID) bool {
	id := userID.String()
	for _, reader := range m.ReadBy {
		if reader == id {
			return true
		}
	}
	return false
}

// DisputeResolution - решение администратора по спору.
type DisputeResolution struct {
	DecidedBy uuid.UUID
	Decision  string
	Action    string
	Amount    *float64
}
