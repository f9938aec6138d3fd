package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/ignatzorin/rental-backend/internal/domain/valueobject"
	"github.com/ignatzorin/rental-backend/internal/models"
	"github.com/ignatzorin/rental-backend/internal/pkg/apperror"
	"github.com/ignatzorin/rental-backend/internal/repository/common"
)

type DisputeRepository struct {
	db *sqlx.DB
}

func NewDisputeRepository(db *sqlx.DB) *DisputeRepository {
	return &DisputeRepository{db: db}
}

// Create сохраняет спор. Второй незавершённый спор по договору отсекается частичным индексом.
func (r *DisputeRepository) Create(ctx context.Context, d *models.Dispute) error {
	query := `
		INSERT INTO disputes (contract_id, raised_by, respondent_id, category, title, description, evidence, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at
	`
	if d.Evidence == nil {
		d.Evidence = pq.StringArray{}
	}
	err := r.db.QueryRowxContext(ctx, query,
		d.ContractID, d.RaisedBy, d.RespondentID, d.Category, d.Title, d.Description, d.Evidence, d.Status).
		Scan(&d.ID, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		if _, ok := common.UniqueViolation(err); ok {
			return fmt.Errorf("dispute repository: create %w", common.ErrAlreadyExists)
		}
		return fmt.Errorf("dispute repository: create %w", err)
	}
	return nil
}

func (r *DisputeRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Dispute, error) {
	d, err := common.GetOne[models.Dispute](ctx, r.db, apperror.ErrDisputeNotFound, `SELECT * FROM disputes WHERE id = $1`, id)
	if err != nil && !apperror.IsNotFound(err) {
		return nil, fmt.Errorf("dispute repository: get by id %w", err)
	}
	return d, err
}

// FindActiveByContract возвращает незавершённый спор по договору.
func (r *DisputeRepository) FindActiveByContract(ctx context.Context, contractID uuid.UUID) (*models.Dispute, error) {
	d, err := common.GetOne[models.Dispute](ctx, r.db, apperror.ErrDisputeNotFound, `
		SELECT * FROM disputes
		WHERE contract_id = $1 AND status IN ('open', 'under_review', 'escalated')
	`, contractID)
	if err != nil && !apperror.IsNotFound(err) {
		return nil, fmt.Errorf("dispute repository: find active %w", err)
	}
	return d, err
}

func (r *DisputeRepository) ListByContract(ctx context.Context, contractID uuid.UUID) ([]models.Dispute, error) {
	var disputes []models.Dispute
	if err := r.db.SelectContext(ctx, &disputes, `
		SELECT * FROM disputes WHERE contract_id = $1 ORDER BY created_at DESC
	`, contractID); err != nil {
		return nil, fmt.Errorf("dispute repository: list by contract %w", err)
	}
	return disputes, nil
}

func (r *DisputeRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Dispute, error) {
	var disputes []models.Dispute
	if err := r.db.SelectContext(ctx, &disputes, `
		SELECT * FROM disputes
		WHERE raised_by = $1 OR respondent_id = $1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3
	`, userID, limit, offset); err != nil {
		return nil, fmt.Errorf("dispute repository: list by user %w", err)
	}
	return disputes, nil
}

// ListMessages возвращает переписку по спору в хронологическом порядке.
func (r *DisputeRepository) ListMessages(ctx context.Context, disputeID uuid.UUID) ([]models.DisputeMessage, error) {
	var messages []models.DisputeMessage
	if err := r.db.SelectContext(ctx, &messages, `
		SELECT * FROM dispute_messages WHERE dispute_id = $1 ORDER BY created_at
	`, disputeID); err != nil {
		return nil, fmt.Errorf("dispute repository: list messages %w", err)
	}
	return messages, nil
}

// AddMessage добавляет сообщение, если спор ещё не завершён.
func (r *DisputeRepository) AddMessage(ctx context.Context, m *models.DisputeMessage) (bool, error) {
	if m.Attachments == nil {
		m.Attachments = pq.StringArray{}
	}
	err := r.db.QueryRowxContext(ctx, `
		INSERT INTO dispute_messages (dispute_id, sender_id, body, attachments, read_by)
		SELECT $1, $2, $3, $4, $5
		WHERE EXISTS (
			SELECT 1 FROM disputes WHERE id = $1 AND status IN ('open', 'under_review', 'escalated')
		)
		RETURNING id, created_at
	`, m.DisputeID, m.SenderID, m.Body, m.Attachments, m.ReadBy).Scan(&m.ID, &m.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("dispute repository: add message %w", err)
	}
	return true, nil
}

// MarkRead добавляет пользователя в read_by всех сообщений спора, которые он ещё не читал.
func (r *DisputeRepository) MarkRead(ctx context.Context, disputeID, userID uuid.UUID) error {
	if _, err := r.db.ExecContext(ctx, `
		UPDATE dispute_messages SET read_by = array_append(read_by, $2)
		WHERE dispute_id = $1 AND NOT ($2 = ANY(read_by))
	`, disputeID, userID.String()); err != nil {
		return fmt.Errorf("dispute repository: mark read %w", err)
	}
	return nil
}

// AddEvidence дописывает ссылки на доказательства в незавершённый спор.
func (r *DisputeRepository) AddEvidence(ctx context.Context, id uuid.UUID, refs []string) (bool, error) {
	ok, err := common.ExecCAS(ctx, r.db, `
		UPDATE disputes SET evidence = evidence || $2::text[], updated_at = NOW()
		WHERE id = $1 AND status IN ('open', 'under_review', 'escalated')
	`, id, pq.Array(refs))
	if err != nil {
		return false, fmt.Errorf("dispute repository: add evidence %w", err)
	}
	return ok, nil
}

// DisputeChange - смена статуса спора вместе с сопутствующими полями.
type DisputeChange struct {
	From       valueobject.DisputeStatus
	To         valueobject.DisputeStatus
	At         time.Time
	Resolution *models.DisputeResolution
	// Заполняются при эскалации.
	EscalatedBy      *uuid.UUID
	EscalationReason *string
}

// Transition меняет статус спора, если он всё ещё в статусе From.
func (r *DisputeRepository) Transition(ctx context.Context, id uuid.UUID, change DisputeChange) (bool, error) {
	var (
		decidedBy *uuid.UUID
		decision  *string
		action    *string
		amount    *float64
	)
	if res := change.Resolution; res != nil {
		decidedBy, decision, action, amount = &res.DecidedBy, &res.Decision, &res.Action, res.Amount
	}

	ok, err := common.ExecCAS(ctx, r.db, `
		UPDATE disputes SET
			status = $3,
			resolution_decided_by = COALESCE($4::uuid, resolution_decided_by),
			resolution_decision = COALESCE($5, resolution_decision),
			resolution_action = COALESCE($6, resolution_action),
			resolution_amount = COALESCE($7, resolution_amount),
			resolved_at = CASE WHEN $3 = 'resolved' THEN $10 ELSE resolved_at END,
			escalated_by = COALESCE($8::uuid, escalated_by),
			escalation_reason = COALESCE($9, escalation_reason),
			escalated_at = CASE WHEN $3 = 'escalated' THEN $10 ELSE escalated_at END,
			closed_at = CASE WHEN $3 IN ('resolved', 'closed') THEN $10 ELSE closed_at END,
			updated_at = $10
		WHERE id = $1 AND status = $2
	`, id, change.From, change.To, decidedBy, decision, action, amount,
		change.EscalatedBy, change.EscalationReason, change.At)
	if err != nil {
		return false, fmt.Errorf("dispute repository: transition %w", err)
	}
	return ok, nil
}
