package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/ignatzorin/rental-backend/internal/models"
	"github.com/ignatzorin/rental-backend/internal/pkg/apperror"
	"github.com/ignatzorin/rental-backend/internal/repository/common"
)

// ChecklistRepository хранит акты въезда и выезда.
type ChecklistRepository struct {
	db *sqlx.DB
}

func NewChecklistRepository(db *sqlx.DB) *ChecklistRepository {
	return &ChecklistRepository{db: db}
}

// Create сохраняет чек-лист. Второй чек-лист того же вида по договору отсекается уникальным ключом.
func (r *ChecklistRepository) Create(ctx context.Context, c *models.MoveInOutChecklist) error {
	if c.Media == nil {
		c.Media = pq.StringArray{}
	}
	err := r.db.QueryRowxContext(ctx, `
		INSERT INTO move_checklists (contract_id, type, created_by, rooms, amenities, media, notes, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at
	`, c.ContractID, c.Type, c.CreatedBy, c.Rooms, c.Amenities, c.Media, c.Notes, c.Status).
		Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if _, ok := common.UniqueViolation(err); ok {
			return fmt.Errorf("checklist repository: create %w", common.ErrAlreadyExists)
		}
		return fmt.Errorf("checklist repository: create %w", err)
	}
	return nil
}

func (r *ChecklistRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.MoveInOutChecklist, error) {
	c, err := common.GetOne[models.MoveInOutChecklist](ctx, r.db, apperror.ErrChecklistNotFound, `SELECT * FROM move_checklists WHERE id = $1`, id)
	if err != nil && !apperror.IsNotFound(err) {
		return nil, fmt.Errorf("checklist repository: get by id %w", err)
	}
	return c, err
}

// GetByContractAndType возвращает чек-лист нужного вида по договору.
func (r *ChecklistRepository) GetByContractAndType(ctx context.Context, contractID uuid.UUID, checklistType string) (*models.MoveInOutChecklist, error) {
	c, err := common.GetOne[models.MoveInOutChecklist](ctx, r.db, apperror.ErrChecklistNotFound, `
		SELECT * FROM move_checklists WHERE contract_id = $1 AND type = $2
	`, contractID, checklistType)
	if err != nil && !apperror.IsNotFound(err) {
		return nil, fmt.Errorf("checklist repository: get by contract and type %w", err)
	}
	return c, err
}

func (r *ChecklistRepository) ListByContract(ctx context.Context, contractID uuid.UUID) ([]models.MoveInOutChecklist, error) {
	var checklists []models.MoveInOutChecklist
	if err := r.db.SelectContext(ctx, &checklists, `
		SELECT * FROM move_checklists WHERE contract_id = $1 ORDER BY created_at
	`, contractID); err != nil {
		return nil, fmt.Errorf("checklist repository: list by contract %w", err)
	}
	return checklists, nil
}

// UpdateContent переписывает содержимое неутверждённого чек-листа и сбрасывает согласования.
func (r *ChecklistRepository) UpdateContent(ctx context.Context, c *models.MoveInOutChecklist) (bool, error) {
	if c.Media == nil {
		c.Media = pq.StringArray{}
	}
	ok, err := common.ExecCAS(ctx, r.db, `
		UPDATE move_checklists SET
			rooms = $2, amenities = $3, media = $4, notes = $5,
			tenant_approved = FALSE, tenant_approved_at = NULL,
			landlord_approved = FALSE, landlord_approved_at = NULL,
			status = 'draft', updated_at = NOW()
		WHERE id = $1 AND status <> 'approved'
	`, c.ID, c.Rooms, c.Amenities, c.Media, c.Notes)
	if err != nil {
		return false, fmt.Errorf("checklist repository: update content %w", err)
	}
	return ok, nil
}

// Approve ставит согласование стороны. Когда согласованы обе стороны, чек-лист утверждается.
func (r *ChecklistRepository) Approve(ctx context.Context, id uuid.UUID, party models.Party, at time.Time) (bool, error) {
	var query string
	switch party {
	case models.PartyTenant:
		query = `
			UPDATE move_checklists SET tenant_approved = TRUE, tenant_approved_at = $2,
				status = CASE WHEN landlord_approved THEN 'approved' ELSE 'pending_approval' END,
				updated_at = $2
			WHERE id = $1 AND status <> 'approved' AND NOT tenant_approved
		`
	case models.PartyLandlord:
		query = `
			UPDATE move_checklists SET landlord_approved = TRUE, landlord_approved_at = $2,
				status = CASE WHEN tenant_approved THEN 'approved' ELSE 'pending_approval' END,
				updated_at = $2
			WHERE id = $1 AND status <> 'approved' AND NOT landlord_approved
		`
	default:
		return false, fmt.Errorf("checklist repository: unknown party %q", party)
	}

	ok, err := common.ExecCAS(ctx, r.db, query, id, at)
	if err != nil {
		return false, fmt.Errorf("checklist repository: approve %w", err)
	}
	return ok, nil
}

// AdminOverride утверждает чек-лист за обе стороны.
func (r *ChecklistRepository) AdminOverride(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	ok, err := common.ExecCAS(ctx, r.db, `
		UPDATE move_checklists SET
			tenant_approved = TRUE, tenant_approved_at = COALESCE(tenant_approved_at, $2),
			landlord_approved = TRUE, landlord_approved_at = COALESCE(landlord_approved_at, $2),
			admin_override = TRUE, status = 'approved', updated_at = $2
		WHERE id = $1 AND status <> 'approved'
	`, id, at)
	if err != nil {
		return false, fmt.Errorf("checklist repository: admin override %w", err)
	}
	return ok, nil
}

// SaveDamageAssessment сохраняет оценку ущерба на чек-листе выезда.
func (r *ChecklistRepository) SaveDamageAssessment(ctx context.Context, id uuid.UUID, assessment *models.DamageAssessment) error {
	ok, err := common.ExecCAS(ctx, r.db, `
		UPDATE move_checklists SET damage_assessment = $2, updated_at = NOW() WHERE id = $1
	`, id, assessment)
	if err != nil {
		return fmt.Errorf("checklist repository: save damage assessment %w", err)
	}
	if !ok {
		return apperror.ErrChecklistNotFound
	}
	return nil
}
