package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/rental-backend/internal/domain/valueobject"
	"github.com/ignatzorin/rental-backend/internal/models"
	"github.com/ignatzorin/rental-backend/internal/pkg/apperror"
	"github.com/ignatzorin/rental-backend/internal/repository/common"
)

// ErrDuplicateContractCode - сгенерированный код договора уже занят, нужно сгенерировать новый.
var ErrDuplicateContractCode = errors.New("contract code already taken")

// ContractRepository отвечает за договоры аренды.
type ContractRepository struct {
	db *sqlx.DB
}

// NewContractRepository создаёт экземпляр репозитория.
func NewContractRepository(db *sqlx.DB) *ContractRepository {
	return &ContractRepository{db: db}
}

// Create сохраняет договор. Второй договор на ту же бронь отсекается уникальным индексом.
func (r *ContractRepository) Create(ctx context.Context, c *models.Contract) error {
	query := `
		INSERT INTO contracts (
			code, booking_id, listing_id, tenant_id, landlord_id,
			rent_lock_plan, lock_duration, locked_rent_amount, start_date, end_date,
			payment_frequency, due_date, security_deposit, maintenance_charges, late_fee_percentage,
			terms_digest, status
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		RETURNING id, created_at, updated_at
	`

	err := r.db.QueryRowxContext(
		ctx, query,
		c.Code, c.BookingID, c.ListingID, c.TenantID, c.LandlordID,
		c.RentLockPlan, c.LockDuration, c.LockedRentAmount, c.StartDate, c.EndDate,
		c.PaymentFrequency, c.DueDate, c.SecurityDeposit, c.MaintenanceCharges, c.LateFeePercentage,
		c.TermsDigest, c.Status,
	).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if constraint, ok := common.UniqueViolation(err); ok {
			if constraint == "contracts_code_key" {
				return ErrDuplicateContractCode
			}
			return fmt.Errorf("contract repository: create %w", common.ErrAlreadyExists)
		}
		return fmt.Errorf("contract repository: create %w", err)
	}

	return nil
}

func (r *ContractRepository) get(ctx context.Context, op, query string, arg interface{}) (*models.Contract, error) {
	contract, err := common.GetOne[models.Contract](ctx, r.db, apperror.ErrContractNotFound, query, arg)
	if err != nil && !apperror.IsNotFound(err) {
		return nil, fmt.Errorf("contract repository: %s %w", op, err)
	}
	return contract, err
}

// GetByID возвращает договор по внутреннему идентификатору.
func (r *ContractRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Contract, error) {
	return r.get(ctx, "get by id", `SELECT * FROM contracts WHERE id = $1`, id)
}

// GetByCode возвращает договор по человекочитаемому коду.
func (r *ContractRepository) GetByCode(ctx context.Context, code string) (*models.Contract, error) {
	return r.get(ctx, "get by code", `SELECT * FROM contracts WHERE code = $1`, code)
}

// GetByBookingID возвращает договор, заключённый по брони.
func (r *ContractRepository) GetByBookingID(ctx context.Context, bookingID uuid.UUID) (*models.Contract, error) {
	return r.get(ctx, "get by booking", `SELECT * FROM contracts WHERE booking_id = $1`, bookingID)
}

// ListByParty возвращает договоры, где пользователь арендатор или арендодатель.
func (r *ContractRepository) ListByParty(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Contract, error) {
	var contracts []models.Contract
	if err := r.db.SelectContext(ctx, &contracts, `
		SELECT * FROM contracts
		WHERE tenant_id = $1 OR landlord_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, userID, limit, offset); err != nil {
		return nil, fmt.Errorf("contract repository: list by party %w", err)
	}
	return contracts, nil
}

// ListExpired возвращает активные договоры с истёкшим сроком.
func (r *ContractRepository) ListExpired(ctx context.Context, now time.Time, limit int) ([]models.Contract, error) {
	var contracts []models.Contract
	if err := r.db.SelectContext(ctx, &contracts, `
		SELECT * FROM contracts
		WHERE status = 'active' AND end_date <= $1
		ORDER BY end_date
		LIMIT $2
	`, now, limit); err != nil {
		return nil, fmt.Errorf("contract repository: list expired %w", err)
	}
	return contracts, nil
}

// RecordSignature ставит подпись стороны. Срабатывает только пока договор ждёт подписей
// и эта сторона ещё не подписала.
func (r *ContractRepository) RecordSignature(ctx context.Context, id uuid.UUID, party models.Party, sig models.Signature, digest string) (bool, error) {
	var query string
	switch party {
	case models.PartyTenant:
		query = `
			UPDATE contracts SET tenant_signed = TRUE, tenant_signed_at = $2, tenant_ip_address = $3,
				tenant_user_agent = $4, terms_digest = $5, updated_at = $2
			WHERE id = $1 AND status = 'pending_signature' AND NOT tenant_signed
		`
	case models.PartyLandlord:
		query = `
			UPDATE contracts SET landlord_signed = TRUE, landlord_signed_at = $2, landlord_ip_address = $3,
				landlord_user_agent = $4, terms_digest = $5, updated_at = $2
			WHERE id = $1 AND status = 'pending_signature' AND NOT landlord_signed
		`
	default:
		return false, fmt.Errorf("contract repository: unknown party %q", party)
	}

	ok, err := common.ExecCAS(ctx, r.db, query, id, sig.SignedAt, sig.IPAddress, sig.UserAgent, digest)
	if err != nil {
		return false, fmt.Errorf("contract repository: record signature %w", err)
	}
	return ok, nil
}

// Activate переводит полностью подписанный договор в active.
// Ровно один из конкурирующих вызовов получает true.
func (r *ContractRepository) Activate(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	ok, err := common.ExecCAS(ctx, r.db, `
		UPDATE contracts SET status = 'active', activated_at = $2, updated_at = $2
		WHERE id = $1 AND status = 'pending_signature' AND tenant_signed AND landlord_signed
	`, id, at)
	if err != nil {
		return false, fmt.Errorf("contract repository: activate %w", err)
	}
	return ok, nil
}

// StatusChange описывает административный перевод договора.
type StatusChange struct {
	From   valueobject.ContractStatus
	To     valueobject.ContractStatus
	Actor  *uuid.UUID
	Reason *string
	At     time.Time
	// ResetSignatures снимает обе подписи при возврате договора на подписание.
	ResetSignatures bool
}

// Transition меняет статус, только если договор всё ещё в статусе From.
func (r *ContractRepository) Transition(ctx context.Context, id uuid.UUID, change StatusChange) (bool, error) {
	closing := change.To.IsTerminal()
	ok, err := common.ExecCAS(ctx, r.db, `
		UPDATE contracts SET
			status = $3,
			terminated_by = CASE WHEN $4 THEN $5::uuid ELSE terminated_by END,
			termination_reason = CASE WHEN $4 THEN $6 ELSE termination_reason END,
			terminated_at = CASE WHEN $4 THEN $7 ELSE terminated_at END,
			activated_at = CASE WHEN $3 = 'active' THEN COALESCE(activated_at, $7) ELSE activated_at END,
			tenant_signed = tenant_signed AND NOT $8,
			tenant_signed_at = CASE WHEN $8 THEN NULL ELSE tenant_signed_at END,
			landlord_signed = landlord_signed AND NOT $8,
			landlord_signed_at = CASE WHEN $8 THEN NULL ELSE landlord_signed_at END,
			updated_at = $7
		WHERE id = $1 AND status = $2
	`, id, change.From, change.To, closing, change.Actor, change.Reason, change.At, change.ResetSignatures)
	if err != nil {
		return false, fmt.Errorf("contract repository: transition %w", err)
	}
	return ok, nil
}
