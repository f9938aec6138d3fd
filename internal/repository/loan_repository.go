package repository

import (
	"context"
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

// LoanRepository хранит займы и графики EMI.
type LoanRepository struct {
	db *sqlx.DB
}

func NewLoanRepository(db *sqlx.DB) *LoanRepository {
	return &LoanRepository{db: db}
}

// Create сохраняет заявку вместе с графиком. Вторая активная заявка того же вида
// по договору отсекается частичным уникальным индексом.
func (r *LoanRepository) Create(ctx context.Context, loan *models.RentalLoan) error {
	return common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		err := tx.QueryRowxContext(ctx, `
			INSERT INTO rental_loans (contract_id, borrower_id, loan_type, loan_amount, interest_rate, tenure, emi_amount, purpose, status)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			RETURNING id, created_at, updated_at
		`, loan.ContractID, loan.BorrowerID, loan.LoanType, loan.LoanAmount, loan.InterestRate,
			loan.Tenure, loan.EMIAmount, loan.Purpose, loan.Status).
			Scan(&loan.ID, &loan.CreatedAt, &loan.UpdatedAt)
		if err != nil {
			if _, ok := common.UniqueViolation(err); ok {
				return fmt.Errorf("loan repository: create %w", common.ErrAlreadyExists)
			}
			return fmt.Errorf("loan repository: create %w", err)
		}

		inserter := common.NewBatchInserter(tx,
			`INSERT INTO emi_periods (loan_id, installment, due_date, amount, status)`, 5, 60)
		for i := range loan.Schedule {
			p := &loan.Schedule[i]
			p.LoanID = loan.ID
			if err := inserter.Add(ctx, p.LoanID, p.Installment, p.DueDate, p.Amount, p.Status); err != nil {
				return fmt.Errorf("loan repository: create schedule %w", err)
			}
		}
		if err := inserter.Flush(ctx); err != nil {
			return fmt.Errorf("loan repository: create schedule %w", err)
		}
		return nil
	})
}

// GetByID возвращает заём с графиком.
func (r *LoanRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.RentalLoan, error) {
	loan, err := common.GetOne[models.RentalLoan](ctx, r.db, apperror.ErrLoanNotFound, `SELECT * FROM rental_loans WHERE id = $1`, id)
	if err != nil {
		if apperror.IsNotFound(err) {
			return nil, err
		}
		return nil, fmt.Errorf("loan repository: get by id %w", err)
	}
	if err := r.db.SelectContext(ctx, &loan.Schedule, `
		SELECT * FROM emi_periods WHERE loan_id = $1 ORDER BY installment
	`, loan.ID); err != nil {
		return nil, fmt.Errorf("loan repository: list schedule %w", err)
	}
	return loan, nil
}

// FindActive возвращает незавершённую заявку данного вида по договору.
func (r *LoanRepository) FindActive(ctx context.Context, contractID uuid.UUID, loanType string) (*models.RentalLoan, error) {
	loan, err := common.GetOne[models.RentalLoan](ctx, r.db, apperror.ErrLoanNotFound, `
		SELECT * FROM rental_loans
		WHERE contract_id = $1 AND loan_type = $2 AND status IN ('pending', 'approved', 'disbursed')
	`, contractID, loanType)
	if err != nil && !apperror.IsNotFound(err) {
		return nil, fmt.Errorf("loan repository: find active %w", err)
	}
	return loan, err
}

// ListByContract возвращает займы по договору без графиков.
func (r *LoanRepository) ListByContract(ctx context.Context, contractID uuid.UUID) ([]models.RentalLoan, error) {
	var loans []models.RentalLoan
	if err := r.db.SelectContext(ctx, &loans, `
		SELECT * FROM rental_loans WHERE contract_id = $1 ORDER BY created_at DESC
	`, contractID); err != nil {
		return nil, fmt.Errorf("loan repository: list by contract %w", err)
	}
	return loans, nil
}

// LoanChange - поля, которые проставляются при смене статуса займа.
type LoanChange struct {
	From                  []valueobject.LoanStatus
	To                    valueobject.LoanStatus
	ApprovedBy            *uuid.UUID
	ApprovedAt            *time.Time
	RejectionReason       *string
	DisbursementDate      *time.Time
	DisbursementReference *string
}

// Transition меняет статус займа, если текущий статус входит в From.
func (r *LoanRepository) Transition(ctx context.Context, id uuid.UUID, change LoanChange) (bool, error) {
	from := make([]string, len(change.From))
	for i, s := range change.From {
		from[i] = string(s)
	}

	ok, err := common.ExecCAS(ctx, r.db, `
		UPDATE rental_loans SET
			status = $3,
			approved_by = COALESCE($4::uuid, approved_by),
			approved_at = COALESCE($5, approved_at),
			rejection_reason = COALESCE($6, rejection_reason),
			disbursement_date = COALESCE($7, disbursement_date),
			disbursement_reference = COALESCE($8, disbursement_reference),
			updated_at = NOW()
		WHERE id = $1 AND status = ANY($2)
	`, id, pq.Array(from), change.To, change.ApprovedBy, change.ApprovedAt,
		change.RejectionReason, change.DisbursementDate, change.DisbursementReference)
	if err != nil {
		return false, fmt.Errorf("loan repository: transition %w", err)
	}
	return ok, nil
}

// UpdateEMIStatus меняет статус платежа. Оплаченный платёж больше не меняется.
func (r *LoanRepository) UpdateEMIStatus(ctx context.Context, loanID uuid.UUID, installment int, status valueobject.PaymentStatus, paidAt *time.Time) (bool, error) {
	ok, err := common.ExecCAS(ctx, r.db, `
		UPDATE emi_periods SET status = $3, paid_at = COALESCE($4, paid_at)
		WHERE loan_id = $1 AND installment = $2 AND status <> 'completed'
	`, loanID, installment, status, paidAt)
	if err != nil {
		return false, fmt.Errorf("loan repository: update emi status %w", err)
	}
	return ok, nil
}

// CountOutstanding считает ещё не оплаченные платежи.
func (r *LoanRepository) CountOutstanding(ctx context.Context, loanID uuid.UUID) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM emi_periods WHERE loan_id = $1 AND status <> 'completed'
	`, loanID); err != nil {
		return 0, fmt.Errorf("loan repository: count outstanding %w", err)
	}
	return count, nil
}

// ClaimReminder работает так же, как у кошелька: одна отметка на период в сутки.
func (r *LoanRepository) ClaimReminder(ctx context.Context, loanID uuid.UUID, key string, now, dayStart time.Time) (bool, error) {
	ok, err := common.ExecCAS(ctx, r.db, `
		UPDATE rental_loans SET
			reminders_sent = jsonb_set(COALESCE(reminders_sent, '{}'::jsonb), ARRAY[$2::text], to_jsonb($3::timestamptz)),
			updated_at = $3
		WHERE id = $1 AND (
			reminders_sent->>$2::text IS NULL
			OR (reminders_sent->>$2::text)::timestamptz < $4
		)
	`, loanID, key, now, dayStart)
	if err != nil {
		return false, fmt.Errorf("loan repository: claim reminder %w", err)
	}
	return ok, nil
}

// MarkOverdue переводит платёж в overdue и один раз начисляет пеню.
func (r *LoanRepository) MarkOverdue(ctx context.Context, periodID uuid.UUID, penalty float64) (bool, error) {
	ok, err := common.ExecCAS(ctx, r.db, `
		UPDATE emi_periods SET status = 'overdue', penalty_amount = $2
		WHERE id = $1 AND (status = 'pending' OR (status = 'failed' AND penalty_amount = 0))
	`, periodID, penalty)
	if err != nil {
		return false, fmt.Errorf("loan repository: mark overdue %w", err)
	}
	return ok, nil
}

// ListDue возвращает выданные займы с неоплаченными платежами до horizon.
// В Schedule попадают только такие платежи.
func (r *LoanRepository) ListDue(ctx context.Context, horizon time.Time) ([]models.RentalLoan, error) {
	var loans []models.RentalLoan
	if err := r.db.SelectContext(ctx, &loans, `
		SELECT l.* FROM rental_loans l
		WHERE l.status = 'disbursed' AND EXISTS (
			SELECT 1 FROM emi_periods e
			WHERE e.loan_id = l.id AND e.status IN ('pending', 'overdue', 'failed') AND e.due_date <= $1
		)
		ORDER BY l.created_at
	`, horizon); err != nil {
		return nil, fmt.Errorf("loan repository: list due %w", err)
	}
	if len(loans) == 0 {
		return loans, nil
	}

	ids := make([]string, len(loans))
	index := make(map[uuid.UUID]int, len(loans))
	for i, l := range loans {
		ids[i] = l.ID.String()
		index[l.ID] = i
	}

	var periods []models.EMIPeriod
	if err := r.db.SelectContext(ctx, &periods, `
		SELECT * FROM emi_periods
		WHERE loan_id = ANY($1::uuid[]) AND status IN ('pending', 'overdue', 'failed') AND due_date <= $2
		ORDER BY installment
	`, pq.Array(ids), horizon); err != nil {
		return nil, fmt.Errorf("loan repository: list due schedule %w", err)
	}
	for _, p := range periods {
		if i, ok := index[p.LoanID]; ok {
			loans[i].Schedule = append(loans[i].Schedule, p)
		}
	}
	return loans, nil
}
