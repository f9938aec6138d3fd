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

// WalletRepository хранит графики платежей и журнал напоминаний.
type WalletRepository struct {
	db *sqlx.DB
}

// NewWalletRepository создаёт экземпляр репозитория.
func NewWalletRepository(db *sqlx.DB) *WalletRepository {
	return &WalletRepository{db: db}
}

// CreateWithPeriods создаёт кошелёк вместе с периодами.
// Если кошелёк для договора уже есть, ничего не пишет и возвращает false.
func (r *WalletRepository) CreateWithPeriods(ctx context.Context, w *models.Wallet) (bool, error) {
	created := false
	err := common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		err := tx.QueryRowxContext(ctx, `
			INSERT INTO wallets (contract_id, tenant_id, landlord_id, listing_id, late_fee_percentage, reminders_sent)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (contract_id) DO NOTHING
			RETURNING id, created_at, updated_at
		`, w.ContractID, w.TenantID, w.LandlordID, w.ListingID, w.LateFeePercentage, w.RemindersSent).
			Scan(&w.ID, &w.CreatedAt, &w.UpdatedAt)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("wallet repository: create %w", err)
		}

		inserter := common.NewBatchInserter(tx,
			`INSERT INTO payment_periods (wallet_id, month, year, amount, due_date, status)`, 6, 50)
		for i := range w.Periods {
			p := &w.Periods[i]
			p.WalletID = w.ID
			if err := inserter.Add(ctx, p.WalletID, p.Month, p.Year, p.Amount, p.DueDate, p.Status); err != nil {
				return fmt.Errorf("wallet repository: create periods %w", err)
			}
		}
		if err := inserter.Flush(ctx); err != nil {
			return fmt.Errorf("wallet repository: create periods %w", err)
		}

		created = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return created, nil
}

// GetByContractID возвращает кошелёк договора с периодами по порядку.
func (r *WalletRepository) GetByContractID(ctx context.Context, contractID uuid.UUID) (*models.Wallet, error) {
	wallet, err := common.GetOne[models.Wallet](ctx, r.db, apperror.ErrWalletNotFound, `SELECT * FROM wallets WHERE contract_id = $1`, contractID)
	if err != nil {
		if apperror.IsNotFound(err) {
			return nil, err
		}
		return nil, fmt.Errorf("wallet repository: get by contract %w", err)
	}

	if err := r.db.SelectContext(ctx, &wallet.Periods, `
		SELECT * FROM payment_periods WHERE wallet_id = $1 ORDER BY year, month
	`, wallet.ID); err != nil {
		return nil, fmt.Errorf("wallet repository: list periods %w", err)
	}
	return wallet, nil
}

// ExistsForContract сообщает, создан ли уже кошелёк договора.
func (r *WalletRepository) ExistsForContract(ctx context.Context, contractID uuid.UUID) (bool, error) {
	var exists bool
	if err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM wallets WHERE contract_id = $1)`, contractID); err != nil {
		return false, fmt.Errorf("wallet repository: exists %w", err)
	}
	return exists, nil
}

// PaymentUpdate - внешнее подтверждение по платёжному периоду.
type PaymentUpdate struct {
	Month     int
	Year      int
	Status    valueobject.PaymentStatus
	Reference *string
	PaidAt    *time.Time
}

// UpdatePeriodStatus меняет статус периода. Оплаченный период больше не меняется.
func (r *WalletRepository) UpdatePeriodStatus(ctx context.Context, walletID uuid.UUID, u PaymentUpdate) (bool, error) {
	ok, err := common.ExecCAS(ctx, r.db, `
		UPDATE payment_periods SET
			status = $4,
			payment_reference = COALESCE($5, payment_reference),
			paid_at = COALESCE($6, paid_at)
		WHERE wallet_id = $1 AND month = $2 AND year = $3 AND status <> 'completed'
	`, walletID, u.Month, u.Year, u.Status, u.Reference, u.PaidAt)
	if err != nil {
		return false, fmt.Errorf("wallet repository: update period status %w", err)
	}
	return ok, nil
}

// ClaimReminder отмечает отправку напоминания по периоду.
// Запись проходит, только если сегодня (после dayStart) напоминания ещё не было,
// поэтому из двух параллельных проходов отправит только один.
func (r *WalletRepository) ClaimReminder(ctx context.Context, walletID uuid.UUID, key string, now, dayStart time.Time) (bool, error) {
	ok, err := common.ExecCAS(ctx, r.db, `
		UPDATE wallets SET
			reminders_sent = jsonb_set(COALESCE(reminders_sent, '{}'::jsonb), ARRAY[$2::text], to_jsonb($3::timestamptz)),
			updated_at = $3
		WHERE id = $1 AND (
			reminders_sent->>$2::text IS NULL
			OR (reminders_sent->>$2::text)::timestamptz < $4
		)
	`, walletID, key, now, dayStart)
	if err != nil {
		return false, fmt.Errorf("wallet repository: claim reminder %w", err)
	}
	return ok, nil
}

// MarkOverdue переводит период в overdue и начисляет пеню.
// Пеня начисляется один раз: повторный вызов по уже просроченному периоду ничего не меняет.
func (r *WalletRepository) MarkOverdue(ctx context.Context, periodID uuid.UUID, penalty float64) (bool, error) {
	ok, err := common.ExecCAS(ctx, r.db, `
		UPDATE payment_periods SET status = 'overdue', penalty_amount = $2
		WHERE id = $1 AND (status = 'pending' OR (status = 'failed' AND penalty_amount = 0))
	`, periodID, penalty)
	if err != nil {
		return false, fmt.Errorf("wallet repository: mark overdue %w", err)
	}
	return ok, nil
}

// ListDue возвращает кошельки активных договоров, у которых есть неоплаченные
// периоды со сроком до horizon. В Periods попадают только такие периоды.
func (r *WalletRepository) ListDue(ctx context.Context, horizon time.Time) ([]models.Wallet, error) {
	var wallets []models.Wallet
	if err := r.db.SelectContext(ctx, &wallets, `
		SELECT w.* FROM wallets w
		JOIN contracts c ON c.id = w.contract_id
		WHERE c.status = 'active' AND EXISTS (
			SELECT 1 FROM payment_periods p
			WHERE p.wallet_id = w.id AND p.status IN ('pending', 'overdue', 'failed') AND p.due_date <= $1
		)
		ORDER BY w.created_at
	`, horizon); err != nil {
		return nil, fmt.Errorf("wallet repository: list due %w", err)
	}
	if len(wallets) == 0 {
		return wallets, nil
	}

	ids := make([]string, len(wallets))
	index := make(map[uuid.UUID]int, len(wallets))
	for i, w := range wallets {
		ids[i] = w.ID.String()
		index[w.ID] = i
	}

	var periods []models.PaymentPeriod
	if err := r.db.SelectContext(ctx, &periods, `
		SELECT * FROM payment_periods
		WHERE wallet_id = ANY($1::uuid[]) AND status IN ('pending', 'overdue', 'failed') AND due_date <= $2
		ORDER BY year, month
	`, pq.Array(ids), horizon); err != nil {
		return nil, fmt.Errorf("wallet repository: list due periods %w", err)
	}
	for _, p := range periods {
		if i, ok := index[p.WalletID]; ok {
			wallets[i].Periods = append(wallets[i].Periods, p)
		}
	}
	return wallets, nil
}
