package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/rental-backend/internal/models"
	"github.com/ignatzorin/rental-backend/internal/pkg/apperror"
	"github.com/ignatzorin/rental-backend/internal/repository/common"
)

// UserRepository отвечает за участников сделок и их счётчики договоров.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository создаёт экземпляр репозитория.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create создаёт нового пользователя.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (email, display_name, phone, role)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at
	`

	if err := r.db.QueryRowxContext(
		ctx, query,
		user.Email, user.DisplayName, user.Phone, user.Role,
	).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt); err != nil {
		return fmt.Errorf("user repository: create %w", err)
	}

	return nil
}

// GetByID возвращает пользователя по идентификатору.
func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	user, err := common.GetOne[models.User](ctx, r.db, apperror.ErrUserNotFound, `SELECT * FROM users WHERE id = $1`, id)
	if err != nil && !apperror.IsNotFound(err) {
		return nil, fmt.Errorf("user repository: get by id %w", err)
	}
	return user, err
}

// AdjustActiveContracts меняет счётчики активных договоров обеих сторон в одной транзакции.
// Счётчики не опускаются ниже нуля.
func (r *UserRepository) AdjustActiveContracts(ctx context.Context, tenantID, landlordID uuid.UUID, delta int) error {
	return common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			UPDATE users SET active_contracts_as_tenant = GREATEST(active_contracts_as_tenant + $2, 0), updated_at = NOW()
			WHERE id = $1
		`, tenantID, delta); err != nil {
			return fmt.Errorf("user repository: adjust tenant counter %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE users SET active_contracts_as_landlord = GREATEST(active_contracts_as_landlord + $2, 0), updated_at = NOW()
			WHERE id = $1
		`, landlordID, delta); err != nil {
			return fmt.Errorf("user repository: adjust landlord counter %w", err)
		}
		return nil
	})
}
