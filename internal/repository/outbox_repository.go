package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/rental-backend/internal/models"
)

// OutboxRepository - очередь отложенных побочных эффектов в той же базе.
type OutboxRepository struct {
	db *sqlx.DB
}

func NewOutboxRepository(db *sqlx.DB) *OutboxRepository {
	return &OutboxRepository{db: db}
}

// Enqueue ставит событие в очередь.
func (r *OutboxRepository) Enqueue(ctx context.Context, topic string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("outbox repository: marshal %s %w", topic, err)
	}
	if _, err := r.db.ExecContext(ctx, `
		INSERT INTO outbox_events (topic, payload) VALUES ($1, $2)
	`, topic, string(raw)); err != nil {
		return fmt.Errorf("outbox repository: enqueue %s %w", topic, err)
	}
	return nil
}

// Claim забирает пачку готовых событий и продлевает их available_at на lease,
// чтобы параллельный диспетчер не взял их повторно. SKIP LOCKED пропускает строки,
// которые прямо сейчас забирает другой диспетчер.
func (r *OutboxRepository) Claim(ctx context.Context, now time.Time, limit int, lease time.Duration) ([]models.OutboxEvent, error) {
	var events []models.OutboxEvent
	if err := r.db.SelectContext(ctx, &events, `
		WITH batch AS (
			SELECT id FROM outbox_events
			WHERE processed_at IS NULL AND available_at <= $1
			ORDER BY created_at
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		)
		UPDATE outbox_events o SET attempts = o.attempts + 1, available_at = $3
		FROM batch WHERE o.id = batch.id
		RETURNING o.*
	`, now, limit, now.Add(lease)); err != nil {
		return nil, fmt.Errorf("outbox repository: claim %w", err)
	}
	return events, nil
}

// MarkProcessed отмечает событие доставленным.
func (r *OutboxRepository) MarkProcessed(ctx context.Context, id uuid.UUID, at time.Time) error {
	if _, err := r.db.ExecContext(ctx, `
		UPDATE outbox_events SET processed_at = $2, last_error = NULL WHERE id = $1
	`, id, at); err != nil {
		return fmt.Errorf("outbox repository: mark processed %w", err)
	}
	return nil
}

// MarkFailed откладывает повторную попытку до retryAt.
func (r *OutboxRepository) MarkFailed(ctx context.Context, id uuid.UUID, cause string, retryAt time.Time) error {
	if _, err := r.db.ExecContext(ctx, `
		UPDATE outbox_events SET last_error = $2, available_at = $3 WHERE id = $1
	`, id, cause, retryAt); err != nil {
		return fmt.Errorf("outbox repository: mark failed %w", err)
	}
	return nil
}

// MarkDead закрывает событие, исчерпавшее попытки. Ошибка остаётся в last_error.
func (r *OutboxRepository) MarkDead(ctx context.Context, id uuid.UUID, cause string, at time.Time) error {
	if _, err := r.db.ExecContext(ctx, `
		UPDATE outbox_events SET last_error = $2, processed_at = $3 WHERE id = $1
	`, id, cause, at); err != nil {
		return fmt.Errorf("outbox repository: mark dead %w", err)
	}
	return nil
}
