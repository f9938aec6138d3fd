package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/rental-backend/internal/goroutine"
	"github.com/ignatzorin/rental-backend/internal/logger"
	"github.com/ignatzorin/rental-backend/internal/models"
)

// OutboxStore - чтение и закрытие событий очереди.
type OutboxStore interface {
	Claim(ctx context.Context, now time.Time, limit int, lease time.Duration) ([]models.OutboxEvent, error)
	MarkProcessed(ctx context.Context, id uuid.UUID, at time.Time) error
	MarkFailed(ctx context.Context, id uuid.UUID, cause string, retryAt time.Time) error
	MarkDead(ctx context.Context, id uuid.UUID, cause string, at time.Time) error
}

// Handler обрабатывает полезную нагрузку одного события.
type Handler func(ctx context.Context, payload json.RawMessage) error

const (
	outboxLease      = 2 * time.Minute
	outboxBaseDelay  = 10 * time.Second
	outboxMaxBackoff = time.Hour
)

// DispatchReport - итог одного прохода диспетчера.
type DispatchReport struct {
	Claimed   int `json:"claimed"`
	Processed int `json:"processed"`
	Retried   int `json:"retried"`
	Dead      int `json:"dead"`
}

// OutboxDispatcher доставляет отложенные побочные эффекты с повторами.
type OutboxDispatcher struct {
	store       OutboxStore
	batchSize   int
	maxAttempts int
	recovery    *goroutine.RecoveryHandler

	mu       sync.RWMutex
	handlers map[string]Handler

	now func() time.Time
}

func NewOutboxDispatcher(store OutboxStore, batchSize, maxAttempts int) *OutboxDispatcher {
	if batchSize <= 0 {
		batchSize = 100
	}
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	return &OutboxDispatcher{
		store:       store,
		batchSize:   batchSize,
		maxAttempts: maxAttempts,
		recovery:    goroutine.DefaultRecoveryHandler,
		handlers:    make(map[string]Handler),
		now:         time.Now,
	}
}

// Register привязывает обработчик к топику.
func (d *OutboxDispatcher) Register(topic string, h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[topic] = h
}

func (d *OutboxDispatcher) handler(topic string) (Handler, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	h, ok := d.handlers[topic]
	return h, ok
}

// DispatchOnce забирает одну пачку событий и обрабатывает их по очереди.
func (d *OutboxDispatcher) DispatchOnce(ctx context.Context) (DispatchReport, error) {
	var report DispatchReport
	events, err := d.store.Claim(ctx, d.now(), d.batchSize, outboxLease)
	if err != nil {
		return report, err
	}
	report.Claimed = len(events)

	for _, ev := range events {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		switch d.deliver(ctx, ev) {
		case outcomeProcessed:
			report.Processed++
		case outcomeRetry:
			report.Retried++
		case outcomeDead:
			report.Dead++
		}
	}
	return report, nil
}

type outcome int

const (
	outcomeProcessed outcome = iota
	outcomeRetry
	outcomeDead
)

func (d *OutboxDispatcher) deliver(ctx context.Context, ev models.OutboxEvent) outcome {
	fields := logrus.Fields{"event_id": ev.ID, "topic": ev.Topic, "attempt": ev.Attempts}

	h, ok := d.handler(ev.Topic)
	if !ok {
		d.closeDead(ctx, ev, "нет обработчика для топика", fields)
		return outcomeDead
	}

	var handleErr error
	if !d.recovery.Run("outbox:"+ev.Topic, func() { handleErr = h(ctx, ev.Payload) }) {
		handleErr = fmt.Errorf("обработчик %s упал с паникой", ev.Topic)
	}
	if handleErr == nil {
		if err := d.store.MarkProcessed(ctx, ev.ID, d.now()); err != nil {
			logger.WithFields(fields).WithError(err).Error("не удалось закрыть событие очереди")
		}
		return outcomeProcessed
	}

	if ev.Attempts >= d.maxAttempts {
		d.closeDead(ctx, ev, handleErr.Error(), fields)
		return outcomeDead
	}

	retryAt := d.now().Add(backoff(ev.Attempts))
	if err := d.store.MarkFailed(ctx, ev.ID, handleErr.Error(), retryAt); err != nil {
		logger.WithFields(fields).WithError(err).Error("не удалось отложить событие очереди")
	}
	logger.WithFields(fields).WithError(handleErr).Warn("событие очереди не обработано, повторим позже")
	return outcomeRetry
}

func (d *OutboxDispatcher) closeDead(ctx context.Context, ev models.OutboxEvent, cause string, fields logrus.Fields) {
	if err := d.store.MarkDead(ctx, ev.ID, cause, d.now()); err != nil {
		logger.WithFields(fields).WithError(err).Error("не удалось закрыть событие очереди")
	}
	logger.WithFields(fields).WithField("cause", cause).Error("событие очереди отброшено")
}

// backoff - 10s, 20s, 40s ... не больше часа.
func backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := outboxBaseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= outboxMaxBackoff {
			return outboxMaxBackoff
		}
	}
	return delay
}

// Run обрабатывает очередь с заданным интервалом до отмены контекста.
func (d *OutboxDispatcher) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		report, err := d.DispatchOnce(ctx)
		if err != nil && ctx.Err() == nil {
			logger.WithFields(logrus.Fields{"error": err}).Error("проход очереди завершился ошибкой")
		}
		// Полная пачка - скорее всего, в очереди есть ещё события.
		if report.Claimed == d.batchSize && ctx.Err() == nil {
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// NotificationDeliverer сохраняет и отправляет уведомление.
type NotificationDeliverer interface {
	Deliver(ctx context.Context, msg NotificationMessage) (*models.Notification, error)
}

// LifecycleReconciler повторяет шаги жизненного цикла договора, которые не прошли синхронно.
type LifecycleReconciler interface {
	ReconcileListingLock(ctx context.Context, contractID uuid.UUID) error
	EnsureWallet(ctx context.Context, contractID uuid.UUID) error
}

// RegisterLifecycleHandlers подключает обработчики топиков сделки.
func RegisterLifecycleHandlers(d *OutboxDispatcher, notifications NotificationDeliverer, contracts LifecycleReconciler) {
	d.Register(TopicNotification, func(ctx context.Context, payload json.RawMessage) error {
		var msg NotificationMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			return fmt.Errorf("decode notification %w", err)
		}
		_, err := notifications.Deliver(ctx, msg)
		return err
	})
	d.Register(TopicLockSync, func(ctx context.Context, payload json.RawMessage) error {
		var ref ContractRef
		if err := json.Unmarshal(payload, &ref); err != nil {
			return fmt.Errorf("decode lock sync %w", err)
		}
		return contracts.ReconcileListingLock(ctx, ref.ContractID)
	})
	d.Register(TopicWalletGenerate, func(ctx context.Context, payload json.RawMessage) error {
		var ref ContractRef
		if err := json.Unmarshal(payload, &ref); err != nil {
			return fmt.Errorf("decode wallet generate %w", err)
		}
		return contracts.EnsureWallet(ctx, ref.ContractID)
	})
}
