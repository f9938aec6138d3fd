package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/rental-backend/internal/logger"
)

// Топики очереди побочных эффектов.
const (
	TopicNotification   = "notification"
	TopicLockSync       = "listing.lock_sync"
	TopicWalletGenerate = "wallet.generate"
)

// OutboxWriter ставит побочный эффект в очередь.
type OutboxWriter interface {
	Enqueue(ctx context.Context, topic string, payload any) error
}

// NotificationMessage - уведомление участнику сделки.
type NotificationMessage struct {
	UserID     uuid.UUID  `json:"user_id"`
	Event      string     `json:"event"`
	ContractID *uuid.UUID `json:"contract_id,omitempty"`
	ListingID  *uuid.UUID `json:"listing_id,omitempty"`
	ActorID    *uuid.UUID `json:"actor_id,omitempty"`
	Message    string     `json:"message"`
	ActionURL  string     `json:"action_url,omitempty"`
}

// ContractRef - полезная нагрузка событий, которым нужен только договор.
type ContractRef struct {
	ContractID uuid.UUID `json:"contract_id"`
}

// effects - best-effort побочные эффекты. Ошибки пишутся в лог и не возвращаются.
type effects struct {
	outbox OutboxWriter
}

func (e effects) enqueue(ctx context.Context, topic string, payload any) {
	if e.outbox == nil {
		return
	}
	if err := e.outbox.Enqueue(ctx, topic, payload); err != nil {
		logger.WithFields(logrus.Fields{
			"topic": topic,
			"error": err,
		}).Error("не удалось поставить событие в очередь")
	}
}

func (e effects) notify(ctx context.Context, msgs ...NotificationMessage) {
	for _, m := range msgs {
		if m.UserID == uuid.Nil {
			continue
		}
		e.enqueue(ctx, TopicNotification, m)
	}
}

// scheduleLockSync просит диспетчер привести блокировку объекта в соответствие договору.
func (e effects) scheduleLockSync(ctx context.Context, contractID uuid.UUID, cause error) {
	logger.WithFields(logrus.Fields{
		"contract_id": contractID,
		"error":       cause,
	}).Warn("блокировка объекта не синхронизирована, повторим через очередь")
	e.enqueue(ctx, TopicLockSync, ContractRef{ContractID: contractID})
}

// scheduleWallet просит диспетчер создать график платежей позже.
func (e effects) scheduleWallet(ctx context.Context, contractID uuid.UUID, cause error) {
	logger.WithFields(logrus.Fields{
		"contract_id": contractID,
		"error":       cause,
	}).Warn("график платежей не создан, повторим через очередь")
	e.enqueue(ctx, TopicWalletGenerate, ContractRef{ContractID: contractID})
}

// logSideEffect пишет в лог ошибку вторичного действия.
func logSideEffect(action string, fields logrus.Fields, err error) {
	if err == nil {
		return
	}
	fields["action"] = action
	fields["error"] = err
	logger.WithFields(fields).Error("побочное действие не выполнено")
}

// contractMessage - уведомление обеим сторонам договора, кроме автора действия.
func contractMessage(event, text string, contractID, listingID uuid.UUID, actor *uuid.UUID, recipients ...uuid.UUID) []NotificationMessage {
	msgs := make([]NotificationMessage, 0, len(recipients))
	for _, userID := range recipients {
		if actor != nil && *actor == userID {
			continue
		}
		cid, lid := contractID, listingID
		msgs = append(msgs, NotificationMessage{
			UserID:     userID,
			Event:      event,
			ContractID: &cid,
			ListingID:  &lid,
			ActorID:    actor,
			Message:    text,
			ActionURL:  "/contracts/" + contractID.String(),
		})
	}
	return msgs
}
