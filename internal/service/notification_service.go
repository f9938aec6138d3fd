package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/rental-backend/internal/models"
)

// NotificationStore описывает взаимодействие сервиса с хранилищем уведомлений.
type NotificationStore interface {
	Create(ctx context.Context, notification *models.Notification) error
	List(ctx context.Context, userID uuid.UUID, limit, offset int, unreadOnly bool) ([]models.Notification, error)
	MarkAsRead(ctx context.Context, id, userID uuid.UUID) error
	MarkAllAsRead(ctx context.Context, userID uuid.UUID) error
	CountUnread(ctx context.Context, userID uuid.UUID) (int, error)
}

// Pusher доставляет событие в открытые соединения пользователя.
type Pusher interface {
	Push(ctx context.Context, userID uuid.UUID, event string, data any) error
}

// NotificationService сохраняет уведомления и отправляет их по WebSocket.
type NotificationService struct {
	repo   NotificationStore
	pusher Pusher
}

// NewNotificationService создаёт новый сервис уведомлений. pusher может быть nil.
func NewNotificationService(repo NotificationStore, pusher Pusher) *NotificationService {
	return &NotificationService{repo: repo, pusher: pusher}
}

// Deliver сохраняет уведомление и пытается сразу отправить его пользователю.
// Ошибка отправки не считается ошибкой доставки: уведомление уже в базе.
func (s *NotificationService) Deliver(ctx context.Context, msg NotificationMessage) (*models.Notification, error) {
	payload := map[string]interface{}{
		"event": msg.Event,
		"data":  msg,
	}

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("notification service: marshal payload %w", err)
	}

	notification := &models.Notification{
		UserID:  msg.UserID,
		Payload: payloadBytes,
		IsRead:  false,
	}
	if err := s.repo.Create(ctx, notification); err != nil {
		return nil, err
	}

	if s.pusher != nil {
		if err := s.pusher.Push(ctx, msg.UserID, msg.Event, notification); err != nil {
			logSideEffect("push notification", logrus.Fields{"user_id": msg.UserID, "event": msg.Event}, err)
		}
	}
	return notification, nil
}

// List возвращает список уведомлений пользователя.
func (s *NotificationService) List(ctx context.Context, userID uuid.UUID, limit, offset int, unreadOnly bool) ([]models.Notification, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	return s.repo.List(ctx, userID, limit, offset, unreadOnly)
}

// MarkAsRead отмечает уведомление пользователя как прочитанное.
func (s *NotificationService) MarkAsRead(ctx context.Context, id, userID uuid.UUID) error {
	return s.repo.MarkAsRead(ctx, id, userID)
}

// MarkAllAsRead отмечает все уведомления пользователя как прочитанные.
func (s *NotificationService) MarkAllAsRead(ctx context.Context, userID uuid.UUID) error {
	return s.repo.MarkAllAsRead(ctx, userID)
}

// CountUnread возвращает количество непрочитанных уведомлений.
func (s *NotificationService) CountUnread(ctx context.Context, userID uuid.UUID) (int, error) {
	return s.repo.CountUnread(ctx, userID)
}
