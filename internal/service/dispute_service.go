package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/rental-backend/internal/domain/valueobject"
	"github.com/ignatzorin/rental-backend/internal/models"
	"github.com/ignatzorin/rental-backend/internal/pkg/apperror"
	"github.com/ignatzorin/rental-backend/internal/repository"
	"github.com/ignatzorin/rental-backend/internal/repository/common"
)

// DisputeStore - хранилище споров и переписки.
type DisputeStore interface {
	Create(ctx context.Context, d *models.Dispute) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Dispute, error)
	FindActiveByContract(ctx context.Context, contractID uuid.UUID) (*models.Dispute, error)
	ListByContract(ctx context.Context, contractID uuid.UUID) ([]models.Dispute, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Dispute, error)
	ListMessages(ctx context.Context, disputeID uuid.UUID) ([]models.DisputeMessage, error)
	AddMessage(ctx context.Context, m *models.DisputeMessage) (bool, error)
	MarkRead(ctx context.Context, disputeID, userID uuid.UUID) error
	AddEvidence(ctx context.Context, id uuid.UUID, refs []string) (bool, error)
	Transition(ctx context.Context, id uuid.UUID, change repository.DisputeChange) (bool, error)
}

// ContractStatusSetter - административная смена статуса договора.
type ContractStatusSetter interface {
	SetStatus(ctx context.Context, actor Actor, ref string, in StatusInput) (*models.Contract, error)
}

// DisputeService - арбитраж споров по договору.
type DisputeService struct {
	disputes  DisputeStore
	contracts ContractReader
	statuses  ContractStatusSetter
	effects   effects
	now       func() time.Time
}

func NewDisputeService(disputes DisputeStore, contracts ContractReader, statuses ContractStatusSetter, outbox OutboxWriter) *DisputeService {
	return &DisputeService{
		disputes:  disputes,
		contracts: contracts,
		statuses:  statuses,
		effects:   effects{outbox: outbox},
		now:       time.Now,
	}
}

// RaiseDisputeInput - обращение стороны договора.
type RaiseDisputeInput struct {
	Category    string
	Title       string
	Description string
	Evidence    []string
}

// Raise открывает спор. Пока по договору есть незавершённый спор, новый не создаётся.
func (s *DisputeService) Raise(ctx context.Context, actor Actor, ref string, in RaiseDisputeInput) (*models.Dispute, error) {
	c, caps, err := contractForActor(ctx, s.contracts, actor, ref)
	if err != nil {
		return nil, err
	}
	party, ok := caps.Party()
	if !ok {
		return nil, apperror.ErrForbidden
	}
	if _, ok := models.ValidDisputeCategories[in.Category]; !ok {
		return nil, apperror.Validation("некорректная категория спора").With("category", in.Category)
	}
	if strings.TrimSpace(in.Title) == "" || strings.TrimSpace(in.Description) == "" {
		return nil, apperror.Validation("укажите тему и описание спора")
	}

	active, err := s.disputes.FindActiveByContract(ctx, c.ID)
	if err == nil {
		return nil, disputeExists(active)
	}
	if !apperror.IsNotFound(err) {
		return nil, err
	}

	respondent := c.LandlordID
	if party == models.PartyLandlord {
		respondent = c.TenantID
	}
	evidence := pq.StringArray{}
	evidence = append(evidence, in.Evidence...)

	d := &models.Dispute{
		ContractID:   c.ID,
		RaisedBy:     actor.UserID,
		RespondentID: respondent,
		Category:     in.Category,
		Title:        strings.TrimSpace(in.Title),
		Description:  strings.TrimSpace(in.Description),
		Evidence:     evidence,
		Status:       valueobject.DisputeStatusOpen,
	}
	if err := s.disputes.Create(ctx, d); err != nil {
		if errors.Is(err, common.ErrAlreadyExists) {
			if active, getErr := s.disputes.FindActiveByContract(ctx, c.ID); getErr == nil {
				return nil, disputeExists(active)
			}
		}
		return nil, err
	}

	s.notifyDispute(ctx, d, &actor.UserID, "dispute.raised", fmt.Sprintf("Открыт спор: %s", d.Title))
	return d, nil
}

func disputeExists(d *models.Dispute) error {
	return apperror.Conflict("по договору уже есть открытый спор", string(d.Status)).
		With("dispute_id", d.ID.String())
}

// load возвращает спор и права пользователя на него.
func (s *DisputeService) load(ctx context.Context, actor Actor, id uuid.UUID) (*models.Dispute, Capabilities, error) {
	d, err := s.disputes.GetByID(ctx, id)
	if err != nil {
		return nil, Capabilities{}, err
	}
	c, err := s.contracts.GetByID(ctx, d.ContractID)
	if err != nil {
		return nil, Capabilities{}, err
	}
	caps := DisputeCapabilities(actor, c, d)
	if !caps.CanView() {
		return nil, caps, apperror.ErrForbidden
	}
	return d, caps, nil
}

// Get возвращает спор с перепиской и отмечает сообщения прочитанными для пользователя.
func (s *DisputeService) Get(ctx context.Context, actor Actor, id uuid.UUID) (*models.Dispute, error) {
	d, _, err := s.load(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if err := s.disputes.MarkRead(ctx, d.ID, actor.UserID); err != nil {
		return nil, err
	}
	messages, err := s.disputes.ListMessages(ctx, d.ID)
	if err != nil {
		return nil, err
	}
	d.Messages = messages
	return d, nil
}

// List возвращает споры, где пользователь - инициатор или ответчик.
func (s *DisputeService) List(ctx context.Context, actor Actor, limit, offset int) ([]models.Dispute, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.disputes.ListByUser(ctx, actor.UserID, limit, offset)
}

// ListByContract возвращает историю споров по договору.
func (s *DisputeService) ListByContract(ctx context.Context, actor Actor, ref string) ([]models.Dispute, error) {
	c, _, err := contractForActor(ctx, s.contracts, actor, ref)
	if err != nil {
		return nil, err
	}
	return s.disputes.ListByContract(ctx, c.ID)
}

// PostMessage добавляет сообщение. Отправитель сразу считается прочитавшим его.
func (s *DisputeService) PostMessage(ctx context.Context, actor Actor, id uuid.UUID, body string, attachments []string) (*models.DisputeMessage, error) {
	d, _, err := s.load(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, apperror.Validation("сообщение не может быть пустым")
	}

	m := &models.DisputeMessage{
		DisputeID:   d.ID,
		SenderID:    actor.UserID,
		Body:        body,
		Attachments: append(pq.StringArray{}, attachments...),
		ReadBy:      pq.StringArray{actor.UserID.String()},
	}
	ok, err := s.disputes.AddMessage(ctx, m)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, s.closedError(ctx, d)
	}

	s.notifyDispute(ctx, d, &actor.UserID, "dispute.message", "Новое сообщение в споре: "+d.Title)
	return m, nil
}

// AddEvidence прикладывает доказательства к незавершённому спору.
func (s *DisputeService) AddEvidence(ctx context.Context, actor Actor, id uuid.UUID, refs []string) (*models.Dispute, error) {
	d, _, err := s.load(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if len(refs) == 0 {
		return nil, apperror.Validation("не переданы доказательства")
	}
	ok, err := s.disputes.AddEvidence(ctx, d.ID, refs)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, s.closedError(ctx, d)
	}
	return s.disputes.GetByID(ctx, d.ID)
}

func (s *DisputeService) closedError(ctx context.Context, d *models.Dispute) error {
	current, err := s.disputes.GetByID(ctx, d.ID)
	if err != nil {
		return err
	}
	return apperror.InvalidTransition("спор уже завершён", string(current.Status))
}

// StartReview - администратор берёт спор в работу.
func (s *DisputeService) StartReview(ctx context.Context, actor Actor, id uuid.UUID) (*models.Dispute, error) {
	if !actor.IsAdmin() {
		return nil, apperror.ErrForbidden
	}
	d, _, err := s.load(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	return s.transition(ctx, d, &actor.UserID, repository.DisputeChange{To: valueobject.DisputeStatusUnderReview},
		"dispute.under_review", "Спор взят на рассмотрение")
}

// Escalate передаёт спор на следующий уровень. Причина обязательна.
func (s *DisputeService) Escalate(ctx context.Context, actor Actor, id uuid.UUID, reason string) (*models.Dispute, error) {
	d, _, err := s.load(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, apperror.Validation("укажите причину эскалации")
	}
	return s.transition(ctx, d, &actor.UserID, repository.DisputeChange{
		To:               valueobject.DisputeStatusEscalated,
		EscalatedBy:      &actor.UserID,
		EscalationReason: &reason,
	}, "dispute.escalated", "Спор эскалирован: "+reason)
}

// ResolveDisputeInput - решение администратора.
type ResolveDisputeInput struct {
	Decision string
	Action   string
	Amount   *float64
}

// Resolve выносит решение. Действие terminate_contract расторгает договор;
// если расторжение не удалось, решение по спору всё равно остаётся в силе.
func (s *DisputeService) Resolve(ctx context.Context, actor Actor, id uuid.UUID, in ResolveDisputeInput) (*models.Dispute, error) {
	if !actor.IsAdmin() {
		return nil, apperror.ErrForbidden
	}
	if _, ok := models.ValidDisputeActions[in.Action]; !ok {
		return nil, apperror.Validation("некорректное действие по спору").With("action", in.Action)
	}
	decision := strings.TrimSpace(in.Decision)
	if decision == "" {
		return nil, apperror.Validation("укажите решение по спору")
	}
	if in.Amount != nil && *in.Amount < 0 {
		return nil, apperror.Validation("сумма не может быть отрицательной")
	}

	d, _, err := s.load(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	resolved, err := s.transition(ctx, d, &actor.UserID, repository.DisputeChange{
		To: valueobject.DisputeStatusResolved,
		Resolution: &models.DisputeResolution{
			DecidedBy: actor.UserID,
			Decision:  decision,
			Action:    in.Action,
			Amount:    in.Amount,
		},
	}, "dispute.resolved", "Спор разрешён: "+decision)
	if err != nil {
		return nil, err
	}

	if in.Action == models.DisputeActionTerminateContract {
		_, err := s.statuses.SetStatus(ctx, actor, d.ContractID.String(), StatusInput{
			Status: string(valueobject.ContractStatusTerminated),
			Reason: "решение по спору: " + decision,
		})
		logSideEffect("terminate contract", logrus.Fields{"dispute_id": d.ID, "contract_id": d.ContractID}, err)
	}
	return resolved, nil
}

// Close закрывает спор без решения. Доступно администратору и инициатору.
func (s *DisputeService) Close(ctx context.Context, actor Actor, id uuid.UUID) (*models.Dispute, error) {
	d, caps, err := s.load(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if !caps.Admin && !caps.Raiser {
		return nil, apperror.ErrForbidden
	}
	return s.transition(ctx, d, &actor.UserID, repository.DisputeChange{To: valueobject.DisputeStatusClosed},
		"dispute.closed", "Спор закрыт")
}

func (s *DisputeService) transition(ctx context.Context, d *models.Dispute, actorID *uuid.UUID, change repository.DisputeChange, event, text string) (*models.Dispute, error) {
	if !d.Status.CanTransitionTo(change.To) {
		return nil, apperror.InvalidTransition("переход недоступен из текущего статуса спора", string(d.Status))
	}
	change.From = d.Status
	change.At = s.now()

	ok, err := s.disputes.Transition(ctx, d.ID, change)
	if err != nil {
		return nil, err
	}
	updated, err := s.disputes.GetByID(ctx, d.ID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperror.InvalidTransition("статус спора уже изменился", string(updated.Status))
	}

	s.notifyDispute(ctx, updated, actorID, event, text)
	return updated, nil
}

func (s *DisputeService) notifyDispute(ctx context.Context, d *models.Dispute, actorID *uuid.UUID, event, text string) {
	for _, userID := range []uuid.UUID{d.RaisedBy, d.RespondentID} {
		if actorID != nil && *actorID == userID {
			continue
		}
		contractID := d.ContractID
		s.effects.notify(ctx, NotificationMessage{
			UserID:     userID,
			Event:      event,
			ContractID: &contractID,
			ActorID:    actorID,
			Message:    text,
			ActionURL:  "/disputes/" + d.ID.String(),
		})
	}
}
