package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/ignatzorin/rental-backend/internal/config"
	"github.com/ignatzorin/rental-backend/internal/domain/valueobject"
	"github.com/ignatzorin/rental-backend/internal/logger"
	"github.com/ignatzorin/rental-backend/internal/models"
	"github.com/ignatzorin/rental-backend/internal/pkg/apperror"
	"github.com/ignatzorin/rental-backend/internal/repository"
	"github.com/ignatzorin/rental-backend/internal/repository/common"
)

// LoanStore - хранилище займов и графиков EMI.
type LoanStore interface {
	Create(ctx context.Context, loan *models.RentalLoan) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.RentalLoan, error)
	FindActive(ctx context.Context, contractID uuid.UUID, loanType string) (*models.RentalLoan, error)
	ListByContract(ctx context.Context, contractID uuid.UUID) ([]models.RentalLoan, error)
	Transition(ctx context.Context, id uuid.UUID, change repository.LoanChange) (bool, error)
	UpdateEMIStatus(ctx context.Context, loanID uuid.UUID, installment int, status valueobject.PaymentStatus, paidAt *time.Time) (bool, error)
	CountOutstanding(ctx context.Context, loanID uuid.UUID) (int, error)
	ClaimReminder(ctx context.Context, loanID uuid.UUID, key string, now, dayStart time.Time) (bool, error)
	MarkOverdue(ctx context.Context, periodID uuid.UUID, penalty float64) (bool, error)
	ListDue(ctx context.Context, horizon time.Time) ([]models.RentalLoan, error)
}

// LoanService - заявки на заём под договор аренды и график EMI.
type LoanService struct {
	loans     LoanStore
	contracts ContractReader
	effects   effects
	policy    config.Policy
	now       func() time.Time
}

func NewLoanService(loans LoanStore, contracts ContractReader, outbox OutboxWriter, policy config.Policy) *LoanService {
	return &LoanService{
		loans:     loans,
		contracts: contracts,
		effects:   effects{outbox: outbox},
		policy:    policy,
		now:       time.Now,
	}
}

// ApplyLoanInput - заявка арендатора.
type ApplyLoanInput struct {
	LoanType     string
	Amount       float64
	InterestRate float64
	Tenure       int
	Purpose      *string
}

// BuildEMISchedule - n ежемесячных платежей, первый через месяц после заявки.
func BuildEMISchedule(appliedAt time.Time, emi float64, tenure int) []models.EMIPeriod {
	start := valueobject.StartOfDay(appliedAt)
	schedule := make([]models.EMIPeriod, 0, tenure)
	for i := 1; i <= tenure; i++ {
		schedule = append(schedule, models.EMIPeriod{
			Installment: i,
			DueDate:     valueobject.AddMonths(start, i),
			Amount:      emi,
			Status:      valueobject.PaymentStatusPending,
		})
	}
	return schedule
}

// Apply оформляет заявку. По договору допускается одна незавершённая заявка каждого вида.
func (s *LoanService) Apply(ctx context.Context, actor Actor, ref string, in ApplyLoanInput) (*models.RentalLoan, error) {
	c, caps, err := contractForActor(ctx, s.contracts, actor, ref)
	if err != nil {
		return nil, err
	}
	if !caps.Tenant {
		return nil, apperror.ErrForbidden
	}
	if c.Status.IsTerminal() {
		return nil, apperror.InvalidTransition("по завершённому договору заём не оформляется", string(c.Status))
	}
	if _, ok := models.ValidLoanTypes[in.LoanType]; !ok {
		return nil, apperror.Validation("некорректный вид займа").With("loan_type", in.LoanType)
	}

	emi, err := valueobject.EMI(in.Amount, in.InterestRate, in.Tenure)
	if err != nil {
		return nil, err
	}

	active, err := s.loans.FindActive(ctx, c.ID, in.LoanType)
	if err == nil {
		return nil, loanExists(active)
	}
	if !apperror.IsNotFound(err) {
		return nil, err
	}

	appliedAt := s.now().In(s.policy.Location())
	loan := &models.RentalLoan{
		ContractID:    c.ID,
		BorrowerID:    actor.UserID,
		LoanType:      in.LoanType,
		LoanAmount:    in.Amount,
		InterestRate:  in.InterestRate,
		Tenure:        in.Tenure,
		EMIAmount:     emi,
		Purpose:       in.Purpose,
		Status:        valueobject.LoanStatusPending,
		RemindersSent: models.ReminderLog{},
		Schedule:      BuildEMISchedule(appliedAt, emi, in.Tenure),
	}
	if err := s.loans.Create(ctx, loan); err != nil {
		if errors.Is(err, common.ErrAlreadyExists) {
			if active, getErr := s.loans.FindActive(ctx, c.ID, in.LoanType); getErr == nil {
				return nil, loanExists(active)
			}
		}
		return nil, err
	}

	s.effects.notify(ctx, NotificationMessage{
		UserID:     actor.UserID,
		Event:      "loan.applied",
		ContractID: &c.ID,
		Message:    fmt.Sprintf("Заявка на заём принята, ежемесячный платёж %.0f", emi),
		ActionURL:  "/loans/" + loan.ID.String(),
	})
	return loan, nil
}

func loanExists(l *models.RentalLoan) error {
	return apperror.Conflict("по договору уже есть незавершённая заявка этого вида", string(l.Status)).
		With("loan_id", l.ID.String())
}

// Get возвращает заём заёмщику или администратору.
func (s *LoanService) Get(ctx context.Context, actor Actor, id uuid.UUID) (*models.RentalLoan, error) {
	loan, err := s.loans.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if loan.BorrowerID != actor.UserID && !actor.IsAdmin() {
		return nil, apperror.ErrForbidden
	}
	return loan, nil
}

// ListByContract возвращает займы по договору.
func (s *LoanService) ListByContract(ctx context.Context, actor Actor, ref string) ([]models.RentalLoan, error) {
	c, _, err := contractForActor(ctx, s.contracts, actor, ref)
	if err != nil {
		return nil, err
	}
	return s.loans.ListByContract(ctx, c.ID)
}

// Approve одобряет заявку. С датой выдачи заём сразу переходит в disbursed.
func (s *LoanService) Approve(ctx context.Context, actor Actor, id uuid.UUID, disbursementDate *time.Time) (*models.RentalLoan, error) {
	if !actor.IsAdmin() {
		return nil, apperror.ErrForbidden
	}
	now := s.now()
	change := repository.LoanChange{
		From:       []valueobject.LoanStatus{valueobject.LoanStatusPending},
		To:         valueobject.LoanStatusApproved,
		ApprovedBy: &actor.UserID,
		ApprovedAt: &now,
	}
	if disbursementDate != nil {
		reference, err := newDisbursementReference(*disbursementDate)
		if err != nil {
			return nil, err
		}
		change.To = valueobject.LoanStatusDisbursed
		change.DisbursementDate = disbursementDate
		change.DisbursementReference = &reference
	}
	return s.transition(ctx, id, change, "loan.approved", "Заявка на заём одобрена")
}

// Disburse отмечает выдачу одобренного займа.
func (s *LoanService) Disburse(ctx context.Context, actor Actor, id uuid.UUID, date *time.Time) (*models.RentalLoan, error) {
	if !actor.IsAdmin() {
		return nil, apperror.ErrForbidden
	}
	when := s.now()
	if date != nil {
		when = *date
	}
	reference, err := newDisbursementReference(when)
	if err != nil {
		return nil, err
	}
	return s.transition(ctx, id, repository.LoanChange{
		From:                  []valueobject.LoanStatus{valueobject.LoanStatusApproved},
		To:                    valueobject.LoanStatusDisbursed,
		DisbursementDate:      &when,
		DisbursementReference: &reference,
	}, "loan.disbursed", "Заём выдан")
}

// Reject отклоняет заявку, ожидающую решения.
func (s *LoanService) Reject(ctx context.Context, actor Actor, id uuid.UUID, reason string) (*models.RentalLoan, error) {
	if !actor.IsAdmin() {
		return nil, apperror.ErrForbidden
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, apperror.Validation("укажите причину отказа")
	}
	return s.transition(ctx, id, repository.LoanChange{
		From:            []valueobject.LoanStatus{valueobject.LoanStatusPending},
		To:              valueobject.LoanStatusRejected,
		RejectionReason: &reason,
	}, "loan.rejected", "Заявка на заём отклонена: "+reason)
}

// MarkDefaulted фиксирует дефолт по выданному займу.
func (s *LoanService) MarkDefaulted(ctx context.Context, actor Actor, id uuid.UUID) (*models.RentalLoan, error) {
	if !actor.IsAdmin() {
		return nil, apperror.ErrForbidden
	}
	return s.transition(ctx, id, repository.LoanChange{
		From: []valueobject.LoanStatus{valueobject.LoanStatusDisbursed},
		To:   valueobject.LoanStatusDefaulted,
	}, "loan.defaulted", "Заём признан просроченным")
}

// RecordEMIPayment отмечает статус платежа. Когда оплачены все платежи, заём погашен.
func (s *LoanService) RecordEMIPayment(ctx context.Context, actor Actor, id uuid.UUID, installment int, status string) (*models.RentalLoan, error) {
	if !actor.IsAdmin() {
		return nil, apperror.ErrForbidden
	}
	paymentStatus := valueobject.PaymentStatus(status)
	if _, ok := recordableStatuses[paymentStatus]; !ok {
		return nil, apperror.Validation("некорректный статус платежа").With("status", status)
	}

	loan, err := s.loans.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if loan.Status != valueobject.LoanStatusDisbursed {
		return nil, apperror.InvalidTransition("платежи принимаются только по выданному займу", string(loan.Status))
	}
	if installment < 1 || installment > len(loan.Schedule) {
		return nil, apperror.Validation("в графике нет такого платежа").With("installment", installment)
	}

	var paidAt *time.Time
	if paymentStatus == valueobject.PaymentStatusCompleted {
		now := s.now()
		paidAt = &now
	}
	ok, err := s.loans.UpdateEMIStatus(ctx, loan.ID, installment, paymentStatus, paidAt)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperror.Conflict("платёж уже оплачен", string(valueobject.PaymentStatusCompleted))
	}

	if paymentStatus == valueobject.PaymentStatusCompleted {
		outstanding, err := s.loans.CountOutstanding(ctx, loan.ID)
		if err != nil {
			return nil, err
		}
		if outstanding == 0 {
			if _, err := s.transition(ctx, loan.ID, repository.LoanChange{
				From: []valueobject.LoanStatus{valueobject.LoanStatusDisbursed},
				To:   valueobject.LoanStatusRepaid,
			}, "loan.repaid", "Заём полностью погашен"); err != nil {
				return nil, err
			}
		}
	}
	return s.loans.GetByID(ctx, loan.ID)
}

func (s *LoanService) transition(ctx context.Context, id uuid.UUID, change repository.LoanChange, event, text string) (*models.RentalLoan, error) {
	ok, err := s.loans.Transition(ctx, id, change)
	if err != nil {
		return nil, err
	}
	loan, err := s.loans.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperror.InvalidTransition("переход недоступен из текущего статуса займа", string(loan.Status))
	}

	s.effects.notify(ctx, NotificationMessage{
		UserID:     loan.BorrowerID,
		Event:      event,
		ContractID: &loan.ContractID,
		Message:    text,
		ActionURL:  "/loans/" + loan.ID.String(),
	})
	return loan, nil
}

// RunEMISweep - напоминания и пени по платежам выданных займов.
func (s *LoanService) RunEMISweep(ctx context.Context, concurrency int) (SweepReport, error) {
	report := SweepReport{Name: "emi"}
	now := s.now().In(s.policy.Location())
	window := s.policy.EMIReminderWindowDays

	loans, err := s.loans.ListDue(ctx, reminderHorizon(now, window))
	if err != nil {
		return report, err
	}
	report.Scanned = len(loans)

	var processed, failed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(sweepLimit(concurrency))
	for i := range loans {
		loan := &loans[i]
		g.Go(func() error {
			sent, err := s.remindLoan(gctx, loan, now, window)
			if err != nil {
				failed.Add(1)
				logger.WithFields(logrus.Fields{"loan_id": loan.ID, "error": err}).Error("напоминания по займу не отправлены")
				return nil
			}
			processed.Add(int64(sent))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return report, err
	}

	report.Processed = int(processed.Load())
	report.Failed = int(failed.Load())
	return report, ctx.Err()
}

func (s *LoanService) remindLoan(ctx context.Context, loan *models.RentalLoan, now time.Time, window int) (int, error) {
	items := make([]DueItem, len(loan.Schedule))
	for i, p := range loan.Schedule {
		items[i] = DueItem{Key: p.Key(), DueDate: p.DueDate, Status: p.Status}
	}

	dayStart := valueobject.StartOfDay(now)
	sent := 0
	for _, plan := range PlanReminders(items, loan.RemindersSent, now, window) {
		period := loan.Schedule[plan.Index]
		claimed, err := s.loans.ClaimReminder(ctx, loan.ID, plan.Key, now, dayStart)
		if err != nil {
			return sent, err
		}
		if !claimed {
			continue
		}

		text := fmt.Sprintf("Платёж №%d по займу %.0f: срок через %d дн.", period.Installment, period.Amount, plan.DaysLeft)
		switch plan.Kind {
		case ReminderDueToday:
			text = fmt.Sprintf("Сегодня срок платежа №%d по займу: %.0f", period.Installment, period.Amount)
		case ReminderOverdue:
			if period.Status.CanAccruePenalty() && period.PenaltyAmount == 0 {
				penalty := valueobject.PercentOf(period.Amount, s.policy.EMIPenaltyPercent)
				marked, err := s.loans.MarkOverdue(ctx, period.ID, penalty)
				if err != nil {
					return sent, err
				}
				if marked {
					period.PenaltyAmount = penalty
				}
			}
			text = fmt.Sprintf("Платёж №%d по займу просрочен. К оплате с пеней: %.2f",
				period.Installment, valueobject.Sum(period.Amount, period.PenaltyAmount))
		}

		s.effects.notify(ctx, NotificationMessage{
			UserID:     loan.BorrowerID,
			Event:      "loan.emi_reminder",
			ContractID: &loan.ContractID,
			Message:    text,
			ActionURL:  "/loans/" + loan.ID.String(),
		})
		sent++
	}
	return sent, nil
}
