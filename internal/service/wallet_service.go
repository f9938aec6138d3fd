package service

import (
	"context"
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
)

// WalletStore - хранилище графиков платежей.
type WalletStore interface {
	CreateWithPeriods(ctx context.Context, w *models.Wallet) (bool, error)
	GetByContractID(ctx context.Context, contractID uuid.UUID) (*models.Wallet, error)
	ExistsForContract(ctx context.Context, contractID uuid.UUID) (bool, error)
	UpdatePeriodStatus(ctx context.Context, walletID uuid.UUID, u repository.PaymentUpdate) (bool, error)
	ClaimReminder(ctx context.Context, walletID uuid.UUID, key string, now, dayStart time.Time) (bool, error)
	MarkOverdue(ctx context.Context, periodID uuid.UUID, penalty float64) (bool, error)
	ListDue(ctx context.Context, horizon time.Time) ([]models.Wallet, error)
}

// WalletService строит график платежей по договору и рассылает напоминания.
type WalletService struct {
	wallets   WalletStore
	contracts ContractReader
	effects   effects
	policy    config.Policy
	now       func() time.Time
}

func NewWalletService(wallets WalletStore, contracts ContractReader, outbox OutboxWriter, policy config.Policy) *WalletService {
	return &WalletService{
		wallets:   wallets,
		contracts: contracts,
		effects:   effects{outbox: outbox},
		policy:    policy,
		now:       time.Now,
	}
}

// BuildSchedule - по одному периоду на каждый календарный месяц от начала до конца договора
// включительно. Срок платежа - день dueDate месяца; в коротких месяцах - последний день.
func BuildSchedule(c *models.Contract, loc *time.Location) []models.PaymentPeriod {
	amount := valueobject.Sum(c.LockedRentAmount, c.MaintenanceCharges)
	months := valueobject.MonthsBetween(c.StartDate.In(loc), c.EndDate.In(loc))

	periods := make([]models.PaymentPeriod, 0, len(months))
	for _, m := range months {
		periods = append(periods, models.PaymentPeriod{
			Month:   int(m.Month()),
			Year:    m.Year(),
			Amount:  amount,
			DueDate: valueobject.DueDateIn(m.Year(), m.Month(), c.DueDate, loc),
			Status:  valueobject.PaymentStatusPending,
		})
	}
	return periods
}

// Generate создаёт график один раз. Повторный вызов возвращает существующий график
// и created=false.
func (s *WalletService) Generate(ctx context.Context, c *models.Contract) (*models.Wallet, bool, error) {
	exists, err := s.wallets.ExistsForContract(ctx, c.ID)
	if err != nil {
		return nil, false, err
	}
	if exists {
		w, err := s.wallets.GetByContractID(ctx, c.ID)
		return w, false, err
	}

	w := &models.Wallet{
		ContractID:        c.ID,
		TenantID:          c.TenantID,
		LandlordID:        c.LandlordID,
		ListingID:         c.ListingID,
		LateFeePercentage: c.LateFeePercentage,
		RemindersSent:     models.ReminderLog{},
		Periods:           BuildSchedule(c, s.policy.Location()),
	}
	created, err := s.wallets.CreateWithPeriods(ctx, w)
	if err != nil {
		return nil, false, err
	}
	if !created {
		// параллельная активация успела раньше
		w, err = s.wallets.GetByContractID(ctx, c.ID)
		return w, false, err
	}
	return w, true, nil
}

// Get возвращает график платежей договора.
func (s *WalletService) Get(ctx context.Context, actor Actor, ref string) (*models.Wallet, error) {
	c, _, err := contractForActor(ctx, s.contracts, actor, ref)
	if err != nil {
		return nil, err
	}
	return s.wallets.GetByContractID(ctx, c.ID)
}

// RecordPaymentInput - подтверждение от платёжного провайдера.
type RecordPaymentInput struct {
	Month     int
	Year      int
	Status    string
	Reference *string
}

var recordableStatuses = map[valueobject.PaymentStatus]struct{}{
	valueobject.PaymentStatusScheduled:  {},
	valueobject.PaymentStatusProcessing: {},
	valueobject.PaymentStatusCompleted:  {},
	valueobject.PaymentStatusFailed:     {},
}

// RecordPayment отмечает статус периода по внешнему подтверждению.
// Оплаченный период больше не меняется.
func (s *WalletService) RecordPayment(ctx context.Context, actor Actor, ref string, in RecordPaymentInput) (*models.Wallet, error) {
	if !actor.IsAdmin() {
		return nil, apperror.ErrForbidden
	}
	status := valueobject.PaymentStatus(in.Status)
	if _, ok := recordableStatuses[status]; !ok {
		return nil, apperror.Validation("некорректный статус платежа").With("status", in.Status)
	}
	if in.Month < 1 || in.Month > 12 {
		return nil, apperror.Validation("месяц должен быть от 1 до 12")
	}

	c, err := resolveContract(ctx, s.contracts, ref)
	if err != nil {
		return nil, err
	}
	w, err := s.wallets.GetByContractID(ctx, c.ID)
	if err != nil {
		return nil, err
	}

	var period *models.PaymentPeriod
	for i := range w.Periods {
		if w.Periods[i].Month == in.Month && w.Periods[i].Year == in.Year {
			period = &w.Periods[i]
			break
		}
	}
	if period == nil {
		return nil, apperror.Validation("в графике нет такого периода").With("period", models.ReminderKey(in.Month, in.Year))
	}

	update := repository.PaymentUpdate{Month: in.Month, Year: in.Year, Status: status, Reference: in.Reference}
	if status == valueobject.PaymentStatusCompleted {
		paidAt := s.now()
		update.PaidAt = &paidAt
	}
	ok, err := s.wallets.UpdatePeriodStatus(ctx, w.ID, update)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperror.Conflict("период уже оплачен", string(valueobject.PaymentStatusCompleted))
	}

	switch status {
	case valueobject.PaymentStatusCompleted:
		s.effects.notify(ctx, contractMessage("payment.completed",
			fmt.Sprintf("Платёж за %02d.%d получен", in.Month, in.Year),
			c.ID, c.ListingID, nil, c.TenantID, c.LandlordID)...)
	case valueobject.PaymentStatusFailed:
		s.effects.notify(ctx, contractMessage("payment.failed",
			fmt.Sprintf("Платёж за %02d.%d не прошёл", in.Month, in.Year),
			c.ID, c.ListingID, nil, c.TenantID)...)
	}

	return s.wallets.GetByContractID(ctx, c.ID)
}

// RunReminderSweep рассылает напоминания по активным договорам. Безопасен для
// повторного запуска: по каждому периоду не больше одного напоминания в сутки.
// Просроченные периоды одного договора собираются в одно сообщение.
func (s *WalletService) RunReminderSweep(ctx context.Context, concurrency int) (SweepReport, error) {
	report := SweepReport{Name: "reminders"}
	now := s.now().In(s.policy.Location())
	window := s.policy.PaymentReminderWindowDays

	wallets, err := s.wallets.ListDue(ctx, reminderHorizon(now, window))
	if err != nil {
		return report, err
	}
	report.Scanned = len(wallets)

	var processed, failed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(sweepLimit(concurrency))
	for i := range wallets {
		w := &wallets[i]
		g.Go(func() error {
			sent, err := s.remindWallet(gctx, w, now, window)
			if err != nil {
				failed.Add(1)
				logger.WithFields(logrus.Fields{"wallet_id": w.ID, "contract_id": w.ContractID, "error": err}).
					Error("напоминания по графику не отправлены")
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

func (s *WalletService) remindWallet(ctx context.Context, w *models.Wallet, now time.Time, window int) (int, error) {
	items := make([]DueItem, len(w.Periods))
	for i, p := range w.Periods {
		items[i] = DueItem{Key: p.Key(), DueDate: p.DueDate, Status: p.Status}
	}

	dayStart := valueobject.StartOfDay(now)
	sent := 0
	var overdue []models.PaymentPeriod
	for _, plan := range PlanReminders(items, w.RemindersSent, now, window) {
		period := w.Periods[plan.Index]
		claimed, err := s.wallets.ClaimReminder(ctx, w.ID, plan.Key, now, dayStart)
		if err != nil {
			return sent, err
		}
		if !claimed {
			continue
		}

		if plan.Kind == ReminderOverdue {
			if period.Status.CanAccruePenalty() && period.PenaltyAmount == 0 {
				penalty := valueobject.PercentOf(period.Amount, w.LateFeePercentage)
				marked, err := s.wallets.MarkOverdue(ctx, period.ID, penalty)
				if err != nil {
					return sent, err
				}
				if marked {
					period.PenaltyAmount = penalty
					period.Status = valueobject.PaymentStatusOverdue
				}
			}
			overdue = append(overdue, period)
			continue
		}

		text := fmt.Sprintf("Через %d дн. срок оплаты аренды за %02d.%d: %.2f", plan.DaysLeft, period.Month, period.Year, period.Amount)
		if plan.Kind == ReminderDueToday {
			text = fmt.Sprintf("Сегодня срок оплаты аренды за %02d.%d: %.2f", period.Month, period.Year, period.Amount)
		}
		s.effects.notify(ctx, contractMessage("payment.reminder", text, w.ContractID, w.ListingID, nil, w.TenantID)...)
		sent++
	}

	if len(overdue) > 0 {
		s.effects.notify(ctx, contractMessage("payment.overdue", overdueDigest(overdue),
			w.ContractID, w.ListingID, nil, w.TenantID, w.LandlordID)...)
		sent++
	}
	return sent, nil
}

// overdueDigest - одно сообщение по всем просроченным периодам договора.
func overdueDigest(periods []models.PaymentPeriod) string {
	parts := make([]string, 0, len(periods))
	amounts := make([]float64, 0, len(periods)*2)
	for _, p := range periods {
		parts = append(parts, fmt.Sprintf("%02d.%d", p.Month, p.Year))
		amounts = append(amounts, p.Amount, p.PenaltyAmount)
	}
	return fmt.Sprintf("Просрочена оплата аренды за %s. К оплате с пенями: %.2f",
		strings.Join(parts, ", "), valueobject.Sum(amounts...))
}
