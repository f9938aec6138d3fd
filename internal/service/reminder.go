package service

import (
	"time"

	"github.com/ignatzorin/rental-backend/internal/domain/valueobject"
	"github.com/ignatzorin/rental-backend/internal/models"
)

// ReminderKind - вид напоминания о платеже.
type ReminderKind string

const (
	ReminderUpcoming ReminderKind = "upcoming"
	ReminderDueToday ReminderKind = "due_today"
	ReminderOverdue  ReminderKind = "overdue"
)

// DueItem - платёж, по которому может понадобиться напоминание.
type DueItem struct {
	Key     string
	DueDate time.Time
	Status  valueobject.PaymentStatus
}

// PlannedReminder - напоминание, которое нужно отправить сейчас.
type PlannedReminder struct {
	Index    int
	Key      string
	Kind     ReminderKind
	DaysLeft int
}

// PlanReminders выбирает платежи, по которым сегодня положено напоминание.
// Платёж попадает в окно за window дней до срока и остаётся в нём, пока не оплачен.
// Внутри окна - не больше одного напоминания в календарные сутки: записи журнала,
// отправленные сегодня, пропускаются. Окончательно дубль отсекает ClaimReminder.
func PlanReminders(items []DueItem, log models.ReminderLog, now time.Time, window int) []PlannedReminder {
	var planned []PlannedReminder
	for i, item := range items {
		if !item.Status.IsOutstanding() {
			continue
		}
		days := valueobject.DaysUntil(item.DueDate, now)
		if days > window {
			continue
		}
		if last, ok := log[item.Key]; ok && valueobject.SameDay(last, now, now.Location()) {
			continue
		}

		kind := ReminderUpcoming
		switch {
		case days < 0:
			kind = ReminderOverdue
		case days == 0:
			kind = ReminderDueToday
		}
		planned = append(planned, PlannedReminder{Index: i, Key: item.Key, Kind: kind, DaysLeft: days})
	}
	return planned
}

// reminderHorizon - крайний срок платежей, которые могут попасть в окно сегодня.
func reminderHorizon(now time.Time, window int) time.Time {
	return valueobject.StartOfDay(now).AddDate(0, 0, window+1)
}
