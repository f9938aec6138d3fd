package valueobject

import "time"

// DueDateIn возвращает дату платежа с днём day в указанном месяце.
// Если в месяце меньше дней (31 февраля), берётся последний день месяца.
func DueDateIn(year int, month time.Month, day int, loc *time.Location) time.Time {
	if day < 1 {
		day = 1
	}
	last := DaysIn(year, month, loc)
	if day > last {
		day = last
	}
	return time.Date(year, month, day, 0, 0, 0, 0, loc)
}

// DaysIn - количество дней в месяце.
func DaysIn(year int, month time.Month, loc *time.Location) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, loc).Day()
}

// AddMonths сдвигает дату на n календарных месяцев, не перескакивая через конец месяца
// (31 января + 1 месяц = 28/29 февраля, а не 3 марта).
func AddMonths(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m+time.Month(n), 1, 0, 0, 0, 0, t.Location())
	if last := DaysIn(first.Year(), first.Month(), t.Location()); d > last {
		d = last
	}
	return time.Date(first.Year(), first.Month(), d, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

// MonthsBetween перечисляет все календарные месяцы от start до end включительно.
func MonthsBetween(start, end time.Time) []time.Time {
	if end.Before(start) {
		return nil
	}
	var months []time.Time
	cursor := time.Date(start.Year(), start.Month(), 1, 0, 0, 0, 0, start.Location())
	last := time.Date(end.Year(), end.Month(), 1, 0, 0, 0, 0, start.Location())
	for !cursor.After(last) {
		months = append(months, cursor)
		cursor = cursor.AddDate(0, 1, 0)
	}
	return months
}

// StartOfDay - полночь календарного дня t.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// DaysUntil - сколько календарных дней осталось до due (отрицательное значение - просрочка).
// Дни считаются в часовом поясе now.
func DaysUntil(due, now time.Time) int {
	dy, dm, dd := due.In(now.Location()).Date()
	ny, nm, nd := now.Date()
	dueDay := time.Date(dy, dm, dd, 0, 0, 0, 0, time.UTC)
	today := time.Date(ny, nm, nd, 0, 0, 0, 0, time.UTC)
	return int(dueDay.Sub(today) / (24 * time.Hour))
}

// SameDay - совпадают ли календарные дни в часовом поясе now.
func SameDay(a, b time.Time, loc *time.Location) bool {
	ay, am, ad := a.In(loc).Date()
	by, bm, bd := b.In(loc).Date()
	return ay == by && am == bm && ad == bd
}
