package domain

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout — формат дат периода во всех запросах.
const DateLayout = "2006-01-02"

// ValidPeriod сообщает, знает ли источник такой период.
func ValidPeriod(period string) bool {
	switch period {
	case PeriodDay, PeriodWeek, PeriodMonth, PeriodYear, PeriodRange:
		return true
	}
	return false
}

// Resolve проверяет запрос и переводит относительные даты (today, yesterday)
// в календарные относительно now. Результат годится как ключ кэша.
func (q Query) Resolve(now time.Time) (Query, error) {
	if !ValidPeriod(q.Period) {
		return q, fmt.Errorf("unknown period %q", q.Period)
	}

	if q.Period == PeriodRange {
		from, to, ok := strings.Cut(q.Date, ",")
		if !ok {
			return q, fmt.Errorf("range date must be \"from,to\", got %q", q.Date)
		}
		a, err := resolveDay(from, now)
		if err != nil {
			return q, err
		}
		b, err := resolveDay(to, now)
		if err != nil {
			return q, err
		}
		if b.Before(a) {
			return q, fmt.Errorf("range end %s is before start %s", b.Format(DateLayout), a.Format(DateLayout))
		}
		q.Date = a.Format(DateLayout) + "," + b.Format(DateLayout)
		return q, nil
	}

	d, err := resolveDay(q.Date, now)
	if err != nil {
		return q, err
	}
	q.Date = d.Format(DateLayout)
	return q, nil
}

func resolveDay(s string, now time.Time) (time.Time, error) {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	switch s = strings.TrimSpace(s); s {
	case "", "today":
		return today, nil
	case "yesterday":
		return today.AddDate(0, 0, -1), nil
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q", s)
	}
	return t, nil
}

// Bounds возвращает первый и последний день периода, содержащего дату запроса.
// Запрос должен быть уже разрешен через Resolve.
func (q Query) Bounds() (start, end time.Time, err error) {
	if q.Period == PeriodRange {
		from, to, _ := strings.Cut(q.Date, ",")
		if start, err = time.Parse(DateLayout, from); err != nil {
			return start, end, fmt.Errorf("invalid date %q", from)
		}
		if end, err = time.Parse(DateLayout, to); err != nil {
			return start, end, fmt.Errorf("invalid date %q", to)
		}
		return start, end, nil
	}

	t, err := time.Parse(DateLayout, q.Date)
	if err != nil {
		return start, end, fmt.Errorf("invalid date %q", q.Date)
	}

	switch q.Period {
	case PeriodDay:
		return t, t, nil
	case PeriodWeek:
		// неделя начинается с понедельника
		start = t.AddDate(0, 0, -((int(t.Weekday()) + 6) % 7))
		return start, start.AddDate(0, 0, 6), nil
	case PeriodMonth:
		start = time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
		return start, start.AddDate(0, 1, -1), nil
	case PeriodYear:
		start = time.Date(t.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
		return start, start.AddDate(1, 0, -1), nil
	}
	return start, end, fmt.Errorf("unknown period %q", q.Period)
}

// PreviousBounds возвращает границы предыдущего сопоставимого периода.
// Для произвольного диапазона это диапазон той же длины непосредственно перед ним.
func PreviousBounds(period string, start, end time.Time) (time.Time, time.Time) {
	switch period {
	case PeriodDay:
		p := start.AddDate(0, 0, -1)
		return p, p
	case PeriodWeek:
		return start.AddDate(0, 0, -7), start.AddDate(0, 0, -1)
	case PeriodMonth:
		return start.AddDate(0, -1, 0), start.AddDate(0, 0, -1)
	case PeriodYear:
		return start.AddDate(-1, 0, 0), start.AddDate(0, 0, -1)
	}
	days := int(end.Sub(start).Hours()/24) + 1
	return start.AddDate(0, 0, -days), start.AddDate(0, 0, -1)
}
