package format

import (
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

// PeriodLabel превращает дату периода в подпись для дашборда.
// Неизвестный период или пустая/битая дата дают пустую строку.
func PeriodLabel(period, date string) string {
	date = strings.TrimSpace(date)
	if date == "" {
		return ""
	}

	if period == "range" {
		from, to, ok := strings.Cut(date, ",")
		if !ok {
			return ""
		}
		a, errA := time.Parse(dateLayout, from)
		b, errB := time.Parse(dateLayout, to)
		if errA != nil || errB != nil {
			return ""
		}
		return a.Format("Jan 2, 2006") + " - " + b.Format("Jan 2, 2006")
	}

	t, err := time.Parse(dateLayout, date)
	if err != nil {
		return ""
	}

	switch period {
	case "day":
		return t.Format("Monday, January 2, 2006")
	case "week":
		// неделя начинается с понедельника
		offset := (int(t.Weekday()) + 6) % 7
		start := t.AddDate(0, 0, -offset)
		return "week " + start.Format("January 2") + " - " + start.AddDate(0, 0, 6).Format("January 2, 2006")
	case "month":
		return t.Format("January 2006")
	case "year":
		return t.Format("2006")
	default:
		return ""
	}
}
