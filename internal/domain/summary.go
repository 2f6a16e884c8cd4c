package domain

import "github.com/shopspring/decimal"

// Периоды, которые понимает источник сводок.
const (
	PeriodDay   = "day"
	PeriodWeek  = "week"
	PeriodMonth = "month"
	PeriodYear  = "year"
	PeriodRange = "range"
)

// Query идентифицирует снимок сводной таблицы во внешнем движке аналитики.
type Query struct {
	Period  string `json:"period"`
	Date    string `json:"date"`
	Segment string `json:"segment,omitempty"`
}

// SummaryTable — сводная таблица по сайтам плюс метаданные уровня таблицы.
type SummaryTable struct {
	Sites []Site `json:"sites"`

	TotalVisits    int64           `json:"total_nb_visits"`
	TotalPageviews int64           `json:"total_nb_pageviews"`
	TotalRevenue   decimal.Decimal `json:"total_revenue"`

	// Опциональные метаданные: отсутствие не является ошибкой
	LastPeriodVisits *int64 `json:"last_period_nb_visits,omitempty"`
	LastDate         string `json:"last_date,omitempty"`
}
