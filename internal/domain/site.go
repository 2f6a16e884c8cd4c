package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Metrics — набор показателей сайта за период (и за предыдущий сопоставимый период).
type Metrics struct {
	Visits             int64           `json:"nb_visits"`
	Pageviews          int64           `json:"nb_pageviews"`
	Revenue            decimal.Decimal `json:"revenue"`
	VisitsEvolution    float64         `json:"visits_evolution"`
	PageviewsEvolution float64         `json:"pageviews_evolution"`
	RevenueEvolution   float64         `json:"revenue_evolution"`

	// Значения прошлого периода, из них считается evolution для групп
	PastVisits    int64           `json:"past_nb_visits"`
	PastPageviews int64           `json:"past_nb_pageviews"`
	PastRevenue   decimal.Decimal `json:"past_revenue"`
}

// Add прибавляет суммируемые показатели o. Evolution не суммируется.
func (m *Metrics) Add(o Metrics) {
	m.Visits += o.Visits
	m.Pageviews += o.Pageviews
	m.Revenue = m.Revenue.Add(o.Revenue)
	m.PastVisits += o.PastVisits
	m.PastPageviews += o.PastPageviews
	m.PastRevenue = m.PastRevenue.Add(o.PastRevenue)
}

// RecomputeEvolution пересчитывает проценты изменения из текущих и прошлых значений.
func (m *Metrics) RecomputeEvolution() {
	m.VisitsEvolution = Evolution(decimal.NewFromInt(m.Visits), decimal.NewFromInt(m.PastVisits))
	m.PageviewsEvolution = Evolution(decimal.NewFromInt(m.Pageviews), decimal.NewFromInt(m.PastPageviews))
	m.RevenueEvolution = Evolution(m.Revenue, m.PastRevenue)
}

// Evolution возвращает изменение current относительно past в процентах, округленное до 0.1.
// При нулевом прошлом значении рост считается 100%.
func Evolution(current, past decimal.Decimal) float64 {
	if past.IsZero() {
		if current.IsZero() {
			return 0
		}
		return 100
	}
	return current.Sub(past).Div(past).Mul(decimal.NewFromInt(100)).Round(1).InexactFloat64()
}

// Site — строка сводной таблицы: один сайт с метриками.
type Site struct {
	ID      int64  `json:"idsite"`
	Label   string `json:"label"`
	Group   string `json:"group,omitempty"`
	MainURL string `json:"main_url,omitempty"`
	Metrics
}

// HasGroup сообщает, назначена ли сайту группа. Пустая или пробельная строка — "без группы".
func (s *Site) HasGroup() bool {
	return strings.TrimSpace(s.Group) != ""
}

// SiteInfo — справочные данные сайта, которые задает администратор.
type SiteInfo struct {
	ID      int64  `json:"idsite"`
	Name    string `json:"name"`
	Group   string `json:"group"`
	MainURL string `json:"main_url"`
}
