package dashboard

import (
	"github.com/xela07ax/sitesboard/internal/domain"
	"github.com/xela07ax/sitesboard/internal/format"
)

// Paginate пропускает offset строк и оставляет не больше limit.
// limit <= 0 означает "без ограничения".
func Paginate(rows []domain.Entry, offset, limit int) []domain.Entry {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(rows) {
		return rows[:0]
	}
	rows = rows[offset:]
	if limit > 0 && limit < len(rows) {
		rows = rows[:limit]
	}
	return rows
}

// URLResolver возвращает основной адрес сайта по его ID.
type URLResolver interface {
	MainURL(id int64) (string, bool)
}

// Enrich превращает элементы в строки отчета: у сайтов форматируется выручка
// и подставляется основной URL, у групп только их собственные метрики.
func Enrich(entries []domain.Entry, money *format.Money, urls URLResolver) []domain.Row {
	rows := make([]domain.Row, 0, len(entries))
	for _, e := range entries {
		switch v := e.(type) {
		case *domain.Group:
			rows = append(rows, groupRow(v, money))
		case *domain.Site:
			rows = append(rows, siteRow(v, money, urls))
		}
	}
	return rows
}

func groupRow(g *domain.Group, money *format.Money) domain.Row {
	return domain.Row{
		Kind:               domain.RowGroup,
		IsGroup:            true,
		Label:              g.Label,
		Visits:             g.Metrics.Visits,
		Pageviews:          g.Metrics.Pageviews,
		Revenue:            money.Format(g.Metrics.Revenue),
		VisitsEvolution:    g.Metrics.VisitsEvolution,
		PageviewsEvolution: g.Metrics.PageviewsEvolution,
		RevenueEvolution:   g.Metrics.RevenueEvolution,
	}
}

func siteRow(s *domain.Site, money *format.Money, urls URLResolver) domain.Row {
	id := s.ID
	mainURL := s.MainURL
	if urls != nil {
		if u, ok := urls.MainURL(s.ID); ok {
			mainURL = u
		}
	}

	return domain.Row{
		Kind:               domain.RowSite,
		IDSite:             &id,
		Label:              s.Label,
		Group:              s.Group,
		MainURL:            mainURL,
		Visits:             s.Visits,
		Pageviews:          s.Pageviews,
		Revenue:            money.Format(s.Revenue),
		VisitsEvolution:    s.VisitsEvolution,
		PageviewsEvolution: s.PageviewsEvolution,
		RevenueEvolution:   s.RevenueEvolution,
	}
}
