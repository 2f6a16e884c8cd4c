package dashboard

import (
	"errors"
	"strconv"
	"strings"

	"github.com/xela07ax/sitesboard/internal/domain"
	"github.com/xela07ax/sitesboard/internal/format"
)

// ErrMissingTable возвращается, если источник не отдал сводную таблицу.
var ErrMissingTable = errors.New("dashboard: summary table is missing")

// Directory — справочник сайтов: имена, группы и основные URL.
type Directory interface {
	URLResolver
	Lookup(id int64) (domain.SiteInfo, bool)
}

type Options struct {
	// RecalculateAfterSearch пересчитывает итоги групп по участникам, пережившим поиск.
	// По умолчанию итоги считаются до поиска.
	RecalculateAfterSearch bool
}

// Request — параметры одного построения отчета.
type Request struct {
	Period  string
	Pattern string
	Offset  int
	Limit   int
}

// Builder собирает отчет: подстановка имен -> группировка -> поиск -> разворот -> страница.
type Builder struct {
	dir   Directory
	money *format.Money
	opts  Options
}

func NewBuilder(dir Directory, money *format.Money, opts Options) *Builder {
	return &Builder{dir: dir, money: money, opts: opts}
}

// Build строит отчет по снимку таблицы. Снимок не изменяется.
func (b *Builder) Build(table *domain.SummaryTable, req Request) (*domain.Report, error) {
	if table == nil {
		return nil, ErrMissingTable
	}

	tree := GroupSites(b.resolveSites(table.Sites))
	// заголовки групп считаются наравне с сайтами: клиент листает развернутые строки
	numSites := tree.CountRecursive()

	if term := strings.ToLower(req.Pattern); term != "" {
		tree = Search(tree, term)
		if b.opts.RecalculateAfterSearch {
			for _, e := range tree {
				if g, ok := e.(*domain.Group); ok {
					g.Recalculate()
				}
			}
		}
		numSites = tree.CountRecursive()
	}

	page := Paginate(Flatten(tree), req.Offset, req.Limit)

	var lastVisits int64
	if table.LastPeriodVisits != nil {
		lastVisits = *table.LastPeriodVisits
	}

	return &domain.Report{
		NumSites: numSites,
		Totals: domain.Totals{
			Visits:     table.TotalVisits,
			Pageviews:  table.TotalPageviews,
			Revenue:    b.money.Format(table.TotalRevenue),
			LastVisits: lastVisits,
		},
		Sites:    Enrich(page, b.money, b.dir),
		LastDate: format.PeriodLabel(req.Period, table.LastDate),
	}, nil
}

// resolveSites копирует строки таблицы, отбрасывает итоговую строку (ID <= 0)
// и подставляет имя и группу из справочника.
func (b *Builder) resolveSites(rows []domain.Site) []*domain.Site {
	sites := make([]*domain.Site, 0, len(rows))
	for i := range rows {
		if rows[i].ID <= 0 {
			continue
		}
		s := rows[i]

		if b.dir != nil {
			if info, ok := b.dir.Lookup(s.ID); ok {
				if info.Name != "" {
					s.Label = info.Name
				}
				s.Group = info.Group
			}
		}
		if s.Label == "" {
			s.Label = strconv.FormatInt(s.ID, 10)
		}
		sites = append(sites, &s)
	}
	return sites
}
